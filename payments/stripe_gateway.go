package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/customer"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeCustomerAPI interface {
	FindByEmail(ctx context.Context, email string) (*stripe.Customer, error)
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type customerClient struct {
	c *customer.Client
}

func (cc customerClient) FindByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := cc.c.List(params)
	if iter.Next() {
		return iter.Customer(), nil
	}
	return nil, iter.Err()
}

func (cc customerClient) New(params *stripe.CustomerParams) (*stripe.Customer, error) {
	return cc.c.New(params)
}

type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	Logger        *zap.Logger

	sessions  stripeSessionAPI
	customers stripeCustomerAPI
}

// StripeGateway implements Gateway with Stripe Checkout.
type StripeGateway struct {
	sessions      stripeSessionAPI
	customers     stripeCustomerAPI
	webhookSecret string
	log           *zap.Logger
}

func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" && (cfg.sessions == nil || cfg.customers == nil) {
		return nil, errors.New("stripe: secret key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	sessions, customers := cfg.sessions, cfg.customers
	if sessions == nil || customers == nil {
		sc := client.New(key, nil)
		sessions = sc.CheckoutSessions
		customers = customerClient{c: sc.Customers}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &StripeGateway{
		sessions:      sessions,
		customers:     customers,
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}, nil
}

// EnsureCustomer returns the Stripe customer for email, creating one if none exists.
func (g *StripeGateway) EnsureCustomer(ctx context.Context, email, name string) (string, error) {
	if email != "" {
		existing, err := g.customers.FindByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("stripe: list customers: %w", err)
		}
		if existing != nil {
			return existing.ID, nil
		}
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	if name != "" {
		params.Name = stripe.String(name)
	}

	created, err := g.customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	g.log.Info("payments.stripe.customer.created", zap.String("customerId", created.ID))
	return created.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if len(req.Items) == 0 {
		return CheckoutSession{}, errors.New("stripe: checkout session needs at least one line item")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: []*string{stripe.String("card")},
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	currency := strings.ToLower(req.Currency)
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		if item.Image != "" {
			product.Images = []*string{stripe.String(item.Image)}
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
		})
	}
	params.LineItems = lineItems

	session, err := g.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	g.log.Info("payments.stripe.session.created",
		zap.String("sessionId", session.ID),
		zap.String("orderId", req.Metadata["orderId"]),
	)
	return CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header before decoding anything.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Raw:  payload,
	}

	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutExpired:
		if event.Data == nil {
			return WebhookEvent{}, errors.New("stripe: event without data")
		}
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return WebhookEvent{}, fmt.Errorf("stripe: decode checkout session: %w", err)
		}
		out.SessionID = session.ID
		out.Metadata = session.Metadata
		if session.PaymentIntent != nil {
			out.PaymentIntentID = session.PaymentIntent.ID
		}
	}

	return out, nil
}
