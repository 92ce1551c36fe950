package payments

import (
	"context"
	"errors"
	"time"
)

// Event types handled by the webhook.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// Gateway is the outbound and inbound surface of the payment processor.
type Gateway interface {
	EnsureCustomer(ctx context.Context, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

type LineItem struct {
	Name        string
	Description string
	Image       string
	UnitAmount  int64
	Quantity    int64
}

type CheckoutSessionRequest struct {
	CustomerID string
	Currency   string
	Items      []LineItem
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
	ExpiresAt  time.Time
}

type CheckoutSession struct {
	ID  string
	URL string
}

// WebhookEvent is the verified subset of a gateway event this API relies on.
type WebhookEvent struct {
	ID              string
	Type            string
	SessionID       string
	PaymentIntentID string
	Metadata        map[string]string
	Raw             []byte
}
