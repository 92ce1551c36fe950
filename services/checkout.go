package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/payments"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stripe only accepts checkout session expiries within this window, measured
// when the session is created. The expiry is fixed before the order is saved,
// so short lifetimes get headroom for the gateway round trips.
const (
	minSessionLifetime = 30 * time.Minute
	maxSessionLifetime = 24 * time.Hour
	sessionOpenSlack   = 2 * time.Minute
)

type CheckoutConfig struct {
	PublicURL      string
	Currency       string
	ReservationTTL time.Duration
}

func (c CheckoutConfig) withDefaults() CheckoutConfig {
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	if c.Currency == "" {
		c.Currency = "inr"
	}
	if c.ReservationTTL <= 0 {
		c.ReservationTTL = time.Hour
	}
	return c
}

func (c CheckoutConfig) sessionExpiry(now time.Time) time.Time {
	lifetime := c.ReservationTTL
	if lifetime < minSessionLifetime+sessionOpenSlack {
		lifetime = minSessionLifetime + sessionOpenSlack
	}
	if lifetime > maxSessionLifetime {
		lifetime = maxSessionLifetime
	}
	return now.Add(lifetime)
}

type CheckoutResult struct {
	URL     string `json:"url"`
	OrderID uint   `json:"orderId"`
}

// Checkout turns the submitted cart lines into a PENDING order with reserved
// stock and opens a hosted payment session for it.
func (s *OrderService) Checkout(ctx context.Context, customer models.Session, items []models.CheckoutItem) (*CheckoutResult, error) {
	if customer.ID == 0 {
		return nil, ErrUnauthorized
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: payments are not configured", ErrUpstream)
	}
	if err := validateCheckoutItems(items); err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	db := s.db.WithContext(ctx)
	var products []models.Product
	if err := db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	// The reaper keeps the reservation until this instant, so the order
	// cannot be cancelled while its payment page still accepts payment.
	expiresAt := s.checkout.sessionExpiry(time.Now())
	order := models.Order{
		CustomerID:       customer.ID,
		Status:           models.OrderStatusPending,
		Source:           models.OrderSourceCart,
		StockReserved:    true,
		PaymentExpiresAt: &expiresAt,
	}
	subtotal := decimal.Zero
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, item.ProductID)
		}
		if item.Quantity > product.Quantity {
			return nil, fmt.Errorf("%w: only %d of %s left", ErrInsufficientStock, product.Quantity, product.Name)
		}
		line := models.OrderItem{ProductID: product.ID, Quantity: item.Quantity, UnitPrice: product.Price}
		subtotal = subtotal.Add(line.LineTotal())
		order.OrderItems = append(order.OrderItems, line)
	}
	order.Subtotal = subtotal
	order.ShippingFee = ShippingFor(subtotal)
	order.TotalAmount = subtotal.Add(order.ShippingFee)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := reserveStock(tx, order.OrderItems); err != nil {
			return err
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}
	s.invalidateMarketplace(ctx)

	session, err := s.openSession(ctx, customer, order, byID, expiresAt)
	if err != nil {
		s.log.Error("checkout session failed, cancelling order",
			zap.Uint("orderId", order.ID),
			zap.Error(err),
		)
		s.abandon(ctx, &order)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Update("stripe_session_id", session.ID).Error; err != nil {
		// The webhook resolves orders by metadata, so the session can still complete.
		s.log.Error("failed to store checkout session id",
			zap.Uint("orderId", order.ID),
			zap.String("sessionId", session.ID),
			zap.Error(err),
		)
	}

	s.log.Info("checkout session created",
		zap.Uint("orderId", order.ID),
		zap.Uint("customerId", customer.ID),
		zap.String("sessionId", session.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return &CheckoutResult{URL: session.URL, OrderID: order.ID}, nil
}

func (s *OrderService) openSession(ctx context.Context, customer models.Session, order models.Order, products map[uint]models.Product, expiresAt time.Time) (payments.CheckoutSession, error) {
	customerID, err := s.gateway.EnsureCustomer(ctx, customer.Email, customer.Name)
	if err != nil {
		return payments.CheckoutSession{}, err
	}

	lines := make([]payments.LineItem, 0, len(order.OrderItems)+1)
	for _, item := range order.OrderItems {
		product := products[item.ProductID]
		lines = append(lines, payments.LineItem{
			Name:        product.Name,
			Description: product.Description,
			Image:       product.Image,
			UnitAmount:  MinorUnits(item.UnitPrice),
			Quantity:    int64(item.Quantity),
		})
	}
	if order.ShippingFee.IsPositive() {
		lines = append(lines, payments.LineItem{
			Name:       "Shipping",
			UnitAmount: MinorUnits(order.ShippingFee),
			Quantity:   1,
		})
	}

	return s.gateway.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		CustomerID: customerID,
		Currency:   s.checkout.Currency,
		Items:      lines,
		Metadata:   map[string]string{"orderId": strconv.FormatUint(uint64(order.ID), 10)},
		SuccessURL: s.checkout.PublicURL + "/customer/orders?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.checkout.PublicURL + "/customer/cart",
		ExpiresAt:  expiresAt,
	})
}

// abandon cancels an order whose payment session could not be opened.
func (s *OrderService) abandon(ctx context.Context, order *models.Order) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := cancelPending(tx, order)
		return err
	})
	if err != nil {
		s.log.Error("failed to cancel abandoned order", zap.Uint("orderId", order.ID), zap.Error(err))
		return
	}
	s.invalidateMarketplace(ctx)
}

func validateCheckoutItems(items []models.CheckoutItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items to check out", ErrValidation)
	}
	seen := make(map[uint]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == 0 {
			return fmt.Errorf("%w: product id is required", ErrValidation)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity for product %d must be at least 1", ErrValidation, item.ProductID)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("%w: product %d listed twice", ErrValidation, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}
