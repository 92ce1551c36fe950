package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Kariqs/farmmarket-api/cache"
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/payments"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderNotifier tells a customer their payment went through.
type OrderNotifier interface {
	OrderPaid(ctx context.Context, customer models.User, order models.Order) error
}

// Payment emails are sent after the event is acknowledged and get this long.
const notifyTimeout = 30 * time.Second

type WebhookService struct {
	db       *gorm.DB
	gateway  payments.Gateway
	cache    cache.ViewCache
	notifier OrderNotifier
	log      *zap.Logger
	emails   sync.WaitGroup
}

func NewWebhookService(db *gorm.DB, gateway payments.Gateway, viewCache cache.ViewCache, notifier OrderNotifier, log *zap.Logger) *WebhookService {
	if viewCache == nil {
		viewCache = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookService{db: db, gateway: gateway, cache: viewCache, notifier: notifier, log: log}
}

// HandleEvent verifies and applies a gateway event. Redelivered events and
// events for already settled orders are acknowledged without side effects.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return fmt.Errorf("%w: payments are not configured", ErrUpstream)
	}

	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return fmt.Errorf("%w: %v", ErrSignature, err)
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	switch event.Type {
	case payments.EventCheckoutCompleted:
		return s.handleCompleted(ctx, event)
	case payments.EventCheckoutExpired:
		return s.handleExpired(ctx, event)
	default:
		s.log.Debug("ignoring webhook event", zap.String("eventId", event.ID), zap.String("type", event.Type))
		return nil
	}
}

func (s *WebhookService) handleCompleted(ctx context.Context, event payments.WebhookEvent) error {
	orderID, err := orderIDFrom(event)
	if err != nil {
		return err
	}

	var (
		order models.Order
		paid  bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen, err := eventSeen(tx, event.ID)
		if err != nil || seen {
			return err
		}

		if err := tx.Preload("OrderItems").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}

		switch {
		case models.IsSettled(order.Status):
			s.log.Info("payment already applied",
				zap.String("eventId", event.ID),
				zap.Uint("orderId", order.ID),
				zap.String("status", order.Status),
			)
			return recordEvent(tx, event, order.ID)
		case order.Status == models.OrderStatusCancelled:
			s.log.Error("payment completed for cancelled order, needs manual reconciliation",
				zap.String("eventId", event.ID),
				zap.Uint("orderId", order.ID),
				zap.String("sessionId", event.SessionID),
				zap.String("paymentIntentId", event.PaymentIntentID),
			)
			return recordEvent(tx, event, order.ID)
		}

		now := time.Now()
		updates := map[string]any{"status": models.OrderStatusPaid, "paid_at": now}
		if event.PaymentIntentID != "" {
			updates["stripe_payment_intent_id"] = event.PaymentIntentID
		}
		if event.SessionID != "" {
			updates["stripe_session_id"] = event.SessionID
		}
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("mark order %d paid: %w", order.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if !order.StockReserved {
			if err := reserveStock(tx, order.OrderItems); err != nil {
				return err
			}
		}

		if order.Source == models.OrderSourceCart {
			if err := clearPurchasedLines(tx, order); err != nil {
				return err
			}
		}

		if err := recordEvent(tx, event, order.ID); err != nil {
			return err
		}

		order.Status = models.OrderStatusPaid
		order.PaidAt = &now
		paid = true
		return nil
	})
	if err != nil {
		return err
	}
	if !paid {
		return nil
	}

	s.log.Info("order paid",
		zap.String("eventId", event.ID),
		zap.Uint("orderId", order.ID),
		zap.Uint("customerId", order.CustomerID),
	)
	if err := s.cache.DeleteCart(ctx, order.CustomerID); err != nil {
		s.log.Warn("cart cache invalidation failed", zap.Uint("userId", order.CustomerID), zap.Error(err))
	}
	if err := s.cache.DeleteMarketplace(ctx); err != nil {
		s.log.Warn("marketplace cache invalidation failed", zap.Error(err))
	}
	if s.notifier != nil {
		s.emails.Add(1)
		go func() {
			defer s.emails.Done()
			notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
			defer cancel()
			s.notifyPaid(notifyCtx, order)
		}()
	}
	return nil
}

// Wait blocks until every payment email already started has finished.
func (s *WebhookService) Wait() {
	s.emails.Wait()
}

func (s *WebhookService) handleExpired(ctx context.Context, event payments.WebhookEvent) error {
	orderID, err := orderIDFrom(event)
	if err != nil {
		return err
	}

	var cancelled bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen, err := eventSeen(tx, event.ID)
		if err != nil || seen {
			return err
		}

		var order models.Order
		if err := tx.Preload("OrderItems").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}

		if cancelled, err = cancelPending(tx, &order); err != nil {
			return err
		}
		return recordEvent(tx, event, order.ID)
	})
	if err != nil {
		return err
	}

	if cancelled {
		s.log.Info("checkout expired, order cancelled", zap.String("eventId", event.ID), zap.Uint("orderId", orderID))
		if err := s.cache.DeleteMarketplace(ctx); err != nil {
			s.log.Warn("marketplace cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

func (s *WebhookService) notifyPaid(ctx context.Context, order models.Order) {
	var customer models.User
	if err := s.db.WithContext(ctx).First(&customer, order.CustomerID).Error; err != nil {
		s.log.Warn("order paid email skipped, customer not loaded", zap.Uint("orderId", order.ID), zap.Error(err))
		return
	}
	if err := s.db.WithContext(ctx).
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("order_id = ?", order.ID).
		Order("id").
		Find(&order.OrderItems).Error; err != nil {
		s.log.Warn("order paid email without product details", zap.Uint("orderId", order.ID), zap.Error(err))
	}

	if err := s.notifier.OrderPaid(ctx, customer, order); err != nil {
		s.log.Warn("order paid email failed", zap.Uint("orderId", order.ID), zap.Error(err))
	}
}

func orderIDFrom(event payments.WebhookEvent) (uint, error) {
	raw, ok := event.Metadata["orderId"]
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: event %s has no orderId metadata", ErrBadRequest, event.ID)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid orderId %q", ErrBadRequest, raw)
	}
	return uint(id), nil
}

func eventSeen(tx *gorm.DB, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	var n int64
	if err := tx.Model(&models.PaymentEvent{}).Where("event_id = ?", eventID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup payment event: %w", err)
	}
	return n > 0, nil
}

func recordEvent(tx *gorm.DB, event payments.WebhookEvent, orderID uint) error {
	if event.ID == "" {
		return nil
	}
	record := models.PaymentEvent{
		EventID:     event.ID,
		Type:        event.Type,
		OrderID:     &orderID,
		Payload:     datatypes.JSON(event.Raw),
		ProcessedAt: time.Now(),
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("record payment event: %w", err)
	}
	return nil
}

// clearPurchasedLines removes only the bought products from the customer's
// cart; lines added after checkout stay.
func clearPurchasedLines(tx *gorm.DB, order models.Order) error {
	productIDs := make([]uint, 0, len(order.OrderItems))
	for _, item := range order.OrderItems {
		productIDs = append(productIDs, item.ProductID)
	}
	if len(productIDs) == 0 {
		return nil
	}

	carts := tx.Session(&gorm.Session{NewDB: true}).Model(&models.Cart{}).Select("id").Where("user_id = ?", order.CustomerID)
	if err := tx.Where("cart_id IN (?) AND product_id IN ?", carts, productIDs).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("clear cart lines: %w", err)
	}
	return nil
}
