package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Kariqs/farmmarket-api/cache"
	"github.com/Kariqs/farmmarket-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reaper cancels PENDING orders whose reservation outlived the TTL and puts
// their stock back on sale.
type Reaper struct {
	db    *gorm.DB
	cache cache.ViewCache
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

func NewReaper(db *gorm.DB, viewCache cache.ViewCache, ttl time.Duration, log *zap.Logger) *Reaper {
	if viewCache == nil {
		viewCache = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{db: db, cache: viewCache, ttl: ttl, log: log, now: time.Now}
}

// paymentGrace covers webhooks still in flight when a payment page expires.
const paymentGrace = 5 * time.Minute

// ExpirePendingOrders returns the number of orders it cancelled. Orders with a
// payment page are kept until that page has expired; the rest age out after
// the TTL.
func (r *Reaper) ExpirePendingOrders(ctx context.Context) (int, error) {
	now := r.now()

	var stale []models.Order
	err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Where("status = ?", models.OrderStatusPending).
		Where(r.db.Where("payment_expires_at IS NULL AND created_at < ?", now.Add(-r.ttl)).
			Or("payment_expires_at < ?", now.Add(-paymentGrace))).
		Order("id").
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("find stale orders: %w", err)
	}

	expired := 0
	for i := range stale {
		order := &stale[i]
		var cancelled bool
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			cancelled, err = cancelPending(tx, order)
			return err
		})
		if err != nil {
			r.log.Error("failed to expire order", zap.Uint("orderId", order.ID), zap.Error(err))
			continue
		}
		if cancelled {
			expired++
			r.log.Info("expired pending order", zap.Uint("orderId", order.ID), zap.Time("createdAt", order.CreatedAt))
		}
	}

	if expired > 0 {
		if err := r.cache.DeleteMarketplace(ctx); err != nil {
			r.log.Warn("marketplace cache invalidation failed", zap.Error(err))
		}
	}
	return expired, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("order reaper started", zap.Duration("interval", interval), zap.Duration("ttl", r.ttl))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("order reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.ExpirePendingOrders(ctx); err != nil {
				r.log.Error("order reaper sweep failed", zap.Error(err))
			}
		}
	}
}
