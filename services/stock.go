package services

import (
	"fmt"
	"time"

	"github.com/Kariqs/farmmarket-api/models"
	"gorm.io/gorm"
)

// reserveStock decrements stock for every item with a guarded UPDATE. It must
// run inside the order transaction so a failed guard rolls back the order.
func reserveStock(tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		result := tx.Model(&models.Product{}).
			Where("id = ? AND quantity >= ?", item.ProductID, item.Quantity).
			Update("quantity", gorm.Expr("quantity - ?", item.Quantity))
		if result.Error != nil {
			return fmt.Errorf("reserve product %d: %w", item.ProductID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: product %d", ErrInsufficientStock, item.ProductID)
		}
	}
	return nil
}

// releaseStock returns reserved units. Soft-deleted products are restocked too
// so their counts stay consistent if they are restored.
func releaseStock(tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		err := tx.Unscoped().Model(&models.Product{}).
			Where("id = ?", item.ProductID).
			Update("quantity", gorm.Expr("quantity + ?", item.Quantity)).Error
		if err != nil {
			return fmt.Errorf("release product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// cancelPending moves a PENDING order to CANCELLED, releases its reservation
// and clears the reserved flag so the units are never released twice. It reports false when the order was no longer PENDING.
func cancelPending(tx *gorm.DB, order *models.Order) (bool, error) {
	now := time.Now()
	result := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(map[string]any{"status": models.OrderStatusCancelled, "cancelled_at": now, "stock_reserved": false})
	if result.Error != nil {
		return false, fmt.Errorf("cancel order %d: %w", order.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	if order.StockReserved {
		items := order.OrderItems
		if items == nil {
			if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
				return false, fmt.Errorf("load order items: %w", err)
			}
		}
		if err := releaseStock(tx, items); err != nil {
			return false, err
		}
	}

	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now
	order.StockReserved = false
	return true, nil
}
