package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kariqs/farmmarket-api/cache"
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/payments"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const FarmerRecentOrdersLimit = 5

type OrderService struct {
	db       *gorm.DB
	cache    cache.ViewCache
	gateway  payments.Gateway
	checkout CheckoutConfig
	log      *zap.Logger
}

func NewOrderService(db *gorm.DB, viewCache cache.ViewCache, gateway payments.Gateway, cfg CheckoutConfig, log *zap.Logger) *OrderService {
	if viewCache == nil {
		viewCache = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{db: db, cache: viewCache, gateway: gateway, checkout: cfg.withDefaults(), log: log}
}

// PlaceOrder buys a single product directly. The order is created and its
// stock reserved in one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, customerID, productID uint, quantity int) (*models.Order, error) {
	if customerID == 0 {
		return nil, ErrUnauthorized
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %d", ErrNotFound, productID)
			}
			return err
		}

		item := models.OrderItem{ProductID: product.ID, Quantity: quantity, UnitPrice: product.Price}
		total := item.LineTotal()
		order = models.Order{
			CustomerID:    customerID,
			Subtotal:      total,
			ShippingFee:   decimal.Zero,
			TotalAmount:   total,
			Status:        models.OrderStatusPending,
			Source:        models.OrderSourceDirect,
			StockReserved: true,
			OrderItems:    []models.OrderItem{item},
		}

		if err := reserveStock(tx, order.OrderItems); err != nil {
			return err
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order placed",
		zap.Uint("orderId", order.ID),
		zap.Uint("customerId", customerID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	s.invalidateMarketplace(ctx)
	return &order, nil
}

// CancelOrder lets a customer cancel their own PENDING order.
func (s *OrderService) CancelOrder(ctx context.Context, customerID, orderID uint) (*models.Order, error) {
	if customerID == 0 {
		return nil, ErrUnauthorized
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("OrderItems").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}
		if order.CustomerID != customerID {
			return ErrForbidden
		}
		if order.Status != models.OrderStatusPending {
			return fmt.Errorf("%w: only pending orders can be cancelled, order is %s", ErrInvalidState, order.Status)
		}

		cancelled, err := cancelPending(tx, &order)
		if err != nil {
			return err
		}
		if !cancelled {
			return fmt.Errorf("%w: order %d is no longer pending", ErrInvalidState, orderID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order cancelled", zap.Uint("orderId", order.ID), zap.Uint("customerId", customerID))
	s.invalidateMarketplace(ctx)
	return &order, nil
}

func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID uint) ([]models.Order, error) {
	if customerID == 0 {
		return nil, ErrUnauthorized
	}

	orders := []models.Order{}
	err := withOrderItems(s.db.WithContext(ctx)).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus is the farmer's manual status change. Any farmer whose
// product appears in the order may move it forward; cancelled orders stay
// cancelled.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, farmerID, orderID uint, status string) (*models.Order, error) {
	if farmerID == 0 {
		return nil, ErrUnauthorized
	}
	if !models.IsValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidState, status)
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("OrderItems").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}

		var owned int64
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND product_id IN (?)", orderID, farmerProducts(tx, farmerID)).
			Count(&owned).Error; err != nil {
			return err
		}
		if owned == 0 {
			return ErrForbidden
		}

		// CANCELLED is terminal and PENDING is only ever set at creation;
		// reopening either would move stock outside reserve and release.
		if order.Status == models.OrderStatusCancelled && status != models.OrderStatusCancelled {
			return fmt.Errorf("%w: order %d is cancelled", ErrInvalidState, orderID)
		}
		if status == models.OrderStatusPending && order.Status != models.OrderStatusPending {
			return fmt.Errorf("%w: order %d cannot go back to %s", ErrInvalidState, orderID, status)
		}

		if status == models.OrderStatusCancelled && order.Status == models.OrderStatusPending {
			if _, err := cancelPending(tx, &order); err != nil {
				return err
			}
			return nil
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", status).Error; err != nil {
			return err
		}
		order.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status updated",
		zap.Uint("orderId", order.ID),
		zap.Uint("farmerId", farmerID),
		zap.String("status", status),
	)
	return &order, nil
}

// ListFarmerOrders returns every order containing at least one of the
// farmer's products, newest first.
func (s *OrderService) ListFarmerOrders(ctx context.Context, farmerID uint) ([]models.Order, error) {
	return s.farmerOrders(ctx, farmerID, 0)
}

func (s *OrderService) FarmerRecentOrders(ctx context.Context, farmerID uint, limit int) ([]models.FarmerOrderSummary, error) {
	if limit <= 0 {
		limit = FarmerRecentOrdersLimit
	}

	orders, err := s.farmerOrders(ctx, farmerID, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.FarmerOrderSummary, 0, len(orders))
	for _, order := range orders {
		summary := models.FarmerOrderSummary{
			ID:          order.ID,
			Status:      order.Status,
			TotalAmount: order.TotalAmount,
			CreatedAt:   order.CreatedAt,
			Items:       make([]models.FarmerOrderItemSummary, 0, len(order.OrderItems)),
		}
		for _, item := range order.OrderItems {
			name := ""
			if item.Product != nil {
				name = item.Product.Name
			}
			summary.Items = append(summary.Items, models.FarmerOrderItemSummary{
				ProductName: name,
				Quantity:    item.Quantity,
				Amount:      item.LineTotal(),
			})
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *OrderService) FarmerDashboard(ctx context.Context, farmerID uint) (*models.FarmerDashboard, error) {
	if farmerID == 0 {
		return nil, ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	var dashboard models.FarmerDashboard
	if err := db.Model(&models.Product{}).Where("farmer_id = ?", farmerID).Count(&dashboard.ProductsCount).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if err := db.Model(&models.OrderItem{}).
		Where("product_id IN (?)", farmerProducts(db, farmerID)).
		Distinct("order_id").
		Count(&dashboard.OrdersCount).Error; err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	return &dashboard, nil
}

func (s *OrderService) farmerOrders(ctx context.Context, farmerID uint, limit int) ([]models.Order, error) {
	if farmerID == 0 {
		return nil, ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	containing := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.OrderItem{}).
		Select("order_id").
		Where("product_id IN (?)", farmerProducts(db, farmerID))

	query := withOrderItems(db).
		Where("id IN (?)", containing).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	orders := []models.Order{}
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list farmer orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) invalidateMarketplace(ctx context.Context) {
	if err := s.cache.DeleteMarketplace(ctx); err != nil {
		s.log.Warn("marketplace cache invalidation failed", zap.Error(err))
	}
}

// withOrderItems preloads items and their products, including soft-deleted
// products so history still renders.
func withOrderItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("OrderItems", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") }).
		Preload("OrderItems.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

// farmerProducts is a subquery of every product id the farmer has listed.
func farmerProducts(db *gorm.DB, farmerID uint) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Unscoped().
		Model(&models.Product{}).
		Select("id").
		Where("farmer_id = ?", farmerID)
}
