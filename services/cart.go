package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kariqs/farmmarket-api/cache"
	"github.com/Kariqs/farmmarket-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartService struct {
	db    *gorm.DB
	cache cache.ViewCache
	log   *zap.Logger
}

func NewCartService(db *gorm.DB, viewCache cache.ViewCache, log *zap.Logger) *CartService {
	if viewCache == nil {
		viewCache = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{db: db, cache: viewCache, log: log}
}

// GetOrCreateCart returns the user's single cart id. The unique index on
// carts.user_id turns concurrent creates into no-ops.
func (s *CartService) GetOrCreateCart(ctx context.Context, userID uint) (uint, error) {
	if userID == 0 {
		return 0, ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	cart := models.Cart{UserID: userID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&cart).Error; err != nil {
		return 0, fmt.Errorf("create cart: %w", err)
	}

	var existing models.Cart
	if err := db.Select("id").Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return 0, fmt.Errorf("find cart: %w", err)
	}
	return existing.ID, nil
}

// AddItem adds qty of a product to the user's cart, incrementing an existing line.
func (s *CartService) AddItem(ctx context.Context, userID, productID uint, qty int) error {
	if userID == 0 {
		return ErrUnauthorized
	}
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	cartID, err := s.GetOrCreateCart(ctx, userID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Select("id", "quantity").First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %d", ErrNotFound, productID)
			}
			return err
		}
		if product.Quantity <= 0 {
			return ErrOutOfStock
		}

		item := models.CartItem{CartID: cartID, ProductID: productID, Quantity: qty}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("quantity + ?", qty),
				"updated_at": time.Now(),
			}),
		}).Create(&item).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, userID, true)
	return nil
}

// UpdateItem sets a line's quantity; anything below 1 removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, cartItemID uint, qty int) error {
	if userID == 0 {
		return ErrUnauthorized
	}
	if qty < 1 {
		return s.RemoveItem(ctx, userID, cartItemID)
	}

	db := s.db.WithContext(ctx)
	result := db.Model(&models.CartItem{}).
		Where("id = ? AND cart_id IN (?)", cartItemID, s.ownedCarts(db, userID)).
		Update("quantity", qty)
	if result.Error != nil {
		return fmt.Errorf("update cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: cart item %d", ErrNotFound, cartItemID)
	}

	s.invalidate(ctx, userID, false)
	return nil
}

// RemoveItem deletes a line from the user's cart. Removing a line that is
// already gone is not an error.
func (s *CartService) RemoveItem(ctx context.Context, userID, cartItemID uint) error {
	if userID == 0 {
		return ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	if err := db.Where("id = ? AND cart_id IN (?)", cartItemID, s.ownedCarts(db, userID)).
		Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	s.invalidate(ctx, userID, false)
	return nil
}

func (s *CartService) GetCart(ctx context.Context, userID uint) (*models.CartView, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}

	if view, err := s.cache.GetCart(ctx, userID); err == nil {
		return view, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("cart cache get failed", zap.Uint("userId", userID), zap.Error(err))
	}

	var cart models.Cart
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("cart_items.id") }).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(&cart).Error

	view := &models.CartView{Items: []models.CartLine{}}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, fmt.Errorf("load cart: %w", err)
	default:
		view.ID = &cart.ID
		for _, item := range cart.Items {
			view.Items = append(view.Items, models.CartLine{
				ID:        item.ID,
				ProductID: item.ProductID,
				Name:      item.Product.Name,
				Image:     item.Product.Image,
				Price:     item.Product.Price,
				Quantity:  item.Quantity,
			})
		}
	}
	PriceCart(view)

	if err := s.cache.SetCart(ctx, userID, view); err != nil {
		s.log.Warn("cart cache set failed", zap.Uint("userId", userID), zap.Error(err))
	}
	return view, nil
}

// GetCartCount sums the line quantities of the user's cart. Anonymous users
// and users without a cart have a count of zero.
func (s *CartService) GetCartCount(ctx context.Context, userID uint) (int, error) {
	if userID == 0 {
		return 0, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.CartItem{}).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Select("COALESCE(SUM(cart_items.quantity), 0)").
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return int(count), nil
}

// Invalidate drops cached views after writes made outside this service.
func (s *CartService) Invalidate(ctx context.Context, userID uint) {
	s.invalidate(ctx, userID, true)
}

func (s *CartService) invalidate(ctx context.Context, userID uint, marketplace bool) {
	if err := s.cache.DeleteCart(ctx, userID); err != nil {
		s.log.Warn("cart cache invalidation failed", zap.Uint("userId", userID), zap.Error(err))
	}
	if marketplace {
		if err := s.cache.DeleteMarketplace(ctx); err != nil {
			s.log.Warn("marketplace cache invalidation failed", zap.Error(err))
		}
	}
}

func (s *CartService) ownedCarts(db *gorm.DB, userID uint) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
}
