package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Kariqs/farmmarket-api/cache"
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const LatestProductsLimit = 5

// ImageUpload is a product picture received with the listing form.
type ImageUpload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

type ProductService struct {
	db       *gorm.DB
	cache    cache.ViewCache
	uploader storage.ImageUploader
	log      *zap.Logger
}

func NewProductService(db *gorm.DB, viewCache cache.ViewCache, uploader storage.ImageUploader, log *zap.Logger) *ProductService {
	if viewCache == nil {
		viewCache = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductService{db: db, cache: viewCache, uploader: uploader, log: log}
}

func (s *ProductService) AddProduct(ctx context.Context, farmerID uint, input models.ProductInput, image *ImageUpload) (*models.Product, error) {
	if farmerID == 0 {
		return nil, ErrUnauthorized
	}
	if err := validateProduct(&input); err != nil {
		return nil, err
	}

	product := models.Product{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Quantity:    input.Quantity,
		FarmerID:    farmerID,
	}

	if image != nil {
		if s.uploader == nil {
			return nil, fmt.Errorf("%w: image uploads are not configured", ErrBadRequest)
		}
		url, err := s.uploader.Upload(ctx, image.Name, image.ContentType, image.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		product.Image = url
	}

	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.log.Info("product added", zap.Uint("productId", product.ID), zap.Uint("farmerId", farmerID))
	s.invalidateMarketplace(ctx)

	if err := s.attachFarmers(ctx, []*models.Product{&product}); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct soft-deletes the listing and drops it from every cart. Past
// orders keep resolving it.
func (s *ProductService) DeleteProduct(ctx context.Context, farmerID, productID uint) error {
	if farmerID == 0 {
		return ErrUnauthorized
	}

	var affected []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %d", ErrNotFound, productID)
			}
			return err
		}
		if product.FarmerID != farmerID {
			return ErrForbidden
		}

		lines := tx.Session(&gorm.Session{NewDB: true}).Model(&models.CartItem{}).Select("cart_id").Where("product_id = ?", productID)
		if err := tx.Model(&models.Cart{}).Where("id IN (?)", lines).Pluck("user_id", &affected).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", productID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("product deleted", zap.Uint("productId", productID), zap.Uint("farmerId", farmerID))
	for _, userID := range affected {
		if err := s.cache.DeleteCart(ctx, userID); err != nil {
			s.log.Warn("cart cache invalidation failed", zap.Uint("userId", userID), zap.Error(err))
		}
	}
	s.invalidateMarketplace(ctx)
	return nil
}

func (s *ProductService) ListFarmerProducts(ctx context.Context, farmerID uint) ([]models.Product, error) {
	if farmerID == 0 {
		return nil, ErrUnauthorized
	}

	products := []models.Product{}
	if err := s.db.WithContext(ctx).
		Where("farmer_id = ?", farmerID).
		Order("created_at DESC, id DESC").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// LatestProducts is the marketplace feed. The default-sized feed is cached.
func (s *ProductService) LatestProducts(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = LatestProductsLimit
	}
	cacheable := limit == LatestProductsLimit

	if cacheable {
		products, err := s.cache.GetMarketplace(ctx)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("marketplace cache get failed", zap.Error(err))
		}
	}

	products := []models.Product{}
	if err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("latest products: %w", err)
	}
	if err := s.attachFarmers(ctx, pointersTo(products)); err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.SetMarketplace(ctx, products); err != nil {
			s.log.Warn("marketplace cache set failed", zap.Error(err))
		}
	}
	return products, nil
}

// SearchProducts matches names case-insensitively.
func (s *ProductService) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", ErrValidation)
	}

	products := []models.Product{}
	if err := s.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(term))+"%").
		Order("created_at DESC, id DESC").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	if err := s.attachFarmers(ctx, pointersTo(products)); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *ProductService) GetProduct(ctx context.Context, productID uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		return nil, err
	}
	if err := s.attachFarmers(ctx, []*models.Product{&product}); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *ProductService) attachFarmers(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.FarmerID)
	}

	var farmers []models.User
	if err := s.db.WithContext(ctx).
		Select("id", "name", "email", "farm_name", "farm_location").
		Where("id IN ?", ids).
		Find(&farmers).Error; err != nil {
		return fmt.Errorf("load farmers: %w", err)
	}

	byID := make(map[uint]*models.FarmerSummary, len(farmers))
	for _, f := range farmers {
		byID[f.ID] = &models.FarmerSummary{
			ID:           f.ID,
			Name:         f.Name,
			Email:        f.Email,
			FarmName:     f.FarmName,
			FarmLocation: f.FarmLocation,
		}
	}
	for _, p := range products {
		p.Farmer = byID[p.FarmerID]
	}
	return nil
}

func (s *ProductService) invalidateMarketplace(ctx context.Context) {
	if err := s.cache.DeleteMarketplace(ctx); err != nil {
		s.log.Warn("marketplace cache invalidation failed", zap.Error(err))
	}
}

func validateProduct(input *models.ProductInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)

	switch {
	case utf8.RuneCountInString(input.Name) < 3:
		return fmt.Errorf("%w: name must be at least 3 characters", ErrValidation)
	case utf8.RuneCountInString(input.Description) < 10:
		return fmt.Errorf("%w: description must be at least 10 characters", ErrValidation)
	case input.Category == "":
		return fmt.Errorf("%w: category is required", ErrValidation)
	case input.Price.LessThan(decimal.NewFromInt(1)):
		return fmt.Errorf("%w: price must be at least 1", ErrValidation)
	case !input.Price.Equal(input.Price.Round(2)):
		return fmt.Errorf("%w: price has more than two decimal places", ErrValidation)
	case input.Quantity < 1:
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	return nil
}

func escapeLike(term string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(term)
}

func pointersTo(products []models.Product) []*models.Product {
	out := make([]*models.Product, len(products))
	for i := range products {
		out[i] = &products[i]
	}
	return out
}
