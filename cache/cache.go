package cache

import (
	"context"
	"errors"

	"github.com/Kariqs/farmmarket-api/models"
)

var ErrCacheMiss = errors.New("cache miss")

// ViewCache stores rendered read models that are invalidated on writes.
type ViewCache interface {
	GetCart(ctx context.Context, userID uint) (*models.CartView, error)
	SetCart(ctx context.Context, userID uint, view *models.CartView) error
	DeleteCart(ctx context.Context, userID uint) error

	GetMarketplace(ctx context.Context) ([]models.Product, error)
	SetMarketplace(ctx context.Context, products []models.Product) error
	DeleteMarketplace(ctx context.Context) error
}

// Noop satisfies ViewCache when Redis is not configured.
type Noop struct{}

func (Noop) GetCart(context.Context, uint) (*models.CartView, error)  { return nil, ErrCacheMiss }
func (Noop) SetCart(context.Context, uint, *models.CartView) error    { return nil }
func (Noop) DeleteCart(context.Context, uint) error                   { return nil }
func (Noop) GetMarketplace(context.Context) ([]models.Product, error) { return nil, ErrCacheMiss }
func (Noop) SetMarketplace(context.Context, []models.Product) error   { return nil }
func (Noop) DeleteMarketplace(context.Context) error                  { return nil }
