package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/redis/go-redis/v9"
)

const marketplaceKey = "marketplace:latest"

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) GetCart(ctx context.Context, userID uint) (*models.CartView, error) {
	var view models.CartView
	if err := r.get(ctx, cartKey(userID), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *RedisCache) SetCart(ctx context.Context, userID uint, view *models.CartView) error {
	return r.set(ctx, cartKey(userID), view)
}

func (r *RedisCache) DeleteCart(ctx context.Context, userID uint) error {
	return r.del(ctx, cartKey(userID))
}

func (r *RedisCache) GetMarketplace(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.get(ctx, marketplaceKey, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *RedisCache) SetMarketplace(ctx context.Context, products []models.Product) error {
	return r.set(ctx, marketplaceKey, products)
}

func (r *RedisCache) DeleteMarketplace(ctx context.Context) error {
	return r.del(ctx, marketplaceKey)
}

func (r *RedisCache) get(ctx context.Context, key string, dst any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (r *RedisCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, key, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(userID uint) string {
	return fmt.Sprintf("cart:%d", userID)
}
