package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Drak-01/stock-saas-sub001/internal/stock"
)

// ValuationSource computes a fresh stock valuation.
type ValuationSource interface {
	TotalStockValue(ctx context.Context, productID int64) (stock.Valuation, error)
}

// ValuationCache is a read-through Redis cache for stock valuations.
// Valuations are expensive to recompute per request and tolerate short
// staleness; every ledger mutation should invalidate the touched product.
type ValuationCache struct {
	client *redis.Client
	source ValuationSource
	ttl    time.Duration
}

// NewValuationCache constructs the cache.
func NewValuationCache(client *redis.Client, source ValuationSource, ttl time.Duration) *ValuationCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ValuationCache{client: client, source: source, ttl: ttl}
}

// Get returns the cached valuation, computing and storing it on a miss.
// A corrupt cache entry is treated as a miss.
func (c *ValuationCache) Get(ctx context.Context, productID int64) (stock.Valuation, error) {
	key := valuationKey(productID)
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var cached stock.Valuation
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			return stock.Valuation{}, fmt.Errorf("platform/cache: get valuation: %w", err)
		}
	}

	fresh, err := c.source.TotalStockValue(ctx, productID)
	if err != nil {
		return stock.Valuation{}, err
	}
	if c.client != nil {
		raw, err := json.Marshal(fresh)
		if err != nil {
			return stock.Valuation{}, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return stock.Valuation{}, fmt.Errorf("platform/cache: set valuation: %w", err)
		}
	}
	return fresh, nil
}

// Invalidate drops the cached valuation for one product.
func (c *ValuationCache) Invalidate(ctx context.Context, productID int64) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, valuationKey(productID)).Err(); err != nil {
		return fmt.Errorf("platform/cache: invalidate valuation: %w", err)
	}
	return nil
}

func valuationKey(productID int64) string {
	return fmt.Sprintf("valuation:%d", productID)
}
