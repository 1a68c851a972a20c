package service

import (
	"context"
	"sync"
	"time"

	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/feeconfig/domain"
)

// ActiveCache is a read-through cache for the single ACTIVE fee config.
// The clock is injected so expiry is testable, and writes invalidate
// explicitly instead of waiting for the TTL.
type ActiveCache struct {
	mu        sync.RWMutex
	clk       clock.Clock
	ttl       time.Duration
	cached    *domain.FeeConfig
	fetchedAt time.Time
}

func NewActiveCache(clk clock.Clock, ttl time.Duration) *ActiveCache {
	return &ActiveCache{clk: clk, ttl: ttl}
}

func (c *ActiveCache) Get(ctx context.Context, fetch func(context.Context) (*domain.FeeConfig, error)) (*domain.FeeConfig, error) {
	c.mu.RLock()
	if c.cached != nil && c.clk.Now().Sub(c.fetchedAt) < c.ttl {
		cfg := *c.cached
		c.mu.RUnlock()
		return &cfg, nil
	}
	c.mu.RUnlock()

	cfg, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}

	c.mu.Lock()
	copied := *cfg
	c.cached = &copied
	c.fetchedAt = c.clk.Now()
	c.mu.Unlock()

	result := *cfg
	return &result, nil
}

func (c *ActiveCache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
