package embedding

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultCacheSize = 1024

// Cache stores embeddings by content hash. Implementations are safe for
// concurrent use. Backend failures are treated as misses.
type Cache interface {
	Get(ctx context.Context, key string) (Vector, bool)
	Add(ctx context.Context, key string, v Vector)
	Purge(ctx context.Context)
}

// Sizer is implemented by caches that know their entry count.
type Sizer interface {
	Len() int
}

// MemoryCache is a bounded in-process LRU with optional expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, Vector]
}

// NewMemoryCache returns an LRU holding at most size entries. A zero ttl
// disables expiry.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &MemoryCache{lru: expirable.NewLRU[string, Vector](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Vector, bool) {
	return c.lru.Get(key)
}

func (c *MemoryCache) Add(_ context.Context, key string, v Vector) {
	c.lru.Add(key, v)
}

func (c *MemoryCache) Purge(context.Context) {
	c.lru.Purge()
}

func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Chain consults tiers in order. A hit in a later tier is copied into the
// earlier ones; writes go to every tier.
type Chain []Cache

func (ch Chain) Get(ctx context.Context, key string) (Vector, bool) {
	for i, c := range ch {
		v, ok := c.Get(ctx, key)
		if !ok {
			continue
		}
		for _, upper := range ch[:i] {
			upper.Add(ctx, key, v)
		}
		return v, true
	}
	return nil, false
}

func (ch Chain) Add(ctx context.Context, key string, v Vector) {
	for _, c := range ch {
		c.Add(ctx, key, v)
	}
}

func (ch Chain) Purge(ctx context.Context) {
	for _, c := range ch {
		c.Purge(ctx)
	}
}

// Len reports the size of the first tier that can tell it.
func (ch Chain) Len() int {
	for _, c := range ch {
		if s, ok := c.(Sizer); ok {
			return s.Len()
		}
	}
	return -1
}
