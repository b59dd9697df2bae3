package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is an in-process backend with a fixed capacity and TTL.
// Values are stored as encoded JSON so readers never share memory with
// writers. The ttl argument of SetJSON is ignored; every entry lives for the
// TTL given to NewMemoryCache.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](capacity, nil, ttl)}
}

func (c *MemoryCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	b, ok := c.lru.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.lru.Remove(key)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.lru.Add(key, b)
	return nil
}

func (c *MemoryCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.lru.Remove(k)
	}
	return nil
}

func (c *MemoryCache) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (c *MemoryCache) DelPrefix(ctx context.Context, prefix string) (int, error) {
	keys, _ := c.Keys(ctx, prefix)
	var n int
	for _, k := range keys {
		if c.lru.Remove(k) {
			n++
		}
	}
	return n, nil
}

func (c *MemoryCache) Len() int { return c.lru.Len() }
