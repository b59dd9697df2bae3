package cache

import (
	"context"
	"time"
)

// Cache is a JSON key/value backend.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// Keys lists live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// DelPrefix removes every key starting with prefix and returns how many
	// were removed.
	DelPrefix(ctx context.Context, prefix string) (int, error)
}
