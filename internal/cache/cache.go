// Package cache provides the key-value store adapters and the
// freshness-aware record cache built on them.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Store is the key-value capability used for search records, sessions,
// and LLM responses. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// KeyPrefix namespaces every key written by this module
const KeyPrefix = "dealcore:v1:"
