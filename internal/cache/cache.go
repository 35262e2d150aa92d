package cache

import (
	"context"
	"errors"
	"time"
)

// Client is a key to string blob store with expiring entries.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	IsConnected(ctx context.Context) bool
}

var ErrCacheMiss = errors.New("cache miss")
