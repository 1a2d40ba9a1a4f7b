package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrMiss = errors.New("cache miss")

// Cache is safe for concurrent use. Get returns ErrMiss when the key is
// absent or expired.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func Key(namespace, kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", namespace, kind, id)
}
