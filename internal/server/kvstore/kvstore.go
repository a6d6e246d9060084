// Package kvstore keeps short-lived secrets such as one-time codes and
// password-reset tokens. Redis backs it in production; an in-process
// go-cache store serves single-instance development.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("key not found")

// Store is a string key/value store with per-key expiry.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)

	// Incr increments a counter and returns the new value. The first
	// increment of a key starts its ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	Del(ctx context.Context, keys ...string) error
}
