// Package store is the key-value persistence layer behind the registry.
// Values are JSON documents; counters are stored as decimal integers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get and Take when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the minimal contract the registry needs from a backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Incr atomically adds one to the counter at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
	// Take atomically reads and deletes key.
	Take(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// Sweeper is implemented by backends that keep expired rows until purged.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// GetJSON decodes the value at key into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// GetCounter reads a counter, returning 0 when it has never been incremented.
func GetCounter(ctx context.Context, s Store, key string) (int64, error) {
	var n int64
	err := GetJSON(ctx, s, key, &n)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return n, err
}
