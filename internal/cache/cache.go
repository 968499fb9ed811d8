// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cache stores serialized provider responses with a TTL and serves
// expired entries when a refresh fails.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Status tells the caller where a GetOrRefresh value came from.
type Status int

const (
	StatusFresh Status = iota
	StatusRefreshed
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusRefreshed:
		return "refreshed"
	case StatusStale:
		return "stale"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// RefreshFunc produces a new serialized value for a key.
type RefreshFunc func(ctx context.Context) ([]byte, error)

type Option func(*Cache)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is safe for concurrent use. Writers to the same key race with
// last-writer-wins; refreshes of one key are collapsed into one call.
type Cache struct {
	store Store
	group singleflight.Group
	now   func() time.Time
}

func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Cache{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if it exists and is not older than its TTL.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := c.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if e.Expired(c.now()) {
		return nil, false, nil
	}
	return e.Value, true, nil
}

// GetStale returns the value for key regardless of age.
func (c *Cache) GetStale(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := c.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return e.Value, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.store.Save(ctx, Entry{Key: key, Value: value, CreatedAt: c.now(), TTL: ttl})
}

// DeleteExpired reaps expired entries; GetStale no longer sees them.
func (c *Cache) DeleteExpired(ctx context.Context) (int64, error) {
	return c.store.DeleteExpired(ctx, c.now())
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	return c.store.Stats(ctx, c.now())
}

func (c *Cache) Flush(ctx context.Context) (int64, error) {
	return c.store.Flush(ctx)
}

// GetOrRefresh returns a fresh cached value, or refreshes it through fn.
// When fn fails the stale value is served if one exists; otherwise fn's
// error is returned unchanged. Returned slices are shared between
// concurrent callers and must not be modified.
func (c *Cache) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, fn RefreshFunc) ([]byte, Status, error) {
	value, ok, err := c.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed, refreshing")
	} else if ok {
		return value, StatusFresh, nil
	}

	fresh, shared, refreshErr := c.refresh(ctx, key, ttl, fn)
	if refreshErr == nil {
		return fresh, StatusRefreshed, nil
	}

	stale, ok, staleErr := c.GetStale(ctx, key)
	if staleErr == nil && ok {
		log.Warn().
			Err(refreshErr).
			Str("key", key).
			Bool("shared", shared).
			Msg("Cache refresh failed, serving stale entry")
		return stale, StatusStale, nil
	}

	return nil, StatusStale, refreshErr
}

// Refresh runs fn and stores its result whatever the age of the cached
// entry. It shares in-flight refreshes of key with GetOrRefresh, so a
// scheduled refresh and a reader miss never call fn twice at once. No stale
// fallback is applied.
func (c *Cache) Refresh(ctx context.Context, key string, ttl time.Duration, fn RefreshFunc) ([]byte, error) {
	fresh, _, err := c.refresh(ctx, key, ttl, fn)
	return fresh, err
}

func (c *Cache) refresh(ctx context.Context, key string, ttl time.Duration, fn RefreshFunc) ([]byte, bool, error) {
	v, err, shared := c.group.Do(key, func() (any, error) {
		fresh, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, fresh, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to store refreshed cache entry")
		}
		return fresh, nil
	})
	if err != nil {
		return nil, shared, err
	}
	b, _ := v.([]byte)
	return b, shared, nil
}

// RefreshJSON is Refresh for values encoded as JSON.
func RefreshJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := c.Refresh(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return out, nil
}

// GetOrRefreshJSON is GetOrRefresh for values encoded as JSON.
func GetOrRefreshJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, Status, error) {
	var zero T

	raw, status, err := c.GetOrRefresh(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, status, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, status, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return out, status, nil
}
