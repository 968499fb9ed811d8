// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"context"
	"sync"
	"time"
)

const DefaultExpiryMargin = 5 * time.Minute

// TokenFetcher exchanges configured secrets for a token and its expiry.
// A zero expiry means the token does not expire.
type TokenFetcher func(ctx context.Context) (token string, expiresAt time.Time, err error)

// Credentials guards an adapter's token. Refreshes are serialized so
// concurrent callers share one exchange.
type Credentials struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	margin    time.Duration
	now       func() time.Time
}

// NewCredentials treats a token as expired margin before its real expiry.
func NewCredentials(margin time.Duration) *Credentials {
	if margin < 0 {
		margin = 0
	}
	return &Credentials{
		margin: margin,
		now:    time.Now,
	}
}

// Token returns the held token if it is still usable.
func (c *Credentials) Token() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.validLocked()
}

// Ensure returns a valid token, fetching a new one when needed.
func (c *Credentials) Ensure(ctx context.Context, fetch TokenFetcher) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.validLocked() {
		return c.token, nil
	}

	token, expiresAt, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = expiresAt
	return token, nil
}

// Invalidate drops the held token if it is still rejected. A token that
// another caller already replaced is kept, so concurrent rejections of one
// stale token cause a single exchange.
func (c *Credentials) Invalidate(rejected string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || c.token != rejected {
		return false
	}
	c.token = ""
	c.expiresAt = time.Time{}
	return true
}

// ExpiresAt returns the real expiry of the held token.
func (c *Credentials) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

func (c *Credentials) validLocked() bool {
	if c.token == "" {
		return false
	}
	if c.expiresAt.IsZero() {
		return true
	}
	return c.now().Add(c.margin).Before(c.expiresAt)
}
