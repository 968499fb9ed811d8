// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resilient

import (
	"context"
	"net/http"
	"slices"
	"time"
)

// RetryPolicy controls how a single call chain is retried.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt and any re-authentication retry.
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// RetryableStatuses are server failures worth another attempt. When nil
	// every 5xx status is retried.
	RetryableStatuses []int
	// RateLimitStatuses are answered with ErrRateLimited and retried.
	RateLimitStatuses []int
	// AuthStatuses invalidate held credentials and trigger one re-authentication.
	AuthStatuses []int
}

// DefaultRetryPolicy is used when a request carries a zero policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		RateLimitStatuses: []int{http.StatusTooManyRequests},
		AuthStatuses:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.RateLimitStatuses == nil {
		p.RateLimitStatuses = def.RateLimitStatuses
	}
	if p.AuthStatuses == nil {
		p.AuthStatuses = def.AuthStatuses
	}
	return p
}

func (p RetryPolicy) isRetryableStatus(status int) bool {
	if p.RetryableStatuses == nil {
		return status >= http.StatusInternalServerError
	}
	return slices.Contains(p.RetryableStatuses, status)
}

func (p RetryPolicy) isRateLimitStatus(status int) bool {
	return slices.Contains(p.RateLimitStatuses, status)
}

func (p RetryPolicy) isAuthStatus(status int) bool {
	return slices.Contains(p.AuthStatuses, status)
}

// Request describes one outbound call. It is rebuilt into a fresh
// *http.Request for every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	Policy RetryPolicy

	// Prepare runs before every attempt. Adapters use it to authenticate
	// and attach credentials.
	Prepare func(ctx context.Context, req *http.Request) error
	// Invalidate drops held credentials after an auth rejection. It receives
	// the rejected request so adapters can tell which credential failed.
	Invalidate func(rejected *http.Request)
	// Validate inspects a 2xx response before it is returned. Providers that
	// report failures inside a successful response use it so those failures
	// go through the same retry and cooldown handling as status codes.
	Validate func(resp *Response) error
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   uint
}
