// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resilient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConfigured means the provider lacks the credentials it needs.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrAuthFailed means the provider rejected our credentials, including
	// after one re-authentication.
	ErrAuthFailed = errors.New("provider authentication failed")
	// ErrRateLimited means the provider throttled us despite local admission control.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrTransientConnection covers network failures and timeouts.
	ErrTransientConnection = errors.New("transient connection error")
	// ErrProvider is matched by every *ProviderError.
	ErrProvider = errors.New("provider error")
)

// ProviderError is a non-2xx response that is not auth or rate limiting.
type ProviderError struct {
	Provider  string
	Status    int
	Body      string
	Retryable bool
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
	if text := http.StatusText(e.Status); text != "" {
		msg = fmt.Sprintf("%s (%s)", msg, text)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	return msg
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// RateLimitedError carries the provider's requested pause when it sent one.
type RateLimitedError struct {
	Provider   string
	Status     int
	RetryAfter int64 // seconds, 0 when unknown
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited (status %d), retry after %ds", e.Provider, e.Status, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited (status %d)", e.Provider, e.Status)
}

func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// reauthError marks the first credential rejection in a call chain. It is
// retried once after the credentials are invalidated.
type reauthError struct {
	provider string
	status   int
}

func (e *reauthError) Error() string {
	return fmt.Sprintf("%s rejected credentials (status %d)", e.provider, e.status)
}

func (e *reauthError) Unwrap() error {
	return ErrAuthFailed
}

// IsRetryable reports whether err is a failure the client retries.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var reauth *reauthError
	if errors.As(err, &reauth) {
		return true
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransientConnection) {
		return true
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}
