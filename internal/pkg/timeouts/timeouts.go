// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package timeouts sizes deadlines for indexer searches.
package timeouts

import (
	"context"
	"time"
)

const (
	DefaultSearchTimeout    = 9 * time.Second
	MaxSearchTimeout        = 45 * time.Second
	PerIndexerSearchTimeout = 1 * time.Second
)

// AdaptiveSearchTimeout grows the default by one step for every query
// beyond the first, capped at MaxSearchTimeout.
func AdaptiveSearchTimeout(indexerCount int) time.Duration {
	if indexerCount <= 1 {
		return DefaultSearchTimeout
	}
	return min(DefaultSearchTimeout+time.Duration(indexerCount-1)*PerIndexerSearchTimeout, MaxSearchTimeout)
}

// WithSearchTimeout applies timeout unless ctx already has a deadline, in
// which case ctx is returned with a no-op cancel.
func WithSearchTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
