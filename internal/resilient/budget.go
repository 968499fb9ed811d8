// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resilient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BudgetConfig bounds how many requests a provider may receive per window.
type BudgetConfig struct {
	MaxRequests int
	Window      time.Duration
}

func (c BudgetConfig) String() string {
	return fmt.Sprintf("%d/%s", c.MaxRequests, c.Window)
}

// Valid reports whether the config describes a usable budget.
func (c BudgetConfig) Valid() bool {
	return c.MaxRequests > 0 && c.Window > 0
}

// Budget admits requests so that no sliding window of Window ever holds
// more than MaxRequests admissions. Callers that would exceed it wait.
type Budget struct {
	mu            sync.Mutex
	cfg           BudgetConfig
	clock         Clock
	admitted      []time.Time
	cooldownUntil time.Time
}

type BudgetOption func(*Budget)

// WithClock replaces the wall clock, used by tests.
func WithClock(c Clock) BudgetOption {
	return func(b *Budget) {
		b.clock = c
	}
}

// NewBudget creates a budget. An invalid config admits one request per second.
func NewBudget(cfg BudgetConfig, opts ...BudgetOption) *Budget {
	if !cfg.Valid() {
		cfg = BudgetConfig{MaxRequests: 1, Window: time.Second}
	}
	b := &Budget{
		cfg:   cfg,
		clock: SystemClock,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the active limits.
func (b *Budget) Config() BudgetConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// MaxRequests is the per-window ceiling, used by callers to size parallel groups.
func (b *Budget) MaxRequests() int {
	return b.Config().MaxRequests
}

// Reconfigure swaps the limits in place. Past admissions still count
// against the new window.
func (b *Budget) Reconfigure(cfg BudgetConfig) {
	if !cfg.Valid() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
}

// Wait blocks until a request may be sent or ctx is done.
func (b *Budget) Wait(ctx context.Context) error {
	b.mu.Lock()
	for {
		now := b.clock.Now()
		wait := b.computeWaitLocked(now)
		if wait <= 0 {
			b.admitted = append(b.admitted, now)
			b.mu.Unlock()
			return nil
		}

		b.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(wait):
		}
		b.mu.Lock()
	}
}

// NextWait returns how long a request issued now would wait, without admitting it.
func (b *Budget) NextWait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.computeWaitLocked(b.clock.Now())
}

// SetCooldown blocks admissions until the given time. Earlier deadlines
// never shorten an existing cooldown.
func (b *Budget) SetCooldown(until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if until.After(b.cooldownUntil) {
		b.cooldownUntil = until
	}
}

// InCooldown reports whether admissions are paused and until when.
func (b *Budget) InCooldown() (bool, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cooldownUntil.After(b.clock.Now()) {
		return true, b.cooldownUntil
	}
	return false, time.Time{}
}

func (b *Budget) computeWaitLocked(now time.Time) time.Duration {
	b.pruneLocked(now)

	var wait time.Duration
	if b.cooldownUntil.After(now) {
		wait = b.cooldownUntil.Sub(now)
	}

	if len(b.admitted) >= b.cfg.MaxRequests {
		// the oldest admissions must leave the window before another fits
		oldest := b.admitted[len(b.admitted)-b.cfg.MaxRequests]
		if delay := oldest.Add(b.cfg.Window).Sub(now); delay > wait {
			wait = delay
		}
	}

	return wait
}

// pruneLocked drops admissions that can no longer share a window with now.
func (b *Budget) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	idx := 0
	for _, ts := range b.admitted {
		if ts.After(cutoff) {
			break
		}
		idx++
	}
	if idx > 0 {
		b.admitted = b.admitted[idx:]
	}
}
