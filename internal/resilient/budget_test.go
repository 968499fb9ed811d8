// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resilient

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock jumps forward whenever someone waits on it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- f.now
	return ch
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestBudgetSlidingWindowNeverExceedsMax(t *testing.T) {
	t.Parallel()

	configs := []BudgetConfig{
		{MaxRequests: 1, Window: time.Second},
		{MaxRequests: 3, Window: time.Second},
		{MaxRequests: 4, Window: 250 * time.Millisecond},
		{MaxRequests: 10, Window: time.Minute},
	}

	for _, cfg := range configs {
		t.Run(cfg.String(), func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			budget := NewBudget(cfg, WithClock(clock))
			rng := rand.New(rand.NewPCG(uint64(cfg.MaxRequests), uint64(cfg.Window)))

			var admitted []time.Time
			for i := 0; i < 300; i++ {
				// bursts of back-to-back calls mixed with idle gaps
				if rng.IntN(3) == 0 {
					clock.Advance(time.Duration(rng.Int64N(int64(cfg.Window))))
				}
				require.NoError(t, budget.Wait(t.Context()))
				admitted = append(admitted, clock.Now())
			}

			for i, start := range admitted {
				end := start.Add(cfg.Window)
				count := 0
				for _, ts := range admitted[i:] {
					if ts.Before(end) {
						count++
					}
				}
				require.LessOrEqual(t, count, cfg.MaxRequests, "window starting at %s", start)
			}
		})
	}
}

func TestBudgetAdmitsImmediatelyUnderCapacity(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	start := clock.Now()
	budget := NewBudget(BudgetConfig{MaxRequests: 3, Window: time.Second}, WithClock(clock))

	for i := 0; i < 3; i++ {
		require.NoError(t, budget.Wait(t.Context()))
	}
	assert.Equal(t, start, clock.Now())

	require.NoError(t, budget.Wait(t.Context()))
	assert.Equal(t, start.Add(time.Second), clock.Now())
}

func TestBudgetRespectsCooldown(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	budget := NewBudget(BudgetConfig{MaxRequests: 5, Window: time.Second}, WithClock(clock))

	resumeAt := clock.Now().Add(30 * time.Second)
	budget.SetCooldown(resumeAt)
	budget.SetCooldown(clock.Now().Add(time.Second))

	inCooldown, until := budget.InCooldown()
	assert.True(t, inCooldown)
	assert.Equal(t, resumeAt, until)
	assert.Equal(t, 30*time.Second, budget.NextWait())

	require.NoError(t, budget.Wait(t.Context()))
	assert.False(t, clock.Now().Before(resumeAt))

	inCooldown, _ = budget.InCooldown()
	assert.False(t, inCooldown)
}

func TestBudgetWaitHonoursContext(t *testing.T) {
	t.Parallel()

	budget := NewBudget(BudgetConfig{MaxRequests: 1, Window: time.Hour})
	require.NoError(t, budget.Wait(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := budget.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBudgetReconfigure(t *testing.T) {
	t.Parallel()

	budget := NewBudget(BudgetConfig{MaxRequests: 2, Window: time.Second})
	budget.Reconfigure(BudgetConfig{MaxRequests: 8, Window: 2 * time.Second})
	assert.Equal(t, 8, budget.MaxRequests())

	budget.Reconfigure(BudgetConfig{})
	assert.Equal(t, BudgetConfig{MaxRequests: 8, Window: 2 * time.Second}, budget.Config())
}

func TestNewBudgetInvalidConfigFallsBack(t *testing.T) {
	t.Parallel()

	for _, cfg := range []BudgetConfig{{}, {MaxRequests: -1, Window: time.Second}, {MaxRequests: 1}} {
		t.Run(fmt.Sprintf("%+v", cfg), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, BudgetConfig{MaxRequests: 1, Window: time.Second}, NewBudget(cfg).Config())
		})
	}
}
