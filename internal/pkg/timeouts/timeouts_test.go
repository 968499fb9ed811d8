// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package timeouts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveSearchTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		queries int
		want    time.Duration
	}{
		{queries: -1, want: DefaultSearchTimeout},
		{queries: 0, want: DefaultSearchTimeout},
		{queries: 1, want: DefaultSearchTimeout},
		{queries: 4, want: DefaultSearchTimeout + 3*PerIndexerSearchTimeout},
		{queries: 1000, want: MaxSearchTimeout},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AdaptiveSearchTimeout(tt.queries), "queries=%d", tt.queries)
	}

	prev := time.Duration(0)
	for n := range 60 {
		got := AdaptiveSearchTimeout(n)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestWithSearchTimeout(t *testing.T) {
	t.Parallel()

	t.Run("sets deadline", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := WithSearchTimeout(context.Background(), 3*time.Second)
		defer cancel()

		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(3*time.Second), deadline, 200*time.Millisecond)
	})

	t.Run("non-positive falls back to default", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := WithSearchTimeout(context.Background(), 0)
		defer cancel()

		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(DefaultSearchTimeout), deadline, 200*time.Millisecond)
	})

	t.Run("keeps caller deadline", func(t *testing.T) {
		t.Parallel()

		parent, parentCancel := context.WithTimeout(context.Background(), time.Minute)
		defer parentCancel()
		want, _ := parent.Deadline()

		ctx, cancel := WithSearchTimeout(parent, time.Second)
		cancel()

		got, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.Equal(t, want, got)
		assert.NoError(t, ctx.Err(), "cancel must not affect the caller's context")
	})

	t.Run("cancel ends context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := WithSearchTimeout(context.Background(), time.Minute)
		cancel()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}
