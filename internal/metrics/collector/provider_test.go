// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/autobrr/gamarr/internal/resilient"
)

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", err: nil, want: "ok"},
		{name: "rate limited", err: fmt.Errorf("wrap: %w", resilient.ErrRateLimited), want: "rate_limited"},
		{name: "auth", err: resilient.ErrAuthFailed, want: "auth_failed"},
		{name: "not configured", err: resilient.ErrNotConfigured, want: "not_configured"},
		{name: "transient", err: resilient.ErrTransientConnection, want: "transient"},
		{name: "provider error", err: &resilient.ProviderError{Provider: "igdb", Status: 500}, want: "provider_error"},
		{name: "other", err: errors.New("boom"), want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func TestProviderCollector_ObserveAttempt(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewProviderCollector(reg)

	c.ObserveAttempt(resilient.Attempt{Provider: "igdb", Status: 200, Duration: 120 * time.Millisecond})
	c.ObserveAttempt(resilient.Attempt{Provider: "igdb", Status: 200, Duration: 80 * time.Millisecond})
	c.ObserveAttempt(resilient.Attempt{Provider: "igdb", Status: 429, Err: resilient.ErrRateLimited})

	assert.InDelta(t, 2, testutil.ToFloat64(c.AttemptsTotal.WithLabelValues("igdb", "ok", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.AttemptsTotal.WithLabelValues("igdb", "rate_limited", "429")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.AttemptDuration))
}

func TestCacheCollector_ObserveLookup(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCacheCollector(reg)

	c.ObserveLookup("popular-games", "fresh")
	c.ObserveLookup("popular-games", "stale")
	c.ObserveLookup("popular-games", "fresh")

	assert.InDelta(t, 2, testutil.ToFloat64(c.LookupsTotal.WithLabelValues("popular-games", "fresh")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.LookupsTotal.WithLabelValues("popular-games", "stale")), 0)
}
