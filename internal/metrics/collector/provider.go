// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autobrr/gamarr/internal/resilient"
)

// ProviderCollector records outbound provider attempts. It implements
// resilient.Observer.
type ProviderCollector struct {
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
}

func NewProviderCollector(r *prometheus.Registry) *ProviderCollector {
	m := &ProviderCollector{
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamarr",
			Subsystem: "provider",
			Name:      "attempts_total",
			Help:      "Total number of provider request attempts by outcome",
		}, []string{"provider", "outcome", "status"}),
		AttemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gamarr",
			Subsystem: "provider",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of provider request attempts",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
	}

	r.MustRegister(m.AttemptsTotal)
	r.MustRegister(m.AttemptDuration)
	return m
}

func (m *ProviderCollector) ObserveAttempt(a resilient.Attempt) {
	m.AttemptsTotal.With(prometheus.Labels{
		"provider": a.Provider,
		"outcome":  Outcome(a.Err),
		"status":   strconv.Itoa(a.Status),
	}).Inc()

	if a.Duration > 0 {
		m.AttemptDuration.WithLabelValues(a.Provider).Observe(a.Duration.Seconds())
	}
}

// Outcome maps an attempt error to a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resilient.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, resilient.ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, resilient.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, resilient.ErrTransientConnection):
		return "transient"
	case errors.Is(err, resilient.ErrProvider):
		return "provider_error"
	default:
		return "error"
	}
}

// CacheCollector counts cache lookups by key family and result.
type CacheCollector struct {
	LookupsTotal *prometheus.CounterVec
}

func NewCacheCollector(r *prometheus.Registry) *CacheCollector {
	m := &CacheCollector{
		LookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamarr",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by key family and result",
		}, []string{"family", "result"}),
	}

	r.MustRegister(m.LookupsTotal)
	return m
}

func (m *CacheCollector) ObserveLookup(family, result string) {
	m.LookupsTotal.WithLabelValues(family, result).Inc()
}
