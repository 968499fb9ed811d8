// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/autobrr/gamarr/internal/metrics/collector"
)

// Manager owns a private registry. Provider and Cache are handed to the
// resilient client and the feed service as their observers.
type Manager struct {
	registry *prometheus.Registry

	Provider *collector.ProviderCollector
	Cache    *collector.CacheCollector
}

// NewManager registers runtime metrics, cache table stats from stats and
// any extra collectors, such as the database writer counters. stats may be
// nil.
func NewManager(stats StatsSource, extra ...prometheus.Collector) *Manager {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewCacheStatsCollector(stats),
	)
	for _, c := range extra {
		if c != nil {
			registry.MustRegister(c)
		}
	}

	return &Manager{
		registry: registry,
		Provider: collector.NewProviderCollector(registry),
		Cache:    collector.NewCacheCollector(registry),
	}
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}
