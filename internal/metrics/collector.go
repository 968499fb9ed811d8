// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/gamarr/internal/cache"
)

// StatsSource reports provider cache occupancy.
type StatsSource interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// CacheStatsCollector reads cache occupancy at scrape time.
type CacheStatsCollector struct {
	source StatsSource

	entriesDesc *prometheus.Desc
	expiredDesc *prometheus.Desc
	bytesDesc   *prometheus.Desc
}

func NewCacheStatsCollector(source StatsSource) *CacheStatsCollector {
	return &CacheStatsCollector{
		source: source,

		entriesDesc: prometheus.NewDesc(
			"gamarr_cache_entries",
			"Number of provider cache entries",
			nil,
			nil,
		),
		expiredDesc: prometheus.NewDesc(
			"gamarr_cache_expired_entries",
			"Number of provider cache entries past their TTL and kept for stale fallback",
			nil,
			nil,
		),
		bytesDesc: prometheus.NewDesc(
			"gamarr_cache_payload_bytes",
			"Total payload size of provider cache entries",
			nil,
			nil,
		),
	}
}

func (c *CacheStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entriesDesc
	ch <- c.expiredDesc
	ch <- c.bytesDesc
}

func (c *CacheStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		log.Trace().Msg("Cache stats source is nil, skipping metrics collection")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.source.Stats(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to read cache stats for metrics")
		return
	}

	ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue, float64(stats.Entries))
	ch <- prometheus.MustNewConstMetric(c.expiredDesc, prometheus.GaugeValue, float64(stats.Expired))
	ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.GaugeValue, float64(stats.Bytes))
}
