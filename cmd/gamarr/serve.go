// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/gamarr/internal/cache"
	"github.com/autobrr/gamarr/internal/domain"
	"github.com/autobrr/gamarr/internal/logger"
	"github.com/autobrr/gamarr/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var topQueries []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep feeds warm in the background and expose metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), topQueries)
		},
	}

	cmd.Flags().StringSliceVar(&topQueries, "top-query", []string{""}, "Top release queries to keep warm (repeatable, empty for the unfiltered feed)")

	return cmd
}

func (a *app) serve(ctx context.Context, topQueries []string) error {
	a.cfg.OnReload(func(old, updated *domain.Config) {
		if old.LogLevel != updated.LogLevel {
			zerolog.SetGlobalLevel(logger.ParseLevel(updated.LogLevel))
			log.Info().Str("level", updated.LogLevel).Msg("Log level changed")
		}
	})
	a.cfg.Watch()

	cur := a.cfg.Current()

	var server *metrics.MetricsServer
	if cur.MetricsEnabled {
		manager, err := a.enableMetrics()
		if err != nil {
			return err
		}
		server = metrics.NewMetricsServer(manager, cur.MetricsHost, cur.MetricsPort, cur.MetricsBasicAuthUsers)
	}

	c, err := a.providerCache()
	if err != nil {
		return err
	}
	feedService, err := a.feeds()
	if err != nil {
		return err
	}

	refresher := cache.NewRefresher()
	for _, job := range feedService.Jobs(a.cfg.FeedRefreshInterval(), topQueries) {
		refresher.Register(job)
	}
	refresher.Register(cache.SweepJob(c, a.cfg.CacheSweepInterval()))

	g, gctx := errgroup.WithContext(ctx)

	if server != nil {
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
	}

	g.Go(func() error {
		refresher.Start(gctx)
		<-gctx.Done()

		refresher.Stop()
		refresher.Wait()

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}
		return nil
	})

	log.Info().Msg("gamarr is running")
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Stopped")
	return nil
}
