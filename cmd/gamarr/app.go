// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/gamarr/internal/cache"
	"github.com/autobrr/gamarr/internal/config"
	"github.com/autobrr/gamarr/internal/database"
	"github.com/autobrr/gamarr/internal/logger"
	"github.com/autobrr/gamarr/internal/metrics"
	"github.com/autobrr/gamarr/internal/models"
	"github.com/autobrr/gamarr/internal/providers/igdb"
	"github.com/autobrr/gamarr/internal/providers/steam"
	"github.com/autobrr/gamarr/internal/providers/torznab"
	"github.com/autobrr/gamarr/internal/resilient"
	"github.com/autobrr/gamarr/internal/services/feeds"
	"github.com/autobrr/gamarr/internal/services/resolver"
	"github.com/autobrr/gamarr/internal/services/scoring"
	"github.com/autobrr/gamarr/internal/services/search"
)

// app lazily builds the dependencies a command needs.
type app struct {
	configFlag string
	outputFlag string

	cfg       *config.AppConfig
	logCloser io.Closer
	db        *database.DB
	metrics   *metrics.Manager
	cache     *cache.Cache

	igdbClient    *igdb.Client
	torznabClient *torznab.Client
}

func newApp() *app {
	return &app{outputFlag: outputTable}
}

func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.New(strings.TrimSpace(a.configFlag))
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	a.cfg = cfg
	a.logCloser = logger.Setup(cfg.Current())
	log.Debug().Str("config", cfg.ConfigPath()).Msg("Config loaded")
	return nil
}

func (a *app) output() string {
	return a.outputFlag
}

func (a *app) database() (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.New(a.cfg.GetDatabasePath())
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	a.db = db
	return db, nil
}

func (a *app) providerCache() (*cache.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	a.cache = cache.New(cache.NewDBStore(models.NewProviderCacheStore(db)))
	return a.cache, nil
}

func (a *app) collection() (*models.CollectionStore, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	return models.NewCollectionStore(db), nil
}

// enableMetrics registers collectors; provider clients built afterwards
// report their attempts.
func (a *app) enableMetrics() (*metrics.Manager, error) {
	if a.metrics != nil {
		return a.metrics, nil
	}
	c, err := a.providerCache()
	if err != nil {
		return nil, err
	}
	a.metrics = metrics.NewManager(c, database.NewMetricsCollector())
	return a.metrics, nil
}

func (a *app) observer() resilient.Observer {
	if a.metrics == nil {
		return nil
	}
	return a.metrics.Provider
}

func (a *app) igdb() *igdb.Client {
	if a.igdbClient == nil {
		cur := a.cfg.Current()
		a.igdbClient = igdb.NewClient(igdb.Config{
			ClientID:     cur.IGDBClientID,
			ClientSecret: cur.IGDBClientSecret,
			Observer:     a.observer(),
			Budgets:      a.cfg,
		})
	}
	return a.igdbClient
}

func (a *app) torznab() (*torznab.Client, error) {
	if a.torznabClient != nil {
		return a.torznabClient, nil
	}
	cur := a.cfg.Current()
	backend, err := torznab.ParseBackend(cur.TorznabBackend)
	if err != nil {
		return nil, errors.Wrap(err, "torznab backend")
	}
	a.torznabClient = torznab.NewClient(torznab.Config{
		BaseURL:  cur.TorznabURL,
		APIKey:   cur.TorznabAPIKey,
		Backend:  backend,
		Indexer:  cur.TorznabIndexer,
		Observer: a.observer(),
		Budgets:  a.cfg,
	})
	return a.torznabClient, nil
}

func (a *app) steam() *steam.Client {
	cur := a.cfg.Current()
	return steam.NewClient(steam.Config{
		APIKey:   cur.SteamAPIKey,
		SteamID:  cur.SteamID,
		Observer: a.observer(),
		Budgets:  a.cfg,
	})
}

func (a *app) resolver() *resolver.Service {
	return resolver.NewService(a.igdb(), resolver.WithGroupPacing(a.cfg.GroupDelay()))
}

func (a *app) search() (*search.Service, error) {
	idx, err := a.torznab()
	if err != nil {
		return nil, err
	}
	coll, err := a.collection()
	if err != nil {
		return nil, err
	}
	return search.NewService(idx, coll,
		search.WithPolicy(scoring.NewPolicy(a.cfg)),
		search.WithWeights(a.cfg.ScoringWeights),
		search.WithCategories(a.cfg.CategoryFilter),
	), nil
}

func (a *app) feeds() (*feeds.Service, error) {
	c, err := a.providerCache()
	if err != nil {
		return nil, err
	}
	idx, err := a.torznab()
	if err != nil {
		return nil, err
	}
	opts := []feeds.Option{
		feeds.WithMetadata(a.igdb()),
		feeds.WithReleases(idx),
		feeds.WithTTL(a.cfg),
		feeds.WithCategories(a.cfg.CategoryFilter),
		feeds.WithLimits(a.cfg.Current().FeedPopularLimit, a.cfg.Current().FeedTopLimit),
	}
	if a.metrics != nil {
		opts = append(opts, feeds.WithObserver(a.metrics.Cache))
	}
	return feeds.NewService(c, opts...), nil
}

// close releases the database and log file; safe to call more than once.
func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
		a.db = nil
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}
