// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package feeds serves read-heavy aggregate lists through the provider cache.
package feeds

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/gamarr/internal/cache"
	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/internal/resilient"
	"github.com/autobrr/gamarr/pkg/titles"
)

const (
	PopularGamesKey   = "popular-games"
	TopReleasesFamily = "top-releases"

	DefaultPopularLimit     = 50
	DefaultTopReleasesLimit = 50

	defaultHotTTL = 30 * time.Second
	defaultTTL    = time.Hour
)

// MetadataSource lists trending games.
type MetadataSource interface {
	IsConfigured() bool
	Popular(ctx context.Context, limit int) ([]providers.CandidateMetadata, error)
}

// ReleaseSource searches an indexer.
type ReleaseSource interface {
	IsConfigured() bool
	Search(ctx context.Context, term string, categories []int) ([]providers.ReleaseListing, error)
}

// TTLSource returns the TTL for a cache key. It is consulted on every refresh.
type TTLSource interface {
	CacheTTL(key string) time.Duration
}

type TTLFunc func(key string) time.Duration

func (f TTLFunc) CacheTTL(key string) time.Duration { return f(key) }

// LookupObserver is told how each feed lookup was served.
type LookupObserver interface {
	ObserveLookup(family, result string)
}

type Option func(*Service)

func WithMetadata(src MetadataSource) Option {
	return func(s *Service) { s.metadata = src }
}

func WithReleases(src ReleaseSource) Option {
	return func(s *Service) { s.releases = src }
}

func WithTTL(src TTLSource) Option {
	return func(s *Service) {
		if src != nil {
			s.ttl = src
		}
	}
}

// WithCategories supplies the category filter for release feeds, read on every refresh.
func WithCategories(fn func() []int) Option {
	return func(s *Service) {
		if fn != nil {
			s.categories = fn
		}
	}
}

func WithObserver(o LookupObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithHotTTL sets how long decoded values stay in memory. Zero disables the
// in-memory layer.
func WithHotTTL(d time.Duration) Option {
	return func(s *Service) { s.hotTTL = d }
}

func WithLimits(popular, releases int) Option {
	return func(s *Service) {
		if popular > 0 {
			s.popularLimit = popular
		}
		if releases > 0 {
			s.releasesLimit = releases
		}
	}
}

type Service struct {
	cache      *cache.Cache
	metadata   MetadataSource
	releases   ReleaseSource
	ttl        TTLSource
	categories func() []int
	observer   LookupObserver

	hotTTL      time.Duration
	popularHot  *ttlcache.Cache[string, []providers.CandidateMetadata]
	releasesHot *ttlcache.Cache[string, []providers.ReleaseListing]

	popularLimit  int
	releasesLimit int
}

func NewService(c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		cache:         c,
		ttl:           TTLFunc(func(string) time.Duration { return defaultTTL }),
		categories:    func() []int { return nil },
		hotTTL:        defaultHotTTL,
		popularLimit:  DefaultPopularLimit,
		releasesLimit: DefaultTopReleasesLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hotTTL > 0 {
		s.popularHot = ttlcache.New(ttlcache.Options[string, []providers.CandidateMetadata]{}.SetDefaultTTL(s.hotTTL))
		s.releasesHot = ttlcache.New(ttlcache.Options[string, []providers.ReleaseListing]{}.SetDefaultTTL(s.hotTTL))
	}
	return s
}

// PopularGames returns the trending games list, refreshing it through the
// metadata provider when the cached copy has expired.
func (s *Service) PopularGames(ctx context.Context) ([]providers.CandidateMetadata, cache.Status, error) {
	if s.popularHot != nil {
		if v, ok := s.popularHot.Get(PopularGamesKey); ok {
			s.observe(PopularGamesKey, "hot")
			return v, cache.StatusFresh, nil
		}
	}

	games, status, err := cache.GetOrRefreshJSON(ctx, s.cache, PopularGamesKey, s.ttl.CacheTTL(PopularGamesKey), s.fetchPopular)
	if err != nil {
		s.observe(PopularGamesKey, "error")
		return nil, status, err
	}
	s.observe(PopularGamesKey, status.String())

	if s.popularHot != nil && status != cache.StatusStale {
		s.popularHot.Set(PopularGamesKey, games, ttlcache.DefaultTTL)
	}
	return games, status, nil
}

// TopReleases returns the best seeded releases for query.
func (s *Service) TopReleases(ctx context.Context, query string) ([]providers.ReleaseListing, cache.Status, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, cache.StatusFresh, fmt.Errorf("top releases require a query")
	}
	categories := s.categories()
	key := TopReleasesKey(query, categories)

	if s.releasesHot != nil {
		if v, ok := s.releasesHot.Get(key); ok {
			s.observe(key, "hot")
			return v, cache.StatusFresh, nil
		}
	}

	listings, status, err := cache.GetOrRefreshJSON(ctx, s.cache, key, s.ttl.CacheTTL(key), func(ctx context.Context) ([]providers.ReleaseListing, error) {
		return s.fetchTopReleases(ctx, query, categories)
	})
	if err != nil {
		s.observe(key, "error")
		return nil, status, err
	}
	s.observe(key, status.String())

	if s.releasesHot != nil && status != cache.StatusStale {
		s.releasesHot.Set(key, listings, ttlcache.DefaultTTL)
	}
	return listings, status, nil
}

// RefreshPopular fetches the popular list and overwrites the cached copy
// regardless of its age. It joins a refresh already in flight for the key.
func (s *Service) RefreshPopular(ctx context.Context) error {
	games, err := cache.RefreshJSON(ctx, s.cache, PopularGamesKey, s.ttl.CacheTTL(PopularGamesKey), s.fetchPopular)
	if err != nil {
		return err
	}
	if s.popularHot != nil {
		s.popularHot.Set(PopularGamesKey, games, ttlcache.DefaultTTL)
	}
	return nil
}

// RefreshTopReleases overwrites the cached top releases for query.
func (s *Service) RefreshTopReleases(ctx context.Context, query string) error {
	categories := s.categories()
	key := TopReleasesKey(query, categories)
	listings, err := cache.RefreshJSON(ctx, s.cache, key, s.ttl.CacheTTL(key), func(ctx context.Context) ([]providers.ReleaseListing, error) {
		return s.fetchTopReleases(ctx, query, categories)
	})
	if err != nil {
		return err
	}
	if s.releasesHot != nil {
		s.releasesHot.Set(key, listings, ttlcache.DefaultTTL)
	}
	return nil
}

// Jobs returns periodic refresh jobs for the popular list and each query.
func (s *Service) Jobs(interval time.Duration, queries []string) []cache.Job {
	jobs := []cache.Job{{
		Name:       "feed:" + PopularGamesKey,
		Interval:   interval,
		RunOnStart: true,
		Run:        s.RefreshPopular,
	}}
	for _, q := range queries {
		q := strings.TrimSpace(q)
		if q == "" {
			continue
		}
		jobs = append(jobs, cache.Job{
			Name:       "feed:" + TopReleasesFamily + ":" + q,
			Interval:   interval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				return s.RefreshTopReleases(ctx, q)
			},
		})
	}
	return jobs
}

func (s *Service) fetchPopular(ctx context.Context) ([]providers.CandidateMetadata, error) {
	if s.metadata == nil || !s.metadata.IsConfigured() {
		return nil, resilient.ErrNotConfigured
	}
	games, err := s.metadata.Popular(ctx, s.popularLimit)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("games", len(games)).Msg("Fetched popular games")
	return games, nil
}

func (s *Service) fetchTopReleases(ctx context.Context, query string, categories []int) ([]providers.ReleaseListing, error) {
	if s.releases == nil || !s.releases.IsConfigured() {
		return nil, resilient.ErrNotConfigured
	}
	listings, err := s.releases.Search(ctx, query, categories)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(listings, func(a, b providers.ReleaseListing) int {
		if a.Seeders != b.Seeders {
			return b.Seeders - a.Seeders
		}
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	if len(listings) > s.releasesLimit {
		listings = listings[:s.releasesLimit]
	}
	if listings == nil {
		listings = []providers.ReleaseListing{}
	}
	return listings, nil
}

func (s *Service) observe(key, result string) {
	if s.observer == nil {
		return
	}
	family, _, _ := strings.Cut(key, ":")
	s.observer.ObserveLookup(family, result)
}

// TopReleasesKey fingerprints a normalized query and its category filter so
// spelling variants of one query share an entry.
func TopReleasesKey(query string, categories []int) string {
	cats := slices.Clone(categories)
	slices.Sort(cats)

	var b strings.Builder
	b.WriteString(titles.Normalize(query))
	for _, c := range cats {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(c))
	}
	return TopReleasesFamily + ":" + strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}
