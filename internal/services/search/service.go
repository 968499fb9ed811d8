// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package search finds, scores and annotates releases for a wanted game.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/gamarr/internal/models"
	"github.com/autobrr/gamarr/internal/pkg/timeouts"
	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/internal/resilient"
	"github.com/autobrr/gamarr/internal/services/scoring"
	"github.com/autobrr/gamarr/pkg/releases"
	"github.com/autobrr/gamarr/pkg/titles"
)

// Indexer runs release searches.
type Indexer interface {
	IsConfigured() bool
	Search(ctx context.Context, term string, categories []int) ([]providers.ReleaseListing, error)
}

// CollectionStore answers ownership questions. The search path never writes to it.
type CollectionStore interface {
	FindAllIDs(ctx context.Context) (map[string]struct{}, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.CollectionItem, error)
}

// ownedIDsFinder is implemented by stores that can look up a subset of ids
// without listing the whole collection.
type ownedIDsFinder interface {
	FindOwnedIDs(ctx context.Context, externalIDs []string) (map[string]struct{}, error)
}

// Reranker may reorder lexically scored releases, for example by semantic
// similarity. It must not add releases.
type Reranker interface {
	Rerank(ctx context.Context, item Item, scored []scoring.ScoredRelease) ([]scoring.ScoredRelease, error)
}

// Item is a wanted game.
type Item struct {
	ExternalID string `json:"externalId,omitempty"`
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

func (i Item) target() scoring.Target {
	return scoring.Target{Title: i.Title, Year: i.Year, Platform: i.Platform}
}

// Result is the outcome of one item search.
type Result struct {
	Item     Item                    `json:"item"`
	Query    string                  `json:"query"`
	Tried    []string                `json:"tried"`
	Owned    bool                    `json:"owned"`
	Releases []scoring.ScoredRelease `json:"releases"`
}

type Option func(*Service)

// WithPolicy attaches auto-grab decisions to results.
func WithPolicy(p *scoring.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithWeights supplies scorer weights, read on every search.
func WithWeights(fn func() scoring.Weights) Option {
	return func(s *Service) {
		if fn != nil {
			s.weights = fn
		}
	}
}

// WithCategories supplies the indexer category filter, read on every search.
func WithCategories(fn func() []int) Option {
	return func(s *Service) {
		if fn != nil {
			s.categories = fn
		}
	}
}

func WithReranker(r Reranker) Option {
	return func(s *Service) { s.reranker = r }
}

// WithTimeout bounds the indexer queries of one item. Without it the bound
// grows with the number of title variations.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	indexer    Indexer
	collection CollectionStore
	policy     *scoring.Policy
	reranker   Reranker
	parser     *releases.Parser
	weights    func() scoring.Weights
	categories func() []int
	timeout    time.Duration
	now        func() time.Time
}

func NewService(indexer Indexer, collection CollectionStore, opts ...Option) *Service {
	s := &Service{
		indexer:    indexer,
		collection: collection,
		parser:     releases.NewDefaultParser(),
		weights:    scoring.DefaultWeights,
		categories: func() []int { return nil },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchForItem searches the indexer for item, retrying with title
// variations while nothing is found, then scores, filters and orders the
// releases.
func (s *Service) SearchForItem(ctx context.Context, item Item) (*Result, error) {
	owned, err := s.isOwned(ctx, item)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, item, owned)
}

// SearchForItems searches items one after another, loading ownership once.
// A failed item is logged and yields an empty result unless the indexer is
// unusable.
func (s *Service) SearchForItems(ctx context.Context, items []Item) ([]*Result, error) {
	ownedIDs, err := s.ownedIDs(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}

	results := make([]*Result, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		_, owned := ownedIDs[item.ExternalID]
		res, err := s.search(ctx, item, owned && item.ExternalID != "")
		if err != nil {
			if ctx.Err() != nil || unusable(err) {
				return results, err
			}
			log.Warn().Err(err).Str("title", item.Title).Msg("Release search failed")
			res = &Result{Item: item, Releases: []scoring.ScoredRelease{}}
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) ownedIDs(ctx context.Context, items []Item) (map[string]struct{}, error) {
	if s.collection == nil {
		return nil, nil
	}
	finder, ok := s.collection.(ownedIDsFinder)
	if !ok {
		return s.collection.FindAllIDs(ctx)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ExternalID != "" {
			ids = append(ids, item.ExternalID)
		}
	}
	return finder.FindOwnedIDs(ctx, ids)
}

func (s *Service) search(ctx context.Context, item Item, owned bool) (*Result, error) {
	if s.indexer == nil || !s.indexer.IsConfigured() {
		return nil, resilient.ErrNotConfigured
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil, errors.New("search requires a title")
	}

	categories := s.categories()
	variations := titles.GenerateVariations(title)
	res := &Result{Item: item, Owned: owned, Releases: []scoring.ScoredRelease{}}

	timeout := s.timeout
	if timeout <= 0 {
		timeout = timeouts.AdaptiveSearchTimeout(len(variations) + 1)
	}
	ctx, cancel := timeouts.WithSearchTimeout(ctx, timeout)
	defer cancel()

	listings, err := s.indexer.Search(ctx, title, categories)
	res.Tried = append(res.Tried, title)
	if err != nil {
		return nil, err
	}
	if len(listings) > 0 {
		res.Query = title
	}

	if len(listings) == 0 {
		for _, variation := range variations {
			res.Tried = append(res.Tried, variation)
			found, err := s.indexer.Search(ctx, variation, categories)
			if err != nil {
				if fatal(err) {
					return nil, err
				}
				log.Debug().Err(err).Str("variation", variation).Msg("Variation search failed")
				continue
			}
			if len(found) > 0 {
				listings = found
				res.Query = variation
				break
			}
		}
	}

	if len(listings) == 0 {
		log.Debug().Str("title", title).Strs("tried", res.Tried).Msg("No releases found")
		return res, nil
	}

	scorer := scoring.NewScorer(s.weights(), scoring.WithParser(s.parser), scoring.WithClock(s.now))
	scored := scoring.FilterCandidates(scorer.ScoreAll(listings, item.target()))
	scoring.SortScored(scored)

	if s.reranker != nil && len(scored) > 1 {
		reranked, err := s.reranker.Rerank(ctx, item, scored)
		if err != nil {
			log.Warn().Err(err).Str("title", title).Msg("Reranker failed, keeping lexical order")
		} else if len(reranked) <= len(scored) {
			scored = reranked
		}
	}

	s.policy.Annotate(scored)
	for i := range scored {
		scored[i].Owned = owned
		if owned {
			scored[i].AutoGrab = false
		}
	}

	log.Debug().
		Str("title", title).
		Str("query", res.Query).
		Int("listings", len(listings)).
		Int("candidates", len(scored)).
		Msg("Release search completed")

	res.Releases = scored
	return res, nil
}

func (s *Service) isOwned(ctx context.Context, item Item) (bool, error) {
	if s.collection == nil || item.ExternalID == "" {
		return false, nil
	}
	_, err := s.collection.FindByExternalID(ctx, item.ExternalID)
	if err != nil {
		if errors.Is(err, models.ErrCollectionItemNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check collection: %w", err)
	}
	return true, nil
}

// unusable errors make every further search of the same indexer pointless.
func unusable(err error) bool {
	return errors.Is(err, resilient.ErrNotConfigured) ||
		errors.Is(err, resilient.ErrAuthFailed)
}

// fatal errors end the search of the current item.
func fatal(err error) bool {
	return unusable(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
