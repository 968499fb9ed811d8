// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/gamarr/internal/models"
	"github.com/autobrr/gamarr/internal/providers"
	"github.com/autobrr/gamarr/internal/resilient"
	"github.com/autobrr/gamarr/internal/services/scoring"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const gb = int64(1_000_000_000)

type fakeIndexer struct {
	mu         sync.Mutex
	configured bool
	results    map[string][]providers.ReleaseListing
	errs       map[string]error
	fallback   []providers.ReleaseListing
	terms      []string
	categories [][]int
}

func (f *fakeIndexer) IsConfigured() bool { return f.configured }

func (f *fakeIndexer) Search(_ context.Context, term string, categories []int) ([]providers.ReleaseListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.terms = append(f.terms, term)
	f.categories = append(f.categories, categories)
	if err := f.errs[term]; err != nil {
		return nil, err
	}
	if r, ok := f.results[term]; ok {
		return r, nil
	}
	return f.fallback, nil
}

type fakeCollection struct {
	ids map[string]struct{}
	err error
}

func (f fakeCollection) FindAllIDs(context.Context) (map[string]struct{}, error) {
	return f.ids, f.err
}

// subsetCollection also answers subset lookups and records what it was asked.
type subsetCollection struct {
	fakeCollection
	asked *[]string
}

func (f subsetCollection) FindOwnedIDs(_ context.Context, externalIDs []string) (map[string]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	*f.asked = append(*f.asked, externalIDs...)
	owned := make(map[string]struct{})
	for _, id := range externalIDs {
		if _, ok := f.ids[id]; ok {
			owned[id] = struct{}{}
		}
	}
	return owned, nil
}

func (f fakeCollection) FindByExternalID(_ context.Context, id string) (*models.CollectionItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.ids[id]; !ok {
		return nil, models.ErrCollectionItemNotFound
	}
	return &models.CollectionItem{ExternalID: id}, nil
}

type reverseReranker struct{ err error }

func (r reverseReranker) Rerank(_ context.Context, _ Item, scored []scoring.ScoredRelease) ([]scoring.ScoredRelease, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := slices.Clone(scored)
	slices.Reverse(out)
	return out, nil
}

func release(title string, seeders int, size int64) providers.ReleaseListing {
	return providers.ReleaseListing{ID: title, Title: title, Seeders: seeders, Size: size, PublishedAt: fixedNow}
}

func bg3Listings() []providers.ReleaseListing {
	return []providers.ReleaseListing{
		release("Some.Other.Game.GOG", 3, 10*gb),
		release("Baldurs.Gate.3.PS5-DUPLEX", 50, 80*gb),
		release("Baldurs.Gate.3-RUNE", 30, 100*gb),
		release("Baldurs.Gate.3.v4.1.1.GOG", 100, 120*gb),
	}
}

var bg3 = Item{ExternalID: "igdb:119171", Title: "Baldur's Gate 3", Year: 2023, Platform: "PC"}

func newService(idx Indexer, coll CollectionStore, opts ...Option) *Service {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithPolicy(scoring.NewPolicy(scoring.ThresholdFunc(func() (int, int) { return 150, 5 }))),
	}
	return NewService(idx, coll, append(base, opts...)...)
}

func titlesOf(scored []scoring.ScoredRelease) []string {
	out := make([]string, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Title)
	}
	return out
}

func TestSearchForItemScoresFiltersAndSorts(t *testing.T) {
	t.Parallel()

	idx := &fakeIndexer{
		configured: true,
		results:    map[string][]providers.ReleaseListing{"Baldur's Gate 3": bg3Listings()},
	}
	svc := newService(idx, fakeCollection{}, WithCategories(func() []int { return []int{4050} }))

	res, err := svc.SearchForItem(t.Context(), bg3)
	require.NoError(t, err)

	assert.Equal(t, "Baldur's Gate 3", res.Query)
	assert.Equal(t, []string{"Baldur's Gate 3"}, res.Tried)
	assert.False(t, res.Owned)
	assert.Equal(t, []string{
		"Baldurs.Gate.3.v4.1.1.GOG",
		"Baldurs.Gate.3-RUNE",
		"Some.Other.Game.GOG",
	}, titlesOf(res.Releases))

	assert.Equal(t, 220, res.Releases[0].Score)
	assert.True(t, res.Releases[0].AutoGrab)
	assert.True(t, res.Releases[1].AutoGrab)
	assert.False(t, res.Releases[2].AutoGrab)
	assert.Equal(t, [][]int{{4050}}, idx.categories)
}

func TestSearchForItemRetriesVariations(t *testing.T) {
	t.Parallel()

	idx := &fakeIndexer{
		configured: true,
		results:    map[string][]providers.ReleaseListing{"Super Smash Bros": {}},
		fallback:   []providers.ReleaseListing{release("Super.Smash.Brothers.Ultimate.NSW", 40, 15*gb)},
	}
	svc := newService(idx, nil)

	res, err := svc.SearchForItem(t.Context(), Item{Title: "Super Smash Bros"})
	require.NoError(t, err)

	require.Len(t, res.Tried, 2)
	assert.Equal(t, "Super Smash Bros", res.Tried[0])
	assert.Equal(t, res.Tried[1], res.Query)
	assert.NotEqual(t, "Super Smash Bros", res.Query)
	require.Len(t, res.Releases, 1)
	assert.Equal(t, "Super.Smash.Brothers.Ultimate.NSW", res.Releases[0].Title)
}

func TestSearchForItemNothingFound(t *testing.T) {
	t.Parallel()

	idx := &fakeIndexer{configured: true}
	svc := newService(idx, nil)

	res, err := svc.SearchForItem(t.Context(), Item{Title: "Final Fantasy VII"})
	require.NoError(t, err)

	assert.Empty(t, res.Releases)
	assert.NotNil(t, res.Releases)
	assert.Empty(t, res.Query)
	assert.Greater(t, len(res.Tried), 1, "variations were tried")
}

func TestSearchForItemOwnedDisablesAutoGrab(t *testing.T) {
	t.Parallel()

	idx := &fakeIndexer{configured: true, fallback: bg3Listings()}
	coll := fakeCollection{ids: map[string]struct{}{"igdb:119171": {}}}
	svc := newService(idx, coll)

	res, err := svc.SearchForItem(t.Context(), bg3)
	require.NoError(t, err)

	assert.True(t, res.Owned)
	require.NotEmpty(t, res.Releases)
	for _, r := range res.Releases {
		assert.True(t, r.Owned)
		assert.False(t, r.AutoGrab)
	}
}

func TestSearchForItemReranker(t *testing.T) {
	t.Parallel()

	t.Run("reorders", func(t *testing.T) {
		t.Parallel()
		idx := &fakeIndexer{configured: true, fallback: bg3Listings()}
		svc := newService(idx, nil, WithReranker(reverseReranker{}))

		res, err := svc.SearchForItem(t.Context(), bg3)
		require.NoError(t, err)
		assert.Equal(t, "Some.Other.Game.GOG", res.Releases[0].Title)
	})

	t.Run("failure keeps lexical order", func(t *testing.T) {
		t.Parallel()
		idx := &fakeIndexer{configured: true, fallback: bg3Listings()}
		svc := newService(idx, nil, WithReranker(reverseReranker{err: errors.New("model offline")}))

		res, err := svc.SearchForItem(t.Context(), bg3)
		require.NoError(t, err)
		assert.Equal(t, "Baldurs.Gate.3.v4.1.1.GOG", res.Releases[0].Title)
	})
}

func TestSearchForItemErrors(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		svc := newService(&fakeIndexer{}, nil)
		_, err := svc.SearchForItem(t.Context(), bg3)
		assert.ErrorIs(t, err, resilient.ErrNotConfigured)
	})

	t.Run("nil indexer", func(t *testing.T) {
		t.Parallel()
		svc := newService(nil, nil)
		_, err := svc.SearchForItem(t.Context(), bg3)
		assert.ErrorIs(t, err, resilient.ErrNotConfigured)
	})

	t.Run("auth failure propagates", func(t *testing.T) {
		t.Parallel()
		idx := &fakeIndexer{configured: true, errs: map[string]error{"Baldur's Gate 3": resilient.ErrAuthFailed}}
		svc := newService(idx, nil)
		_, err := svc.SearchForItem(t.Context(), bg3)
		assert.ErrorIs(t, err, resilient.ErrAuthFailed)
	})

	t.Run("blank title", func(t *testing.T) {
		t.Parallel()
		svc := newService(&fakeIndexer{configured: true}, nil)
		_, err := svc.SearchForItem(t.Context(), Item{Title: "  "})
		assert.Error(t, err)
	})

	t.Run("collection failure", func(t *testing.T) {
		t.Parallel()
		svc := newService(&fakeIndexer{configured: true}, fakeCollection{err: errors.New("db locked")})
		_, err := svc.SearchForItem(t.Context(), bg3)
		assert.ErrorContains(t, err, "db locked")
	})
}

func TestSearchForItemsDegradesPerItem(t *testing.T) {
	t.Parallel()

	idx := &fakeIndexer{
		configured: true,
		results:    map[string][]providers.ReleaseListing{"Baldur's Gate 3": bg3Listings()},
		errs: map[string]error{
			"Hades": &resilient.ProviderError{Provider: "torznab", Status: 500},
		},
	}
	coll := fakeCollection{ids: map[string]struct{}{"igdb:119171": {}}}
	svc := newService(idx, coll)

	results, err := svc.SearchForItems(t.Context(), []Item{bg3, {Title: "Hades"}})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Owned)
	assert.Len(t, results[0].Releases, 3)
	assert.Equal(t, "Hades", results[1].Item.Title)
	assert.Empty(t, results[1].Releases)
}

func TestSearchForItemsUsesSubsetLookup(t *testing.T) {
	t.Parallel()

	idx := &fakeIndexer{
		configured: true,
		results:    map[string][]providers.ReleaseListing{"Baldur's Gate 3": bg3Listings()},
	}
	var asked []string
	coll := subsetCollection{
		fakeCollection: fakeCollection{ids: map[string]struct{}{"igdb:119171": {}, "igdb:1": {}}},
		asked:          &asked,
	}
	svc := newService(idx, coll)

	results, err := svc.SearchForItems(t.Context(), []Item{bg3, {Title: "Hades"}})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, []string{"igdb:119171"}, asked, "items without an external id are not looked up")
	assert.True(t, results[0].Owned)
	assert.False(t, results[1].Owned)
}

func TestSearchForItemsStopsOnAuthFailure(t *testing.T) {
	t.Parallel()

	idx := &fakeIndexer{
		configured: true,
		errs:       map[string]error{"Hades": resilient.ErrAuthFailed},
	}
	svc := newService(idx, nil)

	results, err := svc.SearchForItems(t.Context(), []Item{{Title: "Hades"}, {Title: "Celeste"}})
	require.ErrorIs(t, err, resilient.ErrAuthFailed)
	assert.Empty(t, results)
	assert.Equal(t, []string{"Hades"}, idx.terms)
}

type slowIndexer struct {
	slow string
}

func (slowIndexer) IsConfigured() bool { return true }

func (s slowIndexer) Search(ctx context.Context, term string, _ []int) ([]providers.ReleaseListing, error) {
	if term == s.slow {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []providers.ReleaseListing{release("Celeste-RUNE", 20, gb)}, nil
}

func TestSearchForItemsItemTimeoutDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	svc := newService(slowIndexer{slow: "Hades"}, nil, WithTimeout(20*time.Millisecond))

	results, err := svc.SearchForItems(t.Context(), []Item{{Title: "Hades"}, {Title: "Celeste"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Releases)
	assert.Equal(t, []string{"Celeste-RUNE"}, titlesOf(results[1].Releases))
}

func TestSearchForItemTimeout(t *testing.T) {
	t.Parallel()

	svc := newService(slowIndexer{slow: "Hades"}, nil, WithTimeout(20*time.Millisecond))

	_, err := svc.SearchForItem(t.Context(), Item{Title: "Hades"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
