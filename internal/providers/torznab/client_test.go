// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torznab

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/gamarr/internal/resilient"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <title>AggregateSearch</title>
    <item>
      <title>Baldurs.Gate.3.v4.1.1-GOG</title>
      <guid>https://tracker.example/details/1</guid>
      <jackettindexer id="tracker">Tracker</jackettindexer>
      <pubDate>Mon, 02 Jun 2025 10:00:00 +0000</pubDate>
      <size>130000000000</size>
      <category>4050</category>
      <enclosure url="https://tracker.example/dl/1.torrent" length="130000000000" type="application/x-bittorrent"/>
      <torznab:attr name="seeders" value="42"/>
      <torznab:attr name="peers" value="50"/>
      <torznab:attr name="category" value="4050"/>
      <torznab:attr name="magneturl" value="magnet:?xt=urn:btih:abc"/>
    </item>
    <item>
      <title>Hades-CODEX</title>
      <link>https://other.example/dl/2.torrent</link>
      <pubDate>Tue, 03 Jun 2025 11:00:00 GMT</pubDate>
      <torznab:attr name="Seeders" value="3"/>
      <torznab:attr name="size" value="15000000000"/>
    </item>
  </channel>
</rss>`

// fastBudget lifts the default indexer budget so retries do not wait seconds.
type fastBudget struct{}

func (fastBudget) BudgetOverride(string) (resilient.BudgetConfig, bool) {
	return resilient.BudgetConfig{MaxRequests: 50, Window: time.Second}, true
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchJackett(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2.0/indexers/all/results/torznab/api", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		assert.Equal(t, "search", r.URL.Query().Get("t"))
		assert.Equal(t, "baldurs gate 3", r.URL.Query().Get("q"))
		assert.Equal(t, "4050,1000", r.URL.Query().Get("cat"))
		_, _ = w.Write([]byte(sampleFeed))
	})

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	require.True(t, c.IsConfigured())

	listings, err := c.Search(t.Context(), "baldurs gate 3", nil)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, "https://tracker.example/details/1", first.ID)
	assert.Equal(t, "Baldurs.Gate.3.v4.1.1-GOG", first.Title)
	assert.Equal(t, "Tracker", first.Indexer)
	assert.Equal(t, int64(130000000000), first.Size)
	assert.Equal(t, 42, first.Seeders)
	assert.Equal(t, 50, first.Peers)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", first.Locator)
	assert.Equal(t, []string{"4050"}, first.Categories)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), first.PublishedAt.UTC())

	second := listings[1]
	assert.Equal(t, "AggregateSearch", second.Indexer)
	assert.Equal(t, 3, second.Seeders)
	assert.Equal(t, int64(15000000000), second.Size)
	assert.Equal(t, "https://other.example/dl/2.torrent", second.Locator)
	assert.False(t, second.PublishedAt.IsZero())
}

func TestEndpointPerBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend Backend
		indexer string
		want    string
	}{
		{name: "jackett default indexer", backend: BackendJackett, want: "api/v2.0/indexers/all/results/torznab/api"},
		{name: "jackett named indexer", backend: BackendJackett, indexer: "tracker", want: "api/v2.0/indexers/tracker/results/torznab/api"},
		{name: "prowlarr", backend: BackendProwlarr, indexer: "7", want: "api/v1/indexer/7/newznab"},
		{name: "native", backend: BackendNative, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewClient(Config{BaseURL: "http://localhost", APIKey: "k", Backend: tt.backend, Indexer: tt.indexer})
			assert.Equal(t, tt.want, c.Endpoint())
		})
	}
}

func TestProwlarrRequiresIndexer(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{BaseURL: "http://localhost", APIKey: "k", Backend: BackendProwlarr})
	assert.False(t, c.IsConfigured())
	assert.ErrorIs(t, c.Authenticate(t.Context()), resilient.ErrNotConfigured)

	_, err := c.Search(t.Context(), "hades", nil)
	assert.ErrorIs(t, err, resilient.ErrNotConfigured)
}

func TestErrorDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, err error)
	}{
		{
			name: "bad api key",
			body: `<?xml version="1.0" encoding="UTF-8"?><error code="100" description="Invalid API Key"/>`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, resilient.ErrAuthFailed)
			},
		},
		{
			name: "request limit",
			body: `<error code="500" description="Request limit reached"/>`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, resilient.ErrRateLimited)
			},
		},
		{
			name: "other",
			body: `<error code="201" description="Incorrect parameter"/>`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, resilient.ErrProvider)
				assert.False(t, resilient.IsRetryable(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Backend: BackendNative, Budgets: fastBudget{}})
			_, err := c.Search(t.Context(), "hades", []int{4050})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRequestLimitDocumentIsRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><error code="500" description="Request limit reached"/>`))
			return
		}
		_, _ = w.Write([]byte(sampleFeed))
	})

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Budgets: fastBudget{}})
	listings, err := c.Search(t.Context(), "baldurs gate 3", nil)
	require.NoError(t, err)
	assert.Len(t, listings, 2)
	assert.Equal(t, int32(2), hits.Load())
}

func TestParseBackend(t *testing.T) {
	t.Parallel()

	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendJackett, b)

	b, err = ParseBackend(" Prowlarr ")
	require.NoError(t, err)
	assert.Equal(t, BackendProwlarr, b)

	_, err = ParseBackend("sonarr")
	assert.Error(t, err)
}
