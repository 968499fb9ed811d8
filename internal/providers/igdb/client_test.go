// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package igdb

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/gamarr/internal/resilient"
)

type fixture struct {
	client     *Client
	tokenHits  atomic.Int32
	apiHits    atomic.Int32
	lastBody   atomic.Value
	rejectNext atomic.Bool
}

func newFixture(t *testing.T, tokenStatus int, respond func(w http.ResponseWriter, r *http.Request, body string)) *fixture {
	t.Helper()

	f := &fixture{}

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := f.tokenHits.Add(1)
		assert.NoError(t, r.ParseForm())
		if tokenStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tokenStatus)
			_, _ = w.Write([]byte(`{"status":403,"message":"invalid client secret"}`))
			return
		}
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-" + string(rune('0'+n)),
			"expires_in":   5000000,
			"token_type":   "bearer",
		})
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.apiHits.Add(1)
		data, _ := io.ReadAll(r.Body)
		f.lastBody.Store(string(data))

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "client", r.Header.Get("Client-ID"))

		if f.rejectNext.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		respond(w, r, string(data))
	}))
	t.Cleanup(apiSrv.Close)

	f.client = NewClient(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      apiSrv.URL,
		TokenURL:     tokenSrv.URL + "/oauth2/token",
	})
	return f
}

const multiResponse = `[
  {"name":"0","result":[{"id":1,"name":"Baldur's Gate 3","first_release_date":1691020800,
    "cover":{"image_id":"co670h"},"genres":[{"name":"Role-playing (RPG)"}],
    "involved_companies":[{"company":{"name":"Larian Studios"},"developer":true,"publisher":true}],
    "total_rating":93.5}]},
  {"name":"1","result":[{"id":2,"name":"Hades"}]},
  {"name":"2","result":[]}
]`

func TestSearchBatchMapsResultsByIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request, body string) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/multiquery"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(multiResponse))
	})

	names := []string{"Baldur's Gate 3", "Hades", "Nonexistent Game XYZ123"}
	got, err := f.client.SearchBatch(t.Context(), names, 5)
	require.NoError(t, err)

	require.Len(t, got, 3)
	require.Len(t, got["Baldur's Gate 3"], 1)
	bg3 := got["Baldur's Gate 3"][0]
	assert.Equal(t, "1", bg3.ExternalID)
	assert.Equal(t, Name, bg3.Provider)
	assert.Equal(t, 2023, bg3.ReleaseYear)
	assert.Equal(t, "Larian Studios", bg3.Developer)
	assert.Equal(t, "Larian Studios", bg3.Publisher)
	assert.Equal(t, []string{"Role-playing (RPG)"}, bg3.Genres)
	assert.Contains(t, bg3.Cover, "co670h.jpg")
	assert.Len(t, got["Hades"], 1)
	assert.Empty(t, got["Nonexistent Game XYZ123"])

	body := f.lastBody.Load().(string)
	assert.Contains(t, body, `query games "0"`)
	assert.Contains(t, body, `search "Baldur's Gate 3";`)
	assert.Contains(t, body, `query games "2"`)
}

func TestSearchBatchRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = w.Write([]byte(`[]`))
	})

	names := make([]string, MaxBatchSize+1)
	for i := range names {
		names[i] = "game"
	}
	_, err := f.client.SearchBatch(t.Context(), names, 5)
	require.Error(t, err)
	assert.Zero(t, f.apiHits.Load())
}

func TestTokenReusedAcrossCalls(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = w.Write([]byte(`[{"id":2,"name":"Hades"}]`))
	})

	for range 3 {
		got, err := f.client.Search(t.Context(), "Hades", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	assert.Equal(t, int32(1), f.tokenHits.Load())
	assert.Equal(t, int32(3), f.apiHits.Load())
}

func TestUnauthorizedRefreshesTokenOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request, _ string) {
		assert.Equal(t, "Bearer token-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":2,"name":"Hades"}]`))
	})
	require.NoError(t, f.client.Authenticate(t.Context()))
	f.rejectNext.Store(true)

	got, err := f.client.Search(t.Context(), "Hades", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(2), f.tokenHits.Load())
	assert.Equal(t, int32(2), f.apiHits.Load())
}

func TestRejectedCredentialsAreAuthFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, http.StatusForbidden, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = w.Write([]byte(`[]`))
	})

	err := f.client.Authenticate(t.Context())
	require.ErrorIs(t, err, resilient.ErrAuthFailed)

	_, err = f.client.Search(t.Context(), "Hades", 1)
	require.ErrorIs(t, err, resilient.ErrAuthFailed)
	assert.Zero(t, f.apiHits.Load())
}

func TestNotConfigured(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{ClientID: "only-id"})
	assert.False(t, c.IsConfigured())
	assert.ErrorIs(t, c.Authenticate(t.Context()), resilient.ErrNotConfigured)

	_, err := c.SearchBatch(t.Context(), []string{"Hades"}, 1)
	assert.ErrorIs(t, err, resilient.ErrNotConfigured)
}

func TestSearchBodyEscapesQuotes(t *testing.T) {
	t.Parallel()

	body := searchBody(`Say "Hi"`, 3)
	assert.Contains(t, body, `search "Say \"Hi\"";`)
	assert.Contains(t, body, "limit 3;")
}
