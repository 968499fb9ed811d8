// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderCacheStorePutGet(t *testing.T) {
	t.Parallel()

	store := NewProviderCacheStore(setupTestDB(t))
	ctx := t.Context()
	created := time.UnixMilli(time.Now().UnixMilli())

	_, err := store.Get(ctx, "popular-games")
	require.ErrorIs(t, err, ErrProviderCacheMiss)

	require.NoError(t, store.Put(ctx, &ProviderCacheEntry{
		Key:       "popular-games",
		Payload:   []byte(`[1]`),
		CreatedAt: created,
		TTL:       time.Hour,
	}))

	got, err := store.Get(ctx, "popular-games")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[1]`), got.Payload)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, time.Hour, got.TTL)

	// last writer wins
	require.NoError(t, store.Put(ctx, &ProviderCacheEntry{
		Key:       "popular-games",
		Payload:   []byte(`[2]`),
		CreatedAt: created.Add(time.Minute),
		TTL:       2 * time.Hour,
	}))
	got, err = store.Get(ctx, "popular-games")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[2]`), got.Payload)
	assert.Equal(t, 2*time.Hour, got.TTL)

	require.Error(t, store.Put(ctx, &ProviderCacheEntry{}))
}

func TestProviderCacheStoreDeleteExpiredAndStats(t *testing.T) {
	t.Parallel()

	store := NewProviderCacheStore(setupTestDB(t))
	ctx := t.Context()
	now := time.Now()

	entries := []*ProviderCacheEntry{
		{Key: "fresh", Payload: []byte("abc"), CreatedAt: now, TTL: time.Hour},
		{Key: "expired", Payload: []byte("de"), CreatedAt: now.Add(-2 * time.Hour), TTL: time.Hour},
		{Key: "also-expired", Payload: []byte("f"), CreatedAt: now.Add(-10 * time.Minute), TTL: time.Minute},
	}
	for _, e := range entries {
		require.NoError(t, store.Put(ctx, e))
	}

	stats, err := store.Stats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, ProviderCacheStats{Entries: 3, Expired: 2, Bytes: 6}, stats)

	deleted, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = store.Get(ctx, "fresh")
	require.NoError(t, err)
	_, err = store.Get(ctx, "expired")
	require.ErrorIs(t, err, ErrProviderCacheMiss)

	require.NoError(t, store.Delete(ctx, "fresh"))
	flushed, err := store.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, flushed)
}

func TestProviderCacheStoreCompressesLargePayloads(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	store := NewProviderCacheStore(db)
	ctx := t.Context()

	large := []byte(strings.Repeat(`{"title":"Baldur's Gate 3","seeders":120},`, 200))
	framed := append(slices.Clone(zstdMagic), []byte("tiny")...)

	for key, payload := range map[string][]byte{"top-releases:a": large, "looks-like-a-frame": framed} {
		require.NoError(t, store.Put(ctx, &ProviderCacheEntry{Key: key, Payload: payload, CreatedAt: time.Now(), TTL: time.Hour}))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, payload, got.Payload, key)
	}

	var stored int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT LENGTH(payload) FROM provider_cache WHERE cache_key = ?", "top-releases:a").Scan(&stored))
	assert.Less(t, stored, len(large)/4)
}
