// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/autobrr/gamarr/internal/models"
)

// ErrMiss is returned by stores when a key has no entry.
var ErrMiss = errors.New("cache miss")

// Entry is a serialized value with its creation time and TTL.
type Entry struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the entry's age exceeds its TTL at now.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

type Stats struct {
	Entries int   `json:"entries"`
	Expired int   `json:"expired"`
	Bytes   int64 `json:"bytes"`
}

// Store persists entries. Implementations ignore expiry on Load.
type Store interface {
	Load(ctx context.Context, key string) (Entry, error)
	Save(ctx context.Context, entry Entry) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context, now time.Time) (Stats, error)
	Flush(ctx context.Context) (int64, error)
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrMiss
	}
	return e, nil
}

func (s *MemoryStore) Save(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Value = append([]byte(nil), entry.Value...)
	s.entries[entry.Key] = entry
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, e := range s.entries {
		stats.Entries++
		stats.Bytes += int64(len(e.Value))
		if e.Expired(now) {
			stats.Expired++
		}
	}
	return stats, nil
}

func (s *MemoryStore) Flush(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.entries))
	s.entries = make(map[string]Entry)
	return n, nil
}

// DBStore adapts the SQLite provider cache table.
type DBStore struct {
	store *models.ProviderCacheStore
}

func NewDBStore(store *models.ProviderCacheStore) *DBStore {
	return &DBStore{store: store}
}

func (s *DBStore) Load(ctx context.Context, key string) (Entry, error) {
	row, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrProviderCacheMiss) {
			return Entry{}, ErrMiss
		}
		return Entry{}, err
	}
	return Entry{Key: row.Key, Value: row.Payload, CreatedAt: row.CreatedAt, TTL: row.TTL}, nil
}

func (s *DBStore) Save(ctx context.Context, entry Entry) error {
	return s.store.Put(ctx, &models.ProviderCacheEntry{
		Key:       entry.Key,
		Payload:   entry.Value,
		CreatedAt: entry.CreatedAt,
		TTL:       entry.TTL,
	})
}

func (s *DBStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.store.DeleteExpired(ctx, now)
}

func (s *DBStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	st, err := s.store.Stats(ctx, now)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Entries: st.Entries, Expired: st.Expired, Bytes: st.Bytes}, nil
}

func (s *DBStore) Flush(ctx context.Context) (int64, error) {
	return s.store.Flush(ctx)
}
