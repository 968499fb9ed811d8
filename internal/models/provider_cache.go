// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/autobrr/gamarr/internal/dbinterface"
)

var ErrProviderCacheMiss = errors.New("provider cache entry not found")

// Payloads of at least compressMinBytes are stored as zstd frames. Frames
// are recognized by their magic number on read.
const compressMinBytes = 1024

var (
	zstdMagic      = []byte{0x28, 0xb5, 0x2f, 0xfd}
	payloadEncoder *zstd.Encoder
	payloadDecoder *zstd.Decoder
)

func init() {
	var err error
	if payloadEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		panic(err)
	}
	if payloadDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0)); err != nil {
		panic(err)
	}
}

// encodePayload compresses large payloads, and any payload that would
// otherwise be mistaken for a frame.
func encodePayload(p []byte) []byte {
	if len(p) < compressMinBytes && !bytes.HasPrefix(p, zstdMagic) {
		return p
	}
	return payloadEncoder.EncodeAll(p, make([]byte, 0, len(p)/4))
}

func decodePayload(p []byte) ([]byte, error) {
	if !bytes.HasPrefix(p, zstdMagic) {
		return p, nil
	}
	return payloadDecoder.DecodeAll(p, nil)
}

// ProviderCacheEntry is one serialized provider response. Rows are
// transient and safe to discard at any time.
type ProviderCacheEntry struct {
	Key       string
	Payload   []byte
	CreatedAt time.Time
	TTL       time.Duration
}

// ProviderCacheStats.Bytes counts stored, possibly compressed, bytes.
type ProviderCacheStats struct {
	Entries int   `json:"entries"`
	Expired int   `json:"expired"`
	Bytes   int64 `json:"bytes"`
}

type ProviderCacheStore struct {
	db dbinterface.Querier
}

func NewProviderCacheStore(db dbinterface.Querier) *ProviderCacheStore {
	return &ProviderCacheStore{db: db}
}

// Get returns the entry for key regardless of its age.
func (s *ProviderCacheStore) Get(ctx context.Context, key string) (*ProviderCacheEntry, error) {
	query := `
		SELECT cache_key, payload, created_at, ttl_ms
		FROM provider_cache
		WHERE cache_key = ?
	`

	var (
		entry     ProviderCacheEntry
		createdAt int64
		ttlMillis int64
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&entry.Key, &entry.Payload, &createdAt, &ttlMillis)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderCacheMiss
		}
		return nil, fmt.Errorf("failed to get provider cache entry: %w", err)
	}

	if entry.Payload, err = decodePayload(entry.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode provider cache entry %s: %w", key, err)
	}
	entry.CreatedAt = time.UnixMilli(createdAt)
	entry.TTL = time.Duration(ttlMillis) * time.Millisecond
	return &entry, nil
}

// Put stores entry, replacing any previous value for its key.
func (s *ProviderCacheStore) Put(ctx context.Context, entry *ProviderCacheEntry) error {
	if entry == nil || entry.Key == "" {
		return errors.New("provider cache entry requires a key")
	}

	query := `
		INSERT INTO provider_cache (cache_key, payload, created_at, ttl_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			ttl_ms = excluded.ttl_ms
	`

	if _, err := s.db.ExecContext(ctx, query,
		entry.Key,
		encodePayload(entry.Payload),
		entry.CreatedAt.UnixMilli(),
		entry.TTL.Milliseconds(),
	); err != nil {
		return fmt.Errorf("failed to store provider cache entry: %w", err)
	}
	return nil
}

func (s *ProviderCacheStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM provider_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete provider cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes entries whose age exceeds their TTL at now.
func (s *ProviderCacheStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM provider_cache WHERE created_at + ttl_ms < ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired provider cache entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Flush removes every entry.
func (s *ProviderCacheStore) Flush(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM provider_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to flush provider cache: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func (s *ProviderCacheStore) Stats(ctx context.Context, now time.Time) (ProviderCacheStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN created_at + ttl_ms < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(LENGTH(payload)), 0)
		FROM provider_cache
	`

	var stats ProviderCacheStats
	if err := s.db.QueryRowContext(ctx, query, now.UnixMilli()).Scan(&stats.Entries, &stats.Expired, &stats.Bytes); err != nil {
		return ProviderCacheStats{}, fmt.Errorf("failed to read provider cache stats: %w", err)
	}
	return stats, nil
}
