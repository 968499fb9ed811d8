// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// mockQuerier wraps sql.DB to implement dbinterface.Querier for tests
type mockQuerier struct {
	*sql.DB
}

func newMockQuerier(db *sql.DB) *mockQuerier {
	return &mockQuerier{
		DB: db,
	}
}

const testSchema = `
	CREATE TABLE provider_cache (
		cache_key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		ttl_ms INTEGER NOT NULL
	);
	CREATE TABLE collection_items (
		external_id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		title TEXT NOT NULL,
		normalized_title TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		release_year INTEGER NOT NULL DEFAULT 0,
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
`

// setupTestDB opens a file-backed SQLite database with the store tables.
func setupTestDB(t *testing.T) *mockQuerier {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.ExecContext(t.Context(), testSchema)
	require.NoError(t, err)

	return newMockQuerier(sqlDB)
}
