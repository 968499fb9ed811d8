// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/gamarr/internal/dbinterface"
	"github.com/autobrr/gamarr/pkg/titles"
)

var (
	ErrCollectionItemNotFound = errors.New("collection item not found")
	ErrCollectionItemExists   = errors.New("collection item already exists")
)

// upsertChunkSize keeps each statement under SQLite's variable limit.
const upsertChunkSize = 100

// CollectionItem is a game the user already owns.
type CollectionItem struct {
	ExternalID      string    `json:"externalId"`
	Provider        string    `json:"provider"`
	Title           string    `json:"title"`
	NormalizedTitle string    `json:"normalizedTitle"`
	Platform        string    `json:"platform,omitempty"`
	ReleaseYear     int       `json:"releaseYear,omitempty"`
	AddedAt         time.Time `json:"addedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type CollectionStore struct {
	db dbinterface.Querier
}

func NewCollectionStore(db dbinterface.Querier) *CollectionStore {
	return &CollectionStore{db: db}
}

const collectionColumns = `external_id, provider, title, normalized_title, platform, release_year, added_at, updated_at`

func (item *CollectionItem) prepare() error {
	item.ExternalID = strings.TrimSpace(item.ExternalID)
	item.Title = strings.TrimSpace(item.Title)
	if item.ExternalID == "" {
		return errors.New("collection item requires an external id")
	}
	if item.Title == "" {
		return errors.New("collection item requires a title")
	}
	if item.NormalizedTitle == "" {
		item.NormalizedTitle = titles.Normalize(item.Title)
	}
	return nil
}

// Add inserts a new item and fails with ErrCollectionItemExists on duplicates.
func (s *CollectionStore) Add(ctx context.Context, item CollectionItem) (*CollectionItem, error) {
	if err := item.prepare(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO collection_items (external_id, provider, title, normalized_title, platform, release_year)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		item.ExternalID,
		item.Provider,
		item.Title,
		item.NormalizedTitle,
		item.Platform,
		item.ReleaseYear,
	); err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrCollectionItemExists
		}
		return nil, fmt.Errorf("failed to add collection item: %w", err)
	}

	return s.FindByExternalID(ctx, item.ExternalID)
}

// Upsert inserts or refreshes items in chunks and returns how many were
// written. Items are validated up front; when the store runs on a database
// that supports transactions the whole import commits or fails together.
func (s *CollectionStore) Upsert(ctx context.Context, items []CollectionItem) (int, error) {
	prepared := make([]CollectionItem, len(items))
	for i, item := range items {
		if err := item.prepare(); err != nil {
			return 0, fmt.Errorf("item %d: %w", i, err)
		}
		prepared[i] = item
	}
	if len(prepared) == 0 {
		return 0, nil
	}

	txer, ok := s.db.(dbinterface.Transactor)
	if !ok {
		return upsertChunks(ctx, s.db, prepared)
	}

	var written int
	err := txer.WithTx(ctx, func(tx dbinterface.Querier) error {
		n, err := upsertChunks(ctx, tx, prepared)
		written = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("collection import: %w", err)
	}
	return written, nil
}

func upsertChunks(ctx context.Context, q dbinterface.Querier, items []CollectionItem) (int, error) {
	written := 0
	for start := 0; start < len(items); start += upsertChunkSize {
		chunk := items[start:min(start+upsertChunkSize, len(items))]

		args := make([]any, 0, len(chunk)*6)
		for _, item := range chunk {
			args = append(args, item.ExternalID, item.Provider, item.Title, item.NormalizedTitle, item.Platform, item.ReleaseYear)
		}

		query := `
			INSERT INTO collection_items (external_id, provider, title, normalized_title, platform, release_year)
			VALUES ` + dbinterface.ValuesClause(6, len(chunk)) + `
			ON CONFLICT(external_id) DO UPDATE SET
				provider = excluded.provider,
				title = excluded.title,
				normalized_title = excluded.normalized_title,
				platform = excluded.platform,
				release_year = excluded.release_year
		`

		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("failed to upsert collection items: %w", err)
		}
		written += len(chunk)
	}
	return written, nil
}

func (s *CollectionStore) FindByExternalID(ctx context.Context, externalID string) (*CollectionItem, error) {
	query := `SELECT ` + collectionColumns + ` FROM collection_items WHERE external_id = ?`

	item, err := scanCollectionItem(s.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCollectionItemNotFound
		}
		return nil, fmt.Errorf("failed to get collection item: %w", err)
	}
	return item, nil
}

// FindAllIDs returns the set of owned external ids.
func (s *CollectionStore) FindAllIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT external_id FROM collection_items`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan collection id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection ids: %w", err)
	}
	return ids, nil
}

// FindOwnedIDs returns the subset of externalIDs present in the collection.
func (s *CollectionStore) FindOwnedIDs(ctx context.Context, externalIDs []string) (map[string]struct{}, error) {
	owned := make(map[string]struct{})
	for start := 0; start < len(externalIDs); start += upsertChunkSize {
		chunk := externalIDs[start:min(start+upsertChunkSize, len(externalIDs))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		query := `SELECT external_id FROM collection_items WHERE external_id IN (` + dbinterface.InClause(len(chunk)) + `)`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to look up collection ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan collection id: %w", err)
			}
			owned[id] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate collection ids: %w", err)
		}
	}
	return owned, nil
}

// FindByTitle matches on the normalized title.
func (s *CollectionStore) FindByTitle(ctx context.Context, title string) ([]*CollectionItem, error) {
	query := `SELECT ` + collectionColumns + ` FROM collection_items WHERE normalized_title = ? ORDER BY title`
	return s.query(ctx, query, titles.Normalize(title))
}

func (s *CollectionStore) List(ctx context.Context) ([]*CollectionItem, error) {
	query := `SELECT ` + collectionColumns + ` FROM collection_items ORDER BY title COLLATE NOCASE, external_id`
	return s.query(ctx, query)
}

func (s *CollectionStore) Delete(ctx context.Context, externalID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM collection_items WHERE external_id = ?`, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete collection item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCollectionItemNotFound
	}
	return nil
}

func (s *CollectionStore) query(ctx context.Context, query string, args ...any) ([]*CollectionItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection items: %w", err)
	}
	defer rows.Close()

	var items []*CollectionItem
	for rows.Next() {
		item, err := scanCollectionItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection items: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollectionItem(row rowScanner) (*CollectionItem, error) {
	var item CollectionItem
	if err := row.Scan(
		&item.ExternalID,
		&item.Provider,
		&item.Title,
		&item.NormalizedTitle,
		&item.Platform,
		&item.ReleaseYear,
		&item.AddedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
