// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package dbinterface holds the query surface shared by the database
// package and the stores, plus placeholder helpers for SQLite.
package dbinterface

import (
	"context"
	"database/sql"
	"strings"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *database.DB.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Transactor runs fn in a single write transaction, committing when fn
// returns nil. Implemented by *database.DB.
type Transactor interface {
	Querier
	WithTx(ctx context.Context, fn func(tx Querier) error) error
}

// InClause returns n comma separated "?" markers for an IN (...) list.
func InClause(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ValuesClause returns rows groups of perRow markers, e.g. "(?, ?), (?, ?)",
// for a multi-row INSERT.
func ValuesClause(perRow, rows int) string {
	if perRow <= 0 || rows <= 0 {
		return ""
	}
	group := "(" + InClause(perRow) + ")"
	return strings.TrimSuffix(strings.Repeat(group+", ", rows), ", ")
}
