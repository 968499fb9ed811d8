// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package database provides the SQLite layer behind the provider cache and
// the collection store. Writes and write transactions are serialized on one
// goroutine owning a dedicated connection; reads use the pool with cached
// prepared statements.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"

	"github.com/autobrr/gamarr/internal/dbinterface"
)

var ErrClosing = errors.New("database is closing")

const (
	busyTimeout    = 5 * time.Second
	setupTimeout   = 5 * time.Second
	stmtTTL        = 5 * time.Minute
	writeQueueSize = 64
)

var connectionPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
}

// writeFunc runs on the writer goroutine against the write connection.
type writeFunc func(ctx context.Context, conn *sql.Conn) (sql.Result, error)

type writeJob struct {
	ctx  context.Context
	run  writeFunc
	done chan writeOutcome
}

type writeOutcome struct {
	result sql.Result
	err    error
}

type DB struct {
	pool   *sql.DB
	writer *sql.Conn
	jobs   chan writeJob
	stmts  *ttlcache.Cache[string, *sql.Stmt]

	quit      chan struct{}
	wg        sync.WaitGroup
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var hookOnce sync.Once

// registerPragmaHook applies connectionPragmas to every connection the
// driver opens, including ones the pool creates later.
func registerPragmaHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
			defer cancel()
			for _, pragma := range connectionPragmas {
				if _, err := conn.ExecContext(ctx, pragma, nil); err != nil {
					return fmt.Errorf("apply %q: %w", pragma, err)
				}
			}
			return nil
		})
	})
}

// New opens (creating if needed) the database at path and applies pending
// migrations.
func New(path string) (*DB, error) {
	log.Info().Msgf("Initializing database at: %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	registerPragmaHook()
	pool, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	db := &DB{
		pool:  pool,
		jobs:  make(chan writeJob, writeQueueSize),
		quit:  make(chan struct{}),
		stmts: newStmtCache(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	// migrations run on a single connection before the writer exists
	pool.SetMaxOpenConns(1)
	if err := db.migrate(ctx, migrationsFS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	pool.SetMaxOpenConns(0)
	pool.SetMaxIdleConns(2)

	if db.writer, err = pool.Conn(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to acquire write connection: %w", err)
	}

	db.wg.Add(1)
	go db.runWriter()

	return db, nil
}

func newStmtCache() *ttlcache.Cache[string, *sql.Stmt] {
	return ttlcache.New(ttlcache.Options[string, *sql.Stmt]{}.
		SetDefaultTTL(stmtTTL).
		SetDeallocationFunc(func(_ string, stmt *sql.Stmt, _ ttlcache.DeallocationReason) {
			if stmt != nil {
				_ = stmt.Close()
			}
		}))
}

func (db *DB) prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := db.stmts.Get(query); ok && stmt != nil {
		return stmt, nil
	}
	stmt, err := db.pool.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	db.stmts.Set(query, stmt, ttlcache.DefaultTTL)
	return stmt, nil
}

var writeKeywords = map[string]struct{}{
	"INSERT":  {},
	"UPDATE":  {},
	"UPSERT":  {},
	"REPLACE": {},
	"DELETE":  {},
}

// isWriteQuery looks at the leading keyword only.
func isWriteQuery(query string) bool {
	q := strings.TrimLeftFunc(query, unicode.IsSpace)
	if end := strings.IndexFunc(q, func(r rune) bool { return !unicode.IsLetter(r) }); end >= 0 {
		q = q[:end]
	}
	_, ok := writeKeywords[strings.ToUpper(q)]
	return ok
}

// ExecContext sends data-modifying statements to the writer goroutine and
// runs everything else on the pool.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if !isWriteQuery(query) {
		if stmt, err := db.prepared(ctx, query); err == nil {
			return stmt.ExecContext(ctx, args...)
		}
		return db.pool.ExecContext(ctx, query, args...)
	}
	return db.submit(ctx, func(ctx context.Context, conn *sql.Conn) (sql.Result, error) {
		return conn.ExecContext(ctx, query, args...)
	})
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if stmt, err := db.prepared(ctx, query); err == nil {
		return stmt.QueryContext(ctx, args...)
	}
	return db.pool.QueryContext(ctx, query, args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if stmt, err := db.prepared(ctx, query); err == nil {
		return stmt.QueryRowContext(ctx, args...)
	}
	return db.pool.QueryRowContext(ctx, query, args...)
}

// WithTx runs fn inside one write transaction on the writer goroutine and
// commits when fn returns nil. fn must use the Querier it is given; calling
// back into db for writes would wait on itself.
func (db *DB) WithTx(ctx context.Context, fn func(tx dbinterface.Querier) error) error {
	_, err := db.submit(ctx, func(ctx context.Context, conn *sql.Conn) (sql.Result, error) {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}

func (db *DB) submit(ctx context.Context, run writeFunc) (sql.Result, error) {
	if db.closing.Load() {
		return nil, ErrClosing
	}

	job := writeJob{ctx: ctx, run: run, done: make(chan writeOutcome, 1)}
	select {
	case db.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-db.quit:
		return nil, ErrClosing
	}

	select {
	case out := <-job.done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (db *DB) runWriter() {
	defer db.wg.Done()
	for {
		select {
		case job := <-db.jobs:
			db.execute(job)
		case <-db.quit:
			for {
				select {
				case job := <-db.jobs:
					db.execute(job)
				default:
					return
				}
			}
		}
	}
}

func (db *DB) execute(job writeJob) {
	out := writeOutcome{err: job.ctx.Err()}
	if out.err == nil {
		out.result, out.err = job.run(job.ctx, db.writer)
	}
	recordWrite(out.err)
	job.done <- out
}

// Close drains queued writes, then releases statements and connections.
// It is safe to call more than once.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		db.closing.Store(true)
		close(db.quit)
		db.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
		defer cancel()
		if _, err := db.pool.ExecContext(ctx, "PRAGMA optimize"); err != nil {
			log.Warn().Err(err).Msg("PRAGMA optimize failed on close")
		}

		db.stmts.Close()
		if db.writer != nil {
			if err := db.writer.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close write connection")
			}
		}
		db.closeErr = db.pool.Close()
	})
	return db.closeErr
}
