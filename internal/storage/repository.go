// Package storage is the SQLite backend of the ledger.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"harambee/internal/core"
	"harambee/internal/ledger"
)

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const seededKey = "seeded"

type SQLiteRepository struct {
	db    *sql.DB
	seeds []string
	now   func() time.Time
}

var _ ledger.Store = (*SQLiteRepository)(nil)

type Option func(*SQLiteRepository)

// WithSeedDepartments sets the departments of a fresh database and the list
// ResetDepartments restores.
func WithSeedDepartments(names []string) Option {
	return func(r *SQLiteRepository) {
		if len(names) > 0 {
			r.seeds = names
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) { r.now = now }
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath,
// applies migrations and seeds a fresh ledger.
func NewSQLiteRepository(ctx context.Context, dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers and keeps the pragmas below in effect.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	r := &SQLiteRepository{db: db, seeds: core.DefaultDepartments, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.seed(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Persist checkpoints the write-ahead log. Every write is already committed
// by the time it returns.
func (r *SQLiteRepository) Persist(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint wal: %w", err)
	}
	return nil
}

// seed inserts the default departments and the initial phase once per
// database.
func (r *SQLiteRepository) seed(ctx context.Context) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var v string
		err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, seededKey).Scan(&v)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read seed marker: %w", err)
		}

		if err := insertDepartments(ctx, tx, r.seeds); err != nil {
			return err
		}
		now := r.now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO phases (id, name, due_date, total_target_cents, department_targets) VALUES (?, ?, ?, ?, '{}')`,
			ledger.NewID(), "Initial Phase", formatTime(now.Truncate(24*time.Hour)), int64(1_000_000*100),
		); err != nil {
			return fmt.Errorf("insert initial phase: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, seededKey, formatTime(now)); err != nil {
			return fmt.Errorf("write seed marker: %w", err)
		}
		slog.InfoContext(ctx, "Seeded new ledger database", "departments", len(r.seeds))
		return nil
	})
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Snapshot reads the whole ledger inside one read transaction.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snap.Pledges, err = queryPledges(ctx, tx, `ORDER BY created_at, rowid`); err != nil {
			return err
		}
		if snap.Transactions, err = queryTransactions(ctx, tx, `ORDER BY rowid`); err != nil {
			return err
		}
		if snap.Expenses, err = queryExpenses(ctx, tx, `ORDER BY rowid`); err != nil {
			return err
		}
		if snap.Phases, err = queryPhases(ctx, tx); err != nil {
			return err
		}
		snap.Departments, err = queryDepartments(ctx, tx)
		return err
	})
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return snap, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

// foldKey is the case-insensitive lookup key for names and departments.
func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// notFound maps sql.ErrNoRows to ledger.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}
