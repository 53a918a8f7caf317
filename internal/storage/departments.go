package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"harambee/internal/core"
)

func queryDepartments(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM departments ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertDepartment appends name unless its key is taken.
func insertDepartment(ctx context.Context, db execer, name string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO departments (name_key, name, position)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM departments))
		 ON CONFLICT (name_key) DO NOTHING`,
		foldKey(name), name)
	if err != nil {
		return false, fmt.Errorf("insert department %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func insertDepartments(ctx context.Context, db execer, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := insertDepartment(ctx, db, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) DepartmentExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM departments WHERE name_key = ?`, foldKey(name)).Scan(&n); err != nil {
		return false, fmt.Errorf("check department: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) RegisterDepartment(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, core.ErrEmptyDepartment
	}
	return insertDepartment(ctx, r.db, name)
}

func (r *SQLiteRepository) ListDepartments(ctx context.Context) ([]string, error) {
	return queryDepartments(ctx, r.db)
}

// ResetDepartments replaces the registry with the seed list.
func (r *SQLiteRepository) ResetDepartments(ctx context.Context) ([]string, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM departments`); err != nil {
			return fmt.Errorf("clear departments: %w", err)
		}
		return insertDepartments(ctx, tx, r.seeds)
	})
	if err != nil {
		return nil, err
	}
	return r.ListDepartments(ctx)
}
