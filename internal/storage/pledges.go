package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"harambee/internal/core"
	"harambee/internal/ledger"
)

const pledgeColumns = `id, name, department, amount_cents, created_at`

func scanPledge(row scanner) (core.Pledge, error) {
	var (
		p       core.Pledge
		created string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Department, &p.Amount.Cents, &created); err != nil {
		return core.Pledge{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.Pledge{}, err
	}
	p.CreatedAt = t
	return p, nil
}

func queryPledges(ctx context.Context, q querier, tail string, args ...any) ([]core.Pledge, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+pledgeColumns+` FROM pledges `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query pledges: %w", err)
	}
	defer rows.Close()

	out := []core.Pledge{}
	for rows.Next() {
		p, err := scanPledge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pledge: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindPledge(ctx context.Context, name, department string) (core.Pledge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+pledgeColumns+` FROM pledges WHERE name_key = ? AND department_key = ?`,
		foldKey(name), foldKey(department))
	p, err := scanPledge(row)
	if err != nil {
		return core.Pledge{}, notFound(err)
	}
	return p, nil
}

func (r *SQLiteRepository) GetPledge(ctx context.Context, id string) (core.Pledge, error) {
	p, err := scanPledge(r.db.QueryRowContext(ctx, `SELECT `+pledgeColumns+` FROM pledges WHERE id = ?`, id))
	if err != nil {
		return core.Pledge{}, notFound(err)
	}
	return p, nil
}

// AddPledge inserts p or adds its amount to the pledge already held by the
// same name and department.
func (r *SQLiteRepository) AddPledge(ctx context.Context, p core.Pledge) (core.Pledge, error) {
	if err := p.Validate(); err != nil {
		return core.Pledge{}, err
	}
	var out core.Pledge
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanPledge(tx.QueryRowContext(ctx,
			`SELECT `+pledgeColumns+` FROM pledges WHERE name_key = ? AND department_key = ?`,
			foldKey(p.Name), foldKey(p.Department)))
		switch {
		case err == nil:
			existing.Amount = existing.Amount.Add(p.Amount)
			if _, err := tx.ExecContext(ctx, `UPDATE pledges SET amount_cents = ? WHERE id = ?`, existing.Amount.Cents, existing.ID); err != nil {
				return fmt.Errorf("accumulate pledge: %w", err)
			}
			out = existing
			return nil
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("find pledge: %w", err)
		}

		p.Name = strings.TrimSpace(p.Name)
		p.Department = strings.TrimSpace(p.Department)
		if p.ID == "" {
			p.ID = ledger.NewID()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = r.now()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pledges (id, name, name_key, department, department_key, amount_cents, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, foldKey(p.Name), p.Department, foldKey(p.Department), p.Amount.Cents, formatTime(p.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert pledge: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		out = p
		return nil
	})
	if err != nil {
		return core.Pledge{}, err
	}
	slog.DebugContext(ctx, "Pledge saved to SQLite", "id", out.ID, "amount_cents", out.Amount.Cents)
	return out, nil
}

func (r *SQLiteRepository) UpdatePledge(ctx context.Context, p core.Pledge) (core.Pledge, error) {
	if err := p.Validate(); err != nil {
		return core.Pledge{}, err
	}
	var out core.Pledge
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := scanPledge(tx.QueryRowContext(ctx, `SELECT `+pledgeColumns+` FROM pledges WHERE id = ?`, p.ID))
		if err != nil {
			return notFound(err)
		}

		var other string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM pledges WHERE name_key = ? AND department_key = ? AND id <> ?`,
			foldKey(p.Name), foldKey(p.Department), p.ID).Scan(&other)
		if err == nil {
			return ledger.ErrConflict
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check pledge owner: %w", err)
		}

		cur.Name = strings.TrimSpace(p.Name)
		cur.Department = strings.TrimSpace(p.Department)
		cur.Amount = p.Amount
		if _, err := tx.ExecContext(ctx,
			`UPDATE pledges SET name = ?, name_key = ?, department = ?, department_key = ?, amount_cents = ? WHERE id = ?`,
			cur.Name, foldKey(cur.Name), cur.Department, foldKey(cur.Department), cur.Amount.Cents, cur.ID,
		); err != nil {
			return fmt.Errorf("update pledge: %w", err)
		}
		out = cur
		return nil
	})
	if err != nil {
		return core.Pledge{}, err
	}
	return out, nil
}

// DeletePledge removes the pledge and its transactions in one transaction.
func (r *SQLiteRepository) DeletePledge(ctx context.Context, id string) (int, error) {
	var removed int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE pledge_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete pledge transactions: %w", err)
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM pledges WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete pledge: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ledger.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Pledge deleted", "id", id, "transactions_removed", removed)
	return int(removed), nil
}
