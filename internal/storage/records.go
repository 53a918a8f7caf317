package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"harambee/internal/core"
	"harambee/internal/ledger"
)

const (
	transactionColumns = `id, pledge_id, name, department, amount_cents, direction, method, reference, occurred_at`
	expenseColumns     = `id, description, amount_cents, category, occurred_at`
)

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		tx core.Transaction
		at string
	)
	if err := row.Scan(&tx.ID, &tx.PledgeID, &tx.Name, &tx.Department, &tx.Amount.Cents,
		&tx.Direction, &tx.Method, &tx.Reference, &at); err != nil {
		return core.Transaction{}, err
	}
	t, err := parseTime(at)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Timestamp = t
	return tx, nil
}

func queryTransactions(ctx context.Context, q querier, tail string, args ...any) ([]core.Transaction, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// AddTransaction records a credit against an existing pledge.
func (r *SQLiteRepository) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = ledger.NewID()
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM pledges WHERE id = ?`, t.PledgeID).Scan(&one); err != nil {
			return fmt.Errorf("pledge %s: %w", t.PledgeID, notFound(err))
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.PledgeID, t.Name, t.Department, t.Amount.Cents, t.Direction, t.Method, t.Reference, formatTime(t.Timestamp))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	t.Timestamp = t.Timestamp.UTC()
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"pledge_id", t.PledgeID,
		"amount_cents", t.Amount.Cents,
		"method", t.Method)
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return core.Transaction{}, notFound(err)
	}
	return tx, nil
}

func scanExpense(row scanner) (core.Expense, error) {
	var (
		e  core.Expense
		at string
	)
	if err := row.Scan(&e.ID, &e.Description, &e.Amount.Cents, &e.Category, &at); err != nil {
		return core.Expense{}, err
	}
	t, err := parseTime(at)
	if err != nil {
		return core.Expense{}, err
	}
	e.Timestamp = t
	return e, nil
}

func queryExpenses(ctx context.Context, q querier, tail string, args ...any) ([]core.Expense, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.ID == "" {
		e.ID = ledger.NewID()
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Description, e.Amount.Cents, e.Category, formatTime(e.Timestamp),
	); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	e.Timestamp = e.Timestamp.UTC()
	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents)
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if err != nil {
		return core.Expense{}, notFound(err)
	}
	return e, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "expenses", id)
}

func (r *SQLiteRepository) deleteByID(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// Phases

func queryPhases(ctx context.Context, q querier) ([]core.Phase, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, due_date, total_target_cents, department_targets FROM phases ORDER BY due_date, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query phases: %w", err)
	}
	defer rows.Close()

	out := []core.Phase{}
	for rows.Next() {
		var (
			p       core.Phase
			due     string
			targets string
		)
		if err := rows.Scan(&p.ID, &p.Name, &due, &p.TotalTarget.Cents, &targets); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		if p.DueDate, err = parseTime(due); err != nil {
			return nil, err
		}
		p.DepartmentTargets = map[string]core.Money{}
		if err := json.Unmarshal([]byte(targets), &p.DepartmentTargets); err != nil {
			return nil, fmt.Errorf("decode targets of phase %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddPhase(ctx context.Context, p core.Phase) (core.Phase, error) {
	if err := p.Validate(); err != nil {
		return core.Phase{}, err
	}
	if p.ID == "" {
		p.ID = ledger.NewID()
	}
	if p.DepartmentTargets == nil {
		p.DepartmentTargets = map[string]core.Money{}
	}
	if p.TotalTarget.Cents == 0 {
		p.TotalTarget = core.SumTargets(p.DepartmentTargets)
	}
	targets, err := json.Marshal(p.DepartmentTargets)
	if err != nil {
		return core.Phase{}, fmt.Errorf("encode targets: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO phases (id, name, due_date, total_target_cents, department_targets) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, formatTime(p.DueDate), p.TotalTarget.Cents, string(targets),
	); err != nil {
		return core.Phase{}, fmt.Errorf("insert phase: %w", err)
	}
	p.DueDate = p.DueDate.UTC()
	return p, nil
}

func (r *SQLiteRepository) DeletePhase(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "phases", id)
}
