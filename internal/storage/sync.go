package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// RecordKind names the table a mirrored row comes from.
type RecordKind string

const (
	KindTransaction RecordKind = "transaction"
	KindExpense     RecordKind = "expense"
)

// New rows start as "pending" (column default).
const (
	syncDone  = "synced"
	syncError = "error"
)

func (k RecordKind) table() (string, error) {
	switch k {
	case KindTransaction:
		return "transactions", nil
	case KindExpense:
		return "expenses", nil
	default:
		return "", fmt.Errorf("unknown record kind %q", k)
	}
}

// PendingRecord identifies a row not yet mirrored to the spreadsheet.
type PendingRecord struct {
	Kind RecordKind
	ID   string
}

// PendingSync lists up to limit rows per kind that have not been mirrored,
// oldest first. Rows marked with an error are retried.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingRecord, error) {
	var out []PendingRecord
	for _, kind := range []RecordKind{KindTransaction, KindExpense} {
		table, _ := kind.table()
		rows, err := r.db.QueryContext(ctx,
			`SELECT id FROM `+table+` WHERE sync_status <> ? ORDER BY occurred_at LIMIT ?`, syncDone, limit)
		if err != nil {
			return nil, fmt.Errorf("get pending %s: %w", table, err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan pending %s: %w", table, err)
			}
			out = append(out, PendingRecord{Kind: kind, ID: id})
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MarkSynced marks a row as mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, kind RecordKind, id string) error {
	if err := r.setSyncStatus(ctx, kind, id, syncDone); err != nil {
		return fmt.Errorf("mark %s synced: %w", kind, err)
	}
	slog.DebugContext(ctx, "Record marked as synced", "kind", kind, "id", id)
	return nil
}

// MarkSyncError records a failed mirror attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, kind RecordKind, id string) error {
	if err := r.setSyncStatus(ctx, kind, id, syncError); err != nil {
		return fmt.Errorf("mark %s sync error: %w", kind, err)
	}
	slog.WarnContext(ctx, "Record marked with sync error", "kind", kind, "id", id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, kind RecordKind, id, status string) error {
	table, err := kind.table()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE `+table+` SET sync_status = ? WHERE id = ?`, status, id)
	return err
}
