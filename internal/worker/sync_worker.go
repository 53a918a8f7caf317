package worker

import (
	"context"
	"errors"
	"fmt"

	"harambee/internal/amqp"
	"harambee/internal/core"
	"harambee/internal/ledger"
	"harambee/internal/log"
	"harambee/internal/sheets"
	"harambee/internal/storage"
)

// RecordSource is the part of the SQLite store the mirror reads and marks.
type RecordSource interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	PendingSync(ctx context.Context, limit int) ([]storage.PendingRecord, error)
	MarkSynced(ctx context.Context, kind storage.RecordKind, id string) error
	MarkSyncError(ctx context.Context, kind storage.RecordKind, id string) error
}

var _ RecordSource = (*storage.SQLiteRepository)(nil)

// SyncWorker mirrors ledger rows from SQLite to the spreadsheet.
type SyncWorker struct {
	store     RecordSource
	sheet     sheets.Mirror
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(store RecordSource, sheet sheets.Mirror, batchSize int, logger *log.Logger) *SyncWorker {
	if batchSize < 1 {
		batchSize = 50
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		store:     store,
		sheet:     sheet,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent mirrors the record an event refers to. A failed append is
// recorded on the row and not returned, so the message is acknowledged
// and the replay loop retries it; only storage read failures are returned
// for redelivery.
func (w *SyncWorker) HandleEvent(ctx context.Context, event amqp.LedgerEvent) error {
	kind, err := kindOf(event.Type)
	if err != nil {
		w.logger.WarnContext(ctx, "Ignoring event", log.FieldError, err, log.FieldRecordID, event.ID)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger event", "type", event.Type, log.FieldRecordID, event.ID)

	err = w.mirror(ctx, storage.PendingRecord{Kind: kind, ID: event.ID}, false)
	switch {
	case err == nil, errors.Is(err, errAppend):
		return nil
	case errors.Is(err, ledger.ErrNotFound):
		// deleted before the mirror caught up
		w.logger.WarnContext(ctx, "Record no longer exists", "kind", kind, log.FieldRecordID, event.ID)
		return nil
	default:
		return err
	}
}

// ProcessPending mirrors up to one batch of rows that were never mirrored
// or failed before. Rows the sheet already holds are only marked synced.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced int, err error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck catches up on a larger batch after downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", log.FieldOperation, log.OpStartup, log.FieldCount, synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending records", log.FieldCount, len(pending))

	synced := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.mirror(ctx, rec, true); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror record",
				"kind", rec.Kind, log.FieldRecordID, rec.ID, log.FieldError, err)
			continue
		}
		synced++
	}
	return synced, nil
}

var errAppend = errors.New("append to sheet failed")

// mirror appends one record and marks it. With checkExisting the sheet is
// asked first, since a replayed row may already have been appended before
// its status was written.
func (w *SyncWorker) mirror(ctx context.Context, rec storage.PendingRecord, checkExisting bool) error {
	if checkExisting {
		present, err := w.has(ctx, rec)
		if err != nil {
			return w.failed(ctx, rec, err)
		}
		if present {
			return w.markSynced(ctx, rec, "already present")
		}
	}

	var ref string
	switch rec.Kind {
	case storage.KindTransaction:
		tx, err := w.store.GetTransaction(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("get transaction %s: %w", rec.ID, err)
		}
		ref, err = w.sheet.AppendTransaction(ctx, tx)
		if err != nil {
			return w.failed(ctx, rec, err)
		}
	case storage.KindExpense:
		e, err := w.store.GetExpense(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("get expense %s: %w", rec.ID, err)
		}
		ref, err = w.sheet.AppendExpense(ctx, e)
		if err != nil {
			return w.failed(ctx, rec, err)
		}
	default:
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
	return w.markSynced(ctx, rec, ref)
}

func (w *SyncWorker) has(ctx context.Context, rec storage.PendingRecord) (bool, error) {
	if rec.Kind == storage.KindExpense {
		return w.sheet.HasExpense(ctx, rec.ID)
	}
	return w.sheet.HasTransaction(ctx, rec.ID)
}

func (w *SyncWorker) failed(ctx context.Context, rec storage.PendingRecord, cause error) error {
	if markErr := w.store.MarkSyncError(ctx, rec.Kind, rec.ID); markErr != nil {
		w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldRecordID, rec.ID, log.FieldError, markErr)
	}
	return fmt.Errorf("%w: %w", errAppend, cause)
}

func (w *SyncWorker) markSynced(ctx context.Context, rec storage.PendingRecord, ref string) error {
	if err := w.store.MarkSynced(ctx, rec.Kind, rec.ID); err != nil {
		// The row is in the sheet; the next replay finds it there.
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldRecordID, rec.ID, log.FieldError, err)
		return nil
	}
	w.logger.InfoContext(ctx, "Record mirrored",
		log.FieldOperation, log.OpSync,
		"kind", rec.Kind,
		log.FieldRecordID, rec.ID,
		"sheets_ref", ref)
	return nil
}

func kindOf(t amqp.EventType) (storage.RecordKind, error) {
	switch t {
	case amqp.EventTransactionRecorded:
		return storage.KindTransaction, nil
	case amqp.EventExpenseRecorded:
		return storage.KindExpense, nil
	default:
		return "", fmt.Errorf("unknown event type %q", t)
	}
}
