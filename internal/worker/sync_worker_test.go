package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harambee/internal/amqp"
	"harambee/internal/core"
	"harambee/internal/sheets/memory"
	"harambee/internal/storage"
)

var fixedNow = time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo   *storage.SQLiteRepository
	sheet  *memory.Sheet
	worker *SyncWorker
	tx     core.Transaction
	exp    core.Expense
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "w.db"),
		storage.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	p, err := repo.AddPledge(ctx, core.Pledge{Name: "Jane", Department: "Youth", Amount: core.Money{Cents: 50000}})
	require.NoError(t, err)
	tx, err := repo.AddTransaction(ctx, core.Transaction{
		PledgeID: p.ID, Name: "Jane", Department: "Youth", Amount: core.Money{Cents: 50000},
		Direction: core.Credit, Method: core.MethodMpesa, Reference: "QAB1CD2EF3", Timestamp: fixedNow,
	})
	require.NoError(t, err)
	e, err := repo.AddExpense(ctx, core.Expense{Description: "Tent", Amount: core.Money{Cents: 1000}, Category: "Logistics", Timestamp: fixedNow})
	require.NoError(t, err)

	sheet := memory.New(time.UTC)
	return &fixture{
		repo:   repo,
		sheet:  sheet,
		worker: NewSyncWorker(repo, sheet, 10, nil),
		tx:     tx,
		exp:    e,
	}
}

func TestHandleEventMirrorsAndMarks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.worker.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventTransactionRecorded, f.tx.ID)))
	require.NoError(t, f.worker.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventExpenseRecorded, f.exp.ID)))

	rows := f.sheet.TransactionRows()
	require.Len(t, rows, 1)
	require.Equal(t, "QAB1CD2EF3", rows[0][1])
	require.Len(t, f.sheet.ExpenseRows(), 1)

	pending, err := f.repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestHandleEventAcksSheetFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sheet.FailWith = errors.New("quota exceeded")

	require.NoError(t, f.worker.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventTransactionRecorded, f.tx.ID)))

	pending, err := f.repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Contains(t, pending, storage.PendingRecord{Kind: storage.KindTransaction, ID: f.tx.ID})

	f.sheet.FailWith = nil
	synced, err := f.worker.ProcessPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, synced)
	require.Len(t, f.sheet.TransactionRows(), 1)
}

func TestHandleEventIgnoresMissingAndUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.worker.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventTransactionRecorded, "gone")))
	require.NoError(t, f.worker.HandleEvent(ctx, amqp.LedgerEvent{Type: "pledge.recorded", ID: "x"}))
	require.Empty(t, f.sheet.TransactionRows())
}

func TestProcessPendingSkipsRowsAlreadyInSheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sheet.AppendTransaction(ctx, f.tx)
	require.NoError(t, err)

	synced, err := f.worker.ProcessPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, synced)
	require.Len(t, f.sheet.TransactionRows(), 1, "no second row for the same transaction")
	require.Len(t, f.sheet.ExpenseRows(), 1)

	synced, err = f.worker.ProcessPending(ctx)
	require.NoError(t, err)
	require.Zero(t, synced)
}

func TestStartupSyncCheck(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.worker.StartupSyncCheck(context.Background()))
	require.Len(t, f.sheet.TransactionRows(), 1)
	require.Len(t, f.sheet.ExpenseRows(), 1)
}

func TestReplayerLifecycle(t *testing.T) {
	f := newFixture(t)
	r := NewReplayer(f.worker, ReplayConfig{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, r.Start(ctx))
	require.True(t, r.IsRunning())
	require.Error(t, r.Start(ctx))

	require.Eventually(t, func() bool {
		return len(f.sheet.ExpenseRows()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))
	require.False(t, r.IsRunning())
	require.NoError(t, r.Stop(stopCtx))
}

func TestKindOf(t *testing.T) {
	k, err := kindOf(amqp.EventExpenseRecorded)
	require.NoError(t, err)
	require.Equal(t, storage.KindExpense, k)
	_, err = kindOf("other")
	require.Error(t, err)
}
