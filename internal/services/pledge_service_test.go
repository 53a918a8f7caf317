package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harambee/internal/amqp"
	"harambee/internal/core"
	"harambee/internal/ledger"
)

func TestPledgeCreateAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Pledges.Create(ctx, " Jane ", "Choir", kes(1000))
	require.NoError(t, err)
	require.Equal(t, "Jane", p.Name)
	require.True(t, p.CreatedAt.Equal(testNow))

	again, err := f.svc.Pledges.Create(ctx, "jane", "choir", kes(500))
	require.NoError(t, err)
	require.Equal(t, p.ID, again.ID)
	require.Equal(t, kes(1500), again.Amount)

	depts, err := f.svc.Departments.List(ctx)
	require.NoError(t, err)
	require.Contains(t, depts, "Choir")
}

func TestPledgeCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		payer   string
		dept    string
		amount  core.Money
		wantErr error
	}{
		{"empty name", " ", "Youth", kes(1), core.ErrEmptyName},
		{"empty department", "Jane", "", kes(1), core.ErrEmptyDepartment},
		{"zero amount", "Jane", "Youth", core.Money{}, core.ErrInvalidAmount},
		{"negative amount", "Jane", "Youth", core.Money{Cents: -5}, core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Pledges.Create(ctx, tt.payer, tt.dept, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPledgeUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	jane, err := f.svc.Pledges.Create(ctx, "Jane", "Youth", kes(1000))
	require.NoError(t, err)
	_, err = f.svc.Pledges.Create(ctx, "John", "Youth", kes(1000))
	require.NoError(t, err)

	jane.Amount = kes(2000)
	jane.Department = "Eagles"
	updated, err := f.svc.Pledges.Update(ctx, jane)
	require.NoError(t, err)
	require.Equal(t, kes(2000), updated.Amount)
	require.Equal(t, "Eagles", updated.Department)

	jane.Name, jane.Department = "JOHN", "youth"
	_, err = f.svc.Pledges.Update(ctx, jane)
	require.ErrorIs(t, err, ledger.ErrConflict)

	_, err = f.svc.Pledges.Update(ctx, core.Pledge{ID: "missing", Name: "X", Department: "Y", Amount: kes(1)})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestPledgeDeleteRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Pledges.Create(ctx, "Jane", "Youth", kes(1000))
	require.NoError(t, err)
	_, err = f.svc.Pledges.RecordCashForPledge(ctx, p.ID, kes(200), "", time.Time{})
	require.NoError(t, err)

	_, err = f.svc.Pledges.Delete(ctx, p.ID, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	var confirmErr *ConfirmationRequiredError
	require.True(t, errors.As(err, &confirmErr))
	require.Equal(t, 1, confirmErr.Payments)

	removed, err := f.svc.Pledges.Delete(ctx, p.ID, true)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Pledges)
	require.Empty(t, snap.Transactions)

	_, err = f.svc.Pledges.Delete(ctx, p.ID, true)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestPledgeDeleteWithoutPaymentsNeedsNoConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Pledges.Create(ctx, "Jane", "Youth", kes(1000))
	require.NoError(t, err)
	removed, err := f.svc.Pledges.Delete(ctx, p.ID, false)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestPledgeListStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid, _ := f.svc.Pledges.Create(ctx, "Anne", "Youth", kes(100))
	partial, _ := f.svc.Pledges.Create(ctx, "Bob", "Eagles", kes(100))
	_, _ = f.svc.Pledges.Create(ctx, "Carol", "Eagles", kes(100))

	_, err := f.svc.Pledges.RecordCashForPledge(ctx, paid.ID, kes(150), "", time.Time{})
	require.NoError(t, err)
	_, err = f.svc.Pledges.RecordCashForPledge(ctx, partial.ID, kes(40), "", time.Time{})
	require.NoError(t, err)

	list, err := f.svc.Pledges.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	require.Equal(t, "Bob", list[0].Name)
	require.Equal(t, core.StatusPartial, list[0].Status)
	require.Equal(t, kes(60), list[0].Balance)

	require.Equal(t, "Carol", list[1].Name)
	require.Equal(t, core.StatusOutstanding, list[1].Status)

	require.Equal(t, "Anne", list[2].Name)
	require.Equal(t, core.StatusPaid, list[2].Status)
	require.Equal(t, core.Money{Cents: -5000}, list[2].Balance)
	require.Equal(t, 1, list[2].Payments)

	one, err := f.svc.Pledges.Get(ctx, partial.ID)
	require.NoError(t, err)
	require.Equal(t, kes(40), one.Paid)

	_, err = f.svc.Pledges.Get(ctx, "missing")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestRecordCashCreatesPledgeAndDefaultsReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.svc.Pledges.RecordCash(ctx, CashPayment{Name: "Jane", Department: "Youth", Amount: kes(300)})
	require.NoError(t, err)
	require.Equal(t, core.MethodCash, tx.Method)
	require.Equal(t, DefaultCashReference, tx.Reference)
	require.True(t, tx.Timestamp.Equal(testNow))

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Pledges, 1)
	require.Equal(t, kes(300), snap.Pledges[0].Amount)
	require.Equal(t, tx.PledgeID, snap.Pledges[0].ID)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	require.Equal(t, amqp.EventTransactionRecorded, events[0].Type)
}

func TestRecordCashDuplicateWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pay := CashPayment{Name: "Jane", Department: "Youth", Amount: kes(300), Reference: "R1"}
	_, err := f.svc.Pledges.RecordCash(ctx, pay)
	require.NoError(t, err)

	f.now = testNow.Add(90 * time.Second)
	_, err = f.svc.Pledges.RecordCash(ctx, CashPayment{Name: "JANE", Department: "youth", Amount: kes(300)})
	require.ErrorIs(t, err, ErrDuplicatePayment)
	require.Contains(t, err.Error(), "duplicate: same amount from JANE (youth) within 2m0s")

	f.now = testNow.Add(2 * time.Minute)
	_, err = f.svc.Pledges.RecordCash(ctx, pay)
	require.NoError(t, err, "the window is exclusive")

	snap, _ := f.store.Snapshot(ctx)
	require.Len(t, snap.Transactions, 2)
}

func TestRecordCashValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Pledges.RecordCash(ctx, CashPayment{Department: "Youth", Amount: kes(1)})
	require.ErrorIs(t, err, core.ErrEmptyName)
	_, err = f.svc.Pledges.RecordCash(ctx, CashPayment{Name: "Jane", Amount: kes(1)})
	require.ErrorIs(t, err, core.ErrEmptyDepartment)
	_, err = f.svc.Pledges.RecordCash(ctx, CashPayment{Name: "Jane", Department: "Youth"})
	require.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = f.svc.Pledges.RecordCashForPledge(ctx, "missing", kes(1), "", time.Time{})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTransactionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, name := range []string{"A", "B", "C"} {
		_, err := f.svc.Pledges.RecordCash(ctx, CashPayment{
			Name: name, Department: "Youth", Amount: kes(10),
			Timestamp: testNow.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	txs, err := f.svc.Pledges.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Equal(t, "C", txs[0].Name)
	require.Equal(t, "A", txs[2].Name)
}
