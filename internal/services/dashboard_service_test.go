package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harambee/internal/core"
	"harambee/internal/ledger"
)

func at(h int) time.Time { return testNow.Add(time.Duration(h) * time.Hour) }

func sampleSnapshot() ledger.Snapshot {
	return ledger.Snapshot{
		Departments: []string{"Youth", "Eagles", "Guests"},
		Pledges: []core.Pledge{
			{ID: "p1", Name: "Jane", Department: "Youth", Amount: kes(1000)},
			{ID: "p2", Name: "John", Department: "youth", Amount: kes(500)},
			{ID: "p3", Name: "Ann", Department: "Eagles", Amount: kes(500)},
		},
		Transactions: []core.Transaction{
			{ID: "t1", PledgeID: "p1", Name: "Jane", Department: "Youth", Amount: kes(400), Method: core.MethodMpesa, Reference: "QAB1", Timestamp: at(1)},
			{ID: "t2", PledgeID: "p2", Name: "John", Department: "youth", Amount: kes(100), Method: core.MethodCash, Timestamp: at(2)},
			{ID: "t3", PledgeID: "p3", Name: "Ann", Department: "Eagles", Amount: kes(500), Method: core.MethodTill, Reference: "TILL-1234", Timestamp: at(3)},
			{ID: "t4", PledgeID: "p1", Name: "Jane", Department: "Youth", Amount: kes(50), Method: core.MethodCash, Reference: "Manual Cash", Timestamp: at(4)},
			{ID: "t5", PledgeID: "p1", Name: "Jane", Department: "Youth", Amount: kes(25), Method: core.MethodCash, Timestamp: at(5)},
			{ID: "t6", PledgeID: "p1", Name: "Jane", Department: "Youth", Amount: kes(25), Method: core.MethodCash, Timestamp: at(0)},
		},
		Expenses: []core.Expense{
			{ID: "e1", Description: "Tent", Category: "Logistics", Amount: kes(200), Timestamp: at(6)},
		},
		Phases: []core.Phase{
			{ID: "ph1", Name: "Foundation", TotalTarget: kes(1000)},
			{ID: "ph2", Name: "Roof", TotalTarget: kes(4000)},
			{ID: "ph3", Name: "Empty"},
		},
	}
}

func TestBuildDashboard(t *testing.T) {
	d := BuildDashboard(sampleSnapshot())

	require.Equal(t, kes(1100), d.Totals.Cash)
	require.Equal(t, kes(200), d.Totals.Expenses)
	require.Equal(t, kes(900), d.Totals.Net)
	require.Equal(t, kes(2000), d.Totals.Pledged)
	require.Equal(t, 45, d.Totals.CollectionRate)

	require.Len(t, d.Phases, 3)
	require.Equal(t, 100, d.Phases[0].Percent, "progress is capped")
	require.Equal(t, 28, d.Phases[1].Percent)
	require.Equal(t, 0, d.Phases[2].Percent)

	require.Len(t, d.Departments, 3)
	youth := d.Departments[0]
	require.Equal(t, "Youth", youth.Name)
	require.Equal(t, 2, youth.Members)
	require.Equal(t, kes(1500), youth.Pledged)
	require.Equal(t, kes(600), youth.Collected)
	require.Equal(t, 40, youth.Percent)
	require.Equal(t, kes(900), youth.Balance)

	require.Equal(t, 100, d.Departments[1].Percent)
	require.Equal(t, core.DepartmentSummary{Name: "Guests"}, d.Departments[2])

	require.Len(t, d.Recent, RecentActivityLimit)
	require.Equal(t, "t5", d.Recent[0].ID)
	require.Equal(t, "t1", d.Recent[4].ID)
}

func TestBuildDashboardEmpty(t *testing.T) {
	d := BuildDashboard(ledger.Snapshot{})
	require.Zero(t, d.Totals.CollectionRate)
	require.Empty(t, d.Recent)
	require.NotNil(t, d.Phases)
	require.NotNil(t, d.Departments)
}

func TestBuildLedger(t *testing.T) {
	entries := BuildLedger(sampleSnapshot())
	require.Len(t, entries, 7)

	require.Equal(t, core.LedgerEntry{
		ID: "e1", Kind: core.EntryExpense, Timestamp: at(6),
		Ref: "Logistics", Name: "Tent", Amount: kes(200),
	}, entries[0])
	require.Equal(t, "t5", entries[1].ID)
	require.Equal(t, "Cash", entries[1].Ref, "method label when no reference")
	require.Equal(t, core.EntryIncome, entries[1].Kind)
	require.Equal(t, "t6", entries[6].ID)

	byID := map[string]core.LedgerEntry{}
	for _, e := range entries {
		byID[e.ID] = e
	}
	require.Equal(t, "QAB1", byID["t1"].Ref)
	require.Equal(t, "Jane", byID["t1"].Name)
}

func TestDashboardServiceUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Pledges.Create(ctx, "Jane", "Youth", kes(1000))
	require.NoError(t, err)

	first, err := f.svc.Dashboard.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, kes(1000), first.Totals.Pledged)

	// Writes that bypass the services are not seen until the cache is purged.
	_, err = f.store.AddPledge(ctx, core.Pledge{Name: "John", Department: "Youth", Amount: kes(500)})
	require.NoError(t, err)
	cached, err := f.svc.Dashboard.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, kes(1000), cached.Totals.Pledged)

	_, err = f.svc.Expenses.Record(ctx, core.Expense{Description: "Tent", Amount: kes(10), Category: "Logistics"})
	require.NoError(t, err)
	fresh, err := f.svc.Dashboard.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, kes(1500), fresh.Totals.Pledged)
	require.Equal(t, kes(10), fresh.Totals.Expenses)

	entries, err := f.svc.Dashboard.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
