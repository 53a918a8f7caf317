package services

import (
	"context"
	"fmt"
	"time"

	"harambee/internal/cache"
	"harambee/internal/core"
	"harambee/internal/ledger"
)

// RecentActivityLimit is how many transactions the dashboard lists.
const RecentActivityLimit = 5

const dashboardKey = "dashboard"

// DashboardService computes read-only aggregates over the ledger.
type DashboardService struct {
	store ledger.Reader
	cache *cache.LRUCache[core.Dashboard]
}

// Dashboard returns the overview, served from the cache when one is
// configured.
func (s *DashboardService) Dashboard(ctx context.Context) (core.Dashboard, error) {
	load := func() (core.Dashboard, error) {
		snap, err := s.store.Snapshot(ctx)
		if err != nil {
			return core.Dashboard{}, fmt.Errorf("load ledger: %w", err)
		}
		return BuildDashboard(snap), nil
	}
	if s.cache == nil {
		return load()
	}
	return s.cache.GetOrLoad(dashboardKey, load)
}

// Ledger returns income and expenses as one list, newest first.
func (s *DashboardService) Ledger(ctx context.Context) ([]core.LedgerEntry, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return BuildLedger(snap), nil
}

// BuildDashboard aggregates a snapshot.
func BuildDashboard(snap ledger.Snapshot) core.Dashboard {
	var t core.Totals
	for _, tx := range snap.Transactions {
		t.Cash = t.Cash.Add(tx.Amount)
	}
	for _, e := range snap.Expenses {
		t.Expenses = t.Expenses.Add(e.Amount)
	}
	for _, p := range snap.Pledges {
		t.Pledged = t.Pledged.Add(p.Amount)
	}
	t.Net = t.Cash.Sub(t.Expenses)
	t.CollectionRate = core.Percent(t.Net, t.Pledged)

	phases := make([]core.PhaseProgress, 0, len(snap.Phases))
	for _, p := range snap.Phases {
		phases = append(phases, core.PhaseProgress{
			ID:          p.ID,
			Name:        p.Name,
			DueDate:     p.DueDate,
			TotalTarget: p.TotalTarget,
			Percent:     min(100, core.Percent(t.Cash, p.TotalTarget)),
		})
	}

	depts := make([]core.DepartmentSummary, 0, len(snap.Departments))
	for _, name := range snap.Departments {
		d := core.DepartmentSummary{Name: name}
		for _, p := range snap.Pledges {
			if !core.SameName(p.Department, name) {
				continue
			}
			paid, _ := snap.PaidFor(p.ID)
			d.Members++
			d.Pledged = d.Pledged.Add(p.Amount)
			d.Collected = d.Collected.Add(paid)
		}
		d.Percent = core.Percent(d.Collected, d.Pledged)
		d.Balance = d.Pledged.Sub(d.Collected)
		depts = append(depts, d)
	}

	recent := append([]core.Transaction{}, snap.Transactions...)
	sortNewestFirst(recent, func(tx core.Transaction) time.Time { return tx.Timestamp })
	if len(recent) > RecentActivityLimit {
		recent = recent[:RecentActivityLimit]
	}

	return core.Dashboard{
		Totals:      t,
		Phases:      phases,
		Departments: depts,
		Recent:      recent,
	}
}

// BuildLedger merges transactions and expenses. Income rows show the
// payment reference, or the method label when there is none; expense rows
// show the category and description.
func BuildLedger(snap ledger.Snapshot) []core.LedgerEntry {
	out := make([]core.LedgerEntry, 0, len(snap.Transactions)+len(snap.Expenses))
	for _, tx := range snap.Transactions {
		ref := tx.Reference
		if ref == "" {
			ref = tx.Method.Label()
		}
		out = append(out, core.LedgerEntry{
			ID:        tx.ID,
			Kind:      core.EntryIncome,
			Timestamp: tx.Timestamp,
			Ref:       ref,
			Name:      tx.Name,
			Amount:    tx.Amount,
		})
	}
	for _, e := range snap.Expenses {
		out = append(out, core.LedgerEntry{
			ID:        e.ID,
			Kind:      core.EntryExpense,
			Timestamp: e.Timestamp,
			Ref:       e.Category,
			Name:      e.Description,
			Amount:    e.Amount,
		})
	}
	sortNewestFirst(out, func(e core.LedgerEntry) time.Time { return e.Timestamp })
	return out
}
