// Package memory is an in-process spreadsheet used for dry runs and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"harambee/internal/core"
	"harambee/internal/sheets"
)

// Sheet keeps appended rows in memory, keyed by tab.
type Sheet struct {
	mu           sync.Mutex
	loc          *time.Location
	transactions [][]any
	expenses     [][]any
	ids          map[string]struct{}
	// FailWith, when set, is returned by every append.
	FailWith error
}

var _ sheets.Mirror = (*Sheet)(nil)

func New(loc *time.Location) *Sheet {
	if loc == nil {
		loc = time.UTC
	}
	return &Sheet{loc: loc, ids: map[string]struct{}{}}
}

func (s *Sheet) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", errors.New("transaction has no ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return "", s.FailWith
	}
	s.transactions = append(s.transactions, sheets.TransactionRow(tx, s.loc))
	s.ids["t:"+tx.ID] = struct{}{}
	return fmt.Sprintf("mem:transactions:%d", len(s.transactions)), nil
}

func (s *Sheet) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if e.ID == "" {
		return "", errors.New("expense has no ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return "", s.FailWith
	}
	s.expenses = append(s.expenses, sheets.ExpenseRow(e, s.loc))
	s.ids["e:"+e.ID] = struct{}{}
	return fmt.Sprintf("mem:expenses:%d", len(s.expenses)), nil
}

func (s *Sheet) HasTransaction(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids["t:"+id]
	return ok, nil
}

func (s *Sheet) HasExpense(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids["e:"+id]
	return ok, nil
}

// TransactionRows returns a copy of the appended transaction rows.
func (s *Sheet) TransactionRows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transactions)
}

// ExpenseRows returns a copy of the appended expense rows.
func (s *Sheet) ExpenseRows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.expenses)
}
