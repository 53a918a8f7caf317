package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"harambee/internal/amqp"
	"harambee/internal/core"
	"harambee/internal/log"
)

// ExpenseService records money going out.
type ExpenseService struct {
	w      *writer
	logger *log.Logger
}

// Record saves an expense and announces it. A zero Timestamp means now.
func (s *ExpenseService) Record(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)
	if e.Timestamp.IsZero() {
		e.Timestamp = s.w.now()
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	saved, err := s.w.store.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	if err := s.w.persist(ctx); err != nil {
		return core.Expense{}, err
	}

	// The expense is stored; a failed publish only delays the mirror.
	s.w.publish(ctx, amqp.EventExpenseRecorded, saved.ID)

	s.logger.InfoContext(ctx, "Expense recorded",
		log.FieldOperation, log.OpCreate,
		log.FieldRecordID, saved.ID,
		log.FieldAmountCents, saved.Amount.Cents,
		"category", saved.Category)
	return saved, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	if err := s.w.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if err := s.w.persist(ctx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldOperation, log.OpDelete, log.FieldRecordID, id)
	return nil
}

// List returns every expense, newest first.
func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	snap, err := s.w.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	out := snap.Expenses
	sortNewestFirst(out, func(e core.Expense) time.Time { return e.Timestamp })
	return out, nil
}
