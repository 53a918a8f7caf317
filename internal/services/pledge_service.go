package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"harambee/internal/amqp"
	"harambee/internal/core"
	"harambee/internal/dedupe"
	"harambee/internal/ledger"
	"harambee/internal/log"
)

// DefaultCashReference is stored when a manual payment carries no reference.
const DefaultCashReference = "Manual Cash"

// PledgeService manages pledges and hand-entered cash payments.
type PledgeService struct {
	w      *writer
	guard  dedupe.Guard
	logger *log.Logger
}

// CashPayment is a payment entered by hand. A zero Timestamp means now.
type CashPayment struct {
	Name       string     `json:"name"`
	Department string     `json:"department"`
	Amount     core.Money `json:"amount"`
	Reference  string     `json:"reference"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Create records a pledge, accumulating into an existing pledge for the
// same name and department, and registers the department.
func (s *PledgeService) Create(ctx context.Context, name, department string, amount core.Money) (core.Pledge, error) {
	p := core.Pledge{
		Name:       strings.TrimSpace(name),
		Department: strings.TrimSpace(department),
		Amount:     amount,
	}
	if err := p.Validate(); err != nil {
		return core.Pledge{}, err
	}

	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	if _, err := s.w.store.RegisterDepartment(ctx, p.Department); err != nil {
		return core.Pledge{}, fmt.Errorf("register department: %w", err)
	}
	saved, err := s.w.store.AddPledge(ctx, p)
	if err != nil {
		return core.Pledge{}, fmt.Errorf("add pledge: %w", err)
	}
	if err := s.w.persist(ctx); err != nil {
		return core.Pledge{}, err
	}

	s.logger.InfoContext(ctx, "Pledge saved",
		log.FieldOperation, log.OpCreate,
		log.FieldPledgeID, saved.ID,
		log.FieldPayer, saved.Name,
		log.FieldDepartment, saved.Department,
		log.FieldAmountCents, saved.Amount.Cents)
	return saved, nil
}

// Update replaces the name, department and amount of a pledge. Renaming
// onto another pledge's name and department fails with ledger.ErrConflict.
func (s *PledgeService) Update(ctx context.Context, p core.Pledge) (core.Pledge, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Department = strings.TrimSpace(p.Department)
	if err := p.Validate(); err != nil {
		return core.Pledge{}, err
	}

	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	if _, err := s.w.store.RegisterDepartment(ctx, p.Department); err != nil {
		return core.Pledge{}, fmt.Errorf("register department: %w", err)
	}
	saved, err := s.w.store.UpdatePledge(ctx, p)
	if err != nil {
		return core.Pledge{}, fmt.Errorf("update pledge %s: %w", p.ID, err)
	}
	if err := s.w.persist(ctx); err != nil {
		return core.Pledge{}, err
	}
	s.logger.InfoContext(ctx, "Pledge updated", log.FieldOperation, log.OpUpdate, log.FieldPledgeID, saved.ID)
	return saved, nil
}

// Delete removes a pledge and its payments. A pledge with payments is only
// deleted when confirm is set; otherwise a *ConfirmationRequiredError is
// returned. It reports how many payments were removed.
func (s *PledgeService) Delete(ctx context.Context, id string, confirm bool) (int, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	snap, err := s.w.store.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("load ledger: %w", err)
	}
	if _, ok := snap.PledgeByID(id); !ok {
		return 0, fmt.Errorf("pledge %s: %w", id, ledger.ErrNotFound)
	}
	if _, n := snap.PaidFor(id); n > 0 && !confirm {
		return 0, &ConfirmationRequiredError{Payments: n}
	}

	removed, err := s.w.store.DeletePledge(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete pledge %s: %w", id, err)
	}
	if err := s.w.persist(ctx); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "Pledge deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldPledgeID, id,
		log.FieldCount, removed)
	return removed, nil
}

// Get returns one pledge with its payment standing.
func (s *PledgeService) Get(ctx context.Context, id string) (core.PledgeStanding, error) {
	snap, err := s.w.store.Snapshot(ctx)
	if err != nil {
		return core.PledgeStanding{}, fmt.Errorf("load ledger: %w", err)
	}
	p, ok := snap.PledgeByID(id)
	if !ok {
		return core.PledgeStanding{}, fmt.Errorf("pledge %s: %w", id, ledger.ErrNotFound)
	}
	return standing(snap, p), nil
}

// List returns every pledge with its standing, ordered by department and
// then name.
func (s *PledgeService) List(ctx context.Context) ([]core.PledgeStanding, error) {
	snap, err := s.w.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	out := make([]core.PledgeStanding, 0, len(snap.Pledges))
	for _, p := range snap.Pledges {
		out = append(out, standing(snap, p))
	}
	slices.SortStableFunc(out, func(a, b core.PledgeStanding) int {
		if c := strings.Compare(strings.ToLower(a.Department), strings.ToLower(b.Department)); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

// Transactions returns every recorded payment, newest first.
func (s *PledgeService) Transactions(ctx context.Context) ([]core.Transaction, error) {
	snap, err := s.w.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	txs := snap.Transactions
	sortNewestFirst(txs, func(t core.Transaction) time.Time { return t.Timestamp })
	return txs, nil
}

// RecordCash records a hand-entered payment by payer and department,
// creating the pledge with the payment amount when none exists. A payment
// matching one recorded within the manual window is rejected with a
// *DuplicateError.
func (s *PledgeService) RecordCash(ctx context.Context, pay CashPayment) (core.Transaction, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.recordCash(ctx, pay)
}

// RecordCashForPledge records a hand-entered payment against an existing
// pledge.
func (s *PledgeService) RecordCashForPledge(ctx context.Context, pledgeID string, amount core.Money, reference string, at time.Time) (core.Transaction, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	p, err := s.w.store.GetPledge(ctx, pledgeID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("pledge %s: %w", pledgeID, err)
	}
	return s.recordCash(ctx, CashPayment{
		Name:       p.Name,
		Department: p.Department,
		Amount:     amount,
		Reference:  reference,
		Timestamp:  at,
	})
}

func (s *PledgeService) recordCash(ctx context.Context, pay CashPayment) (core.Transaction, error) {
	pay.Name = strings.TrimSpace(pay.Name)
	pay.Department = strings.TrimSpace(pay.Department)
	if pay.Name == "" {
		return core.Transaction{}, core.ErrEmptyName
	}
	if pay.Department == "" {
		return core.Transaction{}, core.ErrEmptyDepartment
	}
	if err := pay.Amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if pay.Timestamp.IsZero() {
		pay.Timestamp = s.w.now()
	}
	if strings.TrimSpace(pay.Reference) == "" {
		pay.Reference = DefaultCashReference
	}

	snap, err := s.w.store.Snapshot(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load ledger: %w", err)
	}
	candidate := dedupe.Payment{Name: pay.Name, Department: pay.Department, Amount: pay.Amount, Timestamp: pay.Timestamp}
	if dup, ok := s.guard.FindDuplicate(candidate, snap.Transactions); ok {
		return core.Transaction{}, &DuplicateError{
			Name:       pay.Name,
			Department: pay.Department,
			Window:     s.guard.Policy().Window,
			Existing:   dup,
		}
	}

	if _, err := s.w.store.RegisterDepartment(ctx, pay.Department); err != nil {
		return core.Transaction{}, fmt.Errorf("register department: %w", err)
	}
	pledge, ok := snap.FindPledge(pay.Name, pay.Department)
	if !ok {
		pledge, err = s.w.store.AddPledge(ctx, core.Pledge{Name: pay.Name, Department: pay.Department, Amount: pay.Amount})
		if err != nil {
			return core.Transaction{}, fmt.Errorf("add pledge: %w", err)
		}
	}

	tx, err := s.w.store.AddTransaction(ctx, core.Transaction{
		PledgeID:   pledge.ID,
		Name:       pledge.Name,
		Department: pay.Department,
		Amount:     pay.Amount,
		Direction:  core.Credit,
		Method:     core.MethodCash,
		Reference:  pay.Reference,
		Timestamp:  pay.Timestamp,
	})
	if err != nil {
		// the pledge may already have been created
		return core.Transaction{}, errors.Join(fmt.Errorf("record cash payment: %w", err), s.w.persist(ctx))
	}
	if err := s.w.persist(ctx); err != nil {
		return core.Transaction{}, err
	}
	s.w.publish(ctx, amqp.EventTransactionRecorded, tx.ID)

	log.NewStructuredLogger(s.logger).LogPaymentRecorded(ctx,
		tx.Name, tx.Department, tx.Amount.Cents, string(tx.Method), tx.Reference)
	return tx, nil
}

func standing(snap ledger.Snapshot, p core.Pledge) core.PledgeStanding {
	paid, n := snap.PaidFor(p.ID)
	return core.PledgeStanding{
		Pledge:   p,
		Paid:     paid,
		Balance:  p.Amount.Sub(paid),
		Payments: n,
		Status:   core.StatusOf(p.Amount, paid),
	}
}

// sortNewestFirst orders s by descending time, keeping insertion order for
// equal times.
func sortNewestFirst[T any](s []T, at func(T) time.Time) {
	slices.SortStableFunc(s, func(a, b T) int {
		return at(b).Compare(at(a))
	})
}
