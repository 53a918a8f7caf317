package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"harambee/internal/core"
)

// PhaseService manages fundraising phases.
type PhaseService struct {
	w *writer
}

// Create adds a phase. Targets are keyed by department label; departments
// without a target contribute nothing to the total.
func (s *PhaseService) Create(ctx context.Context, name string, due time.Time, targets map[string]core.Money) (core.Phase, error) {
	p := core.Phase{
		Name:              strings.TrimSpace(name),
		DueDate:           due,
		DepartmentTargets: make(map[string]core.Money, len(targets)),
	}
	for dept, target := range targets {
		dept = strings.TrimSpace(dept)
		if dept == "" || target.Cents == 0 {
			continue
		}
		p.DepartmentTargets[dept] = target
	}
	p.TotalTarget = core.SumTargets(p.DepartmentTargets)
	if err := p.Validate(); err != nil {
		return core.Phase{}, err
	}

	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	saved, err := s.w.store.AddPhase(ctx, p)
	if err != nil {
		return core.Phase{}, fmt.Errorf("add phase: %w", err)
	}
	if err := s.w.persist(ctx); err != nil {
		return core.Phase{}, err
	}
	return saved, nil
}

func (s *PhaseService) Delete(ctx context.Context, id string) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	if err := s.w.store.DeletePhase(ctx, id); err != nil {
		return fmt.Errorf("delete phase %s: %w", id, err)
	}
	return s.w.persist(ctx)
}

// List returns the phases ordered by due date.
func (s *PhaseService) List(ctx context.Context) ([]core.Phase, error) {
	snap, err := s.w.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return snap.Phases, nil
}
