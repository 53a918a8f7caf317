// Package memory keeps the whole ledger in memory and saves it as a single
// JSON document.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"harambee/internal/core"
	"harambee/internal/ledger"
)

const (
	documentVersion  = 1
	initialPhaseName = "Initial Phase"
)

var initialPhaseTarget = core.Money{Cents: 1_000_000 * 100}

type document struct {
	Version int `json:"version"`
	ledger.Snapshot
}

// Store is safe for concurrent use. Writes change memory only; Persist
// writes the document to disk.
type Store struct {
	mu    sync.RWMutex
	path  string
	seeds []string
	data  ledger.Snapshot
	now   func() time.Time
}

var _ ledger.Store = (*Store)(nil)

type Option func(*Store)

// WithClock sets the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty ledger with the given departments and the initial
// phase. path may be empty, in which case Persist is a no-op.
func New(path string, departments []string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if len(departments) == 0 {
		departments = core.DefaultDepartments
	}
	s.seeds = dedupeFold(departments)
	s.data = ledger.Snapshot{
		Departments: slices.Clone(s.seeds),
		Phases: []core.Phase{{
			ID:                ledger.NewID(),
			Name:              initialPhaseName,
			DueDate:           s.now().Truncate(24 * time.Hour),
			DepartmentTargets: map[string]core.Money{},
			TotalTarget:       initialPhaseTarget,
		}},
	}
	return s
}

// Open loads the document at path. A missing file yields a fresh ledger
// seeded from seedDir/seed_departments.txt or the default departments.
func Open(path, seedDir string, opts ...Option) (*Store, error) {
	seeds := ledger.LoadSeedDepartments(seedDir)
	s := New(path, seeds, opts...)

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", path, err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("ledger %s has unsupported version %d", path, doc.Version)
	}
	if doc.Departments == nil {
		doc.Departments = slices.Clone(s.seeds)
	}
	s.data = doc.Snapshot
	return s, nil
}

func (s *Store) Snapshot(_ context.Context) (ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone(), nil
}

// Persist writes the document atomically: a temp file in the same
// directory renamed over the target.
func (s *Store) Persist(_ context.Context) error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	raw, err := json.MarshalIndent(document{Version: documentVersion, Snapshot: s.data}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Pledges

func (s *Store) FindPledge(_ context.Context, name, department string) (core.Pledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.data.FindPledge(name, department); ok {
		return p, nil
	}
	return core.Pledge{}, ledger.ErrNotFound
}

func (s *Store) GetPledge(_ context.Context, id string) (core.Pledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.data.PledgeByID(id); ok {
		return p, nil
	}
	return core.Pledge{}, ledger.ErrNotFound
}

func (s *Store) AddPledge(_ context.Context, p core.Pledge) (core.Pledge, error) {
	if err := p.Validate(); err != nil {
		return core.Pledge{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.data.Pledges {
		if core.SameName(existing.Name, p.Name) && core.SameName(existing.Department, p.Department) {
			s.data.Pledges[i].Amount = existing.Amount.Add(p.Amount)
			return s.data.Pledges[i], nil
		}
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Department = strings.TrimSpace(p.Department)
	if p.ID == "" {
		p.ID = ledger.NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.data.Pledges = append(s.data.Pledges, p)
	return p, nil
}

func (s *Store) UpdatePledge(_ context.Context, p core.Pledge) (core.Pledge, error) {
	if err := p.Validate(); err != nil {
		return core.Pledge{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.data.Pledges, func(existing core.Pledge) bool { return existing.ID == p.ID })
	if idx < 0 {
		return core.Pledge{}, ledger.ErrNotFound
	}
	for i, existing := range s.data.Pledges {
		if i != idx && core.SameName(existing.Name, p.Name) && core.SameName(existing.Department, p.Department) {
			return core.Pledge{}, ledger.ErrConflict
		}
	}
	cur := &s.data.Pledges[idx]
	cur.Name = strings.TrimSpace(p.Name)
	cur.Department = strings.TrimSpace(p.Department)
	cur.Amount = p.Amount
	return *cur, nil
}

func (s *Store) DeletePledge(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.data.Pledges)
	s.data.Pledges = slices.DeleteFunc(s.data.Pledges, func(p core.Pledge) bool { return p.ID == id })
	if len(s.data.Pledges) == before {
		return 0, ledger.ErrNotFound
	}
	txs := len(s.data.Transactions)
	s.data.Transactions = slices.DeleteFunc(s.data.Transactions, func(tx core.Transaction) bool { return tx.PledgeID == id })
	return txs - len(s.data.Transactions), nil
}

// Transactions

func (s *Store) AddTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.PledgeByID(tx.PledgeID); !ok {
		return core.Transaction{}, fmt.Errorf("pledge %s: %w", tx.PledgeID, ledger.ErrNotFound)
	}
	if tx.ID == "" {
		tx.ID = ledger.NewID()
	}
	s.data.Transactions = append(s.data.Transactions, tx)
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.data.Transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, ledger.ErrNotFound
}

// Expenses

func (s *Store) AddExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = ledger.NewID()
	}
	s.data.Expenses = append(s.data.Expenses, e)
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.data.Expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, ledger.ErrNotFound
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.data.Expenses)
	s.data.Expenses = slices.DeleteFunc(s.data.Expenses, func(e core.Expense) bool { return e.ID == id })
	if len(s.data.Expenses) == before {
		return ledger.ErrNotFound
	}
	return nil
}

// Phases

func (s *Store) AddPhase(_ context.Context, p core.Phase) (core.Phase, error) {
	if err := p.Validate(); err != nil {
		return core.Phase{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ledger.NewID()
	}
	if p.DepartmentTargets == nil {
		p.DepartmentTargets = map[string]core.Money{}
	}
	if p.TotalTarget.Cents == 0 {
		p.TotalTarget = core.SumTargets(p.DepartmentTargets)
	}
	s.data.Phases = append(s.data.Phases, p)
	sort.SliceStable(s.data.Phases, func(i, j int) bool {
		return s.data.Phases[i].DueDate.Before(s.data.Phases[j].DueDate)
	})
	return p, nil
}

func (s *Store) DeletePhase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.data.Phases)
	s.data.Phases = slices.DeleteFunc(s.data.Phases, func(p core.Phase) bool { return p.ID == id })
	if len(s.data.Phases) == before {
		return ledger.ErrNotFound
	}
	return nil
}

// Departments

func (s *Store) DepartmentExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.HasDepartment(name), nil
}

func (s *Store) RegisterDepartment(_ context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, core.ErrEmptyDepartment
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.HasDepartment(name) {
		return false, nil
	}
	s.data.Departments = append(s.data.Departments, name)
	return true, nil
}

func (s *Store) ListDepartments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.Departments), nil
}

func (s *Store) ResetDepartments(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Departments = slices.Clone(s.seeds)
	return slices.Clone(s.seeds), nil
}

// dedupeFold drops blanks and case-insensitive repeats, keeping input order.
func dedupeFold(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
