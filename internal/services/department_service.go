package services

import (
	"context"
	"fmt"
	"strings"

	"harambee/internal/core"
)

// DepartmentService exposes the department registry.
type DepartmentService struct {
	w *writer
}

func (s *DepartmentService) List(ctx context.Context) ([]string, error) {
	return s.w.store.ListDepartments(ctx)
}

// Register adds a department unless one with the same name ignoring case
// exists. created reports whether it was added.
func (s *DepartmentService) Register(ctx context.Context, name string) (created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, core.ErrEmptyDepartment
	}

	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	created, err = s.w.store.RegisterDepartment(ctx, name)
	if err != nil {
		return false, fmt.Errorf("register department: %w", err)
	}
	if !created {
		return false, nil
	}
	return true, s.w.persist(ctx)
}

// Reset restores the seed list. Pledges keep their department labels.
func (s *DepartmentService) Reset(ctx context.Context) ([]string, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	list, err := s.w.store.ResetDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset departments: %w", err)
	}
	return list, s.w.persist(ctx)
}
