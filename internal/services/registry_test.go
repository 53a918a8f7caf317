package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harambee/internal/core"
)

func errorsIs(err, target error) bool { return errors.Is(err, target) }

func TestPhaseService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roof, err := f.svc.Phases.Create(ctx, "Roof", testNow.AddDate(0, 6, 0), map[string]core.Money{
		"Youth":  kes(5000),
		"Eagles": kes(7000),
		" ":      kes(1),
		"Guests": {},
	})
	require.NoError(t, err)
	require.Equal(t, kes(12000), roof.TotalTarget)
	require.Len(t, roof.DepartmentTargets, 2)

	_, err = f.svc.Phases.Create(ctx, "Walls", testNow.AddDate(0, 1, 0), nil)
	require.NoError(t, err)

	list, err := f.svc.Phases.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "Initial Phase", list[0].Name)
	require.Equal(t, "Walls", list[1].Name)
	require.Equal(t, "Roof", list[2].Name)

	_, err = f.svc.Phases.Create(ctx, "", testNow, nil)
	require.ErrorIs(t, err, core.ErrEmptyPhaseName)
	_, err = f.svc.Phases.Create(ctx, "Late", time.Time{}, nil)
	require.ErrorIs(t, err, core.ErrZeroTimestamp)
	_, err = f.svc.Phases.Create(ctx, "Bad", testNow, map[string]core.Money{"Youth": {Cents: -1}})
	require.ErrorIs(t, err, core.ErrNegativeTarget)

	require.NoError(t, f.svc.Phases.Delete(ctx, roof.ID))
	list, err = f.svc.Phases.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestDepartmentService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Departments.Register(ctx, " Choir ")
	require.NoError(t, err)
	require.True(t, created)

	created, err = f.svc.Departments.Register(ctx, "CHOIR")
	require.NoError(t, err)
	require.False(t, created)

	_, err = f.svc.Departments.Register(ctx, "")
	require.ErrorIs(t, err, core.ErrEmptyDepartment)

	list, err := f.svc.Departments.List(ctx)
	require.NoError(t, err)
	require.Equal(t, append(append([]string{}, core.DefaultDepartments...), "Choir"), list)

	reset, err := f.svc.Departments.Reset(ctx)
	require.NoError(t, err)
	require.Equal(t, core.DefaultDepartments, reset)
}
