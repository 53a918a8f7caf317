// Package ledger defines the store the services write through.
//
// Every mutation returns the affected entity and none of them is durable
// until Persist is called.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"harambee/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would create a second pledge
	// for the same name and department.
	ErrConflict = errors.New("pledge already exists for this name and department")
)

// Ports for ledger backends.
type (
	Reader interface {
		// Snapshot returns a deep copy of the ledger. Mutating it has no
		// effect on the store.
		Snapshot(ctx context.Context) (Snapshot, error)
	}

	PledgeWriter interface {
		// FindPledge looks a pledge up by name and department, ignoring case.
		FindPledge(ctx context.Context, name, department string) (core.Pledge, error)
		GetPledge(ctx context.Context, id string) (core.Pledge, error)
		// AddPledge accumulates into the existing pledge for the same name
		// and department, if any.
		AddPledge(ctx context.Context, p core.Pledge) (core.Pledge, error)
		UpdatePledge(ctx context.Context, p core.Pledge) (core.Pledge, error)
		// DeletePledge removes the pledge and its transactions and returns
		// how many transactions went with it.
		DeletePledge(ctx context.Context, id string) (int, error)
	}

	TransactionWriter interface {
		AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	}

	ExpenseWriter interface {
		AddExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		DeleteExpense(ctx context.Context, id string) error
	}

	PhaseWriter interface {
		AddPhase(ctx context.Context, p core.Phase) (core.Phase, error)
		DeletePhase(ctx context.Context, id string) error
	}

	DepartmentRegistry interface {
		DepartmentExists(ctx context.Context, name string) (bool, error)
		// RegisterDepartment adds name unless a department with the same
		// name ignoring case exists. created reports whether it was added.
		RegisterDepartment(ctx context.Context, name string) (created bool, err error)
		ListDepartments(ctx context.Context) ([]string, error)
		ResetDepartments(ctx context.Context) ([]string, error)
	}

	Persister interface {
		Persist(ctx context.Context) error
	}

	Store interface {
		Reader
		PledgeWriter
		TransactionWriter
		ExpenseWriter
		PhaseWriter
		DepartmentRegistry
		Persister
		Close() error
	}
)

// NewID returns a fresh entity identifier.
func NewID() string { return uuid.NewString() }
