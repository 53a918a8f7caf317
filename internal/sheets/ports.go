package sheets

import (
	"context"

	"harambee/internal/core"
)

// Ports for the spreadsheet mirror.
type (
	LedgerWriter interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// RowFinder reports whether a record was already mirrored. Rows carry
	// the record ID in their last column.
	RowFinder interface {
		HasTransaction(ctx context.Context, id string) (bool, error)
		HasExpense(ctx context.Context, id string) (bool, error)
	}

	Mirror interface {
		LedgerWriter
		RowFinder
	}
)
