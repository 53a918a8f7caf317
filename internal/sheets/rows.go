package sheets

import (
	"time"

	"harambee/internal/core"
)

// RowTimeLayout is how timestamps are written to the sheet.
const RowTimeLayout = "2006-01-02 15:04"

var (
	// TransactionHeader names the columns of TransactionRow.
	TransactionHeader = []string{"Date", "Reference", "Name", "Department", "Method", "Amount", "ID"}
	// ExpenseHeader names the columns of ExpenseRow.
	ExpenseHeader = []string{"Date", "Category", "Description", "Amount", "ID"}
)

// TransactionRow renders a transaction as one sheet row in loc.
func TransactionRow(tx core.Transaction, loc *time.Location) []any {
	return []any{
		tx.Timestamp.In(loc).Format(RowTimeLayout),
		tx.Reference,
		tx.Name,
		tx.Department,
		tx.Method.Label(),
		tx.Amount.String(),
		tx.ID,
	}
}

// ExpenseRow renders an expense as one sheet row in loc.
func ExpenseRow(e core.Expense, loc *time.Location) []any {
	return []any{
		e.Timestamp.In(loc).Format(RowTimeLayout),
		e.Category,
		e.Description,
		e.Amount.String(),
		e.ID,
	}
}
