package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus summarizes how much of a pledge has been paid.
type PaymentStatus string

const (
	StatusPaid        PaymentStatus = "paid"
	StatusPartial     PaymentStatus = "partial"
	StatusOutstanding PaymentStatus = "outstanding"
)

// StatusOf is paid once nothing is left, partial once anything came in.
func StatusOf(pledged, paid Money) PaymentStatus {
	switch {
	case pledged.Sub(paid).Cents <= 0:
		return StatusPaid
	case paid.Cents > 0:
		return StatusPartial
	default:
		return StatusOutstanding
	}
}

// Percent returns round(part/whole*100) with halves rounded up, or 0 when
// whole is zero.
func Percent(part, whole Money) int {
	if whole.Cents == 0 {
		return 0
	}
	ratio := decimal.NewFromInt(part.Cents).Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole.Cents))
	return int(ratio.Add(decimal.NewFromFloat(0.5)).Floor().IntPart())
}

// PledgeStanding is a pledge with what has been paid against it.
type PledgeStanding struct {
	Pledge
	Paid     Money         `json:"paid"`
	Balance  Money         `json:"balance"`
	Payments int           `json:"payments"`
	Status   PaymentStatus `json:"status"`
}

// Totals are the headline figures of the dashboard.
type Totals struct {
	Cash           Money `json:"cash"`
	Expenses       Money `json:"expenses"`
	Net            Money `json:"net"`
	Pledged        Money `json:"pledged"`
	CollectionRate int   `json:"collection_rate"`
}

// PhaseProgress is total cash measured against one phase target, capped
// at 100.
type PhaseProgress struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DueDate     time.Time `json:"due_date"`
	TotalTarget Money     `json:"total_target"`
	Percent     int       `json:"percent"`
}

// DepartmentSummary aggregates the pledges of one department.
type DepartmentSummary struct {
	Name      string `json:"name"`
	Members   int    `json:"members"`
	Pledged   Money  `json:"pledged"`
	Collected Money  `json:"collected"`
	Percent   int    `json:"percent"`
	Balance   Money  `json:"balance"`
}

// Dashboard is the overview shown on the landing page.
type Dashboard struct {
	Totals      Totals              `json:"totals"`
	Phases      []PhaseProgress     `json:"phases"`
	Departments []DepartmentSummary `json:"departments"`
	Recent      []Transaction       `json:"recent"`
}

// EntryKind tells income from expense rows in the combined ledger.
type EntryKind string

const (
	EntryIncome  EntryKind = "INCOME"
	EntryExpense EntryKind = "EXPENSE"
)

// LedgerEntry is one row of the combined ledger. Ref is the payment
// reference (or method) for income and the category for expenses.
type LedgerEntry struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Ref       string    `json:"ref"`
	Name      string    `json:"name"`
	Amount    Money     `json:"amount"`
}
