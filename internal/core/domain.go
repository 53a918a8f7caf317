package core

import (
	"errors"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

const (
	MethodCash  Method = "cash"
	MethodMpesa Method = "mpesa"
	MethodTill  Method = "till"

	Credit Direction = "credit"
)

// DefaultDepartments seeds the registry of a fresh ledger.
var DefaultDepartments = []string{
	"Eagles", "Daughters of Faith", "Youth",
	"Kingdom Generation", "Planning Committee", "Guests",
}

type (
	// Method is how a payment reached the treasurer.
	Method string

	// Direction of a transaction. Only credits exist today.
	Direction string

	Pledge struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		Department string    `json:"department"`
		Amount     Money     `json:"amount"`
		CreatedAt  time.Time `json:"created_at"`
	}

	Transaction struct {
		ID         string    `json:"id"`
		PledgeID   string    `json:"pledge_id"`
		Name       string    `json:"name"`
		Department string    `json:"department"`
		Amount     Money     `json:"amount"`
		Direction  Direction `json:"direction"`
		Method     Method    `json:"method"`
		Reference  string    `json:"reference"`
		Timestamp  time.Time `json:"timestamp"`
	}

	Expense struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Category    string    `json:"category"`
		Timestamp   time.Time `json:"timestamp"`
	}

	// Phase is a fundraising period with per-department targets.
	Phase struct {
		ID                string           `json:"id"`
		Name              string           `json:"name"`
		DueDate           time.Time        `json:"due_date"`
		DepartmentTargets map[string]Money `json:"department_targets"`
		TotalTarget       Money            `json:"total_target"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyDepartment    = errors.New("empty department")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidMethod      = errors.New("invalid payment method")
	ErrInvalidDirection   = errors.New("invalid direction")
	ErrZeroTimestamp      = errors.New("timestamp cannot be zero")
	ErrEmptyPhaseName     = errors.New("empty phase name")
	ErrEmptyPledgeID      = errors.New("transaction must reference a pledge")
	ErrNegativeTarget     = errors.New("department target cannot be negative")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// IsValid reports whether m is one of the known payment methods.
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodMpesa, MethodTill:
		return true
	default:
		return false
	}
}

// Label is the human readable name shown on ledgers and sheets.
func (m Method) Label() string {
	switch m {
	case MethodCash:
		return "Cash"
	case MethodMpesa:
		return "M-Pesa"
	case MethodTill:
		return "Till/Paybill"
	default:
		return string(m)
	}
}

// ShortCode prefixes synthesized references.
func (m Method) ShortCode() string {
	switch m {
	case MethodMpesa:
		return "SMS"
	case MethodTill:
		return "TILL"
	default:
		return "CASH"
	}
}

// SameName compares payer names the way the ledger does: trimmed and
// case-folded, no fuzzy matching.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// DepartmentKey normalizes a department label for map lookups.
func DepartmentKey(name string) string {
	return slug.Make(strings.TrimSpace(name))
}

func (p Pledge) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.Department) == "" {
		return ErrEmptyDepartment
	}
	return p.Amount.Validate()
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.PledgeID) == "" {
		return ErrEmptyPledgeID
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(t.Department) == "" {
		return ErrEmptyDepartment
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Direction != Credit {
		return ErrInvalidDirection
	}
	if !t.Method.IsValid() {
		return ErrInvalidMethod
	}
	if t.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

func (p Phase) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyPhaseName
	}
	if p.DueDate.IsZero() {
		return ErrZeroTimestamp
	}
	for _, target := range p.DepartmentTargets {
		if target.Cents < 0 {
			return ErrNegativeTarget
		}
	}
	return nil
}

// SumTargets returns the total of the department targets.
func SumTargets(targets map[string]Money) Money {
	var total Money
	for _, t := range targets {
		total.Cents += t.Cents
	}
	return total
}

// TargetFor returns the target set for dept, matching labels by their key.
func (p Phase) TargetFor(dept string) Money {
	key := DepartmentKey(dept)
	for name, target := range p.DepartmentTargets {
		if DepartmentKey(name) == key {
			return target
		}
	}
	return Money{}
}
