// Package dedupe decides whether a payment has already been recorded.
package dedupe

import (
	"fmt"
	"strings"
	"time"

	"harambee/internal/core"
)

// MatchMode controls how department labels are compared.
type MatchMode string

const (
	MatchFold  MatchMode = "fold"
	MatchExact MatchMode = "exact"
)

func (m MatchMode) IsValid() bool {
	return m == MatchFold || m == MatchExact
}

// ParseMatchMode accepts "fold", "insensitive", "exact" or an empty string
// (fold).
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fold", "insensitive", "case-insensitive":
		return MatchFold, nil
	case "exact":
		return MatchExact, nil
	default:
		return "", fmt.Errorf("invalid department match mode %q", s)
	}
}

const (
	DefaultSMSWindow    = 30 * time.Minute
	DefaultManualWindow = 2 * time.Minute
)

// Policy is the duplicate rule for one entry path.
type Policy struct {
	Window          time.Duration
	DepartmentMatch MatchMode
}

// SMSPolicy applies to payments committed from pasted notifications.
func SMSPolicy() Policy {
	return Policy{Window: DefaultSMSWindow, DepartmentMatch: MatchFold}
}

// ManualPolicy applies to cash entered by hand, where the same payment is
// usually re-entered within seconds.
func ManualPolicy() Policy {
	return Policy{Window: DefaultManualWindow, DepartmentMatch: MatchFold}
}

// Payment is what the guard compares.
type Payment struct {
	Name       string
	Department string
	Amount     core.Money
	Timestamp  time.Time
}

// PaymentOf projects a recorded transaction.
func PaymentOf(tx core.Transaction) Payment {
	return Payment{
		Name:       tx.Name,
		Department: tx.Department,
		Amount:     tx.Amount,
		Timestamp:  tx.Timestamp,
	}
}

// Guard is a pure predicate over a slice of recorded transactions.
type Guard struct {
	policy Policy
}

func New(p Policy) Guard {
	if !p.DepartmentMatch.IsValid() {
		p.DepartmentMatch = MatchFold
	}
	return Guard{policy: p}
}

func (g Guard) Policy() Policy { return g.policy }

// Matches reports whether candidate and recorded describe the same payment:
// same name ignoring case, same department under the policy, amounts less
// than a cent apart and timestamps strictly closer than the window.
func (g Guard) Matches(candidate, recorded Payment) bool {
	if !core.SameName(candidate.Name, recorded.Name) {
		return false
	}
	if !g.sameDepartment(candidate.Department, recorded.Department) {
		return false
	}
	if abs64(candidate.Amount.Cents-recorded.Amount.Cents) >= 1 {
		return false
	}
	diff := candidate.Timestamp.Sub(recorded.Timestamp)
	if diff < 0 {
		diff = -diff
	}
	return diff < g.policy.Window
}

// FindDuplicate returns the first recorded transaction matching candidate.
func (g Guard) FindDuplicate(candidate Payment, ledger []core.Transaction) (core.Transaction, bool) {
	for _, tx := range ledger {
		if g.Matches(candidate, PaymentOf(tx)) {
			return tx, true
		}
	}
	return core.Transaction{}, false
}

func (g Guard) IsDuplicate(candidate Payment, ledger []core.Transaction) bool {
	_, ok := g.FindDuplicate(candidate, ledger)
	return ok
}

func (g Guard) sameDepartment(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if g.policy.DepartmentMatch == MatchExact {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
