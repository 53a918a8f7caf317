package ledger

import (
	"maps"
	"slices"
	"strings"

	"harambee/internal/core"
)

// Snapshot is a read-only copy of the whole ledger.
type Snapshot struct {
	Pledges      []core.Pledge      `json:"pledges"`
	Transactions []core.Transaction `json:"transactions"`
	Expenses     []core.Expense     `json:"expenses"`
	Phases       []core.Phase       `json:"phases"`
	Departments  []string           `json:"departments"`
}

// Clone deep copies s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Pledges:      slices.Clone(s.Pledges),
		Transactions: slices.Clone(s.Transactions),
		Expenses:     slices.Clone(s.Expenses),
		Phases:       slices.Clone(s.Phases),
		Departments:  slices.Clone(s.Departments),
	}
	for i := range out.Phases {
		out.Phases[i].DepartmentTargets = maps.Clone(out.Phases[i].DepartmentTargets)
	}
	return out
}

// FindPledge returns the pledge for name and department, ignoring case.
func (s Snapshot) FindPledge(name, department string) (core.Pledge, bool) {
	for _, p := range s.Pledges {
		if core.SameName(p.Name, name) && core.SameName(p.Department, department) {
			return p, true
		}
	}
	return core.Pledge{}, false
}

// FindPledgeByName returns the first pledge carrying name in any department.
func (s Snapshot) FindPledgeByName(name string) (core.Pledge, bool) {
	for _, p := range s.Pledges {
		if core.SameName(p.Name, name) {
			return p, true
		}
	}
	return core.Pledge{}, false
}

func (s Snapshot) PledgeByID(id string) (core.Pledge, bool) {
	for _, p := range s.Pledges {
		if p.ID == id {
			return p, true
		}
	}
	return core.Pledge{}, false
}

// PaidFor sums the transactions against a pledge and counts them.
func (s Snapshot) PaidFor(pledgeID string) (core.Money, int) {
	var paid core.Money
	n := 0
	for _, tx := range s.Transactions {
		if tx.PledgeID == pledgeID {
			paid = paid.Add(tx.Amount)
			n++
		}
	}
	return paid, n
}

func (s Snapshot) HasDepartment(name string) bool {
	return slices.ContainsFunc(s.Departments, func(d string) bool {
		return strings.EqualFold(strings.TrimSpace(d), strings.TrimSpace(name))
	})
}
