package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"harambee/internal/amqp"
	"harambee/internal/core"
	"harambee/internal/dedupe"
	"harambee/internal/ledger"
	"harambee/internal/log"
	"harambee/internal/mpesa"
)

// Skip reasons reported by Commit.
const (
	ReasonNoDepartment = "no department selected"
	ReasonUnknownPayer = "payer name required"
	ReasonInvalid      = "invalid payment"
)

// StagedPayment is a parsed candidate with the treasurer's choices. Name
// overrides the payer when the notification carried none or it was wrong.
type StagedPayment struct {
	Candidate  mpesa.CandidatePayment `json:"candidate"`
	Name       string                 `json:"name,omitempty"`
	Department string                 `json:"department"`
}

// PayerName returns the name the payment is recorded under.
func (s StagedPayment) PayerName() (string, bool) {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name, true
	}
	name, ok := s.Candidate.Payer.Value()
	name = strings.TrimSpace(name)
	return name, ok && name != ""
}

// StageResult is the parse outcome with a suggested department per item.
type StageResult struct {
	Outcome mpesa.Outcome   `json:"outcome"`
	Items   []StagedPayment `json:"items"`
}

// SkippedPayment is a staged item Commit did not record.
type SkippedPayment struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	Department  string            `json:"department"`
	Reason      string            `json:"reason"`
	DuplicateOf *core.Transaction `json:"duplicate_of,omitempty"`
}

// CommitReport lists what a batch recorded and what it left out.
type CommitReport struct {
	Committed      []core.Transaction `json:"committed"`
	Skipped        []SkippedPayment   `json:"skipped"`
	NewDepartments []string           `json:"new_departments"`
}

// CommitService turns pasted notifications into ledger transactions.
type CommitService struct {
	w      *writer
	parser *mpesa.Parser
	guard  dedupe.Guard
	logger *log.Logger
}

// Stage parses text and suggests, for each candidate, the department of the
// first pledge carrying the same payer name.
func (s *CommitService) Stage(ctx context.Context, text string) (StageResult, error) {
	res := s.parser.Parse(text)
	out := StageResult{Outcome: res.Outcome, Items: []StagedPayment{}}
	if res.Outcome != mpesa.Found {
		s.logger.DebugContext(ctx, "Nothing staged", "outcome", res.Outcome)
		return out, nil
	}

	snap, err := s.w.store.Snapshot(ctx)
	if err != nil {
		return StageResult{}, fmt.Errorf("load ledger: %w", err)
	}
	for _, c := range res.Candidates {
		item := StagedPayment{Candidate: c}
		if name, ok := c.Payer.Value(); ok {
			if p, found := snap.FindPledgeByName(name); found {
				item.Department = p.Department
			}
		}
		out.Items = append(out.Items, item)
	}

	s.logger.InfoContext(ctx, "Notifications staged",
		log.FieldOperation, log.OpParse,
		log.FieldCount, len(out.Items))
	return out, nil
}

// Commit records the staged items in order. Each recorded item is visible
// to the duplicate check of the items after it. The ledger is persisted
// once at the end when anything changed, including when a store error
// stops the batch midway; the partial report is returned with the error.
func (s *CommitService) Commit(ctx context.Context, items []StagedPayment) (CommitReport, error) {
	report := CommitReport{
		Committed:      []core.Transaction{},
		Skipped:        []SkippedPayment{},
		NewDepartments: []string{},
	}
	if len(items) == 0 {
		return report, nil
	}

	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	snap, err := s.w.store.Snapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("load ledger: %w", err)
	}
	recorded := snap.Transactions
	changed := false

	runErr := func() error {
		for i, item := range items {
			dept := strings.TrimSpace(item.Department)
			name, known := item.PayerName()
			skip := SkippedPayment{Index: i, Name: name, Department: dept}

			switch {
			case dept == "":
				skip.Reason = ReasonNoDepartment
			case !known:
				skip.Reason = ReasonUnknownPayer
			case item.Candidate.Amount.Validate() != nil || !item.Candidate.Method.IsValid():
				skip.Reason = ReasonInvalid
			}
			if skip.Reason != "" {
				s.skipped(ctx, &report, skip)
				continue
			}

			created, err := s.w.store.RegisterDepartment(ctx, dept)
			if err != nil {
				return fmt.Errorf("register department %q: %w", dept, err)
			}
			if created {
				changed = true
				report.NewDepartments = append(report.NewDepartments, dept)
			}

			payment := dedupe.Payment{
				Name:       name,
				Department: dept,
				Amount:     item.Candidate.Amount,
				Timestamp:  item.Candidate.Timestamp,
			}
			if dup, ok := s.guard.FindDuplicate(payment, recorded); ok {
				skip.Reason = fmt.Sprintf("duplicate: %s (%s)", name, dept)
				skip.DuplicateOf = &dup
				s.skipped(ctx, &report, skip)
				continue
			}

			pledge, err := s.w.store.FindPledge(ctx, name, dept)
			if errors.Is(err, ledger.ErrNotFound) {
				pledge, err = s.w.store.AddPledge(ctx, core.Pledge{
					Name:       name,
					Department: dept,
					Amount:     item.Candidate.Amount,
				})
				changed = changed || err == nil
			}
			if err != nil {
				return fmt.Errorf("pledge for %s (%s): %w", name, dept, err)
			}

			tx, err := s.w.store.AddTransaction(ctx, core.Transaction{
				PledgeID:   pledge.ID,
				Name:       pledge.Name,
				Department: pledge.Department,
				Amount:     item.Candidate.Amount,
				Direction:  core.Credit,
				Method:     item.Candidate.Method,
				Reference:  item.Candidate.Reference.Value,
				Timestamp:  item.Candidate.Timestamp,
			})
			if err != nil {
				return fmt.Errorf("record payment from %s (%s): %w", name, dept, err)
			}
			changed = true
			recorded = append(recorded, tx)
			report.Committed = append(report.Committed, tx)

			log.NewStructuredLogger(s.logger).LogPaymentRecorded(ctx,
				tx.Name, tx.Department, tx.Amount.Cents, string(tx.Method), tx.Reference)
		}
		return nil
	}()

	if changed {
		if err := s.w.persist(ctx); err != nil {
			return report, errors.Join(runErr, err)
		}
	}
	for _, tx := range report.Committed {
		s.w.publish(ctx, amqp.EventTransactionRecorded, tx.ID)
	}

	s.logger.InfoContext(ctx, "Batch committed",
		log.FieldOperation, log.OpCommit,
		"committed", len(report.Committed),
		"skipped", len(report.Skipped),
		"new_departments", len(report.NewDepartments))
	return report, runErr
}

func (s *CommitService) skipped(ctx context.Context, report *CommitReport, skip SkippedPayment) {
	report.Skipped = append(report.Skipped, skip)
	s.logger.InfoContext(ctx, "Payment skipped",
		log.FieldPayer, skip.Name,
		log.FieldDepartment, skip.Department,
		"reason", skip.Reason)
}
