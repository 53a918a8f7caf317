// Package services implements the ledger use cases on top of a
// ledger.Store: staging and committing notifications, pledge, expense,
// phase and department management, and the dashboard.
//
// Writes are serialized by one mutex shared by every service, and every
// successful write is followed by an explicit Persist.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"harambee/internal/amqp"
	"harambee/internal/cache"
	"harambee/internal/core"
	"harambee/internal/dedupe"
	"harambee/internal/ledger"
	"harambee/internal/log"
	"harambee/internal/mpesa"
)

// EventPublisher announces new ledger rows. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, event amqp.LedgerEvent) error
}

var _ EventPublisher = (*amqp.Client)(nil)

var (
	// ErrConfirmationRequired is matched by *ConfirmationRequiredError.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrDuplicatePayment is matched by *DuplicateError.
	ErrDuplicatePayment = errors.New("duplicate payment")
)

// ConfirmationRequiredError is returned when deleting a pledge would also
// delete its payments and the caller has not confirmed.
type ConfirmationRequiredError struct {
	Payments int
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("this pledge has %d payments; deleting it will remove them from the ledger", e.Payments)
}

func (e *ConfirmationRequiredError) Is(target error) bool {
	return target == ErrConfirmationRequired
}

// DuplicateError reports the recorded transaction a payment collides with.
type DuplicateError struct {
	Name       string
	Department string
	Window     time.Duration
	Existing   core.Transaction
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate: same amount from %s (%s) within %s", e.Name, e.Department, e.Window)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicatePayment
}

// Deps are the collaborators shared by all services.
type Deps struct {
	Store     ledger.Store
	Publisher EventPublisher
	Logger    *log.Logger

	SMSPolicy    dedupe.Policy
	ManualPolicy dedupe.Policy

	// Parser defaults to mpesa.NewParser with Location.
	Parser   *mpesa.Parser
	Location *time.Location
	Clock    func() time.Time

	// DashboardCache, when set, holds the last computed dashboard and is
	// purged after every write.
	DashboardCache *cache.LRUCache[core.Dashboard]
}

// Services groups the use cases over one store.
type Services struct {
	Commit      *CommitService
	Pledges     *PledgeService
	Expenses    *ExpenseService
	Phases      *PhaseService
	Departments *DepartmentService
	Dashboard   *DashboardService
}

// New wires every service around deps.
func New(deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.SMSPolicy.Window <= 0 {
		deps.SMSPolicy = dedupe.SMSPolicy()
	}
	if deps.ManualPolicy.Window <= 0 {
		deps.ManualPolicy = dedupe.ManualPolicy()
	}
	if deps.Parser == nil {
		deps.Parser = mpesa.NewParser(mpesa.WithClock(deps.Clock), mpesa.WithLocation(deps.Location))
	}

	w := &writer{
		store:     deps.Store,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		now:       deps.Clock,
	}
	if deps.DashboardCache != nil {
		w.onChange = deps.DashboardCache.Purge
	}

	return &Services{
		Commit:      &CommitService{w: w, parser: deps.Parser, guard: dedupe.New(deps.SMSPolicy), logger: deps.Logger.WithComponent(log.ComponentCommit)},
		Pledges:     &PledgeService{w: w, guard: dedupe.New(deps.ManualPolicy), logger: deps.Logger.WithComponent(log.ComponentPledge)},
		Expenses:    &ExpenseService{w: w, logger: deps.Logger.WithComponent(log.ComponentExpense)},
		Phases:      &PhaseService{w: w},
		Departments: &DepartmentService{w: w},
		Dashboard:   &DashboardService{store: deps.Store, cache: deps.DashboardCache},
	}
}

// writer is the single-writer gate in front of the store.
type writer struct {
	mu        sync.Mutex
	store     ledger.Store
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
	onChange  func()
}

// persist makes the pending writes durable and drops derived views.
func (w *writer) persist(ctx context.Context) error {
	if w.onChange != nil {
		defer w.onChange()
	}
	if err := w.store.Persist(ctx); err != nil {
		log.NewStructuredLogger(w.logger.WithComponent(log.ComponentLedger)).
			LogError(ctx, "Failed to persist ledger", err, log.OpPersist, nil)
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// publish is best effort: the row is already stored, so a broker failure
// is logged and the spreadsheet catches up on the next replay.
func (w *writer) publish(ctx context.Context, typ amqp.EventType, id string) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(ctx, amqp.NewLedgerEvent(typ, id)); err != nil {
		w.logger.WithComponent(log.ComponentAMQP).WarnContext(ctx, "Failed to publish ledger event",
			log.FieldError, err,
			"type", typ,
			log.FieldRecordID, id)
	}
}
