package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType names what happened in the ledger.
type EventType string

const (
	EventTransactionRecorded EventType = "transaction.recorded"
	EventExpenseRecorded     EventType = "expense.recorded"
)

// LedgerEvent announces a new ledger row. It carries only the ID; the
// consumer reads the row itself.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps an event with the current time.
func NewLedgerEvent(typ EventType, id string) LedgerEvent {
	return LedgerEvent{Type: typ, ID: id, Timestamp: time.Now().UTC()}
}

// Validate rejects events a consumer cannot act on.
func (e LedgerEvent) Validate() error {
	switch e.Type {
	case EventTransactionRecorded, EventExpenseRecorded:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.ID == "" {
		return errors.New("event without id")
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	if err := e.Validate(); err != nil {
		return LedgerEvent{}, err
	}
	return e, nil
}
