// Package backend opens the ledger store selected by DATA_BACKEND.
package backend

import (
	"context"

	"harambee/internal/ledger"
	"harambee/internal/storage"
)

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Result is an opened store. SQLite is set only for the sqlite backend,
// which the spreadsheet mirror needs for its sync bookkeeping.
type Result struct {
	Store  ledger.Store
	SQLite *storage.SQLiteRepository
}

// Close releases the store.
func (r *Result) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Factory creates stores based on configuration
type Factory interface {
	Open(ctx context.Context, config Config) (*Result, error)
}
