package backend

import (
	"context"
	"fmt"

	"harambee/internal/ledger"
	"harambee/internal/ledger/memory"
	"harambee/internal/log"
	"harambee/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

var _ Factory = (*DefaultFactory)(nil)

// Open implements Factory.Open
func (f *DefaultFactory) Open(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.openSQLite(ctx, config)
	case MemoryBackend:
		return f.openMemory(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) openSQLite(ctx context.Context, config Config) (*Result, error) {
	opts := []storage.Option{}
	if seeds := ledger.LoadSeedDepartments(config.DataDirectory); len(seeds) > 0 {
		opts = append(opts, storage.WithSeedDepartments(seeds))
	}
	if config.Clock != nil {
		opts = append(opts, storage.WithClock(config.Clock))
	}

	repo, err := storage.NewSQLiteRepository(ctx, config.SQLiteDBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Store: repo, SQLite: repo}, nil
}

func (f *DefaultFactory) openMemory(config Config) (*Result, error) {
	opts := []memory.Option{}
	if config.Clock != nil {
		opts = append(opts, memory.WithClock(config.Clock))
	}

	store, err := memory.Open(config.LedgerFile, config.DataDirectory, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}

	f.logger.Info("Initialized memory backend", "ledger_file", config.LedgerFile)
	return &Result{Store: store}, nil
}
