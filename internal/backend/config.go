package backend

import (
	"errors"
	"fmt"
	"time"

	"harambee/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// DataDirectory holds seed_departments.txt for either backend.
	DataDirectory string

	// Memory specific
	LedgerFile string

	// SQLite specific
	SQLiteDBPath string

	// Clock overrides creation timestamps. Nil means time.Now.
	Clock func() time.Time
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		DataDirectory: appConfig.DataDir,
		LedgerFile:    appConfig.LedgerFile,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// An empty ledger file keeps everything in memory only.
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend}
}
