package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"harambee/internal/dedupe"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Storage
	DataDir      string
	LedgerFile   string
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleExpenseSheetName   string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleRequestTimeout     time.Duration

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Duplicate guard
	DuplicateWindowSMS    time.Duration
	DuplicateWindowManual time.Duration
	DepartmentMatch       string

	// Parsing and display
	Timezone string

	// HTTP behaviour
	RateLimitPerMinute int
	DashboardCacheTTL  time.Duration
	TrustedProxies     []string

	LogLevel string
}

func Load() *Config {
	dataDir := getEnv("DATA_DIR", "./data")
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		DataDir:      dataDir,
		LedgerFile:   getEnv("LEDGER_FILE", filepath.Join(dataDir, "ledger.json")),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", filepath.Join(dataDir, "harambee.db")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "harambee"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_mirror"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleExpenseSheetName:   getEnv("GOOGLE_EXPENSE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleRequestTimeout:     getEnvDuration("GOOGLE_REQUEST_TIMEOUT", 15*time.Second),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 50),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", time.Minute),

		DuplicateWindowSMS:    getEnvDuration("DUPLICATE_WINDOW_SMS", dedupe.DefaultSMSWindow),
		DuplicateWindowManual: getEnvDuration("DUPLICATE_WINDOW_MANUAL", dedupe.DefaultManualWindow),
		DepartmentMatch:       getEnv("DEPARTMENT_MATCH", string(dedupe.MatchFold)),

		Timezone: getEnv("TIMEZONE", "Africa/Nairobi"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		DashboardCacheTTL:  getEnvDuration("DASHBOARD_CACHE_TTL", 30*time.Second),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "memory":
		if c.LedgerFile == "" {
			errors = append(errors, "ledger file cannot be empty when using memory backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DuplicateWindowSMS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid SMS duplicate window %v: must be positive", c.DuplicateWindowSMS))
	}
	if c.DuplicateWindowManual <= 0 {
		errors = append(errors, fmt.Sprintf("invalid manual duplicate window %v: must be positive", c.DuplicateWindowManual))
	}
	if _, err := dedupe.ParseMatchMode(c.DepartmentMatch); err != nil {
		errors = append(errors, err.Error())
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks what the spreadsheet mirror needs on top of
// Validate.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if c.DataBackend != "sqlite" {
		errors = append(errors, fmt.Sprintf("worker requires the sqlite backend, got '%s'", c.DataBackend))
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for the worker")
	}

	hasFile := c.GoogleServiceAccountFile != ""
	hasJSON := c.GoogleServiceAccountJSON != ""
	if !hasFile && !hasJSON {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the worker")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location returns the configured zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) matchMode() dedupe.MatchMode {
	m, err := dedupe.ParseMatchMode(c.DepartmentMatch)
	if err != nil {
		return dedupe.MatchFold
	}
	return m
}

// SMSPolicy is the duplicate rule for committed notifications.
func (c *Config) SMSPolicy() dedupe.Policy {
	return dedupe.Policy{Window: c.DuplicateWindowSMS, DepartmentMatch: c.matchMode()}
}

// ManualPolicy is the duplicate rule for hand-entered cash.
func (c *Config) ManualPolicy() dedupe.Policy {
	return dedupe.Policy{Window: c.DuplicateWindowManual, DepartmentMatch: c.matchMode()}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
