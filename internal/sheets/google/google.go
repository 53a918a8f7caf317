package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"harambee/internal/core"
	"harambee/internal/log"
	ports "harambee/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	ExpensesSheet     string

	// Service account credentials; JSON wins over File.
	CredentialsJSON string
	CredentialsFile string

	// Location renders row timestamps. Defaults to UTC.
	Location *time.Location
	// RequestTimeout bounds each API call. Zero means no extra bound.
	RequestTimeout time.Duration
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	expensesSheet     string
	loc               *time.Location
	timeout           time.Duration
	logger            *log.Logger
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with service account
// credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	credentialsJSON, err := readCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg, logger,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions creates a client with explicit API options instead of
// the configured credentials.
func NewWithOptions(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	c := &Client{
		svc:               svc,
		spreadsheetID:     cfg.SpreadsheetID,
		transactionsSheet: strings.TrimSpace(cfg.TransactionsSheet),
		expensesSheet:     strings.TrimSpace(cfg.ExpensesSheet),
		loc:               cfg.Location,
		timeout:           cfg.RequestTimeout,
		logger:            logger.WithComponent(log.ComponentSheets),
	}
	if c.transactionsSheet == "" {
		c.transactionsSheet = "Transactions"
	}
	if c.expensesSheet == "" {
		c.expensesSheet = "Expenses"
	}
	if c.loc == nil {
		c.loc = time.UTC
	}

	c.logger.InfoContext(ctx, "Google Sheets client ready",
		"transactions_sheet", c.transactionsSheet,
		"expenses_sheet", c.expensesSheet)
	return c, nil
}

func readCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return raw, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", errors.New("transaction has no ID")
	}
	return c.appendRow(ctx, c.transactionsSheet, len(ports.TransactionHeader), ports.TransactionRow(tx, c.loc))
}

func (c *Client) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if e.ID == "" {
		return "", errors.New("expense has no ID")
	}
	return c.appendRow(ctx, c.expensesSheet, len(ports.ExpenseHeader), ports.ExpenseRow(e, c.loc))
}

func (c *Client) HasTransaction(ctx context.Context, id string) (bool, error) {
	return c.hasID(ctx, c.transactionsSheet, len(ports.TransactionHeader), id)
}

func (c *Client) HasExpense(ctx context.Context, id string) (bool, error) {
	return c.hasID(ctx, c.expensesSheet, len(ports.ExpenseHeader), id)
}

func (c *Client) appendRow(ctx context.Context, sheet string, width int, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	rng := fmt.Sprintf("%s!A:%s", sheet, column(width))
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Row appended", log.FieldOperation, log.OpAppend, "range", ref)
	return ref, nil
}

// hasID scans the ID column, the last of the sheet's layout.
func (c *Client) hasID(ctx context.Context, sheet string, width int, id string) (bool, error) {
	if c.svc == nil {
		return false, errors.New("sheets service not initialized")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	col := column(width)
	rng := fmt.Sprintf("%s!%s:%s", sheet, col, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", rng, err)
	}
	return containsID(resp.Values, id), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func containsID(values [][]any, id string) bool {
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return true
		}
	}
	return false
}

// column returns the A1 letter of the n-th column (1-based, n <= 26).
func column(n int) string {
	return string(rune('A' + n - 1))
}
