package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli"

	"harambee/internal/amqp"
	"harambee/internal/backend"
	"harambee/internal/config"
	"harambee/internal/log"
	"harambee/internal/mpesa"
	"harambee/internal/services"
	"harambee/internal/sheets"
	"harambee/internal/sheets/google"
	"harambee/internal/sheets/memory"
	"harambee/internal/storage"
	"harambee/internal/worker"
)

// session is an opened ledger with the services around it.
type session struct {
	cfg       *config.Config
	logger    *log.Logger
	store     *backend.Result
	publisher *amqp.Client
	svc       *services.Services
}

func openSession(ctx context.Context, c *cli.Context) (*session, error) {
	logger := cliLogger(c)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := backend.NewFactory(logger).Open(ctx, bc)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger, store: store}
	deps := services.Deps{
		Store:        store.Store,
		Logger:       logger,
		SMSPolicy:    cfg.SMSPolicy(),
		ManualPolicy: cfg.ManualPolicy(),
		Location:     cfg.Location(),
	}
	if cfg.AMQPURL != "" {
		s.publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.Publisher = s.publisher
	}
	s.svc = services.New(deps)
	return s, nil
}

func (s *session) Close() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	return s.store.Close()
}

func readInput(c *cli.Context) (string, error) {
	if path := c.String("file"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stage parses the input and turns the empty outcomes into exit errors.
func stage(ctx context.Context, c *cli.Context, s *session) (services.StageResult, error) {
	text, err := readInput(c)
	if err != nil {
		return services.StageResult{}, err
	}
	staged, err := s.svc.Commit.Stage(ctx, text)
	if err != nil {
		return services.StageResult{}, err
	}
	switch staged.Outcome {
	case mpesa.NoInput:
		return staged, cli.NewExitError("nothing to parse", 1)
	case mpesa.NoMatches:
		return staged, cli.NewExitError("no valid messages found", 1)
	}
	return staged, nil
}

func parseAction(c *cli.Context) error {
	ctx := context.Background()
	s, err := openSession(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	staged, err := stage(ctx, c, s)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, staged)
}

func commitAction(c *cli.Context) error {
	department := strings.TrimSpace(c.String("department"))
	if department == "" {
		return cli.NewExitError("--department is required", 2)
	}

	ctx := context.Background()
	s, err := openSession(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	staged, err := stage(ctx, c, s)
	if err != nil {
		return err
	}
	for i := range staged.Items {
		staged.Items[i].Department = department
	}

	report, err := s.svc.Commit.Commit(ctx, staged.Items)
	if werr := writeJSON(c.App.Writer, report); werr != nil && err == nil {
		err = werr
	}
	return err
}

func migrateAction(c *cli.Context) error {
	cfg := config.Load()
	if cfg.SQLiteDBPath == "" {
		return cli.NewExitError("SQLITE_DB_PATH is empty", 2)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	version, err := storage.RunMigrations(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Database %s migrated to version %d\n", cfg.SQLiteDBPath, version)
	return nil
}

func syncAction(c *cli.Context) error {
	ctx := context.Background()
	s, err := openSession(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.store.SQLite == nil {
		return cli.NewExitError("sync needs DATA_BACKEND=sqlite", 2)
	}

	if c.Bool("dry-run") {
		return previewPending(ctx, c.App.Writer, s)
	}

	if s.cfg.GoogleSpreadsheetID == "" {
		return cli.NewExitError("GOOGLE_SPREADSHEET_ID is required", 2)
	}
	sheet, err := google.New(ctx, google.Config{
		SpreadsheetID:     s.cfg.GoogleSpreadsheetID,
		TransactionsSheet: s.cfg.GoogleSheetName,
		ExpensesSheet:     s.cfg.GoogleExpenseSheetName,
		CredentialsJSON:   s.cfg.GoogleServiceAccountJSON,
		CredentialsFile:   s.cfg.GoogleServiceAccountFile,
		Location:          s.cfg.Location(),
		RequestTimeout:    s.cfg.GoogleRequestTimeout,
	}, s.logger)
	if err != nil {
		return err
	}

	synced, err := worker.NewSyncWorker(s.store.SQLite, sheet, s.cfg.SyncBatchSize, s.logger).ProcessPending(ctx)
	fmt.Fprintf(c.App.Writer, "Synced %d rows\n", synced)
	return err
}

// previewPending renders the pending rows into an in-memory sheet and
// prints them. Nothing is marked as synced.
func previewPending(ctx context.Context, out io.Writer, s *session) error {
	pending, err := s.store.SQLite.PendingSync(ctx, s.cfg.SyncBatchSize)
	if err != nil {
		return err
	}

	sheet := memory.New(s.cfg.Location())
	for _, rec := range pending {
		switch rec.Kind {
		case storage.KindTransaction:
			tx, err := s.store.SQLite.GetTransaction(ctx, rec.ID)
			if err != nil {
				return err
			}
			_, err = sheet.AppendTransaction(ctx, tx)
			if err != nil {
				return err
			}
		case storage.KindExpense:
			e, err := s.store.SQLite.GetExpense(ctx, rec.ID)
			if err != nil {
				return err
			}
			_, err = sheet.AppendExpense(ctx, e)
			if err != nil {
				return err
			}
		default:
			return errors.New("unknown record kind " + string(rec.Kind))
		}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	printRows(tw, s.cfg.GoogleSheetName, sheets.TransactionHeader, sheet.TransactionRows())
	printRows(tw, s.cfg.GoogleExpenseSheetName, sheets.ExpenseHeader, sheet.ExpenseRows())
	return tw.Flush()
}

func printRows(w io.Writer, title string, header []string, rows [][]any) {
	fmt.Fprintf(w, "%s (%d pending)\n", title, len(rows))
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}
