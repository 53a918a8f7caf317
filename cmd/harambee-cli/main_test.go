package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

const janeMessage = "QAB1CD2EF3 Confirmed. You have received Ksh500.00 from Jane 0712345678 on 20/1/25 at 8:54 PM New M-PESA balance is Ksh5,000.00."

func setupEnv(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", backend)
	t.Setenv("DATA_DIR", dir)
	t.Setenv("LEDGER_FILE", filepath.Join(dir, "ledger.json"))
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "db", "harambee.db"))
	t.Setenv("TIMEZONE", "UTC")
	for _, key := range []string{"AMQP_URL", "GOOGLE_SPREADSHEET_ID", "GOOGLE_SHEET_NAME", "GOOGLE_EXPENSE_SHEET_NAME", "SYNC_BATCH_SIZE"} {
		t.Setenv(key, "")
	}

	exiter := cli.OsExiter
	cli.OsExiter = func(int) {}
	t.Cleanup(func() { cli.OsExiter = exiter })
	return dir
}

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "paste.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&out)
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run(append([]string{"harambee-cli"}, args...))
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	dir := setupEnv(t, "memory")

	out, err := run(t, "parse", "--file", writeFile(t, dir, janeMessage))
	require.NoError(t, err)
	require.Contains(t, out, `"outcome": "found"`)
	require.Contains(t, out, "QAB1CD2EF3")

	_, err = run(t, "parse", "--file", writeFile(t, dir, "  "))
	require.EqualError(t, err, "nothing to parse")

	_, err = run(t, "parse", "--file", writeFile(t, dir, "hello"))
	require.EqualError(t, err, "no valid messages found")

	stdin = strings.NewReader(janeMessage)
	t.Cleanup(func() { stdin = os.Stdin })
	out, err = run(t, "parse")
	require.NoError(t, err)
	require.Contains(t, out, "QAB1CD2EF3")
}

func TestCommitCommand(t *testing.T) {
	dir := setupEnv(t, "memory")
	paste := writeFile(t, dir, janeMessage)

	_, err := run(t, "commit", "--file", paste)
	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	require.Equal(t, 2, exit.ExitCode())

	out, err := run(t, "commit", "-d", "Youth", "--file", paste)
	require.NoError(t, err)
	require.Contains(t, out, `"committed": [`)
	require.Contains(t, out, `"department": "Youth"`)

	saved, err := os.ReadFile(filepath.Join(dir, "ledger.json"))
	require.NoError(t, err)
	require.Contains(t, string(saved), "QAB1CD2EF3")

	out, err = run(t, "commit", "-d", "Youth", "--file", paste)
	require.NoError(t, err)
	require.Contains(t, out, "duplicate: Jane (Youth)")
}

func TestMigrateAndDryRunSync(t *testing.T) {
	dir := setupEnv(t, "sqlite")

	out, err := run(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "migrated to version 2")

	_, err = run(t, "commit", "-d", "Youth", "--file", writeFile(t, dir, janeMessage))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		out, err = run(t, "sync", "--dry-run")
		require.NoError(t, err)
		require.Contains(t, out, "Transactions (1 pending)")
		require.Contains(t, out, "QAB1CD2EF3")
		require.Contains(t, out, "Expenses (0 pending)")
	}

	_, err = run(t, "sync")
	require.Error(t, err, "a real sync needs a spreadsheet")
}

func TestSyncNeedsSQLite(t *testing.T) {
	setupEnv(t, "memory")
	_, err := run(t, "sync", "--dry-run")
	require.ErrorContains(t, err, "sqlite")
}
