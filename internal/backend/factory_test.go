package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"harambee/internal/config"
	"harambee/internal/ledger"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	require.ErrorContains(t, err, "invalid backend type")

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", DataDir: "d", SQLiteDBPath: "d/h.db", LedgerFile: "d/l.json"})
	require.NoError(t, err)
	require.Equal(t, Config{Type: SQLiteBackend, DataDirectory: "d", SQLiteDBPath: "d/h.db", LedgerFile: "d/l.json"}, cfg)
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ledger.SeedDepartmentsFile), []byte("Choir\nUshers\n"), 0o644))

	f := NewFactory(nil)
	for _, typ := range GetBackendTypes() {
		t.Run(typ.String(), func(t *testing.T) {
			res, err := f.Open(ctx, Config{
				Type:          typ,
				DataDirectory: dir,
				LedgerFile:    filepath.Join(dir, "ledger.json"),
				SQLiteDBPath:  filepath.Join(dir, "harambee.db"),
			})
			require.NoError(t, err)
			defer res.Close()

			require.Equal(t, typ == SQLiteBackend, res.SQLite != nil)
			departments, err := res.Store.ListDepartments(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{"Choir", "Ushers"}, departments)
		})
	}

	_, err := f.Open(ctx, Config{Type: SQLiteBackend})
	require.Error(t, err)
}
