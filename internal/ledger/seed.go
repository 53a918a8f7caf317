package ledger

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// SeedDepartmentsFile overrides the default departments of a fresh ledger
// when present in the data directory.
const SeedDepartmentsFile = "seed_departments.txt"

// LoadSeedDepartments reads dir/seed_departments.txt, one department per
// line. Blank lines and lines starting with # are ignored. A missing file
// yields nil.
func LoadSeedDepartments(dir string) []string {
	f, err := os.Open(filepath.Join(dir, SeedDepartmentsFile))
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
