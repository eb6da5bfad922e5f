package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

	// The stock ledger is append-only; no migration may rewrite its history.
	ledgerRewriteRe = regexp.MustCompile(`(?is)\b(update\s+inventory_transactions\b|delete\s+from\s+inventory_transactions\b|truncate\s+(table\s+)?inventory_transactions\b)`)
)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// ValidateDir checks every .sql file in dir for a well-formed name, a unique
// version, goose Up/Down sections in that order and no ledger rewrites in Up.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkSections(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func checkSections(sql string) error {
	up := strings.Index(sql, upMarker)
	down := strings.Index(sql, downMarker)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", upMarker)
	case down < 0:
		return fmt.Errorf("missing %q", downMarker)
	case down < up:
		return fmt.Errorf("%q must come before %q", upMarker, downMarker)
	}
	if stmt := ledgerRewriteRe.FindString(sql[up:down]); stmt != "" {
		return fmt.Errorf("rewrites the append-only stock ledger (%s)", strings.Join(strings.Fields(stmt), " "))
	}
	return nil
}
