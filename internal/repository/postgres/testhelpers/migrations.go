package testhelpers

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ApplyMigrations applies every .up.sql file of dir in name order.
func ApplyMigrations(db *sql.DB, dir string) error {
	return run(db, dir, ".up.sql", false)
}

// RollbackMigrations applies every .down.sql file of dir in reverse order.
func RollbackMigrations(db *sql.DB, dir string) error {
	return run(db, dir, ".down.sql", true)
}

// ResetSchema rolls the schema back and applies it again, so a test
// database left over from an older schema is rebuilt.
func ResetSchema(db *sql.DB, dir string) error {
	if err := RollbackMigrations(db, dir); err != nil {
		return err
	}
	return ApplyMigrations(db, dir)
}

func run(db *sql.DB, dir, suffix string, reverse bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
