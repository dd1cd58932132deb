package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/uptrace/bun"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// ApplyMigrations executes the embedded *.sql migration files in lexical
// order. Each file runs in its own write transaction.
func ApplyMigrations(ctx context.Context, db *DB) error {
	return applyMigrationsFromFS(ctx, db, embeddedMigrations, "migrations")
}

func applyMigrationsFromFS(ctx context.Context, db *DB, migrationsFS fs.FS, root string) error {
	entries, err := fs.ReadDir(migrationsFS, root)
	if err != nil {
		return fmt.Errorf("read migrations fs: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		sqlBytes, err := fs.ReadFile(migrationsFS, filepath.Join(root, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			_, execErr := tx.ExecContext(ctx, string(sqlBytes))
			return execErr
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
