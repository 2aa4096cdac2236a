// migrate.go -- Applies embedded SQL migrations at startup.
package store

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
)

// migrationLockID is the pg_advisory_xact_lock key held while a migration runs,
// so replicas starting together apply each file once.
const migrationLockID int64 = 0x7761626c696e6b

// Migrate applies every pending *.sql file of migrationsFS in lexical order.
// Each file runs in its own transaction together with its schema_migrations row;
// a failing file is rolled back entirely and stops the run.
func (s *PostgresStore) Migrate(ctx context.Context, migrationsFS fs.FS) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	files, err := fs.Glob(migrationsFS, "*.sql")
	if err != nil {
		return fmt.Errorf("reading migration files: %w", err)
	}
	sort.Strings(files)

	applied := 0
	for _, name := range files {
		sql, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		ran := false
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
				return fmt.Errorf("taking migration lock: %w", err)
			}

			// Checked under the lock: another replica may have just applied it
			var exists bool
			if err := tx.QueryRow(ctx,
				"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", name,
			).Scan(&exists); err != nil {
				return fmt.Errorf("checking version: %w", err)
			}
			if exists {
				return nil
			}

			if _, err := tx.Exec(ctx, string(sql)); err != nil {
				return fmt.Errorf("executing: %w", err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
				return fmt.Errorf("recording version: %w", err)
			}
			ran = true
			return nil
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if ran {
			applied++
			slog.Info("migration applied", "version", name)
		}
	}

	slog.Info("migrations up to date", "files", len(files), "applied", applied)
	return nil
}
