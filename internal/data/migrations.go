package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldline/statline/internal/data/pgxutil"
)

// migration is one ordered schema change. Migrations are applied in slice
// order and recorded in schema_migrations; already-applied versions are
// skipped.
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create_collection_jobs",
		sql: `
CREATE TABLE IF NOT EXISTS collection_jobs (
  job_id            text PRIMARY KEY,
  job_type          text NOT NULL,
  environment       text NOT NULL,
  status            text NOT NULL,
  range_start       date NOT NULL,
  range_end         date NOT NULL,
  league            text NOT NULL,
  records_processed bigint NOT NULL DEFAULT 0,
  records_inserted  bigint NOT NULL DEFAULT 0,
  failed_units      bigint NOT NULL DEFAULT 0,
  progress_pct      double precision NOT NULL DEFAULT 0,
  error_message     text,
  metadata          text NOT NULL DEFAULT '',
  created_at        timestamptz NOT NULL DEFAULT now(),
  ended_at          timestamptz
);

-- One running job per (job_type, environment) lane.
CREATE UNIQUE INDEX IF NOT EXISTS collection_jobs_one_running
  ON collection_jobs (job_type, environment)
  WHERE status = 'running';

CREATE INDEX IF NOT EXISTS collection_jobs_created_at
  ON collection_jobs (created_at DESC);
`,
	},
	{
		version: 2,
		name:    "create_stat_lines",
		sql: `
CREATE TABLE IF NOT EXISTS stat_lines (
  league       text NOT NULL,
  stat_date    date NOT NULL,
  entity_id    text NOT NULL,
  stat_group   text NOT NULL,
  payload      jsonb NOT NULL,
  collected_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (league, stat_date, entity_id, stat_group)
);

CREATE INDEX IF NOT EXISTS stat_lines_league_date
  ON stat_lines (league, stat_date);
`,
	},
}

// RunMigrations applies pending migrations, each in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    integer PRIMARY KEY,
			name       text NOT NULL,
			applied_at timestamptz NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := migrationApplied(ctx, db, m.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		err = pgxutil.WithSQLTx(ctx, db, pgxutil.SQLTxConfig{
			Fn: func(tx *sql.Tx) error {
				if _, execErr := tx.ExecContext(ctx, m.sql); execErr != nil {
					return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, execErr)
				}
				if _, execErr := tx.ExecContext(ctx,
					`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
					m.version, m.name,
				); execErr != nil {
					return fmt.Errorf("record migration %d: %w", m.version, execErr)
				}
				return nil
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func migrationApplied(ctx context.Context, db *sql.DB, version int) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %d: %w", version, err)
	}
	return exists, nil
}
