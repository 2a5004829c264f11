package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/data/pgxutil"
	"github.com/fieldline/statline/internal/domain/model"
)

// RecordRepoConfig holds configuration options for the stat line repository.
type RecordRepoConfig struct {
	Logger *slog.Logger
}

// RecordRepo persists parsed stat lines. The (league, stat_date, entity_id,
// stat_group) primary key makes every upsert idempotent: re-collecting a
// date overwrites rows instead of duplicating them.
type RecordRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

var _ core.RecordStore = (*RecordRepo)(nil)

// NewRecordRepo creates a RecordRepo with the given database connection.
func NewRecordRepo(db *sql.DB, cfg RecordRepoConfig) *RecordRepo {
	return &RecordRepo{DB: db, logger: cfg.Logger}
}

// ExistingDates returns the distinct dates inside rng that already hold
// records for the league, ascending.
func (r *RecordRepo) ExistingDates(
	ctx context.Context,
	league string,
	rng model.DateRange,
) ([]model.DateUnit, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT DISTINCT stat_date
		FROM stat_lines
		WHERE league = $1 AND stat_date BETWEEN $2 AND $3
		ORDER BY stat_date
	`, league, rng.Start.Time(), rng.End.Time())
	if err != nil {
		return nil, fmt.Errorf("existing dates for %s %s: %w", league, rng, err)
	}
	defer rows.Close()

	var dates []model.DateUnit
	for rows.Next() {
		var d sql.NullTime
		if scanErr := rows.Scan(&d); scanErr != nil {
			return nil, fmt.Errorf("scan stat date: %w", scanErr)
		}
		if d.Valid {
			dates = append(dates, model.NewDateUnit(d.Time))
		}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("existing dates rows: %w", rowsErr)
	}
	return dates, nil
}

const upsertStatLineSQL = `
	INSERT INTO stat_lines (league, stat_date, entity_id, stat_group, payload, collected_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (league, stat_date, entity_id, stat_group)
	DO UPDATE SET payload = EXCLUDED.payload, collected_at = now()
	RETURNING (xmax = 0) AS inserted
`

// UpsertBatch writes records through one pgx batch. The returned count is
// the number of freshly inserted rows; overwritten rows are not counted
// (xmax = 0 distinguishes an insert from a conflict-update).
func (r *RecordRepo) UpsertBatch(ctx context.Context, records []model.StatRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}

	inserted := 0
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(upsertStatLineSQL,
				rec.League, rec.StatDate.Time(), rec.EntityID, rec.StatGroup, []byte(rec.Payload),
			)
		}

		results := conn.SendBatch(ctx, batch)
		defer func() {
			if closeErr := results.Close(); closeErr != nil {
				_ = closeErr
			}
		}()

		for range records {
			var fresh bool
			if scanErr := results.QueryRow().Scan(&fresh); scanErr != nil {
				return fmt.Errorf("upsert stat line: %w", scanErr)
			}
			if fresh {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "stat lines upserted",
			"records", len(records),
			"inserted", inserted,
		)
	}
	return inserted, nil
}
