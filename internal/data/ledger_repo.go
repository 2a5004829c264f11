package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
)

// LedgerRepoConfig holds configuration options for the job ledger repository.
type LedgerRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// LedgerRepo persists collection job rows in the collection_jobs table.
type LedgerRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.Ledger = (*LedgerRepo)(nil)

// NewLedgerRepo creates a LedgerRepo with the given database connection.
func NewLedgerRepo(db *sql.DB, cfg LedgerRepoConfig) *LedgerRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &LedgerRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  job_id,
  job_type,
  environment,
  status,
  range_start,
  range_end,
  league,
  records_processed,
  records_inserted,
  failed_units,
  progress_pct,
  error_message,
  metadata,
  created_at,
  ended_at
`

// newJobID builds a globally unique, sortable job id: UTC timestamp plus a
// random suffix.
func newJobID(now time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return now.UTC().Format("20060102T150405") + "-" + suffix
}

// Start inserts a running ledger row for the given lane. The partial unique
// index on (job_type, environment) WHERE status = 'running' rejects a second
// concurrent job in the same lane.
func (r *LedgerRepo) Start(ctx context.Context, params core.StartJobParams) (*model.CollectionJob, error) {
	if !params.Type.Valid() {
		return nil, fmt.Errorf("invalid job type: %s", params.Type)
	}
	if params.Environment == "" {
		return nil, errors.New("environment is required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if params.League == "" {
		return nil, errors.New("league is required")
	}

	now := r.timeProvider.Now().UTC()
	id := newJobID(now)

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO collection_jobs
		  (job_id, job_type, environment, status, range_start, range_end, league, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+jobColumns,
		id, params.Type, params.Environment, model.JobStatusRunning,
		params.Range.Start.Time(), params.Range.End.Time(),
		params.League, params.Metadata, now,
	)

	job, err := scanJob(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrJobAlreadyRunning
		}
		return nil, fmt.Errorf("start job: %w", err)
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "job started",
			"job_id", job.ID,
			"job_type", job.Type,
			"environment", job.Environment,
			"range", job.Range.String(),
		)
	}
	return job, nil
}

// Update applies a partial patch to a ledger row. Omitted fields are left
// unchanged. Terminal statuses additionally set ended_at; counter fields are
// absolute values written last-write-wins, which is safe because callers
// only move them forward. A status patch against a completed or failed row
// is rejected with ErrJobFinished: terminal states never transition back.
func (r *LedgerRepo) Update(ctx context.Context, jobID string, patch model.JobUpdate) error {
	if strings.TrimSpace(jobID) == "" {
		return errors.New("job id is required")
	}
	if patch.Empty() {
		return nil
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("invalid job status: %s", *patch.Status)
	}

	set := make([]string, 0, 7)
	args := []any{jobID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Status != nil {
		set = append(set, "status = "+arg(*patch.Status))
		if patch.Status.Terminal() {
			set = append(set, "ended_at = "+arg(r.timeProvider.Now().UTC()))
		}
	}
	if patch.RecordsProcessed != nil {
		set = append(set, "records_processed = "+arg(*patch.RecordsProcessed))
	}
	if patch.RecordsInserted != nil {
		set = append(set, "records_inserted = "+arg(*patch.RecordsInserted))
	}
	if patch.FailedUnits != nil {
		set = append(set, "failed_units = "+arg(*patch.FailedUnits))
	}
	if patch.ProgressPct != nil {
		set = append(set, "progress_pct = "+arg(*patch.ProgressPct))
	}
	if patch.ErrorMessage != nil {
		set = append(set, "error_message = "+arg(*patch.ErrorMessage))
	}

	query := `UPDATE collection_jobs SET ` + strings.Join(set, ", ") + ` WHERE job_id = $1`
	if patch.Status != nil {
		query += ` AND status NOT IN (` + arg(model.JobStatusCompleted) + `, ` + arg(model.JobStatusFailed) + `)`
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s rows affected: %w", jobID, err)
	}
	if affected == 0 {
		if patch.Status != nil {
			if _, getErr := r.Get(ctx, jobID); getErr == nil {
				return ErrJobFinished
			}
		}
		return ErrJobNotFound
	}
	return nil
}

// Get retrieves a ledger row by job id.
func (r *LedgerRepo) Get(ctx context.Context, jobID string) (*model.CollectionJob, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM collection_jobs
		WHERE job_id = $1
	`, jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// FindRunning returns the lane's running job, or nil when the lane is idle.
func (r *LedgerRepo) FindRunning(ctx context.Context, lane model.Lane) (*model.CollectionJob, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM collection_jobs
		WHERE job_type = $1 AND environment = $2 AND status = $3
	`, lane.Type, lane.Environment, model.JobStatusRunning)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find running job for %s: %w", lane, err)
	}
	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner jobRowScanner) (*model.CollectionJob, error) {
	var (
		job                  model.CollectionJob
		rangeStart, rangeEnd time.Time
		errMsg               sql.NullString
		endedAt              sql.NullTime
	)
	err := scanner.Scan(
		&job.ID,
		&job.Type,
		&job.Environment,
		&job.Status,
		&rangeStart,
		&rangeEnd,
		&job.League,
		&job.RecordsProcessed,
		&job.RecordsInserted,
		&job.FailedUnits,
		&job.ProgressPct,
		&errMsg,
		&job.Metadata,
		&job.CreatedAt,
		&endedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Range = model.DateRange{
		Start: model.NewDateUnit(rangeStart),
		End:   model.NewDateUnit(rangeEnd),
	}
	if errMsg.Valid {
		s := errMsg.String
		job.ErrorMessage = &s
	}
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		job.EndedAt = &t
	}
	return &job, nil
}
