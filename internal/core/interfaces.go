// Package core defines the ports the collection engine is built against.
// Services depend on these interfaces; internal/data, internal/source, and
// internal/parser provide the implementations.
package core

import (
	"context"

	"github.com/fieldline/statline/internal/domain/model"
)

// Source is the remote data provider. FetchDate returns the raw feed
// payload for one unit; failures should satisfy the Transient/AuthExpired
// classification interfaces in this package so the pacer can retry them
// correctly. RefreshCredentials is invoked when a call reports expired
// credentials, before the next attempt.
type Source interface {
	FetchDate(ctx context.Context, league string, unit model.DateUnit) ([]byte, error)
	RefreshCredentials(ctx context.Context) error
}

// Parser turns a raw feed payload into typed records. Pure, no I/O.
// An empty-but-valid payload yields an empty slice and a nil error;
// a malformed payload yields an error.
type Parser interface {
	Parse(payload []byte) ([]model.StatRecord, error)
}

// RecordStore is the domain-data store. UpsertBatch is idempotent: writing
// an already-present natural key overwrites the row. The returned count is
// the number of newly inserted (not overwritten) records.
type RecordStore interface {
	ExistingDates(ctx context.Context, league string, rng model.DateRange) ([]model.DateUnit, error)
	UpsertBatch(ctx context.Context, records []model.StatRecord) (int, error)
}

// StartJobParams carries everything needed to open a ledger row.
type StartJobParams struct {
	Type        model.JobType
	Environment string
	Range       model.DateRange
	League      string
	Metadata    string
}

// Ledger is the durable record of job lifecycle, counts, and errors.
// Update applies a partial patch and is safe to call concurrently from
// multiple workers (fields are monotonic counters or terminal statuses).
type Ledger interface {
	Start(ctx context.Context, params StartJobParams) (*model.CollectionJob, error)
	Update(ctx context.Context, jobID string, patch model.JobUpdate) error
	Get(ctx context.Context, jobID string) (*model.CollectionJob, error)
	FindRunning(ctx context.Context, lane model.Lane) (*model.CollectionJob, error)
}

// CheckpointStore persists the latest checkpoint snapshot per lane.
// Load returns (nil, nil) when no snapshot exists.
type CheckpointStore interface {
	Save(ctx context.Context, snapshot *model.Checkpoint) error
	Load(ctx context.Context, lane model.Lane) (*model.Checkpoint, error)
	Clear(ctx context.Context, lane model.Lane) error
}

// UnitResult is the per-unit outcome reported by the worker pool.
// Err is nil for a successful unit and a *UnitError otherwise.
type UnitResult struct {
	Unit      model.DateUnit
	Processed int
	Inserted  int
	Err       error
}

// OK reports whether the unit completed successfully.
func (r UnitResult) OK() bool { return r.Err == nil }
