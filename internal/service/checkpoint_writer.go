package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
)

// CheckpointWriter serializes checkpoint appends from concurrent workers and
// persists a snapshot after each one. Save failures are logged and swallowed;
// losing a snapshot only costs re-fetching on resume, never correctness,
// because the store upsert is idempotent.
type CheckpointWriter struct {
	store  core.CheckpointStore
	logger *slog.Logger

	mu       sync.Mutex
	snapshot model.Checkpoint
}

// NewCheckpointWriter seeds a writer with the run's initial snapshot. On a
// resumed run the seed carries the prior UnitsCompleted set.
func NewCheckpointWriter(store core.CheckpointStore, seed model.Checkpoint, logger *slog.Logger) (*CheckpointWriter, error) {
	if store == nil {
		return nil, fmt.Errorf("CheckpointStore is required")
	}
	if logger != nil {
		logger = logger.With("component", "checkpoint_writer")
	}
	return &CheckpointWriter{store: store, logger: logger, snapshot: seed}, nil
}

// Append marks unit complete and persists the updated snapshot.
func (w *CheckpointWriter) Append(ctx context.Context, unit model.DateUnit) {
	w.mu.Lock()
	w.snapshot.Append(unit)
	snapshot := w.snapshot
	snapshot.UnitsCompleted = append([]model.DateUnit(nil), w.snapshot.UnitsCompleted...)
	w.mu.Unlock()

	if err := w.store.Save(ctx, &snapshot); err != nil && w.logger != nil {
		w.logger.WarnContext(ctx, "checkpoint save failed",
			"job_id", snapshot.JobID,
			"unit", unit.String(),
			"error", err,
		)
	}
}

// Snapshot returns a copy of the current checkpoint state.
func (w *CheckpointWriter) Snapshot() model.Checkpoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	snapshot := w.snapshot
	snapshot.UnitsCompleted = append([]model.DateUnit(nil), w.snapshot.UnitsCompleted...)
	return snapshot
}
