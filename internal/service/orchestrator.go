package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
	"github.com/fieldline/statline/internal/observability/statsd"
)

// OrchestratorOptions groups dependencies for an Orchestrator.
type OrchestratorOptions struct {
	Ledger      core.Ledger          // Required: job lifecycle store
	Checkpoints core.CheckpointStore // Required: per-lane resume snapshots
	Gap         *GapService          // Required: coverage diffing
	Store       core.RecordStore     // Required: refresh-mode lookups
	Pool        *Pool                // Required: unit execution

	Logger  *slog.Logger // Optional: structured logger
	Metrics statsd.Sink  // Optional: run counters and gauges

	// SuccessRatio is the fraction of planned units that must succeed for a
	// run to finalize as completed. 1.0 means every unit must succeed.
	SuccessRatio float64
	// ProgressFlushInterval controls how often in-flight progress is written
	// back to the ledger during a run.
	ProgressFlushInterval time.Duration
}

// Orchestrator drives a collection run end to end: plan, ledger open, pool
// execution with periodic progress flushes, and finalization.
type Orchestrator struct {
	ledger      core.Ledger
	checkpoints core.CheckpointStore
	gap         *GapService
	store       core.RecordStore
	pool        *Pool

	logger  *slog.Logger
	metrics statsd.Sink

	successRatio  float64
	flushInterval time.Duration
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Ledger == nil {
		return nil, errors.New("Ledger is required")
	}
	if opts.Checkpoints == nil {
		return nil, errors.New("CheckpointStore is required")
	}
	if opts.Gap == nil {
		return nil, errors.New("GapService is required")
	}
	if opts.Store == nil {
		return nil, errors.New("RecordStore is required")
	}
	if opts.Pool == nil {
		return nil, errors.New("Pool is required")
	}

	ratio := opts.SuccessRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1.0
	}
	flush := opts.ProgressFlushInterval
	if flush <= 0 {
		flush = 10 * time.Second
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "orchestrator")
	}
	return &Orchestrator{
		ledger:        opts.Ledger,
		checkpoints:   opts.Checkpoints,
		gap:           opts.Gap,
		store:         opts.Store,
		pool:          opts.Pool,
		logger:        logger,
		metrics:       opts.Metrics,
		successRatio:  ratio,
		flushInterval: flush,
	}, nil
}

// CollectRequest describes one requested collection run.
type CollectRequest struct {
	Type        model.JobType
	Environment string
	League      string
	Range       model.DateRange
	Mode        model.Mode
	Concurrency int
	// Resume picks up the lane's checkpoint instead of starting over.
	Resume bool
	// DryRun plans only: no job row, no fetches, no writes.
	DryRun bool
	// Metadata is stored verbatim on the job row.
	Metadata string
}

// Validate checks the request's typed fields.
func (r CollectRequest) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("invalid job type %q", r.Type)
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", r.Mode)
	}
	if r.Environment == "" {
		return errors.New("environment is required")
	}
	if r.League == "" {
		return errors.New("league is required")
	}
	return r.Range.Validate()
}

// Summary is the final account of a collection run.
type Summary struct {
	JobID            string
	Status           model.JobStatus
	Plan             *model.CollectionPlan
	PlannedUnits     int
	SucceededUnits   int
	RecordsProcessed int64
	RecordsInserted  int64
	Failed           []core.UnitResult
	Elapsed          time.Duration
	DryRun           bool
	Resumed          bool
}

// Collect runs one collection job. Context cancellation pauses the job with
// its checkpoint intact; per-unit failures never abort the run. The returned
// error covers orchestration failures only, a run with failed units returns a
// Summary with Status failed and a nil error.
func (o *Orchestrator) Collect(ctx context.Context, req CollectRequest) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	lane := model.Lane{Type: req.Type, Environment: req.Environment}

	var checkpoint *model.Checkpoint
	if req.Resume {
		loaded, err := o.checkpoints.Load(ctx, lane)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if loaded != nil && loaded.League == req.League &&
			loaded.Range.Start.Equal(req.Range.Start) && loaded.Range.End.Equal(req.Range.End) {
			checkpoint = loaded
		} else if o.logger != nil {
			o.logger.WarnContext(ctx, "no matching checkpoint, starting fresh",
				"lane", lane.String(),
			)
		}
	}

	plan, err := o.buildPlan(ctx, req)
	if err != nil {
		return nil, err
	}
	units := plan.Units()
	if checkpoint != nil {
		units = checkpoint.Remaining(units)
	}

	summary := &Summary{
		Status:       model.JobStatusCompleted,
		Plan:         plan,
		PlannedUnits: len(units),
		DryRun:       req.DryRun,
		Resumed:      checkpoint != nil,
	}
	if req.DryRun {
		o.logPlan(ctx, req, plan, len(units))
		summary.Elapsed = time.Since(start)
		return summary, nil
	}
	if len(units) == 0 {
		// Nothing to collect. Record a completed no-op so the run is auditable.
		job, err := o.openJob(ctx, req, checkpoint)
		if err != nil {
			return nil, err
		}
		summary.JobID = job.ID
		if err := o.finalize(job, summary, false); err != nil {
			return nil, err
		}
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	job, err := o.openJob(ctx, req, checkpoint)
	if err != nil {
		return nil, err
	}
	summary.JobID = job.ID
	o.logPlan(ctx, req, plan, len(units))

	seed := model.Checkpoint{
		JobID:       job.ID,
		Type:        req.Type,
		Environment: req.Environment,
		League:      req.League,
		Range:       req.Range,
	}
	if checkpoint != nil {
		seed.UnitsCompleted = checkpoint.UnitsCompleted
		seed.CurrentUnit = checkpoint.CurrentUnit
	}
	writer, err := NewCheckpointWriter(o.checkpoints, seed, o.logger)
	if err != nil {
		return nil, err
	}

	progress := NewProgress(len(units))
	flushDone := o.startProgressFlusher(job.ID, lane, progress)

	results := o.pool.Run(ctx, RunParams{
		Units:       units,
		League:      req.League,
		Concurrency: req.Concurrency,
		Progress:    progress,
		Checkpoint:  writer,
		Tags: map[string]string{
			"job_type":    string(req.Type),
			"environment": req.Environment,
			"league":      req.League,
		},
	})
	flushDone()

	for _, r := range results {
		if r.OK() {
			summary.SucceededUnits++
			summary.RecordsProcessed += int64(r.Processed)
			summary.RecordsInserted += int64(r.Inserted)
		} else {
			summary.Failed = append(summary.Failed, r)
		}
	}

	canceled := ctx.Err() != nil
	if err := o.finalize(job, summary, canceled); err != nil {
		return nil, err
	}
	summary.Elapsed = time.Since(start)
	return summary, nil
}

// buildPlan derives the unit work list for the request's mode.
func (o *Orchestrator) buildPlan(ctx context.Context, req CollectRequest) (*model.CollectionPlan, error) {
	switch req.Mode {
	case model.ModeFull:
		return model.NewCollectionPlan(req.Mode, req.League, []model.DateRange{req.Range}), nil

	case model.ModeMissing, model.ModeRefresh:
		missing, err := o.gap.MissingUnits(ctx, req.League, req.Range)
		if err != nil {
			return nil, fmt.Errorf("detect gaps: %w", err)
		}
		if req.Mode == model.ModeRefresh {
			missing, err = o.augmentWithLatest(ctx, req, missing)
			if err != nil {
				return nil, err
			}
		}
		return model.NewCollectionPlan(req.Mode, req.League, GroupContiguous(missing)), nil

	default:
		return nil, fmt.Errorf("invalid mode %q", req.Mode)
	}
}

// augmentWithLatest adds the most recent stored unit to a missing-unit list
// so a refresh run re-fetches it and picks up late corrections.
func (o *Orchestrator) augmentWithLatest(ctx context.Context, req CollectRequest, missing []model.DateUnit) ([]model.DateUnit, error) {
	existing, err := o.store.ExistingDates(ctx, req.League, req.Range)
	if err != nil {
		return nil, fmt.Errorf("query existing dates: %w", err)
	}
	if len(existing) == 0 {
		return missing, nil
	}

	latest := existing[len(existing)-1]
	for _, unit := range missing {
		if unit.Equal(latest) {
			return missing, nil
		}
	}
	missing = append(missing, latest)
	// Keep ascending order for contiguous grouping.
	for i := len(missing) - 1; i > 0 && missing[i].Before(missing[i-1]); i-- {
		missing[i], missing[i-1] = missing[i-1], missing[i]
	}
	return missing, nil
}

// openJob opens a fresh ledger row, or revives the prior row a checkpoint
// points at: paused after a graceful interrupt, or still running after a
// hard crash that never reached finalize. A vanished or terminal prior row
// falls back to a fresh one.
func (o *Orchestrator) openJob(ctx context.Context, req CollectRequest, checkpoint *model.Checkpoint) (*model.CollectionJob, error) {
	if checkpoint != nil {
		prior, err := o.ledger.Get(ctx, checkpoint.JobID)
		if err == nil && (prior.Status == model.JobStatusPaused || prior.Status == model.JobStatusRunning) {
			if prior.Status == model.JobStatusPaused {
				status := model.JobStatusRunning
				if err := o.ledger.Update(ctx, prior.ID, model.JobUpdate{Status: &status}); err != nil {
					return nil, fmt.Errorf("revive paused job: %w", err)
				}
				prior.Status = status
			}
			if o.logger != nil {
				o.logger.InfoContext(ctx, "resuming prior job",
					"job_id", prior.ID,
					"units_done", len(checkpoint.UnitsCompleted),
				)
			}
			return prior, nil
		}
	}

	job, err := o.ledger.Start(ctx, core.StartJobParams{
		Type:        req.Type,
		Environment: req.Environment,
		Range:       req.Range,
		League:      req.League,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	return job, nil
}

// startProgressFlusher periodically writes in-flight progress to the ledger.
// The returned func stops the flusher and waits for it to exit. Flushes use
// a background context so a canceled run still lands its last progress write.
func (o *Orchestrator) startProgressFlusher(jobID string, lane model.Lane, progress *Progress) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(o.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				stats := progress.Stats()
				pct := stats.Pct
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := o.ledger.Update(ctx, jobID, model.JobUpdate{ProgressPct: &pct}); err != nil && o.logger != nil {
					o.logger.WarnContext(ctx, "progress flush failed", "job_id", jobID, "error", err)
				}
				cancel()
				if o.metrics != nil {
					o.metrics.Gauge("run.progress_pct", stats.Pct, map[string]string{
						"job_type":    string(lane.Type),
						"environment": lane.Environment,
					})
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

// finalize writes the job's terminal (or paused) state and decides the
// checkpoint's fate. Uses a background context so cancellation of the run
// context cannot lose the final ledger write.
func (o *Orchestrator) finalize(job *model.CollectionJob, summary *Summary, canceled bool) error {
	switch {
	case canceled:
		summary.Status = model.JobStatusPaused
	case summary.PlannedUnits == 0:
		summary.Status = model.JobStatusCompleted
	case float64(summary.SucceededUnits)/float64(summary.PlannedUnits) >= o.successRatio:
		summary.Status = model.JobStatusCompleted
	default:
		summary.Status = model.JobStatusFailed
	}

	processed := job.RecordsProcessed + summary.RecordsProcessed
	inserted := job.RecordsInserted + summary.RecordsInserted
	failed := int64(len(summary.Failed))
	pct := 100.0
	if summary.PlannedUnits > 0 {
		pct = 100 * float64(summary.SucceededUnits) / float64(summary.PlannedUnits)
	}

	patch := model.JobUpdate{
		Status:           &summary.Status,
		RecordsProcessed: &processed,
		RecordsInserted:  &inserted,
		FailedUnits:      &failed,
		ProgressPct:      &pct,
	}
	if summary.Status == model.JobStatusFailed {
		msg := failureMessage(summary.Failed)
		patch.ErrorMessage = &msg
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.ledger.Update(writeCtx, job.ID, patch); err != nil {
		return fmt.Errorf("finalize job %s: %w", job.ID, err)
	}

	if summary.Status == model.JobStatusCompleted {
		if err := o.checkpoints.Clear(writeCtx, job.Lane()); err != nil && o.logger != nil {
			o.logger.WarnContext(writeCtx, "checkpoint clear failed", "job_id", job.ID, "error", err)
		}
	}

	if o.metrics != nil {
		o.metrics.Count("run.finished", 1, map[string]string{
			"job_type":    string(job.Type),
			"environment": job.Environment,
			"status":      string(summary.Status),
		})
	}
	if o.logger != nil {
		o.logger.InfoContext(writeCtx, "run finished",
			"job_id", job.ID,
			"status", string(summary.Status),
			"planned", summary.PlannedUnits,
			"succeeded", summary.SucceededUnits,
			"failed", len(summary.Failed),
			"records_processed", summary.RecordsProcessed,
			"records_inserted", summary.RecordsInserted,
		)
	}
	return nil
}

func (o *Orchestrator) logPlan(ctx context.Context, req CollectRequest, plan *model.CollectionPlan, units int) {
	if o.logger == nil {
		return
	}
	o.logger.InfoContext(ctx, "collection plan built",
		"job_type", string(req.Type),
		"league", req.League,
		"mode", string(req.Mode),
		"range", req.Range.String(),
		"items", len(plan.Items),
		"units", units,
		"dry_run", req.DryRun,
	)
}

// failureMessage condenses failed units into a bounded error string.
func failureMessage(failed []core.UnitResult) string {
	const maxListed = 5
	msg := fmt.Sprintf("%d unit(s) failed:", len(failed))
	for i, r := range failed {
		if i == maxListed {
			msg += fmt.Sprintf(" and %d more", len(failed)-maxListed)
			break
		}
		msg += fmt.Sprintf(" %s (%s);", r.Unit, core.KindOf(r.Err))
	}
	return msg
}
