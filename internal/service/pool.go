package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
	obserrors "github.com/fieldline/statline/internal/observability/errors"
	"github.com/fieldline/statline/internal/observability/statsd"
)

// PoolOptions groups dependencies for a Pool.
type PoolOptions struct {
	Source core.Source      // Required: remote data provider
	Parser core.Parser      // Required: payload decoder
	Store  core.RecordStore // Required: record sink
	Pacer  *Pacer           // Required: shared spacing and retry policy

	Logger  *slog.Logger // Optional: structured logger
	Metrics statsd.Sink  // Optional: per-unit counters and timings

	// Stagger delays each worker's start by index*Stagger so a cold run does
	// not slam the remote with simultaneous first requests.
	Stagger time.Duration
	// StoreRetries bounds immediate retries of a failed batch write.
	StoreRetries int
	// StoreRetryable reports whether a failed batch write is worth retrying.
	// Nil retries every store error.
	StoreRetryable func(error) bool
	// UnitTimeout caps one unit's fetch as a whole, pacer waits and retries
	// included. Zero means no cap.
	UnitTimeout time.Duration
}

// Pool fans a unit list out over a fixed set of workers. Each worker owns a
// contiguous share of the list and walks it in ascending date order, so a
// failure stays isolated to its unit and the per-worker access pattern stays
// sequential.
type Pool struct {
	source core.Source
	parser core.Parser
	store  core.RecordStore
	pacer  *Pacer

	logger  *slog.Logger
	metrics statsd.Sink

	stagger        time.Duration
	storeRetries   int
	storeRetryable func(error) bool
	unitTimeout    time.Duration
}

// NewPool constructs a Pool.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.Source == nil {
		return nil, errors.New("Source is required")
	}
	if opts.Parser == nil {
		return nil, errors.New("Parser is required")
	}
	if opts.Store == nil {
		return nil, errors.New("RecordStore is required")
	}
	if opts.Pacer == nil {
		return nil, errors.New("Pacer is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "pool")
	}
	return &Pool{
		source:         opts.Source,
		parser:         opts.Parser,
		store:          opts.Store,
		pacer:          opts.Pacer,
		logger:         logger,
		metrics:        opts.Metrics,
		stagger:        opts.Stagger,
		storeRetries:   opts.StoreRetries,
		storeRetryable: opts.StoreRetryable,
		unitTimeout:    opts.UnitTimeout,
	}, nil
}

// RunParams describes one pool run.
type RunParams struct {
	Units       []model.DateUnit
	League      string
	Concurrency int

	Progress   *Progress         // Optional: shared completion counter
	Checkpoint *CheckpointWriter // Optional: persisted after each unit
	Tags       map[string]string // Optional: base metric tags
}

// Run processes every unit and returns one result per unit, sorted by date.
// A fatal unit error is recorded and skipped; only context cancellation stops
// the run early, and even then results for finished units are returned.
func (p *Pool) Run(ctx context.Context, params RunParams) []core.UnitResult {
	if len(params.Units) == 0 {
		return nil
	}
	workers := params.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(params.Units) {
		workers = len(params.Units)
	}

	var (
		mu      sync.Mutex
		results = make([]core.UnitResult, 0, len(params.Units))
	)

	group, ctx := errgroup.WithContext(ctx)
	for i, share := range partition(params.Units, workers) {
		i, share := i, share
		group.Go(func() error {
			if p.stagger > 0 && i > 0 {
				if err := sleepCtx(ctx, time.Duration(i)*p.stagger); err != nil {
					return nil
				}
			}
			for _, unit := range share {
				if ctx.Err() != nil {
					return nil
				}
				result := p.processUnit(ctx, params, unit)
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Unit.Before(results[j].Unit)
	})
	return results
}

// processUnit runs the fetch, parse, store pipeline for one unit. The
// returned result always carries the unit; Err is a *core.UnitError on
// failure.
func (p *Pool) processUnit(ctx context.Context, params RunParams, unit model.DateUnit) core.UnitResult {
	result := core.UnitResult{Unit: unit}
	start := time.Now()

	// The unit deadline covers the whole paced call: limiter waits, every
	// retry attempt, and the backoff sleeps between them.
	callCtx := ctx
	if p.unitTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.unitTimeout)
		defer cancel()
	}

	var payload []byte
	err := p.pacer.Call(callCtx, unit, func(ctx context.Context) error {
		var fetchErr error
		payload, fetchErr = p.source.FetchDate(ctx, params.League, unit)
		return fetchErr
	})
	if err != nil {
		result.Err = err
		p.observeUnit(ctx, params, result, time.Since(start))
		return result
	}

	records, err := p.parser.Parse(payload)
	if err != nil {
		result.Err = core.NewUnitError(core.KindParse, unit, err)
		p.observeUnit(ctx, params, result, time.Since(start))
		return result
	}
	result.Processed = len(records)

	if len(records) > 0 {
		inserted, err := p.upsertWithRetry(ctx, records)
		if err != nil {
			result.Processed = 0
			result.Err = core.NewUnitError(core.KindStore, unit, err)
			p.observeUnit(ctx, params, result, time.Since(start))
			return result
		}
		result.Inserted = inserted
	}

	if params.Checkpoint != nil {
		params.Checkpoint.Append(ctx, unit)
	}
	if params.Progress != nil {
		params.Progress.Add(1)
	}
	p.observeUnit(ctx, params, result, time.Since(start))
	return result
}

// upsertWithRetry retries a failed batch write a bounded number of times.
// Store retries are immediate, not paced; the store is local and fast.
func (p *Pool) upsertWithRetry(ctx context.Context, records []model.StatRecord) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= p.storeRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		inserted, err := p.store.UpsertBatch(ctx, records)
		if err == nil {
			return inserted, nil
		}
		lastErr = err
		if p.storeRetryable != nil && !p.storeRetryable(err) {
			break
		}
	}
	return 0, lastErr
}

func (p *Pool) observeUnit(ctx context.Context, params RunParams, result core.UnitResult, elapsed time.Duration) {
	if p.metrics != nil {
		tags := statsd.CloneTags(params.Tags)
		if tags == nil {
			tags = map[string]string{}
		}
		if result.OK() {
			tags["status"] = "ok"
		} else {
			tags["status"] = "error"
			tags["error_class"] = obserrors.Classify(result.Err)
		}
		p.metrics.Count("unit.completed", 1, tags)
		p.metrics.Count("unit.records", int64(result.Processed), tags)
		p.metrics.Timing("unit.duration", elapsed, tags)
	}

	if p.logger == nil {
		return
	}
	if result.OK() {
		p.logger.DebugContext(ctx, "unit collected",
			"unit", result.Unit.String(),
			"records", result.Processed,
			"inserted", result.Inserted,
			"elapsed", elapsed.String(),
		)
		return
	}
	p.logger.ErrorContext(ctx, "unit failed",
		"unit", result.Unit.String(),
		"kind", core.KindOf(result.Err).String(),
		"error", result.Err,
	)
}

// partition splits units into n contiguous shares of near-equal size. Units
// are assumed sorted; each share preserves that order.
func partition(units []model.DateUnit, n int) [][]model.DateUnit {
	shares := make([][]model.DateUnit, 0, n)
	size := len(units) / n
	extra := len(units) % n

	offset := 0
	for i := 0; i < n; i++ {
		length := size
		if i < extra {
			length++
		}
		shares = append(shares, units[offset:offset+length])
		offset += length
	}
	return shares
}
