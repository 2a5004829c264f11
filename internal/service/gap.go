// Package service implements the collection engine: gap detection, pacing,
// the worker pool, progress tracking, and the run orchestrator.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
)

// GapServiceOptions groups dependencies for GapService.
type GapServiceOptions struct {
	Store  core.RecordStore // Required: store to diff coverage against
	Logger *slog.Logger     // Optional: structured logger
}

// GapService computes which units of a requested coverage interval are
// missing from the store.
type GapService struct {
	store  core.RecordStore
	logger *slog.Logger
}

// NewGapService constructs a GapService.
func NewGapService(opts GapServiceOptions) (*GapService, error) {
	if opts.Store == nil {
		return nil, errors.New("RecordStore is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "gap_service")
	}
	return &GapService{store: opts.Store, logger: logger}, nil
}

// MissingUnits returns the ordered complement of stored dates within rng for
// the league. An empty store means everything is missing; results never fall
// outside the requested interval.
func (s *GapService) MissingUnits(
	ctx context.Context,
	league string,
	rng model.DateRange,
) ([]model.DateUnit, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.ExistingDates(ctx, league, rng)
	if err != nil {
		return nil, fmt.Errorf("query existing dates: %w", err)
	}

	have := make(map[string]struct{}, len(existing))
	for _, unit := range existing {
		if rng.Contains(unit) {
			have[unit.String()] = struct{}{}
		}
	}

	missing := make([]model.DateUnit, 0, rng.Days()-len(have))
	for unit := rng.Start; !unit.After(rng.End); unit = unit.Next() {
		if _, ok := have[unit.String()]; !ok {
			missing = append(missing, unit)
		}
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "gap detection complete",
			"league", league,
			"range", rng.String(),
			"existing", len(have),
			"missing", len(missing),
		)
	}
	return missing, nil
}

// GroupContiguous merges a sorted unit list into maximal contiguous ranges.
// A gap of more than one day breaks a run. Useful for batching fetches when
// the remote accepts ranges; purely a locality optimization.
func GroupContiguous(units []model.DateUnit) []model.DateRange {
	if len(units) == 0 {
		return nil
	}

	var ranges []model.DateRange
	start := units[0]
	prev := units[0]
	for _, unit := range units[1:] {
		if prev.DaysUntil(unit) > 1 {
			ranges = append(ranges, model.DateRange{Start: start, End: prev})
			start = unit
		}
		prev = unit
	}
	return append(ranges, model.DateRange{Start: start, End: prev})
}
