package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
)

// CredentialRefresher refreshes source credentials after an auth-expired
// failure. Usually the Source itself.
type CredentialRefresher interface {
	RefreshCredentials(ctx context.Context) error
}

// PacerOptions groups configuration for a Pacer.
type PacerOptions struct {
	// MinSpacing is the minimum gap between external calls, shared across
	// every worker that calls through this pacer.
	MinSpacing time.Duration
	// MaxRetries bounds retries of transient failures per call.
	MaxRetries int
	// BackoffBase: retry n sleeps base^n seconds, capped at BackoffCap.
	BackoffBase float64
	BackoffCap  time.Duration

	Refresher CredentialRefresher // Optional: invoked on auth-expired errors
	Logger    *slog.Logger        // Optional: structured logger
}

// Pacer wraps external calls with shared spacing, transient/fatal
// classification, exponential backoff, and credential refresh. One Pacer is
// shared by all workers hitting the same endpoint.
type Pacer struct {
	limiter     *rate.Limiter
	maxRetries  int
	backoffBase float64
	backoffCap  time.Duration
	refresher   CredentialRefresher
	logger      *slog.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer constructs a Pacer. A zero MinSpacing disables spacing.
func NewPacer(opts PacerOptions) *Pacer {
	limit := rate.Inf
	if opts.MinSpacing > 0 {
		limit = rate.Every(opts.MinSpacing)
	}
	base := opts.BackoffBase
	if base < 1 {
		base = 2
	}
	backoffCap := opts.BackoffCap
	if backoffCap <= 0 {
		backoffCap = 2 * time.Minute
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "pacer")
	}
	return &Pacer{
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  opts.MaxRetries,
		backoffBase: base,
		backoffCap:  backoffCap,
		refresher:   opts.Refresher,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Call runs fn under the shared spacing limit, retrying transient failures
// with exponential backoff and refreshing credentials when they expire.
// Errors come back as *core.UnitError scoped to unit; exhausting retries
// never aborts sibling units.
func (p *Pacer) Call(ctx context.Context, unit model.DateUnit, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return core.NewUnitError(core.KindTransient, unit, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		authExpired := core.IsAuthExpired(lastErr)
		if !authExpired && !core.IsTransient(lastErr) {
			return core.NewUnitError(core.KindFatal, unit, lastErr)
		}
		if attempt >= p.maxRetries {
			break
		}

		if authExpired && p.refresher != nil {
			if refreshErr := p.refresher.RefreshCredentials(ctx); refreshErr != nil && p.logger != nil {
				p.logger.WarnContext(ctx, "credential refresh failed",
					"unit", unit.String(),
					"error", refreshErr,
				)
			}
		}

		delay := p.backoff(attempt)
		if p.logger != nil {
			p.logger.WarnContext(ctx, "transient failure, retrying",
				"unit", unit.String(),
				"attempt", attempt+1,
				"max_retries", p.maxRetries,
				"backoff", delay.String(),
				"error", lastErr,
			)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return core.NewUnitError(core.KindTransient, unit, err)
		}
	}

	return core.NewUnitError(core.KindTransient, unit, lastErr)
}

// backoff returns base^attempt seconds, capped.
func (p *Pacer) backoff(attempt int) time.Duration {
	secs := math.Pow(p.backoffBase, float64(attempt))
	d := time.Duration(secs * float64(time.Second))
	if d > p.backoffCap || d <= 0 {
		return p.backoffCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
