package config

import "time"

// CollectorConfig tunes the collection engine.
type CollectorConfig struct {
	// Concurrency is the worker count. Kept small: the bound is the remote
	// rate limit, not local CPU.
	Concurrency int `env:"CONCURRENCY" envDefault:"2"`
	// WorkerStagger delays each worker's launch to avoid a thundering herd
	// on shared credentials at startup.
	WorkerStagger time.Duration `env:"WORKER_STAGGER" envDefault:"250ms"`
	// UnitTimeout bounds one unit's fetch end to end, including pacer waits
	// and retries. Expiry counts as a transient failure for that unit.
	UnitTimeout time.Duration `env:"UNIT_TIMEOUT" envDefault:"5m"`
	// StoreRetries is the fixed retry budget for retryable store writes.
	StoreRetries int `env:"STORE_RETRIES" envDefault:"2"`
	// SuccessRatio is the fraction of planned units that must succeed for
	// the job to finalize as completed. 1.0 means any failure fails the job.
	SuccessRatio float64 `env:"SUCCESS_RATIO" envDefault:"1.0"`
	// ProgressFlushInterval is how often worker progress is persisted to
	// the job ledger while a run is in flight.
	ProgressFlushInterval time.Duration `env:"PROGRESS_FLUSH_INTERVAL" envDefault:"10s"`
}

// Sanitize clamps collector settings to workable bounds.
func (c *CollectorConfig) Sanitize() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Concurrency > 8 {
		c.Concurrency = 8
	}
	if c.WorkerStagger < 0 {
		c.WorkerStagger = 0
	}
	if c.UnitTimeout <= 0 {
		c.UnitTimeout = 5 * time.Minute
	}
	if c.StoreRetries < 0 {
		c.StoreRetries = 0
	}
	if c.SuccessRatio < 0 {
		c.SuccessRatio = 0
	}
	if c.SuccessRatio > 1 {
		c.SuccessRatio = 1
	}
	if c.ProgressFlushInterval <= 0 {
		c.ProgressFlushInterval = 10 * time.Second
	}
}
