package service

import (
	"sync/atomic"
	"time"
)

// Progress tracks unit completions across workers. The counter is atomic;
// everything else is derived on read.
type Progress struct {
	total     int64
	processed atomic.Int64
	start     time.Time
	clock     func() time.Time
}

// NewProgress starts tracking a run of total units.
func NewProgress(total int) *Progress {
	return &Progress{
		total: int64(total),
		start: time.Now(),
		clock: time.Now,
	}
}

// Add records n more completed units. Safe for concurrent use.
func (p *Progress) Add(n int) {
	p.processed.Add(int64(n))
}

// ProgressStats is a point-in-time view of a run.
type ProgressStats struct {
	Processed  int64
	Total      int64
	Pct        float64
	RatePerSec float64
	ETASec     float64
}

// Stats derives percent-complete, throughput, and ETA. Rate and ETA are zero
// until at least one unit has completed.
func (p *Progress) Stats() ProgressStats {
	processed := p.processed.Load()
	stats := ProgressStats{Processed: processed, Total: p.total}

	if p.total > 0 {
		stats.Pct = 100 * float64(processed) / float64(p.total)
	}
	if processed == 0 {
		return stats
	}

	elapsed := p.clock().Sub(p.start).Seconds()
	if elapsed <= 0 {
		return stats
	}
	stats.RatePerSec = float64(processed) / elapsed
	if stats.RatePerSec > 0 {
		stats.ETASec = float64(p.total-processed) / stats.RatePerSec
	}
	return stats
}
