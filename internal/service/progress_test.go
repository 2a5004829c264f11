package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	t.Run("zero processed yields no rate or eta", func(t *testing.T) {
		p := NewProgress(10)

		stats := p.Stats()
		assert.Equal(t, int64(0), stats.Processed)
		assert.Equal(t, int64(10), stats.Total)
		assert.Zero(t, stats.Pct)
		assert.Zero(t, stats.RatePerSec)
		assert.Zero(t, stats.ETASec)
	})

	t.Run("zero total never divides by zero", func(t *testing.T) {
		p := NewProgress(0)
		stats := p.Stats()
		assert.Zero(t, stats.Pct)
	})

	t.Run("percent and rate reflect completions", func(t *testing.T) {
		p := NewProgress(10)
		p.clock = func() time.Time { return p.start.Add(5 * time.Second) }

		p.Add(4)
		stats := p.Stats()

		assert.Equal(t, int64(4), stats.Processed)
		assert.InDelta(t, 40.0, stats.Pct, 0.001)
		assert.InDelta(t, 0.8, stats.RatePerSec, 0.001)
		assert.InDelta(t, 7.5, stats.ETASec, 0.001)
	})

	t.Run("eta decreases as work completes at steady rate", func(t *testing.T) {
		p := NewProgress(100)
		elapsed := time.Duration(0)
		p.clock = func() time.Time { return p.start.Add(elapsed) }

		var prev float64
		for i := 1; i <= 4; i++ {
			p.Add(10)
			elapsed = time.Duration(i) * 10 * time.Second

			stats := p.Stats()
			if i > 1 {
				assert.Less(t, stats.ETASec, prev)
			}
			prev = stats.ETASec
		}
	})

	t.Run("concurrent adds are not lost", func(t *testing.T) {
		p := NewProgress(1000)
		done := make(chan struct{})
		for i := 0; i < 10; i++ {
			go func() {
				for j := 0; j < 100; j++ {
					p.Add(1)
				}
				done <- struct{}{}
			}()
		}
		for i := 0; i < 10; i++ {
			<-done
		}
		assert.Equal(t, int64(1000), p.Stats().Processed)
	})
}
