package data

import "time"

// TimeProvider abstracts the clock so repository tests can pin time.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider returns the actual current time.
type RealTimeProvider struct{}

func (RealTimeProvider) Now() time.Time { return time.Now() }
