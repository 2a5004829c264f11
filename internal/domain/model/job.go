// Package model holds the domain types shared by the collection engine.
package model

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a collection job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusPaused    JobStatus = "paused"
)

// Valid reports whether the status is a known lifecycle state.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusPaused:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends a job. Terminal transitions set
// EndedAt; paused jobs remain resumable and carry no end timestamp.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobType identifies which collection subsystem a job belongs to.
type JobType string

const (
	JobTypeStats  JobType = "stats"
	JobTypeRoster JobType = "roster"
)

// Valid reports whether the job type is known.
func (t JobType) Valid() bool {
	return t == JobTypeStats || t == JobTypeRoster
}

// ParseJobType parses a CLI/job-type string.
func ParseJobType(s string) (JobType, error) {
	t := JobType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown job type %q (want stats or roster)", s)
	}
	return t, nil
}

// Lane is the logical (job type, environment) pair that admits at most one
// running job at a time.
type Lane struct {
	Type        JobType
	Environment string
}

func (l Lane) String() string {
	return string(l.Type) + ":" + l.Environment
}

// CollectionJob is one row in the job ledger: the system of record for what
// a collection run did.
type CollectionJob struct {
	ID               string
	Type             JobType
	Environment      string
	Status           JobStatus
	Range            DateRange
	League           string
	RecordsProcessed int64
	RecordsInserted  int64
	FailedUnits      int64
	ProgressPct      float64
	ErrorMessage     *string
	// Metadata is an opaque caller-supplied blob (conventionally JSON).
	// Its schema is documented, not enforced.
	Metadata  string
	CreatedAt time.Time
	EndedAt   *time.Time
}

// Lane returns the job's concurrency lane.
func (j *CollectionJob) Lane() Lane {
	return Lane{Type: j.Type, Environment: j.Environment}
}

// JobUpdate is a partial patch applied to a ledger row. Nil fields are left
// unchanged. Counter fields are absolute values; callers only ever move them
// forward, so last-write-wins per field is safe under concurrent updates.
type JobUpdate struct {
	Status           *JobStatus
	RecordsProcessed *int64
	RecordsInserted  *int64
	FailedUnits      *int64
	ProgressPct      *float64
	ErrorMessage     *string
}

// Empty reports whether the patch would change nothing.
func (u JobUpdate) Empty() bool {
	return u.Status == nil && u.RecordsProcessed == nil && u.RecordsInserted == nil &&
		u.FailedUnits == nil && u.ProgressPct == nil && u.ErrorMessage == nil
}
