package model

import "sort"

// Checkpoint is the durable snapshot of an in-progress job, persisted after
// every completed unit so an interrupted run can resume. One snapshot exists
// per lane (not a log); each save overwrites the previous one.
type Checkpoint struct {
	JobID          string     `json:"job_id"`
	Type           JobType    `json:"job_type"`
	Environment    string     `json:"environment"`
	League         string     `json:"league"`
	Range          DateRange  `json:"range"`
	CurrentUnit    DateUnit   `json:"current_unit"`
	UnitsCompleted []DateUnit `json:"units_completed"`
}

// Lane returns the checkpoint's concurrency lane.
func (c *Checkpoint) Lane() Lane {
	return Lane{Type: c.Type, Environment: c.Environment}
}

// Append records a completed unit, keeping UnitsCompleted sorted and
// deduplicated. The set never shrinks during a run.
func (c *Checkpoint) Append(unit DateUnit) {
	c.CurrentUnit = unit
	for _, done := range c.UnitsCompleted {
		if done.Equal(unit) {
			return
		}
	}
	c.UnitsCompleted = append(c.UnitsCompleted, unit)
	sort.Slice(c.UnitsCompleted, func(i, j int) bool {
		return c.UnitsCompleted[i].Before(c.UnitsCompleted[j])
	})
}

// Completed reports whether the unit has already been collected.
func (c *Checkpoint) Completed(unit DateUnit) bool {
	for _, done := range c.UnitsCompleted {
		if done.Equal(unit) {
			return true
		}
	}
	return false
}

// Remaining returns the planned units that are not yet completed, in order.
func (c *Checkpoint) Remaining(planned []DateUnit) []DateUnit {
	remaining := make([]DateUnit, 0, len(planned))
	for _, unit := range planned {
		if !c.Completed(unit) {
			remaining = append(remaining, unit)
		}
	}
	return remaining
}
