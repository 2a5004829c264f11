package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus(t *testing.T) {
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.False(t, JobStatusPaused.Terminal())

	assert.True(t, JobStatusPaused.Valid())
	assert.False(t, JobStatus("cancelled").Valid())
}

func TestParseJobType(t *testing.T) {
	jt, err := ParseJobType(" Stats ")
	require.NoError(t, err)
	assert.Equal(t, JobTypeStats, jt)

	_, err = ParseJobType("scores")
	assert.Error(t, err)
}

func TestLaneString(t *testing.T) {
	lane := Lane{Type: JobTypeRoster, Environment: "prod"}
	assert.Equal(t, "roster:prod", lane.String())
}

func TestJobUpdateEmpty(t *testing.T) {
	assert.True(t, JobUpdate{}.Empty())

	pct := 50.0
	assert.False(t, JobUpdate{ProgressPct: &pct}.Empty())
}
