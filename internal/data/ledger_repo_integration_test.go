package data_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/data"
	"github.com/fieldline/statline/internal/domain/model"
	"github.com/fieldline/statline/internal/testutil"
)

func mustUnit(t *testing.T, s string) model.DateUnit {
	t.Helper()
	u, err := model.ParseDateUnit(s)
	require.NoError(t, err)
	return u
}

func testRange(t *testing.T) model.DateRange {
	t.Helper()
	return model.DateRange{
		Start: mustUnit(t, "2024-06-01"),
		End:   mustUnit(t, "2024-06-05"),
	}
}

func startParams(t *testing.T, env string) core.StartJobParams {
	t.Helper()
	return core.StartJobParams{
		Type:        model.JobTypeStats,
		Environment: env,
		Range:       testRange(t),
		League:      "mlb",
		Metadata:    `{"trigger":"test"}`,
	}
}

func TestLedgerRepoIntegration(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewLedgerRepo(db, data.LedgerRepoConfig{})

		t.Run("start and get round trip", func(t *testing.T) {
			job, err := repo.Start(ctx, startParams(t, "rt"))
			require.NoError(t, err)
			assert.NotEmpty(t, job.ID)
			assert.Equal(t, model.JobStatusRunning, job.Status)
			assert.Equal(t, `{"trigger":"test"}`, job.Metadata)

			got, err := repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, job.ID, got.ID)
			assert.Equal(t, "mlb", got.League)
			assert.True(t, got.Range.Start.Equal(mustUnit(t, "2024-06-01")))
			assert.True(t, got.Range.End.Equal(mustUnit(t, "2024-06-05")))
			assert.Nil(t, got.EndedAt)
			assert.Nil(t, got.ErrorMessage)
		})

		t.Run("one running job per lane", func(t *testing.T) {
			first, err := repo.Start(ctx, startParams(t, "lane"))
			require.NoError(t, err)

			_, err = repo.Start(ctx, startParams(t, "lane"))
			assert.ErrorIs(t, err, data.ErrJobAlreadyRunning)

			// A different environment is a different lane.
			_, err = repo.Start(ctx, startParams(t, "lane2"))
			assert.NoError(t, err)

			// Finishing the first job frees the lane.
			done := model.JobStatusCompleted
			require.NoError(t, repo.Update(ctx, first.ID, model.JobUpdate{Status: &done}))
			_, err = repo.Start(ctx, startParams(t, "lane"))
			assert.NoError(t, err)
		})

		t.Run("partial patch leaves omitted fields unchanged", func(t *testing.T) {
			job, err := repo.Start(ctx, startParams(t, "patch"))
			require.NoError(t, err)

			processed := int64(42)
			require.NoError(t, repo.Update(ctx, job.ID, model.JobUpdate{RecordsProcessed: &processed}))

			got, err := repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(42), got.RecordsProcessed)
			assert.Equal(t, model.JobStatusRunning, got.Status)
			assert.Zero(t, got.RecordsInserted)

			pct := 80.0
			msg := "2 unit(s) failed"
			failed := model.JobStatusFailed
			require.NoError(t, repo.Update(ctx, job.ID, model.JobUpdate{
				Status:       &failed,
				ProgressPct:  &pct,
				ErrorMessage: &msg,
			}))

			got, err = repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, got.Status)
			assert.Equal(t, int64(42), got.RecordsProcessed)
			assert.InDelta(t, 80.0, got.ProgressPct, 0.001)
			require.NotNil(t, got.ErrorMessage)
			assert.Equal(t, msg, *got.ErrorMessage)
			require.NotNil(t, got.EndedAt, "terminal status must set ended_at")
		})

		t.Run("paused carries no end timestamp", func(t *testing.T) {
			job, err := repo.Start(ctx, startParams(t, "pause"))
			require.NoError(t, err)

			paused := model.JobStatusPaused
			require.NoError(t, repo.Update(ctx, job.ID, model.JobUpdate{Status: &paused}))

			got, err := repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusPaused, got.Status)
			assert.Nil(t, got.EndedAt)
		})

		t.Run("terminal status never transitions back", func(t *testing.T) {
			job, err := repo.Start(ctx, startParams(t, "terminal"))
			require.NoError(t, err)

			done := model.JobStatusCompleted
			require.NoError(t, repo.Update(ctx, job.ID, model.JobUpdate{Status: &done}))

			running := model.JobStatusRunning
			err = repo.Update(ctx, job.ID, model.JobUpdate{Status: &running})
			assert.ErrorIs(t, err, data.ErrJobFinished)

			got, err := repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusCompleted, got.Status)
			assert.NotNil(t, got.EndedAt)

			// Counter-only patches still land on finished rows.
			processed := int64(7)
			assert.NoError(t, repo.Update(ctx, job.ID, model.JobUpdate{RecordsProcessed: &processed}))
		})

		t.Run("unknown job", func(t *testing.T) {
			_, err := repo.Get(ctx, "no-such-job")
			assert.ErrorIs(t, err, data.ErrJobNotFound)

			pct := 1.0
			err = repo.Update(ctx, "no-such-job", model.JobUpdate{ProgressPct: &pct})
			assert.ErrorIs(t, err, data.ErrJobNotFound)
		})

		t.Run("empty patch is a no-op", func(t *testing.T) {
			job, err := repo.Start(ctx, startParams(t, "noop"))
			require.NoError(t, err)
			assert.NoError(t, repo.Update(ctx, job.ID, model.JobUpdate{}))
		})

		t.Run("find running", func(t *testing.T) {
			lane := model.Lane{Type: model.JobTypeStats, Environment: "find"}

			found, err := repo.FindRunning(ctx, lane)
			require.NoError(t, err)
			assert.Nil(t, found)

			job, err := repo.Start(ctx, startParams(t, "find"))
			require.NoError(t, err)

			found, err = repo.FindRunning(ctx, lane)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, job.ID, found.ID)
		})
	})
}
