package data_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/statline/internal/data"
	"github.com/fieldline/statline/internal/domain/model"
	"github.com/fieldline/statline/internal/testutil"
)

func TestCheckpointRepoIntegration(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	ctx := context.Background()
	repo := data.NewCheckpointRepo(client)

	lane := model.Lane{Type: model.JobTypeStats, Environment: "test"}

	t.Run("load without snapshot is nil", func(t *testing.T) {
		cp, err := repo.Load(ctx, lane)
		require.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("save load clear round trip", func(t *testing.T) {
		snapshot := &model.Checkpoint{
			JobID:       "job-1",
			Type:        lane.Type,
			Environment: lane.Environment,
			League:      "mlb",
			Range: model.DateRange{
				Start: mustUnit(t, "2024-06-01"),
				End:   mustUnit(t, "2024-06-05"),
			},
		}
		snapshot.Append(mustUnit(t, "2024-06-01"))
		snapshot.Append(mustUnit(t, "2024-06-02"))

		require.NoError(t, repo.Save(ctx, snapshot))

		loaded, err := repo.Load(ctx, lane)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "job-1", loaded.JobID)
		assert.Len(t, loaded.UnitsCompleted, 2)
		assert.True(t, loaded.Completed(mustUnit(t, "2024-06-02")))
		assert.True(t, loaded.CurrentUnit.Equal(mustUnit(t, "2024-06-02")))

		// A second save overwrites, not appends.
		snapshot.Append(mustUnit(t, "2024-06-03"))
		require.NoError(t, repo.Save(ctx, snapshot))
		loaded, err = repo.Load(ctx, lane)
		require.NoError(t, err)
		assert.Len(t, loaded.UnitsCompleted, 3)

		require.NoError(t, repo.Clear(ctx, lane))
		loaded, err = repo.Load(ctx, lane)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("lanes are isolated", func(t *testing.T) {
		other := model.Lane{Type: model.JobTypeRoster, Environment: "test"}
		require.NoError(t, repo.Save(ctx, &model.Checkpoint{
			JobID:       "job-2",
			Type:        other.Type,
			Environment: other.Environment,
			League:      "mlb",
		}))

		cp, err := repo.Load(ctx, lane)
		require.NoError(t, err)
		assert.Nil(t, cp)

		cp, err = repo.Load(ctx, other)
		require.NoError(t, err)
		require.NotNil(t, cp)
		assert.Equal(t, "job-2", cp.JobID)
		require.NoError(t, repo.Clear(ctx, other))
	})

	t.Run("save validates", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, nil))
		assert.Error(t, repo.Save(ctx, &model.Checkpoint{}))
	})
}
