package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/statline/internal/domain/model"
)

func mustUnit(t *testing.T, s string) model.DateUnit {
	t.Helper()
	u, err := model.ParseDateUnit(s)
	require.NoError(t, err)
	return u
}

func mustRange(t *testing.T, start, end string) model.DateRange {
	t.Helper()
	return model.DateRange{Start: mustUnit(t, start), End: mustUnit(t, end)}
}

func TestGapServiceMissingUnits(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store means everything is missing", func(t *testing.T) {
		gap, err := NewGapService(GapServiceOptions{Store: &fakeStore{}})
		require.NoError(t, err)

		missing, err := gap.MissingUnits(ctx, "mlb", mustRange(t, "2024-06-01", "2024-06-04"))
		require.NoError(t, err)
		require.Len(t, missing, 4)
		assert.Equal(t, "2024-06-01", missing[0].String())
		assert.Equal(t, "2024-06-04", missing[3].String())
	})

	t.Run("returns ordered complement of stored dates", func(t *testing.T) {
		store := &fakeStore{existing: []model.DateUnit{
			mustUnit(t, "2024-06-02"),
			mustUnit(t, "2024-06-04"),
		}}
		gap, err := NewGapService(GapServiceOptions{Store: store})
		require.NoError(t, err)

		missing, err := gap.MissingUnits(ctx, "mlb", mustRange(t, "2024-06-01", "2024-06-05"))
		require.NoError(t, err)
		require.Len(t, missing, 3)
		assert.Equal(t, "2024-06-01", missing[0].String())
		assert.Equal(t, "2024-06-03", missing[1].String())
		assert.Equal(t, "2024-06-05", missing[2].String())
	})

	t.Run("fully covered range yields nothing", func(t *testing.T) {
		rng := mustRange(t, "2024-06-01", "2024-06-03")
		store := &fakeStore{existing: rng.Units()}
		gap, err := NewGapService(GapServiceOptions{Store: store})
		require.NoError(t, err)

		missing, err := gap.MissingUnits(ctx, "mlb", rng)
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		gap, err := NewGapService(GapServiceOptions{Store: &fakeStore{}})
		require.NoError(t, err)

		_, err = gap.MissingUnits(ctx, "mlb", model.DateRange{
			Start: mustUnit(t, "2024-06-05"),
			End:   mustUnit(t, "2024-06-01"),
		})
		assert.Error(t, err)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		store := &fakeStore{existingErr: errors.New("connection reset")}
		gap, err := NewGapService(GapServiceOptions{Store: store})
		require.NoError(t, err)

		_, err = gap.MissingUnits(ctx, "mlb", mustRange(t, "2024-06-01", "2024-06-02"))
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("requires a store", func(t *testing.T) {
		_, err := NewGapService(GapServiceOptions{})
		assert.Error(t, err)
	})
}

func TestGroupContiguous(t *testing.T) {
	t.Run("splits on gaps larger than one day", func(t *testing.T) {
		units := []model.DateUnit{
			mustUnit(t, "2024-06-01"),
			mustUnit(t, "2024-06-02"),
			mustUnit(t, "2024-06-03"),
			mustUnit(t, "2024-06-05"),
			mustUnit(t, "2024-06-06"),
		}

		ranges := GroupContiguous(units)
		require.Len(t, ranges, 2)
		assert.Equal(t, mustRange(t, "2024-06-01", "2024-06-03"), ranges[0])
		assert.Equal(t, mustRange(t, "2024-06-05", "2024-06-06"), ranges[1])
	})

	t.Run("single unit", func(t *testing.T) {
		ranges := GroupContiguous([]model.DateUnit{mustUnit(t, "2024-06-01")})
		require.Len(t, ranges, 1)
		assert.Equal(t, mustRange(t, "2024-06-01", "2024-06-01"), ranges[0])
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, GroupContiguous(nil))
	})

	t.Run("all isolated units", func(t *testing.T) {
		units := []model.DateUnit{
			mustUnit(t, "2024-06-01"),
			mustUnit(t, "2024-06-10"),
			mustUnit(t, "2024-06-20"),
		}
		ranges := GroupContiguous(units)
		require.Len(t, ranges, 3)
		for i, r := range ranges {
			assert.True(t, r.Start.Equal(units[i]))
			assert.True(t, r.End.Equal(units[i]))
		}
	})
}
