package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectionPlan(t *testing.T) {
	t.Run("sorts items ascending by cost then start", func(t *testing.T) {
		big := DateRange{Start: mustUnit(t, "2024-06-01"), End: mustUnit(t, "2024-06-10")}
		small := DateRange{Start: mustUnit(t, "2024-06-20"), End: mustUnit(t, "2024-06-21")}
		tie := DateRange{Start: mustUnit(t, "2024-06-15"), End: mustUnit(t, "2024-06-16")}

		plan := NewCollectionPlan(ModeMissing, "mlb", []DateRange{big, small, tie})

		require.Len(t, plan.Items, 3)
		assert.Equal(t, tie, plan.Items[0].Range)
		assert.Equal(t, small, plan.Items[1].Range)
		assert.Equal(t, big, plan.Items[2].Range)
		assert.Equal(t, 2, plan.Items[0].Cost)
		assert.Equal(t, 10, plan.Items[2].Cost)
		assert.Equal(t, 14, plan.TotalCost())
	})

	t.Run("units flatten ascending regardless of item order", func(t *testing.T) {
		late := DateRange{Start: mustUnit(t, "2024-06-20"), End: mustUnit(t, "2024-06-22")}
		early := DateRange{Start: mustUnit(t, "2024-06-01"), End: mustUnit(t, "2024-06-02")}

		plan := NewCollectionPlan(ModeFull, "mlb", []DateRange{late, early})

		units := plan.Units()
		require.Len(t, units, 5)
		for i := 1; i < len(units); i++ {
			assert.True(t, units[i-1].Before(units[i]))
		}
	})

	t.Run("empty plan", func(t *testing.T) {
		plan := NewCollectionPlan(ModeMissing, "mlb", nil)
		assert.True(t, plan.Empty())
		assert.Zero(t, plan.TotalCost())
		assert.Empty(t, plan.Units())
	})
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"missing", "FULL", " refresh "} {
		m, err := ParseMode(valid)
		require.NoError(t, err)
		assert.True(t, m.Valid())
	}

	_, err := ParseMode("incremental")
	assert.Error(t, err)
}
