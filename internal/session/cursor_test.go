package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/ride-ops-console/internal/models"
)

func set(ids ...int64) models.RideSet {
	out := make(models.RideSet, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.RideSummary{ID: id})
	}
	return out
}

func selected(t *testing.T, c *Cursor) int64 {
	t.Helper()
	id, ok := c.Selected()
	require.True(t, ok)
	return id
}

func TestFirstLoadSelectsFirstRide(t *testing.T) {
	var c Cursor
	changed := c.Apply(set(1, 2))
	require.True(t, changed)
	require.Equal(t, int64(1), selected(t, &c))
}

func TestManualSelectionSurvivesFeedUpdates(t *testing.T) {
	var c Cursor
	c.Apply(set(1, 2))
	require.True(t, c.Select(2))

	changed := c.Apply(set(1, 2, 3))
	require.False(t, changed, "a surviving selection must not move")
	require.Equal(t, int64(2), selected(t, &c))
}

func TestVanishedSelectionFallsBackToFirst(t *testing.T) {
	var c Cursor
	c.Apply(set(1, 2))
	require.True(t, c.Select(2))

	changed := c.Apply(set(1, 3))
	require.True(t, changed)
	require.Equal(t, int64(1), selected(t, &c))
}

func TestEmptySetClearsSelection(t *testing.T) {
	var c Cursor
	c.Apply(set(4))
	require.True(t, c.Apply(set()))
	_, ok := c.Selected()
	require.False(t, ok)
}

func TestSelectUnknownRideIsNoOp(t *testing.T) {
	var c Cursor
	c.Apply(set(1, 2))
	require.False(t, c.Select(99))
	require.Equal(t, int64(1), selected(t, &c))
}

func TestSelectOnEmptySetIsNoOp(t *testing.T) {
	var c Cursor
	require.False(t, c.Select(1))
	_, ok := c.Selected()
	require.False(t, ok)
}
