package workorder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"emaintenance/internal/models"
)

func TestNextStatuses(t *testing.T) {
	assert.ElementsMatch(t,
		[]models.Status{models.StatusInProgress, models.StatusCancelled},
		NextStatuses(models.StatusPending))
	assert.ElementsMatch(t,
		[]models.Status{models.StatusWaitingParts, models.StatusWaitingExternal, models.StatusCancelled},
		NextStatuses(models.StatusInProgress))
	assert.Empty(t, NextStatuses(models.StatusCompleted))
	assert.Empty(t, NextStatuses(models.StatusCancelled))
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.Status
		want     bool
	}{
		{models.StatusPending, models.StatusInProgress, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusPending, models.StatusWaitingParts, false},
		{models.StatusPending, models.StatusCompleted, false},
		{models.StatusInProgress, models.StatusWaitingParts, true},
		{models.StatusInProgress, models.StatusWaitingExternal, true},
		{models.StatusWaitingParts, models.StatusInProgress, true},
		{models.StatusWaitingParts, models.StatusWaitingExternal, false},
		{models.StatusWaitingExternal, models.StatusInProgress, true},
		{models.StatusCompleted, models.StatusInProgress, false},
		{models.StatusCancelled, models.StatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

// COMPLETED must never be reachable through the generic transition
// table; only the completion path may set it.
func TestCompletedUnreachableViaTable(t *testing.T) {
	for from := range transitions {
		assert.False(t, CanTransition(from, models.StatusCompleted), "from %s", from)
	}
}

func TestCanComplete(t *testing.T) {
	assert.True(t, CanComplete(models.StatusPending))
	assert.True(t, CanComplete(models.StatusInProgress))
	assert.True(t, CanComplete(models.StatusWaitingParts))
	assert.False(t, CanComplete(models.StatusCompleted))
	assert.False(t, CanComplete(models.StatusCancelled))
}

func TestSyntheticActive(t *testing.T) {
	assert.True(t, IsSyntheticActive("NOT_COMPLETED"))
	assert.True(t, IsSyntheticActive("ACTIVE"))
	assert.False(t, IsSyntheticActive("PENDING"))
	assert.Len(t, ActiveStatuses(), 4)
	assert.NotContains(t, ActiveStatuses(), models.StatusCompleted)
	assert.NotContains(t, ActiveStatuses(), models.StatusCancelled)
}
