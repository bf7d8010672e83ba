// Package workorder holds the status lifecycle rules shared by the
// status-update and completion endpoints.
package workorder

import "emaintenance/internal/models"

// transitions is the allowed next-state table. COMPLETED is absent on
// purpose: the only way in is the completion endpoint, which requires a
// resolution record.
var transitions = map[models.Status][]models.Status{
	models.StatusPending:         {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress:      {models.StatusWaitingParts, models.StatusWaitingExternal, models.StatusCancelled},
	models.StatusWaitingParts:    {models.StatusInProgress, models.StatusCancelled},
	models.StatusWaitingExternal: {models.StatusInProgress, models.StatusCancelled},
	models.StatusCompleted:       {},
	models.StatusCancelled:       {},
}

// NextStatuses returns the statuses reachable from s through the
// generic status-update endpoint.
func NextStatuses(s models.Status) []models.Status {
	next := transitions[s]
	out := make([]models.Status, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s models.Status) bool {
	return s == models.StatusCompleted || s == models.StatusCancelled
}

// CanComplete reports whether the completion endpoint may move the
// order to COMPLETED from s.
func CanComplete(s models.Status) bool {
	return !IsTerminal(s)
}

// ActiveStatuses is the expansion of the synthetic NOT_COMPLETED /
// ACTIVE filter value: everything that is neither completed nor
// cancelled.
func ActiveStatuses() []models.Status {
	return []models.Status{
		models.StatusPending,
		models.StatusInProgress,
		models.StatusWaitingParts,
		models.StatusWaitingExternal,
	}
}

// IsSyntheticActive recognizes the filter values clients use for the
// default "open work" views.
func IsSyntheticActive(s string) bool {
	return s == "NOT_COMPLETED" || s == "ACTIVE"
}
