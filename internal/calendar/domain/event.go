package domain

import (
	"time"

	membership "pulsedeck/internal/membership/domain"
	"pulsedeck/internal/visibility"
)

// Event is an organization calendar entry.
// For all-day events StartsAt and EndsAt are dates and EndsAt is the last day (inclusive).
type Event struct {
	ID             string
	OrganizationID string
	Title          string
	Description    string
	Location       string
	StartsAt       time.Time
	EndsAt         time.Time
	AllDay         bool
	AllowedRoles   []membership.Role
	WorkingGroupID string
	UpdatedAt      time.Time
}

// Policy returns the visibility policy of the event.
func (e Event) Policy() visibility.Policy {
	return visibility.Policy{AllowedRoles: e.AllowedRoles, WorkingGroupID: e.WorkingGroupID}
}

// End returns the exclusive end of the event. Timed events without an end last one hour;
// all-day events end at the start of the day after EndsAt.
func (e Event) End() time.Time {
	if e.AllDay {
		last := e.EndsAt
		if last.Before(e.StartsAt) {
			last = e.StartsAt
		}
		return last.AddDate(0, 0, 1)
	}
	if !e.EndsAt.After(e.StartsAt) {
		return e.StartsAt.Add(time.Hour)
	}
	return e.EndsAt
}
