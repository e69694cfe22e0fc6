package repository

import (
	"context"
	"time"

	"pulsedeck/internal/calendar/domain"
)

// Repository defines read access to calendar events.
type Repository interface {
	// ListEventsSince returns the events of orgID starting at or after since, ordered by start.
	ListEventsSince(ctx context.Context, orgID string, since time.Time) ([]domain.Event, error)
}
