package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"pulsedeck/internal/calendar/domain"
	"pulsedeck/internal/visibility"
)

const listEventsSinceSQL = `SELECT id::text, organization_id::text, title, COALESCE(description, ''), COALESCE(location, ''),
       starts_at, COALESCE(ends_at, starts_at), all_day, allowed_roles, COALESCE(working_group_id::text, ''), updated_at
FROM events
WHERE organization_id::text = $1 AND starts_at >= $2
ORDER BY starts_at, id`

type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns an event repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListEventsSince implements Repository. Unknown role names in allowed_roles are dropped.
func (r *PostgresRepository) ListEventsSince(ctx context.Context, orgID string, since time.Time) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, listEventsSinceSQL, orgID, since)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			e     domain.Event
			roles pq.StringArray
		)
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Title, &e.Description, &e.Location,
			&e.StartsAt, &e.EndsAt, &e.AllDay, &roles, &e.WorkingGroupID, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.AllowedRoles = visibility.ParseRoles(roles)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}
