package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pulsedeck/internal/organization/domain"
)

const (
	getOrganizationSQL = `SELECT id::text, name, slug, created_at
FROM organizations
WHERE id::text = $1`

	createOrganizationSQL = `INSERT INTO organizations (id, name, slug, created_at)
VALUES ($1, $2, $3, $4)`
)

type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrganizationByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error) {
	var o domain.Org
	err := r.db.QueryRowContext(ctx, getOrganizationSQL, id).Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &o, nil
}

// CreateOrganization persists the organization to the database. The organization must have ID set.
func (r *PostgresRepository) CreateOrganization(ctx context.Context, o *domain.Org) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createOrganizationSQL, o.ID, o.Name, o.Slug, o.CreatedAt); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}
