package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pulsedeck/internal/audit/domain"
)

const createAuditLogSQL = `INSERT INTO audit_logs (id, org_id, user_id, device_id, session_id, action, resource, ip, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// PostgresRepository writes audit_logs rows.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a; a.ID must be set. Empty optional columns are stored as NULL.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	if _, err := r.db.ExecContext(ctx, createAuditLogSQL,
		a.ID, a.OrganizationID, nullable(a.UserID), nullable(a.DeviceID), nullable(a.SessionID),
		a.Action, a.Resource, a.IP, nullable(a.Metadata), a.CreatedAt,
	); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
