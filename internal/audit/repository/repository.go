package repository

import (
	"context"

	"pulsedeck/internal/audit/domain"
)

// Repository appends audit records. Audit rows are never updated or read back by the service.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
}
