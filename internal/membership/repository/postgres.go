package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"pulsedeck/internal/membership/domain"
)

const (
	listMembershipsBulkSQL = `SELECT member_id, member_name, organization_id, organization_name, organization_slug, app_role
FROM get_user_memberships($1)`

	listMembershipsJoinSQL = `SELECT m.id::text, COALESCE(m.name, ''), o.id::text, o.name, o.slug, m.app_role
FROM members m
JOIN organizations o ON o.id = m.organization_id
WHERE m.user_id = $1
ORDER BY o.name`

	profileColumns = `id::text, COALESCE(user_id::text, ''), organization_id::text, COALESCE(name, ''),
       COALESCE(email, ''), COALESCE(phone, ''), app_role, permissions, COALESCE(calendar_token, '')`

	getProfileSQL = `SELECT ` + profileColumns + `
FROM members
WHERE user_id = $1 AND organization_id = $2`

	getProfileByTokenSQL = `SELECT ` + profileColumns + `
FROM members
WHERE calendar_token = $1`

	listWorkingGroupRolesSQL = `SELECT working_group_id::text, role
FROM ag_memberships
WHERE member_id = $1`
)

// PostgresRepository reads memberships and profiles from Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns a membership repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListMembershipsByUser calls the get_user_memberships function.
func (r *PostgresRepository) ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	return r.listMemberships(ctx, listMembershipsBulkSQL, userID)
}

// ListMembershipsByUserJoin joins members and organizations directly.
func (r *PostgresRepository) ListMembershipsByUserJoin(ctx context.Context, userID string) ([]domain.Membership, error) {
	return r.listMemberships(ctx, listMembershipsJoinSQL, userID)
}

func (r *PostgresRepository) listMemberships(ctx context.Context, query, userID string) ([]domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var (
			m    domain.Membership
			role string
		)
		if err := rows.Scan(&m.MemberID, &m.MemberName, &m.OrganizationID, &m.OrganizationName, &m.OrganizationSlug, &role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.Role = domain.ParseRole(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

// GetProfile returns the profile of userID in orgID including working group roles, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetProfile(ctx context.Context, userID, orgID string) (*domain.Profile, error) {
	return r.getProfile(ctx, getProfileSQL, userID, orgID)
}

// GetProfileByCalendarToken returns the profile holding token, or nil if no member has it.
func (r *PostgresRepository) GetProfileByCalendarToken(ctx context.Context, token string) (*domain.Profile, error) {
	if token == "" {
		return nil, nil
	}
	return r.getProfile(ctx, getProfileByTokenSQL, token)
}

func (r *PostgresRepository) getProfile(ctx context.Context, query string, args ...interface{}) (*domain.Profile, error) {
	var (
		p     domain.Profile
		role  string
		perms pq.StringArray
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.UserID, &p.OrganizationID, &p.Name, &p.Email, &p.Phone, &role, &perms, &p.CalendarToken,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.Role = domain.ParseRole(role)
	p.Permissions = []string(perms)

	groups, err := r.listWorkingGroupRoles(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.WorkingGroups = groups
	return &p, nil
}

func (r *PostgresRepository) listWorkingGroupRoles(ctx context.Context, memberID string) (map[string]domain.WorkingGroupRole, error) {
	rows, err := r.db.QueryContext(ctx, listWorkingGroupRolesSQL, memberID)
	if err != nil {
		return nil, fmt.Errorf("list working group roles: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.WorkingGroupRole)
	for rows.Next() {
		var id, role string
		if err := rows.Scan(&id, &role); err != nil {
			return nil, fmt.Errorf("scan working group role: %w", err)
		}
		out[id] = domain.ParseWorkingGroupRole(role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list working group roles: %w", err)
	}
	return out, nil
}
