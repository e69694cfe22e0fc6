package repository

import (
	"context"

	"pulsedeck/internal/membership/domain"
)

// Repository defines read access to memberships and member profiles.
type Repository interface {
	// ListMembershipsByUser is the bulk lookup: every membership of userID across organizations.
	ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error)
	// ListMembershipsByUserJoin returns the same rows as ListMembershipsByUser through a direct join.
	ListMembershipsByUserJoin(ctx context.Context, userID string) ([]domain.Membership, error)
	// GetProfile returns the full profile of userID in orgID, or nil if the user is not a member.
	GetProfile(ctx context.Context, userID, orgID string) (*domain.Profile, error)
	// GetProfileByCalendarToken returns the profile owning the calendar export token, or nil.
	GetProfileByCalendarToken(ctx context.Context, token string) (*domain.Profile, error)
}
