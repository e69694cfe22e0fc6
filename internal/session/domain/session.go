package domain

import (
	"time"

	membership "pulsedeck/internal/membership/domain"
)

// Identity is a signed-in principal as asserted by a validated access token.
type Identity struct {
	UserID      string
	Email       string
	SessionID   string
	AccessToken string
	ExpiresAt   time.Time
}

// State is the state of the active organization context.
type State int

const (
	StateUnauthenticated State = iota
	StateResolving
	StateUnselected
	StateActive
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateUnselected:
		return "unselected"
	case StateActive:
		return "active"
	default:
		return "unauthenticated"
	}
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	State       State
	Identity    *Identity
	Memberships []membership.Membership
	Active      *membership.ActiveContext
}
