package domain

import "time"

// AuditLog is one persisted record of a state-changing access call.
// OrganizationID is the sentinel "_system" when the call had no organization in scope.
type AuditLog struct {
	ID             string
	OrganizationID string
	UserID         string
	DeviceID       string
	SessionID      string
	Action         string
	Resource       string
	IP             string
	Metadata       string
	CreatedAt      time.Time
}
