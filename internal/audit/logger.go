package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pulsedeck/internal/audit/domain"
	auditrepo "pulsedeck/internal/audit/repository"
	"pulsedeck/internal/logging"
)

// SentinelOrgID is recorded when the audited call had no organization in scope (e.g. sign-out).
const SentinelOrgID = "_system"

// Actions recorded by the access API.
const (
	ActionOrganizationSelected = "organization_selected"
	ActionSignedOut            = "signed_out"
)

// IPExtractor returns the client IP for the call in ctx.
type IPExtractor func(context.Context) string

// Event is one auditable call as seen by the transport.
type Event struct {
	OrganizationID string
	UserID         string
	DeviceID       string
	SessionID      string
	Action         string
	Resource       string
	Metadata       string
}

// AuditLogger records events. LogEvent never fails the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, ev Event)
}

// Logger persists events through an audit repository.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewLogger returns a Logger. ipExtractor and log may be nil; the IP is then recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log logrus.FieldLogger) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: logging.OrDiscard(log), now: time.Now}
}

func (l *Logger) LogEvent(ctx context.Context, ev Event) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if ev.OrganizationID == "" {
		ev.OrganizationID = SentinelOrgID
	}
	entry := &domain.AuditLog{
		ID:             uuid.NewString(),
		OrganizationID: ev.OrganizationID,
		UserID:         ev.UserID,
		DeviceID:       ev.DeviceID,
		SessionID:      ev.SessionID,
		Action:         ev.Action,
		Resource:       ev.Resource,
		IP:             ip,
		Metadata:       ev.Metadata,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.WithFields(logrus.Fields{
			"action":   ev.Action,
			"resource": ev.Resource,
			"user_id":  ev.UserID,
		}).WithError(err).Warn("audit: failed to record event")
	}
}
