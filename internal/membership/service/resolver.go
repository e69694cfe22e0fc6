// Package service resolves every organization membership of a signed-in user.
package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"pulsedeck/internal/logging"
	"pulsedeck/internal/membership/domain"
)

// MembershipLister is the part of the membership repository the resolver needs.
type MembershipLister interface {
	ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error)
	ListMembershipsByUserJoin(ctx context.Context, userID string) ([]domain.Membership, error)
}

// ResolutionObserver is notified of every resolution outcome ("bulk", "fallback", "failed", "skipped").
type ResolutionObserver func(outcome string)

// Resolver loads all memberships of a user. It fails soft: the bulk lookup falls back once to the
// direct join, and if that fails too the user is treated as having no memberships.
type Resolver struct {
	repo     MembershipLister
	log      logrus.FieldLogger
	observer ResolutionObserver
}

// NewResolver returns a Resolver over repo. log may be nil.
func NewResolver(repo MembershipLister, log logrus.FieldLogger) *Resolver {
	return &Resolver{repo: repo, log: logging.OrDiscard(log)}
}

// WithObserver sets a callback for resolution outcomes (used for metrics) and returns r.
func (r *Resolver) WithObserver(o ResolutionObserver) *Resolver {
	r.observer = o
	return r
}

// Resolve returns the memberships of userID. It never returns an error; failures are logged and
// yield an empty list.
func (r *Resolver) Resolve(ctx context.Context, userID string) []domain.Membership {
	if userID == "" {
		r.observe("skipped")
		return nil
	}
	list, err := r.repo.ListMembershipsByUser(ctx, userID)
	if err == nil {
		r.observe("bulk")
		return list
	}
	r.log.WithError(err).WithField("user_id", userID).Warn("membership: bulk lookup failed, trying direct join")

	list, err = r.repo.ListMembershipsByUserJoin(ctx, userID)
	if err == nil {
		r.observe("fallback")
		return list
	}
	r.log.WithError(err).WithField("user_id", userID).Error("membership: direct join failed, treating user as having no memberships")
	r.observe("failed")
	return nil
}

func (r *Resolver) observe(outcome string) {
	if r.observer != nil {
		r.observer(outcome)
	}
}
