// Package service picks the active organization of a signed-in user.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"pulsedeck/internal/logging"
	"pulsedeck/internal/membership/domain"
	"pulsedeck/internal/preference"
)

// ErrActivationFailed is returned when the profile of the chosen membership could not be loaded.
var ErrActivationFailed = errors.New("organization activation failed")

// ProfileGetter loads the full member profile of userID in orgID. Returns (nil, nil) if not found.
type ProfileGetter interface {
	GetProfile(ctx context.Context, userID, orgID string) (*domain.Profile, error)
}

// Selector chooses which membership is active and loads its profile.
type Selector struct {
	profiles ProfileGetter
	prefs    preference.Store
	log      logrus.FieldLogger
}

// NewSelector returns a Selector. log may be nil.
func NewSelector(profiles ProfileGetter, prefs preference.Store, log logrus.FieldLogger) *Selector {
	return &Selector{profiles: profiles, prefs: prefs, log: logging.OrDiscard(log)}
}

// Select applies the selection policy to memberships and activates the result:
//  1. a stored preference matching one of the memberships wins;
//  2. otherwise a single membership is activated automatically;
//  3. otherwise nil is returned and the caller must let the user pick.
//
// A stored preference that matches nothing is ignored. Errors are activation failures only.
func (s *Selector) Select(ctx context.Context, userID string, memberships []domain.Membership) (*domain.ActiveContext, error) {
	m := s.Choose(ctx, memberships)
	if m == nil {
		return nil, nil
	}
	return s.Activate(ctx, userID, *m)
}

// Choose applies the selection policy without loading anything. It returns nil when the user must pick.
func (s *Selector) Choose(ctx context.Context, memberships []domain.Membership) *domain.Membership {
	if m := s.preferred(ctx, memberships); m != nil {
		return m
	}
	if len(memberships) == 1 {
		m := memberships[0]
		return &m
	}
	return nil
}

func (s *Selector) preferred(ctx context.Context, memberships []domain.Membership) *domain.Membership {
	if s.prefs == nil {
		return nil
	}
	orgID, ok, err := s.prefs.Get(ctx)
	if err != nil {
		s.log.WithError(err).Warn("organization: reading stored preference failed")
		return nil
	}
	if !ok {
		return nil
	}
	m := domain.FindByOrganization(memberships, orgID)
	if m == nil {
		s.log.WithField("org_id", orgID).Debug("organization: stored preference matches no membership")
	}
	return m
}

// Activate loads the profile for m and stores its organization as the new preference.
// Callers that may discard the result afterwards use Load and Remember instead.
func (s *Selector) Activate(ctx context.Context, userID string, m domain.Membership) (*domain.ActiveContext, error) {
	ac, err := s.Load(ctx, userID, m)
	if err != nil {
		return nil, err
	}
	s.Remember(ctx, m.OrganizationID)
	return ac, nil
}

// Load fetches the profile for m, never from a cache, and returns the resulting context.
// It has no side effects on the stored preference.
func (s *Selector) Load(ctx context.Context, userID string, m domain.Membership) (*domain.ActiveContext, error) {
	p, err := s.profiles.GetProfile(ctx, userID, m.OrganizationID)
	if err != nil {
		s.log.WithError(err).WithField("org_id", m.OrganizationID).Error("organization: loading member profile failed")
		return nil, fmt.Errorf("%w: %v", ErrActivationFailed, err)
	}
	if p == nil {
		s.log.WithField("org_id", m.OrganizationID).Error("organization: member profile not found")
		return nil, fmt.Errorf("%w: profile not found", ErrActivationFailed)
	}
	return &domain.ActiveContext{Membership: m, Profile: p}, nil
}

// Remember stores orgID as the preference. A write failure is logged and does not undo an activation.
func (s *Selector) Remember(ctx context.Context, orgID string) {
	if s.prefs == nil {
		return
	}
	if err := s.prefs.Set(ctx, orgID); err != nil {
		s.log.WithError(err).WithField("org_id", orgID).Warn("organization: storing preference failed")
	}
}
