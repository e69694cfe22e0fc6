package service

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"pulsedeck/internal/logging"
	membership "pulsedeck/internal/membership/domain"
	"pulsedeck/internal/platform/rbac"
	"pulsedeck/internal/preference"
	"pulsedeck/internal/session/domain"
)

var (
	// ErrNotSignedIn is returned by Activate without an identity.
	ErrNotSignedIn = errors.New("session: not signed in")
	// ErrUnknownOrganization is returned by Activate for an organization outside the membership set.
	ErrUnknownOrganization = errors.New("session: not a member of organization")
	// ErrSuperseded is returned by Activate when an identity change or another activation overtook it.
	ErrSuperseded = errors.New("session: superseded by a newer change")
)

// MembershipResolver lists the memberships of a user. It fails soft and never returns an error.
type MembershipResolver interface {
	Resolve(ctx context.Context, userID string) []membership.Membership
}

// OrganizationSelector picks a membership and loads its profile. Neither call writes the preference:
// the Manager stores it only for results it accepts.
type OrganizationSelector interface {
	Choose(ctx context.Context, memberships []membership.Membership) *membership.Membership
	Load(ctx context.Context, userID string, m membership.Membership) (*membership.ActiveContext, error)
}

// Manager drives the active-organization state machine:
// Unauthenticated -> Resolving -> {Unselected, Active}. Every identity change or activation bumps a
// generation counter; results computed for an older generation are discarded.
type Manager struct {
	resolver MembershipResolver
	selector OrganizationSelector
	prefs    preference.Store
	log      logrus.FieldLogger

	mu          sync.Mutex
	gen         uint64
	state       domain.State
	identity    *domain.Identity
	memberships []membership.Membership
	active      *membership.ActiveContext
}

// NewManager returns a Manager in state Unauthenticated. prefs receives the organization of every
// accepted activation and is cleared on sign-out; it may be nil.
func NewManager(resolver MembershipResolver, selector OrganizationSelector, prefs preference.Store, log logrus.FieldLogger) *Manager {
	return &Manager{
		resolver: resolver,
		selector: selector,
		prefs:    prefs,
		log:      logging.OrDiscard(log),
	}
}

// Attach subscribes the manager to identity changes of store.
func (m *Manager) Attach(store *Store) {
	store.Subscribe(m.IdentityChanged)
}

// IdentityChanged resolves memberships for id and runs the selector. A nil id signs out.
// If another change arrives before this one completes, this one's results are dropped.
func (m *Manager) IdentityChanged(ctx context.Context, id *domain.Identity) {
	if id == nil {
		if err := m.SignOut(ctx); err != nil {
			m.log.WithError(err).Warn("session: clearing stored organization failed")
		}
		return
	}
	identity := *id

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.identity = &identity
	m.memberships = nil
	m.active = nil
	m.state = domain.StateResolving
	m.mu.Unlock()

	list := m.resolver.Resolve(ctx, identity.UserID)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.log.WithField("user_id", identity.UserID).Debug("session: discarding stale membership resolution")
		return
	}
	m.memberships = list
	m.mu.Unlock()

	var (
		ac  *membership.ActiveContext
		err error
	)
	if chosen := m.selector.Choose(ctx, list); chosen != nil {
		ac, err = m.selector.Load(ctx, identity.UserID, *chosen)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		m.log.WithField("user_id", identity.UserID).Debug("session: discarding stale selection")
		return
	}
	if err != nil || ac == nil {
		m.active = nil
		m.state = domain.StateUnselected
		return
	}
	m.accept(ctx, ac)
}

// Activate switches to the membership of organizationID. The profile is fetched again; on failure
// the state is Unselected with no active context.
func (m *Manager) Activate(ctx context.Context, organizationID string) error {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return ErrNotSignedIn
	}
	found := membership.FindByOrganization(m.memberships, organizationID)
	if found == nil {
		m.mu.Unlock()
		return ErrUnknownOrganization
	}
	target := *found
	userID := m.identity.UserID
	m.gen++
	gen := m.gen
	m.state = domain.StateResolving
	m.mu.Unlock()

	ac, err := m.selector.Load(ctx, userID, target)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrSuperseded
	}
	if err != nil {
		m.active = nil
		m.state = domain.StateUnselected
		return err
	}
	m.accept(ctx, ac)
	return nil
}

// accept makes ac active and stores its organization as the preference.
// Callers hold m.mu and have checked that ac belongs to the current generation.
func (m *Manager) accept(ctx context.Context, ac *membership.ActiveContext) {
	m.active = ac
	m.state = domain.StateActive
	if m.prefs == nil {
		return
	}
	if err := m.prefs.Set(ctx, ac.OrganizationID()); err != nil {
		m.log.WithError(err).WithField("org_id", ac.OrganizationID()).Warn("session: storing organization preference failed")
	}
}

// SignOut clears identity, memberships, active context and the stored organization preference.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	m.identity = nil
	m.memberships = nil
	m.active = nil
	m.state = domain.StateUnauthenticated
	m.mu.Unlock()

	if m.prefs == nil {
		return nil
	}
	return m.prefs.Clear(ctx)
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := domain.Snapshot{State: m.state}
	if m.identity != nil {
		id := *m.identity
		s.Identity = &id
	}
	if m.memberships != nil {
		s.Memberships = append([]membership.Membership(nil), m.memberships...)
	}
	if m.active != nil {
		ac := *m.active
		s.Active = &ac
	}
	return s
}

// Evaluator returns a permission evaluator for the current active context.
func (m *Manager) Evaluator() rbac.Evaluator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rbac.NewEvaluator(m.active)
}
