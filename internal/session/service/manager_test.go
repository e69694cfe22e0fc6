package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	membership "pulsedeck/internal/membership/domain"
	orgservice "pulsedeck/internal/organization/service"
	"pulsedeck/internal/platform/rbac"
	"pulsedeck/internal/preference"
	"pulsedeck/internal/security"
	"pulsedeck/internal/session/domain"
)

var (
	orgA = membership.Membership{MemberID: "m-a", OrganizationID: "org-a", OrganizationName: "Alpha", Role: membership.RoleMember}
	orgB = membership.Membership{MemberID: "m-b", OrganizationID: "org-b", OrganizationName: "Beta", Role: membership.RoleAdmin}
)

type fakeResolver struct {
	mu    sync.Mutex
	lists map[string][]membership.Membership
	gates map[string]chan struct{}
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, userID string) []membership.Membership {
	f.mu.Lock()
	f.calls++
	gate := f.gates[userID]
	list := f.lists[userID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return list
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*membership.Profile
	err      error
	gates    map[string]chan struct{}
	blocked  int
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID, orgID string) (*membership.Profile, error) {
	key := userID + ":" + orgID
	f.mu.Lock()
	gate := f.gates[key]
	if gate != nil {
		f.blocked++
	}
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[key], nil
}

// hold makes GetProfile for userID in orgID block until the returned channel is closed.
func (f *fakeProfiles) hold(userID, orgID string) chan struct{} {
	gate := make(chan struct{})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = map[string]chan struct{}{}
	}
	f.gates[userID+":"+orgID] = gate
	return gate
}

func (f *fakeProfiles) waitBlocked(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.blocked == n
	}, time.Second, time.Millisecond)
}

type fixture struct {
	resolver *fakeResolver
	profiles *fakeProfiles
	prefs    *preference.MemoryStore
	manager  *Manager
}

func newFixture() *fixture {
	f := &fixture{
		resolver: &fakeResolver{
			lists: map[string][]membership.Membership{
				"user-u": {orgA, orgB},
				"user-v": {orgA},
			},
			gates: map[string]chan struct{}{},
		},
		profiles: &fakeProfiles{profiles: map[string]*membership.Profile{
			"user-u:org-a": {ID: "m-a", OrganizationID: "org-a", Role: membership.RoleMember, Permissions: []string{rbac.CapEditWiki}},
			"user-u:org-b": {ID: "m-b", OrganizationID: "org-b", Role: membership.RoleAdmin},
			"user-v:org-a": {ID: "m-v", OrganizationID: "org-a", Role: membership.RoleMember},
		}},
		prefs: preference.NewMemoryStore(),
	}
	f.manager = f.newManager()
	return f
}

func (f *fixture) newManager() *Manager {
	selector := orgservice.NewSelector(f.profiles, f.prefs, nil)
	return NewManager(f.resolver, selector, f.prefs, nil)
}

func identity(userID string) *domain.Identity {
	return &domain.Identity{UserID: userID, SessionID: "s-" + userID}
}

func TestManager_SingleMembershipAutoActivates(t *testing.T) {
	f := newFixture()
	f.manager.IdentityChanged(context.Background(), identity("user-v"))

	snap := f.manager.Snapshot()
	assert.Equal(t, domain.StateActive, snap.State)
	require.NotNil(t, snap.Active)
	assert.Equal(t, "org-a", snap.Active.OrganizationID())
}

func TestManager_MultipleMembershipsScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.manager.IdentityChanged(ctx, identity("user-u"))
	snap := f.manager.Snapshot()
	assert.Equal(t, domain.StateUnselected, snap.State)
	assert.Nil(t, snap.Active)
	assert.Len(t, snap.Memberships, 2)

	require.NoError(t, f.manager.Activate(ctx, "org-b"))
	snap = f.manager.Snapshot()
	assert.Equal(t, domain.StateActive, snap.State)
	assert.Equal(t, membership.RoleAdmin, snap.Active.Role())
	stored, ok, _ := f.prefs.Get(ctx)
	assert.True(t, ok)
	assert.Equal(t, "org-b", stored)

	// Next process start with the same stored preference.
	restarted := f.newManager()
	restarted.IdentityChanged(ctx, identity("user-u"))
	snap = restarted.Snapshot()
	assert.Equal(t, domain.StateActive, snap.State)
	assert.Equal(t, "org-b", snap.Active.OrganizationID())
}

func TestManager_ActivateUnknownOrganization(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assert.ErrorIs(t, f.manager.Activate(ctx, "org-a"), ErrNotSignedIn)

	f.manager.IdentityChanged(ctx, identity("user-v"))
	assert.ErrorIs(t, f.manager.Activate(ctx, "org-z"), ErrUnknownOrganization)
	assert.Equal(t, domain.StateActive, f.manager.Snapshot().State)
}

func TestManager_ActivationFailureLeavesContextUnset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.manager.IdentityChanged(ctx, identity("user-u"))
	require.NoError(t, f.manager.Activate(ctx, "org-a"))

	f.profiles.mu.Lock()
	f.profiles.err = errors.New("backend down")
	f.profiles.mu.Unlock()

	err := f.manager.Activate(ctx, "org-b")
	assert.ErrorIs(t, err, orgservice.ErrActivationFailed)
	snap := f.manager.Snapshot()
	assert.Equal(t, domain.StateUnselected, snap.State)
	assert.Nil(t, snap.Active)
	stored, _, _ := f.prefs.Get(ctx)
	assert.Equal(t, "org-a", stored)
}

func TestManager_SignOutClearsEverything(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.manager.IdentityChanged(ctx, identity("user-u"))
	require.NoError(t, f.manager.Activate(ctx, "org-b"))

	require.NoError(t, f.manager.SignOut(ctx))
	snap := f.manager.Snapshot()
	assert.Equal(t, domain.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Identity)
	assert.Nil(t, snap.Memberships)
	assert.Nil(t, snap.Active)
	_, ok, _ := f.prefs.Get(ctx)
	assert.False(t, ok)
	assert.False(t, f.manager.Evaluator().HasCapability(rbac.CapEditWiki))

	// Same identity re-derives from scratch: two memberships, no preference, no pick.
	f.manager.IdentityChanged(ctx, identity("user-u"))
	assert.Equal(t, domain.StateUnselected, f.manager.Snapshot().State)
}

func TestManager_StaleResolutionIsDiscarded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	gate := make(chan struct{})
	f.resolver.mu.Lock()
	f.resolver.gates["user-u"] = gate
	f.resolver.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.manager.IdentityChanged(ctx, identity("user-u"))
	}()

	require.Eventually(t, func() bool {
		f.resolver.mu.Lock()
		defer f.resolver.mu.Unlock()
		return f.resolver.calls == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, domain.StateResolving, f.manager.Snapshot().State)

	f.manager.IdentityChanged(ctx, identity("user-v"))
	close(gate)
	<-done

	snap := f.manager.Snapshot()
	assert.Equal(t, "user-v", snap.Identity.UserID)
	assert.Equal(t, []membership.Membership{orgA}, snap.Memberships)
	assert.Equal(t, domain.StateActive, snap.State)
	assert.Equal(t, "m-v", snap.Active.Profile.ID)
}

func TestManager_SignOutDuringActivationKeepsPreferenceCleared(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	gate := f.profiles.hold("user-v", "org-a")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.manager.IdentityChanged(ctx, identity("user-v"))
	}()
	f.profiles.waitBlocked(t, 1)

	require.NoError(t, f.manager.SignOut(ctx))
	close(gate)
	<-done

	snap := f.manager.Snapshot()
	assert.Equal(t, domain.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Active)
	stored, ok, err := f.prefs.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "stored preference after sign-out = %q", stored)
}

func TestManager_SupersededActivateDoesNotStorePreference(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.manager.IdentityChanged(ctx, identity("user-u"))
	require.Equal(t, domain.StateUnselected, f.manager.Snapshot().State)

	gate := f.profiles.hold("user-u", "org-a")
	errA := make(chan error, 1)
	go func() { errA <- f.manager.Activate(ctx, "org-a") }()
	f.profiles.waitBlocked(t, 1)

	require.NoError(t, f.manager.Activate(ctx, "org-b"))
	close(gate)
	assert.ErrorIs(t, <-errA, ErrSuperseded)

	snap := f.manager.Snapshot()
	assert.Equal(t, domain.StateActive, snap.State)
	assert.Equal(t, "org-b", snap.Active.OrganizationID())
	stored, ok, err := f.prefs.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "org-b", stored)

	restarted := f.newManager()
	restarted.IdentityChanged(ctx, identity("user-u"))
	assert.Equal(t, "org-b", restarted.Snapshot().Active.OrganizationID())
}

func TestManager_Evaluator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.manager.IdentityChanged(ctx, identity("user-u"))
	assert.False(t, f.manager.Evaluator().HasCapability(rbac.CapEditWiki))

	require.NoError(t, f.manager.Activate(ctx, "org-a"))
	ev := f.manager.Evaluator()
	assert.True(t, ev.HasCapability(rbac.CapEditWiki))
	assert.False(t, ev.HasCapability(rbac.CapSendNewsletter))

	require.NoError(t, f.manager.Activate(ctx, "org-b"))
	assert.True(t, f.manager.Evaluator().HasCapability("anything.at.all"))
}

func TestStore_SignInNotifiesManager(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	f := newFixture()
	store := NewStore(tokens)
	f.manager.Attach(store)

	var seen []string
	store.Subscribe(func(ctx context.Context, id *domain.Identity) {
		if id == nil {
			seen = append(seen, "signed-out")
			return
		}
		seen = append(seen, id.UserID)
	})

	token, _, err := tokens.IssueAccess("s-1", "user-v", "v@example.org")
	require.NoError(t, err)
	id, err := store.SignIn(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "v@example.org", id.Email)
	assert.False(t, id.ExpiresAt.IsZero())

	snap := f.manager.Snapshot()
	assert.Equal(t, domain.StateActive, snap.State)
	assert.Equal(t, "user-v", store.Current().UserID)

	store.SignOut(context.Background())
	store.SignOut(context.Background())
	assert.Nil(t, store.Current())
	assert.Equal(t, domain.StateUnauthenticated, f.manager.Snapshot().State)
	assert.Equal(t, []string{"user-v", "signed-out"}, seen)
	_, ok, _ := f.prefs.Get(context.Background())
	assert.False(t, ok)
}

func TestStore_InvalidTokenKeepsIdentity(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	store := NewStore(tokens)
	notified := 0
	store.Subscribe(func(context.Context, *domain.Identity) { notified++ })

	_, err = store.SignIn(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, store.Current())
	assert.Equal(t, 0, notified)
}
