package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsedeck/internal/calendar/domain"
	membership "pulsedeck/internal/membership/domain"
	orgdomain "pulsedeck/internal/organization/domain"
	"pulsedeck/internal/telemetry/metrics"
	"pulsedeck/internal/visibility"
)

type fakeProfiles struct {
	byToken map[string]*membership.Profile
	err     error
}

func (f *fakeProfiles) GetProfileByCalendarToken(ctx context.Context, token string) (*membership.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byToken[token], nil
}

type fakeOrgs struct {
	orgs map[string]*orgdomain.Org
}

func (f *fakeOrgs) GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error) {
	return f.orgs[id], nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events map[string][]domain.Event
	err    error
	calls  int
	since  time.Time
}

func (f *fakeEvents) ListEventsSince(ctx context.Context, orgID string, since time.Time) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return f.events[orgID], nil
}

var (
	now   = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	start = time.Date(2026, 6, 10, 18, 30, 0, 0, time.UTC)
)

func newTestExporter(cfg Config) (*Exporter, *fakeEvents, *metrics.Metrics) {
	profiles := &fakeProfiles{byToken: map[string]*membership.Profile{
		"tok-committee": {ID: "m-1", OrganizationID: "org-a", Role: membership.RoleCommittee,
			WorkingGroups: map[string]membership.WorkingGroupRole{"wg-youth": membership.WorkingGroupMember}},
		"tok-orphan": {ID: "m-2", OrganizationID: "org-gone", Role: membership.RoleMember},
	}}
	orgs := &fakeOrgs{orgs: map[string]*orgdomain.Org{
		"org-a": {ID: "org-a", Name: "Alpha Club", Slug: "alpha"},
	}}
	events := &fakeEvents{events: map[string][]domain.Event{
		"org-a": {
			{ID: "e-public", Title: "Summer Fest", StartsAt: start, AllowedRoles: visibility.RolesForLevel(membership.RolePublic)},
			{ID: "e-members", Title: "Assembly", StartsAt: start, AllowedRoles: visibility.RolesForLevel(membership.RoleMember)},
			{ID: "e-board", Title: "Board Meeting", StartsAt: start, AllowedRoles: visibility.RolesForLevel(membership.RoleCommittee)},
			{ID: "e-admins", Title: "Admin Sync", StartsAt: start, AllowedRoles: []membership.Role{membership.RoleAdmin}},
			{ID: "e-youth", Title: "Youth AG", StartsAt: start, AllowedRoles: []membership.Role{}, WorkingGroupID: "wg-youth"},
			{ID: "e-allday", Title: "Club Trip", StartsAt: time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC),
				EndsAt: time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC), AllDay: true, AllowedRoles: visibility.RolesForLevel(membership.RolePublic)},
		},
		"org-gone": {},
	}}
	m := metrics.New(prometheus.NewRegistry())
	e := NewExporter(profiles, orgs, events, visibility.Native{}, cfg, m, nil)
	e.now = func() time.Time { return now }
	return e, events, m
}

func TestExport_OrganizationPathIsPublicOnly(t *testing.T) {
	e, events, _ := newTestExporter(Config{Lookback: 90 * 24 * time.Hour})

	body, err := e.Export(context.Background(), Request{OrganizationID: "org-a"})
	require.NoError(t, err)
	s := string(body)
	assert.Contains(t, s, "BEGIN:VCALENDAR")
	assert.Contains(t, s, "X-WR-CALNAME:Alpha Club")
	assert.Contains(t, s, "SUMMARY:Summer Fest")
	assert.Contains(t, s, "SUMMARY:Club Trip")
	assert.NotContains(t, s, "Assembly")
	assert.NotContains(t, s, "Youth AG")
	assert.Equal(t, 2, strings.Count(s, "BEGIN:VEVENT"))
	assert.Contains(t, s, "DTSTART;VALUE=DATE:20260704")
	assert.Contains(t, s, "DTEND;VALUE=DATE:20260706")
	assert.True(t, events.since.Equal(now.AddDate(0, 0, -90)), "since = %v", events.since)
}

func TestExport_TokenPath(t *testing.T) {
	e, _, _ := newTestExporter(Config{Lookback: 90 * 24 * time.Hour})

	body, err := e.Export(context.Background(), Request{Token: "tok-committee", OrganizationID: "ignored"})
	require.NoError(t, err)
	s := string(body)
	for _, title := range []string{"Summer Fest", "Assembly", "Board Meeting", "Youth AG", "Club Trip"} {
		assert.Contains(t, s, "SUMMARY:"+title)
	}
	assert.NotContains(t, s, "Admin Sync")
	assert.Contains(t, s, "UID:e-board@alpha.pulsedeck")
}

func TestExport_Errors(t *testing.T) {
	e, events, m := newTestExporter(Config{})
	ctx := context.Background()

	_, err := e.Export(ctx, Request{})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = e.Export(ctx, Request{Token: "nope"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = e.Export(ctx, Request{OrganizationID: "org-z"})
	assert.ErrorIs(t, err, ErrOrganizationNotFound)

	_, err = e.Export(ctx, Request{Token: "tok-orphan"})
	assert.ErrorIs(t, err, ErrOrganizationNotFound)

	events.err = errors.New("db down")
	_, err = e.Export(ctx, Request{OrganizationID: "org-a"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOrganizationNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CalendarExports.WithLabelValues("token", "invalid_token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CalendarExports.WithLabelValues("org", "error")))
}

func TestExport_CachesSuccessfulRenders(t *testing.T) {
	e, events, m := newTestExporter(Config{CacheTTL: time.Minute, CacheSize: 8})
	ctx := context.Background()

	first, err := e.Export(ctx, Request{OrganizationID: "org-a"})
	require.NoError(t, err)
	second, err := e.Export(ctx, Request{OrganizationID: "org-a"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, events.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CalendarCacheTotal.WithLabelValues("hit")))

	_, err = e.Export(ctx, Request{OrganizationID: "org-z"})
	require.ErrorIs(t, err, ErrOrganizationNotFound)
	_, err = e.Export(ctx, Request{OrganizationID: "org-z"})
	require.ErrorIs(t, err, ErrOrganizationNotFound)
	assert.Equal(t, 3, events.calls)
}

func TestExport_NoCacheWhenTTLZero(t *testing.T) {
	e, events, _ := newTestExporter(Config{})
	for i := 0; i < 2; i++ {
		_, err := e.Export(context.Background(), Request{OrganizationID: "org-a"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, events.calls)
}
