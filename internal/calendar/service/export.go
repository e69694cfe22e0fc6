// Package service renders organization calendars as iCalendar feeds filtered by visibility.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pulsedeck/internal/calendar/domain"
	"pulsedeck/internal/logging"
	membership "pulsedeck/internal/membership/domain"
	orgdomain "pulsedeck/internal/organization/domain"
	"pulsedeck/internal/telemetry/metrics"
	"pulsedeck/internal/visibility"
)

var (
	// ErrMissingCredentials is returned when neither a token nor an organization id is given.
	ErrMissingCredentials = errors.New("calendar: token or organization required")
	// ErrInvalidToken is returned for an unknown calendar token.
	ErrInvalidToken = errors.New("calendar: invalid token")
	// ErrOrganizationNotFound is returned when the organization does not exist.
	ErrOrganizationNotFound = errors.New("calendar: organization not found")
)

const productID = "-//PulseDeck//Calendar Export//EN"

// ProfileFinder resolves a calendar token to its member profile. Returns (nil, nil) if unknown.
type ProfileFinder interface {
	GetProfileByCalendarToken(ctx context.Context, token string) (*membership.Profile, error)
}

// OrganizationGetter loads an organization. Returns (nil, nil) if not found.
type OrganizationGetter interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// EventLister lists organization events.
type EventLister interface {
	ListEventsSince(ctx context.Context, orgID string, since time.Time) ([]domain.Event, error)
}

// Config tunes the exporter.
type Config struct {
	// Lookback is how far into the past events are included.
	Lookback time.Duration
	// CacheTTL is how long a rendered feed is reused. Zero disables caching.
	CacheTTL  time.Duration
	CacheSize int
}

// Request identifies the feed. Token takes precedence over OrganizationID.
type Request struct {
	Token          string
	OrganizationID string
}

func (r Request) kind() string {
	if r.Token != "" {
		return "token"
	}
	return "org"
}

func (r Request) cacheKey() string {
	if r.Token != "" {
		return "token:" + r.Token
	}
	return "org:" + r.OrganizationID
}

// Exporter builds calendar feeds.
type Exporter struct {
	profiles  ProfileFinder
	orgs      OrganizationGetter
	events    EventLister
	evaluator visibility.Evaluator
	lookback  time.Duration
	cache     *lru.LRU[string, []byte]
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewExporter returns an Exporter. m and log may be nil.
func NewExporter(profiles ProfileFinder, orgs OrganizationGetter, events EventLister, evaluator visibility.Evaluator, cfg Config, m *metrics.Metrics, log logrus.FieldLogger) *Exporter {
	e := &Exporter{
		profiles:  profiles,
		orgs:      orgs,
		events:    events,
		evaluator: evaluator,
		lookback:  cfg.Lookback,
		metrics:   m,
		log:       logging.OrDiscard(log),
		now:       time.Now,
	}
	if cfg.CacheTTL > 0 {
		size := cfg.CacheSize
		if size <= 0 {
			size = 1024
		}
		e.cache = lru.NewLRU[string, []byte](size, nil, cfg.CacheTTL)
	}
	return e
}

// Export returns the iCalendar text of the feed described by req.
func (e *Exporter) Export(ctx context.Context, req Request) ([]byte, error) {
	req.Token = strings.TrimSpace(req.Token)
	req.OrganizationID = strings.TrimSpace(req.OrganizationID)
	if req.Token == "" && req.OrganizationID == "" {
		e.metrics.ObserveExport("none", "missing_credentials")
		return nil, ErrMissingCredentials
	}
	key := req.cacheKey()
	if e.cache != nil {
		if body, ok := e.cache.Get(key); ok {
			e.metrics.ObserveCache(true)
			e.metrics.ObserveExport(req.kind(), "ok")
			return body, nil
		}
		e.metrics.ObserveCache(false)
	}

	body, err := e.render(ctx, req)
	if err != nil {
		e.metrics.ObserveExport(req.kind(), outcome(err))
		return nil, err
	}
	if e.cache != nil {
		e.cache.Add(key, body)
	}
	e.metrics.ObserveExport(req.kind(), "ok")
	return body, nil
}

func (e *Exporter) render(ctx context.Context, req Request) ([]byte, error) {
	orgID := req.OrganizationID
	viewer := visibility.Anonymous()
	if req.Token != "" {
		p, err := e.profiles.GetProfileByCalendarToken(ctx, req.Token)
		if err != nil {
			return nil, fmt.Errorf("resolve calendar token: %w", err)
		}
		if p == nil {
			return nil, ErrInvalidToken
		}
		orgID = p.OrganizationID
		viewer = visibility.ForCalendarToken(p.Role, p.WorkingGroupIDs())
	}

	var (
		org    *orgdomain.Org
		events []domain.Event
	)
	since := e.now().Add(-e.lookback)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		org, err = e.orgs.GetOrganizationByID(gctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = e.events.ListEventsSince(gctx, orgID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	if org == nil {
		return nil, ErrOrganizationNotFound
	}

	visible, err := visibility.Filter(ctx, e.evaluator, viewer, events, domain.Event.Policy)
	if err != nil {
		return nil, fmt.Errorf("filter events: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"org_id":  orgID,
		"kind":    req.kind(),
		"total":   len(events),
		"visible": len(visible),
	}).Debug("calendar: rendered feed")
	return []byte(Render(org, visible, e.now())), nil
}

// Render serializes events as an RFC 5545 calendar named after org.
func Render(org *orgdomain.Org, events []domain.Event, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(org.Name)
	for _, ev := range events {
		ve := cal.AddEvent(ev.ID + "@" + org.Slug + ".pulsedeck")
		ve.SetDtStampTime(stamp.UTC())
		if ev.AllDay {
			ve.SetAllDayStartAt(ev.StartsAt)
			ve.SetAllDayEndAt(ev.End())
		} else {
			ve.SetStartAt(ev.StartsAt.UTC())
			ve.SetEndAt(ev.End().UTC())
		}
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if !ev.UpdatedAt.IsZero() {
			ve.SetModifiedAt(ev.UpdatedAt.UTC())
		}
	}
	return cal.Serialize()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrOrganizationNotFound):
		return "not_found"
	default:
		return "error"
	}
}
