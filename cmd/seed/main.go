// seed inserts a demo tenant set for local testing: two organizations, members, a working group
// and events of every visibility. Idempotent: skips if the demo organization already exists.
// When JWT keys are configured it prints an access token for the demo user.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"pulsedeck/internal/config"
	"pulsedeck/internal/db"
	"pulsedeck/internal/logging"
	orgdomain "pulsedeck/internal/organization/domain"
	orgrepo "pulsedeck/internal/organization/repository"
	"pulsedeck/internal/security"
)

const (
	demoUserID   = "00000000-0000-4000-8000-000000000001"
	demoUserMail = "ada@example.org"
	otherUserID  = "00000000-0000-4000-8000-000000000002"
)

type seedMember struct {
	userID      string
	name        string
	email       string
	role        string
	permissions []string
}

type seedEvent struct {
	title        string
	offset       time.Duration
	allDay       bool
	allowedRoles []string
	inGroup      bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("seed: loading config failed")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("seed: opening database failed")
	}
	defer conn.Close()

	var exists bool
	if err := conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE slug = $1)`, "turnverein-nord").Scan(&exists); err != nil {
		log.WithError(err).Fatal("seed: checking existing data failed")
	}
	if exists {
		log.Info("seed: demo data already present, skipping inserts")
	} else if err := seed(ctx, conn, log); err != nil {
		log.WithError(err).Fatal("seed: failed")
	} else {
		log.Info("seed: completed")
	}

	printToken(cfg, log)
}

func seed(ctx context.Context, conn *sql.DB, log logrus.FieldLogger) error {
	now := time.Now().UTC()
	orgs := orgrepo.NewPostgresRepository(conn)

	club := &orgdomain.Org{ID: uuid.NewString(), Name: "Turnverein Nord", CreatedAt: now}
	choir := &orgdomain.Org{ID: uuid.NewString(), Name: "Chor am See", CreatedAt: now}
	for _, o := range []*orgdomain.Org{club, choir} {
		if err := orgs.CreateOrganization(ctx, o); err != nil {
			return err
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	clubMembers := map[string]string{}
	for _, m := range []seedMember{
		{demoUserID, "Ada Lovelace", demoUserMail, "member", []string{"wiki.edit"}},
		{otherUserID, "Bo Berg", "bo@example.org", "committee", []string{"events.manage"}},
		{"", "Cleo Ohne-Konto", "cleo@example.org", "member", nil},
	} {
		id, err := insertMember(ctx, tx, club.ID, m)
		if err != nil {
			return err
		}
		clubMembers[m.email] = id
	}
	if _, err := insertMember(ctx, tx, choir.ID, seedMember{demoUserID, "Ada Lovelace", demoUserMail, "admin", nil}); err != nil {
		return err
	}

	wgID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `INSERT INTO working_groups (id, organization_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		wgID, club.ID, "AG Jugend", now); err != nil {
		return fmt.Errorf("insert working group: %w", err)
	}
	for email, role := range map[string]string{demoUserMail: "lead", "bo@example.org": "member"} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ag_memberships (member_id, working_group_id, role) VALUES ($1, $2, $3)`,
			clubMembers[email], wgID, role); err != nil {
			return fmt.Errorf("insert working group membership: %w", err)
		}
	}

	day := 24 * time.Hour
	for _, e := range []seedEvent{
		{"Sommerfest", 14 * day, true, []string{"public"}, false},
		{"Mitgliederversammlung", 21 * day, false, []string{"member"}, false},
		{"Vorstandssitzung", 7 * day, false, []string{"committee", "admin"}, false},
		{"Jugendtraining", 3 * day, false, []string{"member"}, true},
		{"Kassenprüfung", 30 * day, false, []string{"admin"}, false},
	} {
		if err := insertEvent(ctx, tx, club.ID, wgID, now, e); err != nil {
			return err
		}
	}
	if err := insertEvent(ctx, tx, choir.ID, "", now, seedEvent{"Probe", 2 * day, false, []string{"public"}, false}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.WithField("org_id", club.ID).WithField("slug", club.Slug).Info("seed: organization created")
	log.WithField("org_id", choir.ID).WithField("slug", choir.Slug).Info("seed: organization created")
	return nil
}

func insertMember(ctx context.Context, tx *sql.Tx, orgID string, m seedMember) (string, error) {
	token, err := security.GenerateCalendarToken()
	if err != nil {
		return "", err
	}
	var userID interface{}
	if m.userID != "" {
		userID = m.userID
	}
	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `INSERT INTO members (id, user_id, organization_id, name, email, app_role, permissions, calendar_token)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, userID, orgID, m.name, m.email, m.role, pq.Array(nonNil(m.permissions)), token)
	if err != nil {
		return "", fmt.Errorf("insert member %s: %w", m.email, err)
	}
	fmt.Printf("calendar token for %s in %s: %s\n", m.email, orgID, token)
	return id, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, orgID, wgID string, now time.Time, e seedEvent) error {
	start := now.Add(e.offset).Truncate(time.Hour)
	end := start.Add(2 * time.Hour)
	if e.allDay {
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		end = start
	}
	var group interface{}
	if e.inGroup && wgID != "" {
		group = wgID
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO events (id, organization_id, title, starts_at, ends_at, all_day, allowed_roles, working_group_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.NewString(), orgID, e.title, start, end, e.allDay, pq.Array(e.allowedRoles), group, now)
	if err != nil {
		return fmt.Errorf("insert event %q: %w", e.title, err)
	}
	return nil
}

func printToken(cfg *config.Config, log logrus.FieldLogger) {
	if cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "" {
		log.Info("seed: JWT_PRIVATE_KEY/JWT_PUBLIC_KEY not set, no demo access token issued")
		return
	}
	tokens, err := security.NewTokenProviderFromPEM(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		log.WithError(err).Fatal("seed: loading JWT keys failed")
	}
	token, expiresAt, err := tokens.IssueAccess(uuid.NewString(), demoUserID, demoUserMail)
	if err != nil {
		log.WithError(err).Fatal("seed: issuing access token failed")
	}
	fmt.Printf("demo user %s access token (expires %s):\n%s\n", demoUserMail, expiresAt.Format(time.RFC3339), token)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
