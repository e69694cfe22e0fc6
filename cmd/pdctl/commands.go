package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	membership "pulsedeck/internal/membership/domain"
	"pulsedeck/internal/platform/rbac"
	"pulsedeck/internal/session/domain"
)

// errDenied signals a negative answer to can/ag; main turns it into exit status 1.
type errDenied string

func (e errDenied) Error() string { return string(e) }

type session interface {
	Snapshot() domain.Snapshot
	Activate(ctx context.Context, organizationID string) error
	Evaluator() rbac.Evaluator
}

// remote is the part of the access API that keeps the server-side device state in step.
type remote interface {
	SelectOrganization(ctx context.Context, orgID string) (*membership.ActiveContext, error)
	SignOut(ctx context.Context) error
}

// signer ends the local session; the attached manager clears its state and the stored preference.
type signer interface {
	SignOut(ctx context.Context)
}

type app struct {
	session session
	remote  remote
	store   signer
	out     io.Writer
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "orgs":
		return a.orgs()
	case "use":
		if len(args) != 1 {
			return fmt.Errorf("usage: use <org-id>")
		}
		return a.use(ctx, args[0])
	case "whoami":
		return a.whoami()
	case "can":
		if len(args) != 1 {
			return fmt.Errorf("usage: can <capability>")
		}
		return a.can(args[0])
	case "ag":
		if len(args) != 1 {
			return fmt.Errorf("usage: ag <working-group-id>")
		}
		return a.workingGroup(args[0])
	case "signout":
		return a.signOut(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) orgs() error {
	snap := a.session.Snapshot()
	if len(snap.Memberships) == 0 {
		fmt.Fprintln(a.out, "no memberships")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tORGANIZATION\tSLUG\tROLE\tID")
	for _, m := range snap.Memberships {
		marker := ""
		if snap.Active.OrganizationID() == m.OrganizationID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, m.OrganizationName, m.OrganizationSlug, m.Role, m.OrganizationID)
	}
	return w.Flush()
}

func (a *app) use(ctx context.Context, orgID string) error {
	if err := a.session.Activate(ctx, orgID); err != nil {
		return err
	}
	if _, err := a.remote.SelectOrganization(ctx, orgID); err != nil {
		return fmt.Errorf("selected locally, server refused: %w", err)
	}
	snap := a.session.Snapshot()
	fmt.Fprintf(a.out, "active organization: %s (%s)\n", snap.Active.Membership.OrganizationName, snap.Active.Role())
	return nil
}

func (a *app) whoami() error {
	snap := a.session.Snapshot()
	if snap.Identity == nil {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "user:    %s %s\n", snap.Identity.UserID, snap.Identity.Email)
	fmt.Fprintf(a.out, "state:   %s\n", snap.State)
	if snap.Active == nil {
		fmt.Fprintf(a.out, "active:  none (%d memberships, run 'pdctl use <org-id>')\n", len(snap.Memberships))
		return nil
	}
	fmt.Fprintf(a.out, "active:  %s (%s)\n", snap.Active.Membership.OrganizationName, snap.Active.OrganizationID())
	fmt.Fprintf(a.out, "role:    %s\n", snap.Active.Role())

	ev := a.session.Evaluator()
	var caps []string
	for _, c := range rbac.Capabilities() {
		if ev.HasCapability(c) {
			caps = append(caps, c)
		}
	}
	fmt.Fprintf(a.out, "can:     %v\n", caps)
	if snap.Active.Profile != nil && len(snap.Active.Profile.WorkingGroups) > 0 {
		ids := snap.Active.Profile.WorkingGroupIDs()
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(a.out, "ag:      %s (%s)\n", id, snap.Active.Profile.WorkingGroups[id])
		}
	}
	return nil
}

func (a *app) can(capability string) error {
	if a.session.Snapshot().Active == nil {
		return fmt.Errorf("no active organization")
	}
	if a.session.Evaluator().HasCapability(capability) {
		fmt.Fprintln(a.out, "yes")
		return nil
	}
	fmt.Fprintln(a.out, "no")
	return errDenied(capability)
}

func (a *app) workingGroup(wgID string) error {
	if a.session.Snapshot().Active == nil {
		return fmt.Errorf("no active organization")
	}
	ev := a.session.Evaluator()
	fmt.Fprintf(a.out, "member: %t\nadmin:  %t\nlead:   %t\n", ev.IsAgMember(wgID), ev.IsAgAdmin(wgID), ev.IsAgLead(wgID))
	if !ev.IsAgMember(wgID) && !ev.IsAgAdmin(wgID) {
		return errDenied(wgID)
	}
	return nil
}

func (a *app) signOut(ctx context.Context) error {
	if err := a.remote.SignOut(ctx); err != nil {
		return err
	}
	a.store.SignOut(ctx)
	fmt.Fprintln(a.out, "signed out")
	return nil
}
