// Package rbac derives capability checks from the active membership and guards RPCs with them.
package rbac

import (
	"pulsedeck/internal/membership/domain"
)

// Capability names stored in a member's permission grants.
const (
	CapCreateFeedPosts  = "feed.create"
	CapPublishFeedPosts = "feed.publish"
	CapManageEvents     = "events.manage"
	CapEditWiki         = "wiki.edit"
	CapManageFiles      = "files.manage"
	CapManageMembers    = "members.manage"
	CapSendNewsletter   = "newsletter.send"
)

// Capabilities returns every capability the product knows about.
func Capabilities() []string {
	return []string{
		CapCreateFeedPosts, CapPublishFeedPosts, CapManageEvents, CapEditWiki,
		CapManageFiles, CapManageMembers, CapSendNewsletter,
	}
}

// Evaluator answers capability questions for one active context. The zero value and an evaluator
// over a nil context deny everything.
type Evaluator struct {
	ctx *domain.ActiveContext
}

// NewEvaluator returns an Evaluator for ac. ac may be nil.
func NewEvaluator(ac *domain.ActiveContext) Evaluator {
	return Evaluator{ctx: ac}
}

// Role returns the app role of the active context, RolePublic without one.
func (e Evaluator) Role() domain.Role {
	return e.ctx.Role()
}

// HasCapability reports whether the active member may use cap. Committee and admin may use every
// capability, known or not. Below member nothing is allowed. Members need an explicit grant.
func (e Evaluator) HasCapability(cap string) bool {
	if e.ctx == nil {
		return false
	}
	role := e.ctx.Role()
	if !role.AtLeast(domain.RoleMember) {
		return false
	}
	if role.AtLeast(domain.RoleCommittee) {
		return true
	}
	return e.ctx.Profile.HasPermission(cap)
}

// IsAgAdmin reports whether the member administers working group wgID. System admins administer
// every working group.
func (e Evaluator) IsAgAdmin(wgID string) bool {
	if e.ctx == nil {
		return false
	}
	if e.ctx.Role() == domain.RoleAdmin {
		return true
	}
	switch e.workingGroupRole(wgID) {
	case domain.WorkingGroupAdmin, domain.WorkingGroupLead:
		return true
	}
	return false
}

// IsAgLead reports whether the member leads working group wgID.
func (e Evaluator) IsAgLead(wgID string) bool {
	if e.ctx == nil {
		return false
	}
	return e.workingGroupRole(wgID) == domain.WorkingGroupLead
}

// IsAgMember reports whether the member belongs to working group wgID in any role.
func (e Evaluator) IsAgMember(wgID string) bool {
	return e.workingGroupRole(wgID) != ""
}

func (e Evaluator) workingGroupRole(wgID string) domain.WorkingGroupRole {
	if e.ctx == nil || e.ctx.Profile == nil || wgID == "" {
		return ""
	}
	return e.ctx.Profile.WorkingGroups[wgID]
}

// IsAdmin reports whether the active role is the system admin role.
func (e Evaluator) IsAdmin() bool { return e.ctx != nil && e.ctx.Role() == domain.RoleAdmin }

// IsCommitteeOrAbove reports whether the active role is committee or admin.
func (e Evaluator) IsCommitteeOrAbove() bool {
	return e.ctx != nil && e.ctx.Role().AtLeast(domain.RoleCommittee)
}

// CanCreateFeedPosts reports HasCapability(CapCreateFeedPosts).
func (e Evaluator) CanCreateFeedPosts() bool { return e.HasCapability(CapCreateFeedPosts) }

// CanPublishFeedPosts reports HasCapability(CapPublishFeedPosts).
func (e Evaluator) CanPublishFeedPosts() bool { return e.HasCapability(CapPublishFeedPosts) }

// CanManageEvents reports HasCapability(CapManageEvents).
func (e Evaluator) CanManageEvents() bool { return e.HasCapability(CapManageEvents) }

// CanEditWiki reports HasCapability(CapEditWiki).
func (e Evaluator) CanEditWiki() bool { return e.HasCapability(CapEditWiki) }

// CanManageFiles reports HasCapability(CapManageFiles).
func (e Evaluator) CanManageFiles() bool { return e.HasCapability(CapManageFiles) }

// CanManageMembers reports HasCapability(CapManageMembers).
func (e Evaluator) CanManageMembers() bool { return e.HasCapability(CapManageMembers) }

// CanSendNewsletter reports HasCapability(CapSendNewsletter).
func (e Evaluator) CanSendNewsletter() bool { return e.HasCapability(CapSendNewsletter) }
