// Package authz decides whether a user may perform an action on a family.
// Membership is looked up fresh on every call; nothing is cached between
// requests, so a role change takes effect on the very next check.
package authz

import (
	"context"
	"errors"

	"coparent/internal/models"
	"coparent/internal/service"
)

// Action names something a parent can do to a family
type Action string

const (
	ActionViewFamily       Action = "view-family"
	ActionViewExpenses     Action = "view-expenses"
	ActionCreateExpense    Action = "create-expense"
	ActionIssueInvitation  Action = "issue-invitation"
	ActionRevokeInvitation Action = "revoke-invitation"
	ActionListInvitations  Action = "list-invitations"
	ActionTransferAdmin    Action = "transfer-admin"
	ActionEditChildren     Action = "edit-children"
	ActionRenameFamily     Action = "rename-family"
)

var adminOnly = map[Action]bool{
	ActionIssueInvitation:  true,
	ActionRevokeInvitation: true,
	ActionListInvitations:  true,
	ActionTransferAdmin:    true,
	ActionEditChildren:     true,
	ActionRenameFamily:     true,
}

var memberActions = map[Action]bool{
	ActionViewFamily:    true,
	ActionViewExpenses:  true,
	ActionCreateExpense: true,
}

// AdminOnly reports whether only the family's admin parent may perform a
func (a Action) AdminOnly() bool {
	return adminOnly[a]
}

// Known reports whether a is a recognized action
func (a Action) Known() bool {
	return adminOnly[a] || memberActions[a]
}

// MembershipSource derives a user's family membership from the store
type MembershipSource interface {
	GetMembershipContext(ctx context.Context, user *models.User) (*models.MembershipContext, error)
}

// Guard checks actions against the caller's current membership
type Guard struct {
	members MembershipSource
}

// NewGuard creates a guard backed by src
func NewGuard(src MembershipSource) *Guard {
	return &Guard{members: src}
}

// Authorize returns the caller's membership when user may perform action on
// familyID. A user outside the family gets ErrNotFamilyMember; a co-parent
// attempting an admin action, or any unknown action, gets ErrForbidden.
func (g *Guard) Authorize(ctx context.Context, user *models.User, action Action, familyID int64) (*models.MembershipContext, error) {
	mc, err := g.members.GetMembershipContext(ctx, user)
	if err != nil {
		return nil, err
	}
	if !mc.HasFamily() || mc.Family.ID != familyID {
		return nil, service.ErrNotFamilyMember
	}
	return mc, check(mc, action)
}

// AuthorizeOwn is Authorize against the caller's own family. A user with no
// family gets ErrNoFamily.
func (g *Guard) AuthorizeOwn(ctx context.Context, user *models.User, action Action) (*models.MembershipContext, error) {
	mc, err := g.members.GetMembershipContext(ctx, user)
	if err != nil {
		return nil, err
	}
	if !mc.HasFamily() {
		return nil, service.ErrNoFamily
	}
	return mc, check(mc, action)
}

// CanPerform is the boolean form of Authorize. Only store failures are
// returned as errors.
func (g *Guard) CanPerform(ctx context.Context, user *models.User, action Action, familyID int64) (bool, error) {
	_, err := g.Authorize(ctx, user, action, familyID)
	if err == nil {
		return true, nil
	}
	if IsDenied(err) {
		return false, nil
	}
	return false, err
}

// IsDenied reports whether err is an authorization refusal rather than a failure
func IsDenied(err error) bool {
	return errors.Is(err, service.ErrForbidden) ||
		errors.Is(err, service.ErrNotFamilyMember) ||
		errors.Is(err, service.ErrNoFamily)
}

func check(mc *models.MembershipContext, action Action) error {
	if !action.Known() {
		return service.ErrForbidden
	}
	if action.AdminOnly() && !mc.IsAdmin() {
		return service.ErrForbidden
	}
	return nil
}
