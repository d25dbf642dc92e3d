package models

import "time"

// ParentRole is the role a parent holds inside their family
type ParentRole string

const (
	RoleAdminParent ParentRole = "ADMIN_PARENT"
	RoleCoParent    ParentRole = "CO_PARENT"
)

// Valid reports whether r is a known role
func (r ParentRole) Valid() bool {
	return r == RoleAdminParent || r == RoleCoParent
}

// MaxParents is the number of parents a family holds when onboarding is complete
const MaxParents = 2

// Family is the tenant root. Every other record belongs to exactly one family.
type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Parent binds a user to a family. A user holds at most one parent record.
type Parent struct {
	ID       int64      `json:"id"`
	FamilyID int64      `json:"familyId"`
	UserID   int64      `json:"userId"`
	Role     ParentRole `json:"role"`
	JoinedAt time.Time  `json:"joinedAt"`
}

// IsAdmin reports whether the parent holds the admin role
func (p *Parent) IsAdmin() bool {
	return p.Role == RoleAdminParent
}

// FamilyMember is a parent together with the member's public profile
type FamilyMember struct {
	Parent  Parent        `json:"parent"`
	Profile PublicProfile `json:"profile"`
}

// MembershipContext is the derived view of where a user belongs.
// Family and Parent are both nil for a user that has not joined a family.
type MembershipContext struct {
	User   *User
	Family *Family
	Parent *Parent
}

// HasFamily reports whether the user belongs to a family
func (m *MembershipContext) HasFamily() bool {
	return m.Family != nil && m.Parent != nil
}

// IsAdmin reports whether the user is the admin parent of their family
func (m *MembershipContext) IsAdmin() bool {
	return m.HasFamily() && m.Parent.IsAdmin()
}

// OnboardingStatus summarizes how far a user is through family setup
type OnboardingStatus string

const (
	OnboardingNoFamily         OnboardingStatus = "NO_FAMILY"
	OnboardingAwaitingCoParent OnboardingStatus = "AWAITING_CO_PARENT"
	OnboardingComplete         OnboardingStatus = "COMPLETE"
)

// DeriveOnboarding computes the onboarding status from the membership
// context and the number of parents in the family.
func DeriveOnboarding(ctx *MembershipContext, parentCount int) OnboardingStatus {
	if ctx == nil || !ctx.HasFamily() {
		return OnboardingNoFamily
	}
	if parentCount >= MaxParents {
		return OnboardingComplete
	}
	return OnboardingAwaitingCoParent
}
