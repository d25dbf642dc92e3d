package service

import (
	"context"
	"testing"

	"coparent/internal/models"
)

func TestCreateFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "founder")

	dob := "2019-05-04"
	mc, children, err := env.families.CreateFamily(ctx, u, "  Rivera  ", []models.ChildInput{
		{Name: "Ana", DateOfBirth: &dob},
		{Name: "Leo"},
	})
	if err != nil {
		t.Fatalf("CreateFamily() error = %v", err)
	}
	if mc.Family.Name != "Rivera" {
		t.Errorf("Family.Name = %q", mc.Family.Name)
	}
	if !mc.IsAdmin() {
		t.Errorf("founder role = %s, want %s", mc.Parent.Role, models.RoleAdminParent)
	}
	if len(children) != 2 || children[0].FamilyID != mc.Family.ID {
		t.Errorf("children = %+v", children)
	}

	status, err := env.families.OnboardingStatus(ctx, mc)
	if err != nil {
		t.Fatalf("OnboardingStatus() error = %v", err)
	}
	if status != models.OnboardingAwaitingCoParent {
		t.Errorf("OnboardingStatus() = %s, want %s", status, models.OnboardingAwaitingCoParent)
	}

	_, _, err = env.families.CreateFamily(ctx, u, "Second", nil)
	assertErr(t, err, ErrAlreadyMember)
}

func TestCreateFamilyValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "founder")

	bad := "05/04/2019"
	tests := []struct {
		name     string
		family   string
		children []models.ChildInput
	}{
		{"empty name", "", nil},
		{"blank child", "Rivera", []models.ChildInput{{Name: " "}}},
		{"bad birth date", "Rivera", []models.ChildInput{{Name: "Ana", DateOfBirth: &bad}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := env.families.CreateFamily(ctx, u, tt.family, tt.children); err == nil {
				t.Error("CreateFamily() should fail")
			}
		})
	}

	mc, err := env.families.GetMembershipContext(ctx, u)
	if err != nil {
		t.Fatalf("GetMembershipContext() error = %v", err)
	}
	if mc.HasFamily() {
		t.Error("failed CreateFamily calls must not leave a family behind")
	}
}

func TestMembershipContextWithoutFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "loner")

	mc, err := env.families.GetMembershipContext(ctx, u)
	if err != nil {
		t.Fatalf("GetMembershipContext() error = %v", err)
	}
	if mc.HasFamily() || mc.IsAdmin() {
		t.Errorf("GetMembershipContext() = %+v, want no family", mc)
	}
	status, err := env.families.OnboardingStatus(ctx, mc)
	if err != nil {
		t.Fatalf("OnboardingStatus() error = %v", err)
	}
	if status != models.OnboardingNoFamily {
		t.Errorf("OnboardingStatus() = %s", status)
	}

	_, err = env.families.ListChildren(ctx, u)
	assertErr(t, err, ErrNoFamily)
	_, err = env.families.ListMembers(ctx, u)
	assertErr(t, err, ErrNoFamily)
}

func TestChildRosterAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, co := env.pair(t)

	child, err := env.families.AddChild(ctx, admin, models.ChildInput{Name: "Mia"})
	if err != nil {
		t.Fatalf("AddChild() error = %v", err)
	}

	_, err = env.families.AddChild(ctx, co, models.ChildInput{Name: "Noah"})
	assertErr(t, err, ErrForbidden)
	_, err = env.families.RenameFamily(ctx, co, "Renamed")
	assertErr(t, err, ErrForbidden)
	assertErr(t, env.families.RemoveChild(ctx, co, child.ID), ErrForbidden)

	// Both parents read the roster
	for _, u := range []*models.User{admin, co} {
		kids, err := env.families.ListChildren(ctx, u)
		if err != nil {
			t.Fatalf("ListChildren() error = %v", err)
		}
		if len(kids) != 2 {
			t.Errorf("ListChildren() returned %d children, want 2", len(kids))
		}
	}

	updated, err := env.families.UpdateChild(ctx, admin, child.ID, models.ChildInput{Name: "Mia Rose"})
	if err != nil {
		t.Fatalf("UpdateChild() error = %v", err)
	}
	if updated.Name != "Mia Rose" {
		t.Errorf("UpdateChild() name = %q", updated.Name)
	}

	family, err := env.families.RenameFamily(ctx, admin, "Renamed")
	if err != nil {
		t.Fatalf("RenameFamily() error = %v", err)
	}
	if family.Name != "Renamed" {
		t.Errorf("RenameFamily() name = %q", family.Name)
	}

	if err := env.families.RemoveChild(ctx, admin, child.ID); err != nil {
		t.Fatalf("RemoveChild() error = %v", err)
	}
	assertErr(t, env.families.RemoveChild(ctx, admin, child.ID), ErrNotFound)

	members, err := env.families.ListMembers(ctx, co)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("ListMembers() returned %d members, want 2", len(members))
	}
}

func TestChildOfAnotherFamilyIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _ = env.founded(t, "first")
	other, _ := env.founded(t, "second")

	firstKids, err := env.families.ListChildren(ctx, env.user(t, "first"))
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	foreign := firstKids[0].ID

	_, err = env.families.UpdateChild(ctx, other, foreign, models.ChildInput{Name: "Hijack"})
	assertErr(t, err, ErrNotFound)
	assertErr(t, env.families.RemoveChild(ctx, other, foreign), ErrNotFound)
}

func TestFamilyLocksReleaseEntries(t *testing.T) {
	locks := NewFamilyLocks()
	unlock := locks.Lock(1)
	unlock2 := locks.Lock(2)
	if got := locks.size(); got != 2 {
		t.Errorf("size() = %d, want 2", got)
	}
	unlock()
	unlock() // second call is a no-op
	unlock2()
	if got := locks.size(); got != 0 {
		t.Errorf("size() after unlock = %d, want 0", got)
	}
}
