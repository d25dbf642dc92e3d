package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"coparent/internal/database"
	"coparent/internal/models"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedFamily(t *testing.T, db *database.DB) (*models.Family, *models.Parent) {
	t.Helper()
	ctx := context.Background()
	user, err := NewUserRepository(db).CreateUser(ctx, "sub-admin", "admin@example.com", "Admin", testNow)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	families := NewFamilyRepository(db)
	family, err := families.CreateFamily(ctx, "Rivera", testNow)
	if err != nil {
		t.Fatalf("CreateFamily: %v", err)
	}
	parent, err := families.AddParent(ctx, family.ID, user.ID, models.RoleAdminParent, testNow)
	if err != nil {
		t.Fatalf("AddParent: %v", err)
	}
	return family, parent
}

func TestUserRepositoryDuplicateSubject(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, "sub-1", "a@example.com", "A", testNow); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := repo.CreateUser(ctx, "sub-1", "a@example.com", "A", testNow)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	user, err := repo.GetUserBySubject(ctx, "sub-1")
	if err != nil || user == nil {
		t.Fatalf("GetUserBySubject: %v %v", user, err)
	}
	if user.IsDeleted() {
		t.Error("new user should not be deleted")
	}

	if err := repo.SoftDelete(ctx, user.ID, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	user, _ = repo.GetUserBySubject(ctx, "sub-1")
	if user == nil || !user.IsDeleted() {
		t.Fatal("soft deleted user should still be readable and marked deleted")
	}

	missing, err := repo.GetUserBySubject(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("GetUserBySubject(unknown) = %v, %v; want nil, nil", missing, err)
	}
}

func TestFamilyRepositoryConstraints(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	family, admin := seedFamily(t, db)
	families := NewFamilyRepository(db)

	t.Run("user holds one parent record", func(t *testing.T) {
		_, err := families.AddParent(ctx, family.ID, admin.UserID, models.RoleCoParent, testNow)
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("second admin rejected by index", func(t *testing.T) {
		other, err := NewUserRepository(db).CreateUser(ctx, "sub-other", "o@example.com", "O", testNow)
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		_, err = families.AddParent(ctx, family.ID, other.ID, models.RoleAdminParent, testNow)
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected ErrDuplicate for second admin, got %v", err)
		}
	})

	t.Run("version bump is conditional", func(t *testing.T) {
		ok, err := families.BumpVersion(ctx, family.ID, 1, testNow)
		if err != nil || !ok {
			t.Fatalf("BumpVersion(1) = %v, %v", ok, err)
		}
		ok, err = families.BumpVersion(ctx, family.ID, 1, testNow)
		if err != nil || ok {
			t.Errorf("stale BumpVersion(1) = %v, %v; want false", ok, err)
		}
	})

	t.Run("role update checks current role", func(t *testing.T) {
		ok, err := families.UpdateParentRole(ctx, family.ID, admin.ID, models.RoleCoParent, models.RoleAdminParent)
		if err != nil || ok {
			t.Errorf("UpdateParentRole from wrong role = %v, %v; want false", ok, err)
		}
	})

	t.Run("members listed with profiles", func(t *testing.T) {
		members, err := families.GetFamilyMembers(ctx, family.ID)
		if err != nil {
			t.Fatalf("GetFamilyMembers: %v", err)
		}
		if len(members) != 1 || members[0].Profile.Name != "Admin" || members[0].Parent.Role != models.RoleAdminParent {
			t.Errorf("unexpected members: %+v", members)
		}
	})
}

func TestInvitationRepositoryTransitions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	family, admin := seedFamily(t, db)
	repo := NewInvitationRepository(db)

	inv, err := repo.CreateInvitation(ctx, family.ID, admin.ID, "co@example.com", "hash-1", testNow, testNow.Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	t.Run("one pending per family", func(t *testing.T) {
		_, err := repo.CreateInvitation(ctx, family.ID, admin.ID, "x@example.com", "hash-2", testNow, testNow.Add(time.Hour))
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("lookup by hash", func(t *testing.T) {
		got, err := repo.GetByTokenHash(ctx, "hash-1")
		if err != nil || got == nil || got.ID != inv.ID || got.Status != models.InvitationPending {
			t.Fatalf("GetByTokenHash = %+v, %v", got, err)
		}
		if !got.ExpiresAt.Equal(inv.ExpiresAt) {
			t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, inv.ExpiresAt)
		}
	})

	t.Run("revoke only once", func(t *testing.T) {
		ok, err := repo.MarkRevoked(ctx, inv.ID, testNow)
		if err != nil || !ok {
			t.Fatalf("MarkRevoked = %v, %v", ok, err)
		}
		ok, err = repo.MarkAccepted(ctx, inv.ID, admin.UserID, testNow)
		if err != nil || ok {
			t.Errorf("MarkAccepted after revoke = %v, %v; want false", ok, err)
		}
		got, _ := repo.GetByID(ctx, inv.ID)
		if got.Status != models.InvitationRevoked || got.RevokedAt == nil {
			t.Errorf("unexpected invitation after revoke: %+v", got)
		}
	})

	t.Run("sweep expires stale pending rows", func(t *testing.T) {
		stale, err := repo.CreateInvitation(ctx, family.ID, admin.ID, "late@example.com", "hash-3", testNow, testNow.Add(time.Hour))
		if err != nil {
			t.Fatalf("CreateInvitation: %v", err)
		}
		n, err := repo.ExpireStale(ctx, testNow.Add(30*time.Minute))
		if err != nil || n != 0 {
			t.Errorf("ExpireStale before expiry = %d, %v", n, err)
		}
		n, err = repo.ExpireStale(ctx, testNow.Add(2*time.Hour))
		if err != nil || n != 1 {
			t.Errorf("ExpireStale after expiry = %d, %v; want 1", n, err)
		}
		got, _ := repo.GetByID(ctx, stale.ID)
		if got.Status != models.InvitationExpired {
			t.Errorf("status = %s, want EXPIRED", got.Status)
		}
		latest, _ := repo.GetLatestForFamily(ctx, family.ID)
		if latest == nil || latest.ID != stale.ID {
			t.Errorf("GetLatestForFamily = %+v", latest)
		}
	})
}

func TestExpenseRepositoryScoping(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	family, admin := seedFamily(t, db)
	repo := NewExpenseRepository(db)

	desc := "School shoes"
	e := &models.Expense{
		FamilyID:        family.ID,
		CreatorParentID: admin.ID,
		Amount:          4599,
		Currency:        "USD",
		Category:        "clothing",
		Description:     &desc,
		ExpenseDate:     "2026-02-14",
		Privacy:         models.PrivacyAmountOnly,
	}
	if err := repo.CreateExpense(ctx, e, testNow); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	got, err := repo.GetExpenseByID(ctx, family.ID, e.ID)
	if err != nil || got == nil {
		t.Fatalf("GetExpenseByID: %v %v", got, err)
	}
	if got.Description == nil || *got.Description != desc || got.ChildID != nil {
		t.Errorf("unexpected expense: %+v", got)
	}

	if owner, err := repo.FamilyOf(ctx, e.ID); err != nil || owner != family.ID {
		t.Errorf("FamilyOf(%d) = %d, %v, want %d", e.ID, owner, err, family.ID)
	}
	if owner, err := repo.FamilyOf(ctx, e.ID+100); err != nil || owner != 0 {
		t.Errorf("FamilyOf(missing) = %d, %v, want 0", owner, err)
	}

	foreign, err := repo.GetExpenseByID(ctx, family.ID+1, e.ID)
	if err != nil || foreign != nil {
		t.Errorf("expense visible through another family id: %+v, %v", foreign, err)
	}

	if err := repo.UpdatePrivacy(ctx, family.ID, e.ID, models.PrivacyPrivate, testNow); err != nil {
		t.Fatalf("UpdatePrivacy: %v", err)
	}
	list, err := repo.ListExpenses(ctx, family.ID)
	if err != nil || len(list) != 1 || list[0].Privacy != models.PrivacyPrivate {
		t.Errorf("ListExpenses = %+v, %v", list, err)
	}
}

func TestChildRepositoryFamilyOf(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	family, _ := seedFamily(t, db)
	repo := NewChildRepository(db)

	child, err := repo.CreateChild(ctx, family.ID, models.ChildInput{Name: "Sam"}, testNow)
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}

	tests := []struct {
		name    string
		childID int64
		want    int64
	}{
		{"existing child", child.ID, family.ID},
		{"missing child", child.ID + 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FamilyOf(ctx, tt.childID)
			if err != nil {
				t.Fatalf("FamilyOf() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FamilyOf() = %d, want %d", got, tt.want)
			}
		})
	}
}
