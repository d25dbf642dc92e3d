package service

import (
	"context"
	"testing"

	"coparent/internal/models"
	"coparent/internal/validation"
)

func newExpense(privacy models.Privacy) CreateExpenseInput {
	desc := "Dentist visit"
	return CreateExpenseInput{
		Amount:      4500,
		Currency:    "usd",
		Category:    "medical",
		Description: &desc,
		ExpenseDate: "2026-02-20",
		Privacy:     privacy,
	}
}

func TestExpensePrivacy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, co := env.pair(t)

	private, err := env.expenses.Create(ctx, admin, newExpense(models.PrivacyPrivate))
	if err != nil {
		t.Fatalf("Create(PRIVATE) error = %v", err)
	}
	amountOnly, err := env.expenses.Create(ctx, admin, newExpense(models.PrivacyAmountOnly))
	if err != nil {
		t.Fatalf("Create(AMOUNT_ONLY) error = %v", err)
	}
	shared, err := env.expenses.Create(ctx, admin, newExpense(models.PrivacyFullShared))
	if err != nil {
		t.Fatalf("Create(FULL_SHARED) error = %v", err)
	}
	if private.Currency != "USD" {
		t.Errorf("Currency = %q, want upper-cased", private.Currency)
	}

	t.Run("creator sees all three in full", func(t *testing.T) {
		views, err := env.expenses.List(ctx, admin)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(views) != 3 {
			t.Fatalf("List() returned %d, want 3", len(views))
		}
		for _, v := range views {
			if !v.IsFull() {
				t.Errorf("creator view of %d is partial", v.ID)
			}
		}
	})

	t.Run("other parent sees filtered list", func(t *testing.T) {
		views, err := env.expenses.List(ctx, co)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(views) != 2 {
			t.Fatalf("List() returned %d, want 2", len(views))
		}
		byID := map[int64]bool{}
		for _, v := range views {
			byID[v.ID] = v.IsFull()
		}
		if _, ok := byID[private.ID]; ok {
			t.Error("PRIVATE expense leaked to the other parent")
		}
		if full, ok := byID[amountOnly.ID]; !ok || full {
			t.Errorf("AMOUNT_ONLY visible=%v full=%v, want visible partial", ok, full)
		}
		if full, ok := byID[shared.ID]; !ok || !full {
			t.Errorf("FULL_SHARED visible=%v full=%v, want visible full", ok, full)
		}
	})

	t.Run("get follows the same rules", func(t *testing.T) {
		_, err := env.expenses.Get(ctx, co, private.ID)
		assertErr(t, err, ErrNotFound)

		v, err := env.expenses.Get(ctx, co, amountOnly.ID)
		if err != nil {
			t.Fatalf("Get(AMOUNT_ONLY) error = %v", err)
		}
		if v.Description != nil || v.CreatorParentID != nil || v.Amount != 4500 {
			t.Errorf("Get(AMOUNT_ONLY) = %+v", v)
		}

		if _, err := env.expenses.Get(ctx, admin, private.ID); err != nil {
			t.Errorf("creator Get(PRIVATE) error = %v", err)
		}
	})

	t.Run("only the creator may change privacy", func(t *testing.T) {
		_, err := env.expenses.UpdatePrivacy(ctx, co, private.ID, models.PrivacyFullShared)
		assertErr(t, err, ErrNotFound)
		_, err = env.expenses.UpdatePrivacy(ctx, co, shared.ID, models.PrivacyPrivate)
		assertErr(t, err, ErrForbidden)

		v, err := env.expenses.UpdatePrivacy(ctx, admin, private.ID, models.PrivacyFullShared)
		if err != nil {
			t.Fatalf("UpdatePrivacy() error = %v", err)
		}
		if v.Privacy == nil || *v.Privacy != models.PrivacyFullShared {
			t.Errorf("UpdatePrivacy() = %+v", v)
		}
		got, err := env.expenses.Get(ctx, co, private.ID)
		if err != nil {
			t.Fatalf("Get() after share error = %v", err)
		}
		if !got.IsFull() {
			t.Error("shared expense should now be fully visible")
		}

		_, err = env.expenses.UpdatePrivacy(ctx, admin, private.ID, "SECRET")
		if _, ok := err.(validation.ValidationError); !ok {
			t.Errorf("UpdatePrivacy(SECRET) error = %v, want ValidationError", err)
		}
	})
}

func TestExpenseVisibilityFollowsCreatorNotRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, co := env.pair(t)

	mine, err := env.expenses.Create(ctx, co, newExpense(models.PrivacyPrivate))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err = env.expenses.Get(ctx, admin, mine.ID)
	assertErr(t, err, ErrNotFound)

	if _, err := env.transfers.TransferToUser(ctx, admin, co.ID); err != nil {
		t.Fatalf("TransferToUser() error = %v", err)
	}
	_, err = env.expenses.Get(ctx, admin, mine.ID)
	assertErr(t, err, ErrNotFound)
}

func TestExpenseDefaultsAndValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, co := env.pair(t)

	in := newExpense("")
	v, err := env.expenses.Create(ctx, admin, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if v.Privacy == nil || *v.Privacy != models.PrivacyPrivate {
		t.Errorf("default privacy = %v, want PRIVATE", v.Privacy)
	}
	if _, err := env.expenses.Get(ctx, co, v.ID); err == nil {
		t.Error("defaulted expense should be hidden from the other parent")
	}

	tests := []struct {
		name  string
		field string
		edit  func(*CreateExpenseInput)
	}{
		{"zero amount", "amount", func(in *CreateExpenseInput) { in.Amount = 0 }},
		{"bad currency", "currency", func(in *CreateExpenseInput) { in.Currency = "dollars" }},
		{"missing category", "category", func(in *CreateExpenseInput) { in.Category = "" }},
		{"bad date", "date", func(in *CreateExpenseInput) { in.ExpenseDate = "20/02/2026" }},
		{"bad privacy", "privacy", func(in *CreateExpenseInput) { in.Privacy = "PUBLIC" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newExpense(models.PrivacyPrivate)
			tt.edit(&in)
			_, err := env.expenses.Create(ctx, admin, in)
			verr, ok := err.(validation.ValidationError)
			if !ok {
				t.Fatalf("Create() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestExpenseScopedToFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := env.founded(t, "first")
	outsider, _ := env.founded(t, "second")

	shared, err := env.expenses.Create(ctx, admin, newExpense(models.PrivacyFullShared))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = env.expenses.Get(ctx, outsider, shared.ID)
	assertErr(t, err, ErrNotFound)
	_, err = env.expenses.UpdatePrivacy(ctx, outsider, shared.ID, models.PrivacyPrivate)
	assertErr(t, err, ErrNotFound)
	views, err := env.expenses.List(ctx, outsider)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(views) != 0 {
		t.Errorf("outsider List() = %+v", views)
	}

	// A child of another family cannot be attached
	kids, err := env.families.ListChildren(ctx, admin)
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	in := newExpense(models.PrivacyPrivate)
	in.ChildID = &kids[0].ID
	_, err = env.expenses.Create(ctx, outsider, in)
	if verr, ok := err.(validation.ValidationError); !ok || verr.Field != "childId" {
		t.Errorf("Create() with foreign child error = %v", err)
	}
	v, err := env.expenses.Create(ctx, admin, in)
	if err != nil {
		t.Fatalf("Create() with own child error = %v", err)
	}
	if v.ChildID == nil || *v.ChildID != kids[0].ID {
		t.Errorf("ChildID = %v", v.ChildID)
	}

	_, err = env.expenses.List(ctx, env.user(t, "nobody"))
	assertErr(t, err, ErrNoFamily)
}
