package visibility

import (
	"encoding/json"
	"testing"
	"time"

	"coparent/internal/models"
)

const (
	creatorID = int64(1)
	otherID   = int64(2)
)

func sampleExpense(privacy models.Privacy) models.Expense {
	desc := "Orthodontist"
	child := int64(7)
	return models.Expense{
		ID:              42,
		FamilyID:        9,
		CreatorParentID: creatorID,
		ChildID:         &child,
		Amount:          12000,
		Currency:        "USD",
		Category:        "medical",
		Description:     &desc,
		ExpenseDate:     "2026-04-02",
		Privacy:         privacy,
		CreatedAt:       time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestProject(t *testing.T) {
	tests := []struct {
		name     string
		privacy  models.Privacy
		viewer   int64
		visible  bool
		wantFull bool
	}{
		{"creator sees private", models.PrivacyPrivate, creatorID, true, true},
		{"creator sees amount only in full", models.PrivacyAmountOnly, creatorID, true, true},
		{"other parent cannot see private", models.PrivacyPrivate, otherID, false, false},
		{"other parent sees amount only", models.PrivacyAmountOnly, otherID, true, false},
		{"other parent sees shared", models.PrivacyFullShared, otherID, true, true},
		{"unknown privacy hidden", models.Privacy("SECRET"), otherID, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, ok := Project(sampleExpense(tt.privacy), tt.viewer)
			if ok != tt.visible {
				t.Fatalf("Project() visible = %v, want %v", ok, tt.visible)
			}
			if !ok {
				if view != (ExpenseView{}) {
					t.Errorf("hidden expense returned non-empty view: %+v", view)
				}
				return
			}
			if view.IsFull() != tt.wantFull {
				t.Errorf("IsFull() = %v, want %v", view.IsFull(), tt.wantFull)
			}
			if view.ID != 42 || view.Amount != 12000 || view.Currency != "USD" || view.Date != "2026-04-02" || view.Category != "medical" {
				t.Errorf("core fields wrong: %+v", view)
			}
		})
	}
}

func TestAmountOnlyJSONHasExactlyFiveFields(t *testing.T) {
	view, ok := Project(sampleExpense(models.PrivacyAmountOnly), otherID)
	if !ok {
		t.Fatal("amount-only expense should be visible")
	}
	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"id", "amount", "currency", "date", "category"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want exactly %v", fields, want)
	}
	for _, k := range want {
		if _, ok := fields[k]; !ok {
			t.Errorf("missing field %q", k)
		}
	}
}

func TestFullViewDoesNotAlias(t *testing.T) {
	e := sampleExpense(models.PrivacyFullShared)
	view, _ := Project(e, otherID)
	*e.Description = "changed"
	if *view.Description != "Orthodontist" {
		t.Error("view shares description storage with the expense")
	}
}

func TestProjectAll(t *testing.T) {
	expenses := []models.Expense{
		sampleExpense(models.PrivacyPrivate),
		sampleExpense(models.PrivacyAmountOnly),
		sampleExpense(models.PrivacyFullShared),
	}
	expenses[1].ID = 43
	expenses[2].ID = 44

	views := ProjectAll(expenses, otherID)
	if len(views) != 2 || views[0].ID != 43 || views[1].ID != 44 {
		t.Errorf("ProjectAll(other) = %+v", views)
	}
	if got := ProjectAll(expenses, creatorID); len(got) != 3 {
		t.Errorf("creator sees %d expenses, want 3", len(got))
	}
	if got := ProjectAll(nil, otherID); got == nil || len(got) != 0 {
		t.Errorf("ProjectAll(nil) = %#v, want empty slice", got)
	}
}
