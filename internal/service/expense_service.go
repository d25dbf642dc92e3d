package service

import (
	"context"
	"log/slog"
	"strings"

	"coparent/internal/clock"
	"coparent/internal/database"
	"coparent/internal/models"
	"coparent/internal/repository"
	"coparent/internal/validation"
	"coparent/internal/visibility"
)

// CreateExpenseInput carries the fields of a new expense
type CreateExpenseInput struct {
	ChildID     *int64         `json:"childId,omitempty"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Category    string         `json:"category"`
	Description *string        `json:"description,omitempty"`
	ExpenseDate string         `json:"date"`
	Privacy     models.Privacy `json:"privacy"`
}

// ExpenseService records expenses and returns them through the
// visibility filter. Nothing leaves this service unprojected.
type ExpenseService struct {
	families *repository.FamilyRepository
	children *repository.ChildRepository
	expenses *repository.ExpenseRepository
	clock    clock.Clock
}

// NewExpenseService creates a new expense service
func NewExpenseService(db *database.DB, clk clock.Clock) *ExpenseService {
	return &ExpenseService{
		families: repository.NewFamilyRepository(db),
		children: repository.NewChildRepository(db),
		expenses: repository.NewExpenseRepository(db),
		clock:    clk,
	}
}

// Create records an expense for the caller's family. Privacy defaults to
// PRIVATE when omitted.
func (s *ExpenseService) Create(ctx context.Context, user *models.User, in CreateExpenseInput) (*visibility.ExpenseView, error) {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Category = strings.TrimSpace(in.Category)
	if in.Privacy == "" {
		in.Privacy = models.PrivacyPrivate
	}
	if err := validateExpense(in); err != nil {
		return nil, err
	}

	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}

	if in.ChildID != nil {
		child, err := s.children.GetChildByID(ctx, parent.FamilyID, *in.ChildID)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, validation.ValidationError{Field: "childId", Message: "child is not part of this family"}
		}
	}

	e := &models.Expense{
		FamilyID:        parent.FamilyID,
		CreatorParentID: parent.ID,
		ChildID:         in.ChildID,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Category:        in.Category,
		Description:     in.Description,
		ExpenseDate:     in.ExpenseDate,
		Privacy:         in.Privacy,
	}
	if err := s.expenses.CreateExpense(ctx, e, s.clock.Now()); err != nil {
		return nil, err
	}

	slog.Info("Expense recorded", "family_id", e.FamilyID, "expense_id", e.ID, "privacy", e.Privacy)
	view, _ := visibility.Project(*e, parent.ID)
	return &view, nil
}

func validateExpense(in CreateExpenseInput) error {
	if err := validation.ValidateAmount(in.Amount); err != nil {
		return err
	}
	if err := validation.ValidateCurrency(in.Currency); err != nil {
		return err
	}
	if err := validation.ValidateCategory(in.Category); err != nil {
		return err
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return err
	}
	if err := validation.ValidateDate("date", in.ExpenseDate); err != nil {
		return err
	}
	if !in.Privacy.Valid() {
		return validation.ValidationError{Field: "privacy", Message: "privacy must be PRIVATE, AMOUNT_ONLY or FULL_SHARED"}
	}
	return nil
}

// List returns the caller's family expenses as the caller may see them
func (s *ExpenseService) List(ctx context.Context, user *models.User) ([]visibility.ExpenseView, error) {
	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expenses.ListExpenses(ctx, parent.FamilyID)
	if err != nil {
		return nil, err
	}
	return visibility.ProjectAll(expenses, parent.ID), nil
}

// Get returns one expense as the caller may see it. Hidden expenses and
// expenses of other families are both ErrNotFound.
func (s *ExpenseService) Get(ctx context.Context, user *models.User, expenseID int64) (*visibility.ExpenseView, error) {
	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}
	e, err := s.expenses.GetExpenseByID(ctx, parent.FamilyID, expenseID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	view, ok := visibility.Project(*e, parent.ID)
	if !ok {
		return nil, ErrNotFound
	}
	return &view, nil
}

// ExpenseFamily returns the id of the family an expense belongs to
func (s *ExpenseService) ExpenseFamily(ctx context.Context, expenseID int64) (int64, error) {
	familyID, err := s.expenses.FamilyOf(ctx, expenseID)
	if err != nil {
		return 0, err
	}
	if familyID == 0 {
		return 0, ErrNotFound
	}
	return familyID, nil
}

// UpdatePrivacy changes an expense's privacy. Only its creator may do so.
func (s *ExpenseService) UpdatePrivacy(ctx context.Context, user *models.User, expenseID int64, privacy models.Privacy) (*visibility.ExpenseView, error) {
	if !privacy.Valid() {
		return nil, validation.ValidationError{Field: "privacy", Message: "privacy must be PRIVATE, AMOUNT_ONLY or FULL_SHARED"}
	}

	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}
	e, err := s.expenses.GetExpenseByID(ctx, parent.FamilyID, expenseID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	if e.CreatorParentID != parent.ID {
		if _, visible := visibility.Project(*e, parent.ID); !visible {
			return nil, ErrNotFound
		}
		return nil, ErrForbidden
	}

	now := s.clock.Now()
	if err := s.expenses.UpdatePrivacy(ctx, parent.FamilyID, e.ID, privacy, now); err != nil {
		return nil, err
	}
	e.Privacy = privacy
	e.UpdatedAt = now

	view, _ := visibility.Project(*e, parent.ID)
	return &view, nil
}
