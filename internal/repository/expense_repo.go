package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coparent/internal/database"
	"coparent/internal/models"
)

// ExpenseRepository handles database operations for expenses.
// Rows are returned unfiltered; callers project them per viewer.
type ExpenseRepository struct {
	db database.DBTX
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db database.DBTX) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *ExpenseRepository) WithTx(tx database.DBTX) *ExpenseRepository {
	return &ExpenseRepository{db: tx}
}

const expenseColumns = `id, family_id, creator_parent_id, child_id, amount, currency, category,
	description, expense_date, privacy, created_at, updated_at`

// CreateExpense inserts an expense. ID and timestamps are filled in on e.
func (r *ExpenseRepository) CreateExpense(ctx context.Context, e *models.Expense, now time.Time) error {
	query := `
		INSERT INTO expenses (family_id, creator_parent_id, child_id, amount, currency, category,
			description, expense_date, privacy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		e.FamilyID, e.CreatorParentID, int64Arg(e.ChildID), e.Amount, e.Currency, e.Category,
		stringArg(e.Description), e.ExpenseDate, string(e.Privacy), now, now)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// GetExpenseByID retrieves an expense of the given family
func (r *ExpenseRepository) GetExpenseByID(ctx context.Context, familyID, expenseID int64) (*models.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE id = ? AND family_id = ?"
	e, err := scanExpense(r.db.QueryRowContext(ctx, query, expenseID, familyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// FamilyOf returns the id of the family holding expenseID, or 0 when there
// is no such expense
func (r *ExpenseRepository) FamilyOf(ctx context.Context, expenseID int64) (int64, error) {
	return familyOf(ctx, r.db, "SELECT family_id FROM expenses WHERE id = ?", expenseID)
}

// ListExpenses returns a family's expenses, newest expense date first
func (r *ExpenseRepository) ListExpenses(ctx context.Context, familyID int64) ([]models.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE family_id = ? ORDER BY expense_date DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// UpdatePrivacy changes the privacy level of an expense
func (r *ExpenseRepository) UpdatePrivacy(ctx context.Context, familyID, expenseID int64, privacy models.Privacy, now time.Time) error {
	query := "UPDATE expenses SET privacy = ?, updated_at = ? WHERE id = ? AND family_id = ?"
	if _, err := r.db.ExecContext(ctx, query, string(privacy), now, expenseID, familyID); err != nil {
		return fmt.Errorf("failed to update expense privacy: %w", err)
	}
	return nil
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	e := &models.Expense{}
	var childID sql.NullInt64
	var description sql.NullString
	var privacy string
	if err := row.Scan(
		&e.ID,
		&e.FamilyID,
		&e.CreatorParentID,
		&childID,
		&e.Amount,
		&e.Currency,
		&e.Category,
		&description,
		&e.ExpenseDate,
		&privacy,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.ChildID = nullInt64Ptr(childID)
	e.Description = nullStringPtr(description)
	e.Privacy = models.Privacy(privacy)
	return e, nil
}
