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

// ChildRepository handles database operations for the child roster.
// Every query except FamilyOf is scoped by family id.
type ChildRepository struct {
	db database.DBTX
}

// NewChildRepository creates a new child repository
func NewChildRepository(db database.DBTX) *ChildRepository {
	return &ChildRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *ChildRepository) WithTx(tx database.DBTX) *ChildRepository {
	return &ChildRepository{db: tx}
}

// CreateChild adds a child to a family
func (r *ChildRepository) CreateChild(ctx context.Context, familyID int64, in models.ChildInput, now time.Time) (*models.Child, error) {
	query := "INSERT INTO children (family_id, name, date_of_birth, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, familyID, in.Name, stringArg(in.DateOfBirth), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}
	return &models.Child{
		ID:          id,
		FamilyID:    familyID,
		Name:        in.Name,
		DateOfBirth: in.DateOfBirth,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetChildByID retrieves a child of the given family
func (r *ChildRepository) GetChildByID(ctx context.Context, familyID, childID int64) (*models.Child, error) {
	query := "SELECT id, family_id, name, date_of_birth, created_at, updated_at FROM children WHERE id = ? AND family_id = ?"
	child := &models.Child{}
	var dob sql.NullString
	err := r.db.QueryRowContext(ctx, query, childID, familyID).Scan(
		&child.ID,
		&child.FamilyID,
		&child.Name,
		&dob,
		&child.CreatedAt,
		&child.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	child.DateOfBirth = nullStringPtr(dob)
	return child, nil
}

// FamilyOf returns the id of the family holding childID, or 0 when there is
// no such child
func (r *ChildRepository) FamilyOf(ctx context.Context, childID int64) (int64, error) {
	return familyOf(ctx, r.db, "SELECT family_id FROM children WHERE id = ?", childID)
}

// ListChildren returns a family's children in creation order
func (r *ChildRepository) ListChildren(ctx context.Context, familyID int64) ([]models.Child, error) {
	query := "SELECT id, family_id, name, date_of_birth, created_at, updated_at FROM children WHERE family_id = ? ORDER BY id ASC"
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	children := []models.Child{}
	for rows.Next() {
		var child models.Child
		var dob sql.NullString
		if err := rows.Scan(&child.ID, &child.FamilyID, &child.Name, &dob, &child.CreatedAt, &child.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		child.DateOfBirth = nullStringPtr(dob)
		children = append(children, child)
	}
	return children, rows.Err()
}

// UpdateChild replaces a child's editable fields. It returns false if the
// child does not exist in the family.
func (r *ChildRepository) UpdateChild(ctx context.Context, familyID, childID int64, in models.ChildInput, now time.Time) (bool, error) {
	query := "UPDATE children SET name = ?, date_of_birth = ?, updated_at = ? WHERE id = ? AND family_id = ?"
	result, err := r.db.ExecContext(ctx, query, in.Name, stringArg(in.DateOfBirth), now, childID, familyID)
	if err != nil {
		return false, fmt.Errorf("failed to update child: %w", err)
	}
	return affectedOne(result)
}

// DeleteChild removes a child from the family roster
func (r *ChildRepository) DeleteChild(ctx context.Context, familyID, childID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM children WHERE id = ? AND family_id = ?", childID, familyID)
	if err != nil {
		return false, fmt.Errorf("failed to delete child: %w", err)
	}
	return affectedOne(result)
}
