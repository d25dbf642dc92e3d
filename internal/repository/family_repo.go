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

// FamilyRepository handles database operations for families and their parents
type FamilyRepository struct {
	db database.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *FamilyRepository) WithTx(tx database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: tx}
}

// CreateFamily inserts a family row at version 1
func (r *FamilyRepository) CreateFamily(ctx context.Context, name string, now time.Time) (*models.Family, error) {
	query := "INSERT INTO families (name, version, created_at, updated_at) VALUES (?, 1, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, name, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}
	return &models.Family{ID: id, Name: name, Version: 1, CreatedAt: now, UpdatedAt: now}, nil
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, familyID int64) (*models.Family, error) {
	query := "SELECT id, name, version, created_at, updated_at FROM families WHERE id = ?"
	family := &models.Family{}
	err := r.db.QueryRowContext(ctx, query, familyID).Scan(
		&family.ID,
		&family.Name,
		&family.Version,
		&family.CreatedAt,
		&family.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return family, nil
}

// RenameFamily updates a family's name
func (r *FamilyRepository) RenameFamily(ctx context.Context, familyID int64, name string, now time.Time) error {
	query := "UPDATE families SET name = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, name, now, familyID); err != nil {
		return fmt.Errorf("failed to rename family: %w", err)
	}
	return nil
}

// BumpVersion increments the family version if it still equals expected.
// It returns false when another writer changed the family first.
func (r *FamilyRepository) BumpVersion(ctx context.Context, familyID, expected int64, now time.Time) (bool, error) {
	query := "UPDATE families SET version = version + 1, updated_at = ? WHERE id = ? AND version = ?"
	result, err := r.db.ExecContext(ctx, query, now, familyID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to bump family version: %w", err)
	}
	return affectedOne(result)
}

// AddParent binds a user to a family. A user that already holds a parent
// record anywhere returns ErrDuplicate.
func (r *FamilyRepository) AddParent(ctx context.Context, familyID, userID int64, role models.ParentRole, now time.Time) (*models.Parent, error) {
	query := "INSERT INTO parents (family_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, familyID, userID, string(role), now)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, fmt.Errorf("parent for user %d: %w", userID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to add parent: %w", err)
	}
	return &models.Parent{ID: id, FamilyID: familyID, UserID: userID, Role: role, JoinedAt: now}, nil
}

const parentColumns = "id, family_id, user_id, role, joined_at"

// GetParentByUserID retrieves the parent record held by a user
func (r *FamilyRepository) GetParentByUserID(ctx context.Context, userID int64) (*models.Parent, error) {
	query := "SELECT " + parentColumns + " FROM parents WHERE user_id = ?"
	return scanParent(r.db.QueryRowContext(ctx, query, userID))
}

// GetParentByID retrieves a parent scoped to a family
func (r *FamilyRepository) GetParentByID(ctx context.Context, familyID, parentID int64) (*models.Parent, error) {
	query := "SELECT " + parentColumns + " FROM parents WHERE id = ? AND family_id = ?"
	return scanParent(r.db.QueryRowContext(ctx, query, parentID, familyID))
}

func scanParent(row *sql.Row) (*models.Parent, error) {
	parent := &models.Parent{}
	var role string
	err := row.Scan(&parent.ID, &parent.FamilyID, &parent.UserID, &role, &parent.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parent: %w", err)
	}
	parent.Role = models.ParentRole(role)
	return parent, nil
}

// ListParents returns a family's parents in join order
func (r *FamilyRepository) ListParents(ctx context.Context, familyID int64) ([]models.Parent, error) {
	query := "SELECT " + parentColumns + " FROM parents WHERE family_id = ? ORDER BY joined_at ASC, id ASC"
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parents: %w", err)
	}
	defer rows.Close()

	var parents []models.Parent
	for rows.Next() {
		var parent models.Parent
		var role string
		if err := rows.Scan(&parent.ID, &parent.FamilyID, &parent.UserID, &role, &parent.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan parent: %w", err)
		}
		parent.Role = models.ParentRole(role)
		parents = append(parents, parent)
	}
	return parents, rows.Err()
}

// CountParents returns the number of parents in a family
func (r *FamilyRepository) CountParents(ctx context.Context, familyID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM parents WHERE family_id = ?", familyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count parents: %w", err)
	}
	return count, nil
}

// CountAdmins returns the number of admin parents in a family
func (r *FamilyRepository) CountAdmins(ctx context.Context, familyID int64) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM parents WHERE family_id = ? AND role = ?"
	err := r.db.QueryRowContext(ctx, query, familyID, string(models.RoleAdminParent)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

// UpdateParentRole changes a parent's role if it currently holds from
func (r *FamilyRepository) UpdateParentRole(ctx context.Context, familyID, parentID int64, from, to models.ParentRole) (bool, error) {
	query := "UPDATE parents SET role = ? WHERE id = ? AND family_id = ? AND role = ?"
	result, err := r.db.ExecContext(ctx, query, string(to), parentID, familyID, string(from))
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return false, fmt.Errorf("role %s for parent %d: %w", to, parentID, ErrDuplicate)
		}
		return false, fmt.Errorf("failed to update parent role: %w", err)
	}
	return affectedOne(result)
}

// GetFamilyMembers retrieves all parents of a family with their public profiles
func (r *FamilyRepository) GetFamilyMembers(ctx context.Context, familyID int64) ([]models.FamilyMember, error) {
	query := `
		SELECT p.id, p.family_id, p.user_id, p.role, p.joined_at,
		       u.id, u.name, u.email
		FROM parents p
		INNER JOIN users u ON p.user_id = u.id
		WHERE p.family_id = ?
		ORDER BY p.joined_at ASC, p.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var members []models.FamilyMember
	for rows.Next() {
		var m models.FamilyMember
		var role string
		if err := rows.Scan(
			&m.Parent.ID, &m.Parent.FamilyID, &m.Parent.UserID, &role, &m.Parent.JoinedAt,
			&m.Profile.UserID, &m.Profile.Name, &m.Profile.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		m.Parent.Role = models.ParentRole(role)
		members = append(members, m)
	}
	return members, rows.Err()
}
