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

// UserRepository handles database operations for users
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *UserRepository) WithTx(tx database.DBTX) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = "id, subject_id, email, name, deleted_at, created_at, updated_at"

// CreateUser inserts a user bound to subjectID.
// A concurrent insert for the same subject returns ErrDuplicate.
func (r *UserRepository) CreateUser(ctx context.Context, subjectID, email, name string, now time.Time) (*models.User, error) {
	query := "INSERT INTO users (subject_id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, subjectID, email, name, now, now)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", subjectID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{
		ID:        id,
		SubjectID: subjectID,
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetUserBySubject retrieves a user by identity-provider subject, including soft deleted users
func (r *UserRepository) GetUserBySubject(ctx context.Context, subjectID string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE subject_id = ?"
	return r.scanUser(r.db.QueryRowContext(ctx, query, subjectID))
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var deletedAt sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.SubjectID,
		&user.Email,
		&user.Name,
		&deletedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.DeletedAt = nullTimePtr(deletedAt)
	return user, nil
}

// UpdateProfile changes a user's name and email
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, name, email string, now time.Time) error {
	query := "UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL"
	if _, err := r.db.ExecContext(ctx, query, name, email, now, id); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// SoftDelete marks a user deleted. The row and its subject binding remain.
func (r *UserRepository) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	query := "UPDATE users SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL"
	if _, err := r.db.ExecContext(ctx, query, now, now, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
