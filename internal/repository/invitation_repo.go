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

// InvitationRepository handles database operations for invitations.
// Status changes are conditional on the row still being PENDING so a lost
// race is observed as zero affected rows.
type InvitationRepository struct {
	db database.DBTX
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db database.DBTX) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *InvitationRepository) WithTx(tx database.DBTX) *InvitationRepository {
	return &InvitationRepository{db: tx}
}

const invitationColumns = `id, family_id, invited_by_parent_id, email, token_hash, status,
	created_at, expires_at, accepted_at, accepted_by_user_id, revoked_at`

// CreateInvitation inserts a PENDING invitation. A second PENDING row for
// the same family, or a colliding token digest, returns ErrDuplicate.
func (r *InvitationRepository) CreateInvitation(ctx context.Context, familyID, invitedByParentID int64, email, tokenHash string, now, expiresAt time.Time) (*models.Invitation, error) {
	query := `
		INSERT INTO invitations (family_id, invited_by_parent_id, email, token_hash, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, familyID, invitedByParentID, email, tokenHash,
		string(models.InvitationPending), now, expiresAt)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, fmt.Errorf("invitation for family %d: %w", familyID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	return &models.Invitation{
		ID:                id,
		FamilyID:          familyID,
		InvitedByParentID: invitedByParentID,
		Email:             email,
		TokenHash:         tokenHash,
		Status:            models.InvitationPending,
		CreatedAt:         now,
		ExpiresAt:         expiresAt,
	}, nil
}

// GetByTokenHash retrieves an invitation by token digest
func (r *InvitationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE token_hash = ?"
	return scanInvitation(r.db.QueryRowContext(ctx, query, tokenHash))
}

// GetByID retrieves an invitation by ID
func (r *InvitationRepository) GetByID(ctx context.Context, id int64) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE id = ?"
	return scanInvitation(r.db.QueryRowContext(ctx, query, id))
}

// GetPendingForFamily retrieves the family's PENDING row, expired or not
func (r *InvitationRepository) GetPendingForFamily(ctx context.Context, familyID int64) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE family_id = ? AND status = ? ORDER BY id DESC LIMIT 1"
	return scanInvitation(r.db.QueryRowContext(ctx, query, familyID, string(models.InvitationPending)))
}

// GetLatestForFamily retrieves the most recently issued invitation of a family
func (r *InvitationRepository) GetLatestForFamily(ctx context.Context, familyID int64) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE family_id = ? ORDER BY id DESC LIMIT 1"
	return scanInvitation(r.db.QueryRowContext(ctx, query, familyID))
}

// ListByFamily returns a family's invitations, newest first
func (r *InvitationRepository) ListByFamily(ctx context.Context, familyID int64) ([]models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE family_id = ? ORDER BY id DESC"
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations: %w", err)
	}
	defer rows.Close()

	invitations := []models.Invitation{}
	for rows.Next() {
		inv, err := scanInvitationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}

// MarkAccepted moves a PENDING invitation to ACCEPTED. It returns false if
// the invitation was no longer PENDING.
func (r *InvitationRepository) MarkAccepted(ctx context.Context, id, userID int64, now time.Time) (bool, error) {
	query := "UPDATE invitations SET status = ?, accepted_at = ?, accepted_by_user_id = ? WHERE id = ? AND status = ?"
	result, err := r.db.ExecContext(ctx, query, string(models.InvitationAccepted), now, userID, id, string(models.InvitationPending))
	if err != nil {
		return false, fmt.Errorf("failed to accept invitation: %w", err)
	}
	return affectedOne(result)
}

// MarkRevoked moves a PENDING invitation to REVOKED
func (r *InvitationRepository) MarkRevoked(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := "UPDATE invitations SET status = ?, revoked_at = ? WHERE id = ? AND status = ?"
	result, err := r.db.ExecContext(ctx, query, string(models.InvitationRevoked), now, id, string(models.InvitationPending))
	if err != nil {
		return false, fmt.Errorf("failed to revoke invitation: %w", err)
	}
	return affectedOne(result)
}

// MarkExpired moves a PENDING invitation to EXPIRED
func (r *InvitationRepository) MarkExpired(ctx context.Context, id int64) (bool, error) {
	query := "UPDATE invitations SET status = ? WHERE id = ? AND status = ?"
	result, err := r.db.ExecContext(ctx, query, string(models.InvitationExpired), id, string(models.InvitationPending))
	if err != nil {
		return false, fmt.Errorf("failed to expire invitation: %w", err)
	}
	return affectedOne(result)
}

// ExpireStale flips every PENDING invitation whose expiry is before now
// and returns how many rows changed.
func (r *InvitationRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := "UPDATE invitations SET status = ? WHERE status = ? AND expires_at < ?"
	result, err := r.db.ExecContext(ctx, query, string(models.InvitationExpired), string(models.InvitationPending), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale invitations: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row *sql.Row) (*models.Invitation, error) {
	inv, err := scanInvitationRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

func scanInvitationRow(row rowScanner) (*models.Invitation, error) {
	inv := &models.Invitation{}
	var status string
	var acceptedAt, revokedAt sql.NullTime
	var acceptedBy sql.NullInt64
	if err := row.Scan(
		&inv.ID,
		&inv.FamilyID,
		&inv.InvitedByParentID,
		&inv.Email,
		&inv.TokenHash,
		&status,
		&inv.CreatedAt,
		&inv.ExpiresAt,
		&acceptedAt,
		&acceptedBy,
		&revokedAt,
	); err != nil {
		return nil, err
	}
	inv.Status = models.InvitationStatus(status)
	inv.AcceptedAt = nullTimePtr(acceptedAt)
	inv.AcceptedByUserID = nullInt64Ptr(acceptedBy)
	inv.RevokedAt = nullTimePtr(revokedAt)
	return inv, nil
}
