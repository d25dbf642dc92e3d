package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"coparent/internal/clock"
	"coparent/internal/database"
	"coparent/internal/idp"
	"coparent/internal/metrics"
	"coparent/internal/models"
	"coparent/internal/repository"
)

// DefaultRoleSyncTimeout bounds each identity provider round trip
const DefaultRoleSyncTimeout = 5 * time.Second

// TransferResult describes a completed admin swap
type TransferResult struct {
	PreviousAdmin models.Parent `json:"previousAdmin"`
	NewAdmin      models.Parent `json:"newAdmin"`
	Timestamp     time.Time     `json:"timestamp"`
}

// TransferService swaps the admin and co-parent roles of a family.
// The identity provider is updated before the swap commits; if it cannot
// be updated the swap does not happen.
type TransferService struct {
	db          *database.DB
	users       *repository.UserRepository
	families    *repository.FamilyRepository
	locks       *FamilyLocks
	clock       clock.Clock
	roles       idp.RoleSync
	metrics     *metrics.Metrics
	syncTimeout time.Duration
}

// NewTransferService creates a new transfer service
func NewTransferService(db *database.DB, locks *FamilyLocks, clk clock.Clock, roles idp.RoleSync, m *metrics.Metrics, syncTimeout time.Duration) *TransferService {
	if syncTimeout <= 0 {
		syncTimeout = DefaultRoleSyncTimeout
	}
	return &TransferService{
		db:          db,
		users:       repository.NewUserRepository(db),
		families:    repository.NewFamilyRepository(db),
		locks:       locks,
		clock:       clk,
		roles:       roles,
		metrics:     m,
		syncTimeout: syncTimeout,
	}
}

// Transfer hands the admin role to the co-parent with targetParentID
func (s *TransferService) Transfer(ctx context.Context, user *models.User, targetParentID int64) (*TransferResult, error) {
	return s.transfer(ctx, user, func(ctx context.Context, families *repository.FamilyRepository, familyID int64) (*models.Parent, error) {
		return families.GetParentByID(ctx, familyID, targetParentID)
	})
}

// TransferToUser hands the admin role to the co-parent held by targetUserID
func (s *TransferService) TransferToUser(ctx context.Context, user *models.User, targetUserID int64) (*TransferResult, error) {
	return s.transfer(ctx, user, func(ctx context.Context, families *repository.FamilyRepository, familyID int64) (*models.Parent, error) {
		return families.GetParentByUserID(ctx, targetUserID)
	})
}

type targetFinder func(ctx context.Context, families *repository.FamilyRepository, familyID int64) (*models.Parent, error)

func (s *TransferService) transfer(ctx context.Context, user *models.User, findTarget targetFinder) (*TransferResult, error) {
	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(parent.FamilyID)
	defer unlock()

	result, err := s.swap(ctx, user, findTarget)
	switch {
	case err == nil:
		s.metrics.Transfer("ok")
		slog.Info("Admin transferred",
			"family_id", result.NewAdmin.FamilyID,
			"previous_admin", result.PreviousAdmin.ID,
			"new_admin", result.NewAdmin.ID,
		)
	case errors.Is(err, ErrRoleSyncFailed):
		s.metrics.Transfer("rolled_back")
		slog.Warn("Admin transfer rolled back", "user_id", user.ID, "error", err)
	default:
		s.metrics.Transfer("rejected")
	}
	return result, err
}

// swap performs the role exchange in one transaction. The identity provider
// sees the new roles before commit; a failed sync undoes whatever it
// already applied and the transaction rolls back.
func (s *TransferService) swap(ctx context.Context, user *models.User, findTarget targetFinder) (*TransferResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	families := s.families.WithTx(tx)
	users := s.users.WithTx(tx)
	now := s.clock.Now()

	caller, err := requireParent(ctx, families, user.ID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	target, err := findTarget(ctx, families, caller.FamilyID)
	if err != nil {
		return nil, err
	}
	if target != nil && target.ID == caller.ID {
		return nil, ErrSelfTransfer
	}
	if target == nil || target.FamilyID != caller.FamilyID || target.Role != models.RoleCoParent {
		return nil, ErrNotCoParent
	}

	family, err := families.GetFamilyByID(ctx, caller.FamilyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, fmt.Errorf("family %d missing: %w", caller.FamilyID, ErrInvariantViolation)
	}
	ok, err := families.BumpVersion(ctx, family.ID, family.Version, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	// Demote first so the one-admin index never sees two admins
	if ok, err := families.UpdateParentRole(ctx, family.ID, caller.ID, models.RoleAdminParent, models.RoleCoParent); err != nil || !ok {
		return nil, swapError("demote", caller.ID, err)
	}
	if ok, err := families.UpdateParentRole(ctx, family.ID, target.ID, models.RoleCoParent, models.RoleAdminParent); err != nil || !ok {
		return nil, swapError("promote", target.ID, err)
	}
	if err := checkFamilyShape(ctx, families, family.ID); err != nil {
		return nil, err
	}

	callerUser, err := users.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	targetUser, err := users.GetUserByID(ctx, target.UserID)
	if err != nil {
		return nil, err
	}
	if callerUser == nil || targetUser == nil {
		return nil, fmt.Errorf("parent without user in family %d: %w", family.ID, ErrInvariantViolation)
	}

	changes := []roleChange{
		{subject: targetUser.SubjectID, to: models.RoleAdminParent, from: models.RoleCoParent},
		{subject: callerUser.SubjectID, to: models.RoleCoParent, from: models.RoleAdminParent},
	}
	applied, err := s.syncRoles(ctx, changes)
	if err != nil {
		s.compensate(ctx, applied)
		return nil, fmt.Errorf("%w: %v", ErrRoleSyncFailed, err)
	}

	if err := tx.Commit(); err != nil {
		s.compensate(ctx, applied)
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}

	prev := *caller
	prev.Role = models.RoleCoParent
	next := *target
	next.Role = models.RoleAdminParent
	return &TransferResult{PreviousAdmin: prev, NewAdmin: next, Timestamp: now}, nil
}

func swapError(step string, parentID int64, err error) error {
	if err == nil || errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%s parent %d: %w", step, parentID, ErrInvariantViolation)
	}
	return err
}

type roleChange struct {
	subject string
	to      models.ParentRole
	from    models.ParentRole
}

// syncRoles applies changes in order and returns those the identity
// provider may have applied, including a failed or timed-out last call.
func (s *TransferService) syncRoles(ctx context.Context, changes []roleChange) ([]roleChange, error) {
	var applied []roleChange
	for _, c := range changes {
		callCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
		err := s.roles.SetRole(callCtx, c.subject, c.to)
		cancel()
		s.metrics.RoleSync(err)
		applied = append(applied, c)
		if err != nil {
			return applied, err
		}
	}
	return applied, nil
}

// compensate restores the previous roles of possibly applied changes, most
// recent first. It runs even if the request context is gone.
func (s *TransferService) compensate(ctx context.Context, applied []roleChange) {
	base := context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		c := applied[i]
		callCtx, cancel := context.WithTimeout(base, s.syncTimeout)
		err := s.roles.SetRole(callCtx, c.subject, c.from)
		cancel()
		s.metrics.RoleSync(err)
		if err != nil {
			slog.Error("Role compensation failed, identity provider out of sync",
				"role", c.from, "error", err)
		}
	}
}
