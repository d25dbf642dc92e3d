package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coparent/internal/clock"
	"coparent/internal/database"
	"coparent/internal/metrics"
	"coparent/internal/models"
	"coparent/internal/repository"
	"coparent/internal/security"
	"coparent/internal/validation"
)

// DefaultInvitationTTL is how long an invitation stays acceptable
const DefaultInvitationTTL = 7 * 24 * time.Hour

// IssuedInvitation is returned to the issuing admin only. Token is the raw
// secret; it is not stored and cannot be recovered later.
type IssuedInvitation struct {
	Invitation *models.Invitation
	Token      string
	URL        string
}

// AcceptResult is the membership created by accepting an invitation
type AcceptResult struct {
	Family *models.Family
	Parent *models.Parent
}

// InvitationService runs the invitation state machine.
// PENDING moves to exactly one of ACCEPTED, EXPIRED or REVOKED.
type InvitationService struct {
	db          *database.DB
	users       *repository.UserRepository
	families    *repository.FamilyRepository
	children    *repository.ChildRepository
	invitations *repository.InvitationRepository
	locks       *FamilyLocks
	clock       clock.Clock
	notifier    Notifier
	metrics     *metrics.Metrics
	ttl         time.Duration
	baseURL     string
}

// NewInvitationService creates a new invitation service
func NewInvitationService(db *database.DB, locks *FamilyLocks, clk clock.Clock, notifier Notifier, m *metrics.Metrics, ttl time.Duration, appBaseURL string) *InvitationService {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &InvitationService{
		db:          db,
		users:       repository.NewUserRepository(db),
		families:    repository.NewFamilyRepository(db),
		children:    repository.NewChildRepository(db),
		invitations: repository.NewInvitationRepository(db),
		locks:       locks,
		clock:       clk,
		notifier:    notifier,
		metrics:     m,
		ttl:         ttl,
		baseURL:     strings.TrimRight(appBaseURL, "/"),
	}
}

// Issue creates a PENDING invitation for the caller's family. Only the
// admin of a one-parent family may issue, and only while no unexpired
// invitation is pending.
func (s *InvitationService) Issue(ctx context.Context, user *models.User, inviteeEmail string) (*IssuedInvitation, error) {
	inviteeEmail = strings.TrimSpace(inviteeEmail)
	if err := validation.ValidateEmail(inviteeEmail); err != nil {
		return nil, err
	}

	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(parent.FamilyID)
	defer unlock()

	now := s.clock.Now()
	var issued *IssuedInvitation
	var family *models.Family

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		invitations := s.invitations.WithTx(tx)

		admin, err := requireParent(ctx, families, user.ID)
		if err != nil {
			return err
		}
		if !admin.IsAdmin() {
			return ErrForbidden
		}

		count, err := families.CountParents(ctx, admin.FamilyID)
		if err != nil {
			return err
		}
		if count != 1 {
			return ErrFamilyFull
		}

		pending, err := invitations.GetPendingForFamily(ctx, admin.FamilyID)
		if err != nil {
			return err
		}
		if pending != nil {
			if !pending.IsExpired(now) {
				return ErrDuplicatePending
			}
			if _, err := invitations.MarkExpired(ctx, pending.ID); err != nil {
				return err
			}
		}

		token, digest, err := security.GenerateInvitationToken()
		if err != nil {
			return err
		}
		inv, err := invitations.CreateInvitation(ctx, admin.FamilyID, admin.ID, inviteeEmail, digest, now, now.Add(s.ttl))
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrDuplicatePending
		}
		if err != nil {
			return err
		}

		family, err = families.GetFamilyByID(ctx, admin.FamilyID)
		if err != nil {
			return err
		}
		issued = &IssuedInvitation{Invitation: inv, Token: token, URL: s.invitationURL(token)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvitationTransition(string(models.InvitationPending))
	slog.Info("Invitation issued", "family_id", issued.Invitation.FamilyID, "invitation_id", issued.Invitation.ID)

	msg := InvitationEmail{
		To:          inviteeEmail,
		FamilyName:  family.Name,
		InviterName: user.Name,
		URL:         issued.URL,
		ExpiresAt:   issued.Invitation.ExpiresAt,
	}
	if err := s.notifier.SendInvitation(ctx, msg); err != nil {
		slog.Warn("Invitation email failed", "invitation_id", issued.Invitation.ID, "error", err)
	}

	return issued, nil
}

func (s *InvitationService) invitationURL(token string) string {
	return fmt.Sprintf("%s/invite/%s", s.baseURL, token)
}

// lookup finds an invitation by raw token. Malformed and unknown tokens
// are both ErrNotFound.
func (s *InvitationService) lookup(ctx context.Context, token string) (*models.Invitation, error) {
	token = strings.TrimSpace(token)
	if !security.IsWellFormedInvitationToken(token) {
		return nil, ErrNotFound
	}
	inv, err := s.invitations.GetByTokenHash(ctx, security.HashInvitationToken(token))
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrNotFound
	}
	return inv, nil
}

// Preview shows an invitee what they are being invited to. It needs no
// authentication and never mutates state.
func (s *InvitationService) Preview(ctx context.Context, token string) (*models.InvitationPreview, error) {
	inv, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	switch inv.EffectiveStatus(s.clock.Now()) {
	case models.InvitationRevoked:
		return nil, ErrNotFound
	case models.InvitationExpired:
		return nil, ErrExpired
	case models.InvitationAccepted:
		return nil, ErrInvalidState
	}

	family, err := s.families.GetFamilyByID(ctx, inv.FamilyID)
	if err != nil {
		return nil, err
	}
	inviter, err := s.families.GetParentByID(ctx, inv.FamilyID, inv.InvitedByParentID)
	if err != nil {
		return nil, err
	}
	if family == nil || inviter == nil {
		return nil, fmt.Errorf("invitation %d references missing family or inviter: %w", inv.ID, ErrInvariantViolation)
	}
	inviterUser, err := s.users.GetUserByID(ctx, inviter.UserID)
	if err != nil {
		return nil, err
	}
	if inviterUser == nil {
		return nil, fmt.Errorf("inviter %d has no user: %w", inviter.ID, ErrInvariantViolation)
	}
	children, err := s.children.ListChildren(ctx, inv.FamilyID)
	if err != nil {
		return nil, err
	}

	return &models.InvitationPreview{
		FamilyName: family.Name,
		InvitedBy:  inviterUser.Profile(),
		Children:   children,
		Email:      inv.Email,
		ExpiresAt:  inv.ExpiresAt,
	}, nil
}

// acceptable maps an invitation's effective status to the error Accept returns
func acceptable(inv *models.Invitation, now time.Time) error {
	switch inv.EffectiveStatus(now) {
	case models.InvitationPending:
		return nil
	case models.InvitationExpired:
		return ErrExpired
	default:
		return ErrInvalidState
	}
}

// Accept joins user to the invitation's family as co-parent. Of any number
// of concurrent accepts of one invitation, exactly one succeeds.
func (s *InvitationService) Accept(ctx context.Context, token string, user *models.User) (*AcceptResult, error) {
	inv, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := acceptable(inv, s.clock.Now()); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(inv.FamilyID)
	defer unlock()

	var result *AcceptResult
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		invitations := s.invitations.WithTx(tx)
		now := s.clock.Now()

		current, err := invitations.GetByID(ctx, inv.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNotFound
		}
		if err := acceptable(current, now); err != nil {
			return err
		}

		existing, err := families.GetParentByUserID(ctx, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyMember
		}

		count, err := families.CountParents(ctx, current.FamilyID)
		if err != nil {
			return err
		}
		if count >= models.MaxParents {
			return fmt.Errorf("family %d already has %d parents: %w", current.FamilyID, count, ErrInvariantViolation)
		}

		parent, err := families.AddParent(ctx, current.FamilyID, user.ID, models.RoleCoParent, now)
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrAlreadyMember
		}
		if err != nil {
			return err
		}

		ok, err := invitations.MarkAccepted(ctx, current.ID, user.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}

		if err := checkFamilyShape(ctx, families, current.FamilyID); err != nil {
			return err
		}

		family, err := families.GetFamilyByID(ctx, current.FamilyID)
		if err != nil {
			return err
		}
		result = &AcceptResult{Family: family, Parent: parent}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(inv.Email, user.Email) {
		slog.Info("Invitation accepted by a different address", "invitation_id", inv.ID, "user_id", user.ID)
	}
	s.metrics.InvitationTransition(string(models.InvitationAccepted))
	slog.Info("Invitation accepted", "family_id", result.Family.ID, "invitation_id", inv.ID, "user_id", user.ID)
	return result, nil
}

// checkFamilyShape asserts the membership invariant: one or two parents,
// exactly one of them admin.
func checkFamilyShape(ctx context.Context, families *repository.FamilyRepository, familyID int64) error {
	parents, err := families.CountParents(ctx, familyID)
	if err != nil {
		return err
	}
	admins, err := families.CountAdmins(ctx, familyID)
	if err != nil {
		return err
	}
	if parents < 1 || parents > models.MaxParents || admins != 1 {
		return fmt.Errorf("family %d has %d parents and %d admins: %w", familyID, parents, admins, ErrInvariantViolation)
	}
	return nil
}

// Revoke cancels a PENDING invitation of the caller's family. Admin only.
// An invitation belonging to another family is reported as not found.
func (s *InvitationService) Revoke(ctx context.Context, user *models.User, invitationID int64) (*models.Invitation, error) {
	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(parent.FamilyID)
	defer unlock()

	var revoked *models.Invitation
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		invitations := s.invitations.WithTx(tx)
		now := s.clock.Now()

		caller, err := requireParent(ctx, s.families.WithTx(tx), user.ID)
		if err != nil {
			return err
		}
		inv, err := invitations.GetByID(ctx, invitationID)
		if err != nil {
			return err
		}
		if inv == nil || inv.FamilyID != caller.FamilyID {
			return ErrNotFound
		}
		if !caller.IsAdmin() {
			return ErrForbidden
		}
		if inv.EffectiveStatus(now) != models.InvitationPending {
			return ErrInvalidState
		}

		ok, err := invitations.MarkRevoked(ctx, inv.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		inv.Status = models.InvitationRevoked
		inv.RevokedAt = &now
		revoked = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvitationTransition(string(models.InvitationRevoked))
	slog.Info("Invitation revoked", "family_id", revoked.FamilyID, "invitation_id", revoked.ID)
	return revoked, nil
}

// List returns the caller's family invitations, newest first, with lazy
// expiry applied to each status. Admin only.
func (s *InvitationService) List(ctx context.Context, user *models.User) ([]models.Invitation, error) {
	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}
	if !parent.IsAdmin() {
		return nil, ErrForbidden
	}

	invitations, err := s.invitations.ListByFamily(ctx, parent.FamilyID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for i := range invitations {
		invitations[i].Status = invitations[i].EffectiveStatus(now)
	}
	return invitations, nil
}

// State reports the state of the family's most recent invitation, or NONE
func (s *InvitationService) State(ctx context.Context, familyID int64) (models.InvitationState, error) {
	latest, err := s.invitations.GetLatestForFamily(ctx, familyID)
	if err != nil {
		return "", err
	}
	return latest.State(s.clock.Now()), nil
}

// ExpireStale rewrites PENDING invitations past their expiry as EXPIRED.
// Reads already treat them as expired; this only tidies stored state.
func (s *InvitationService) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.invitations.ExpireStale(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	s.metrics.Swept(n)
	if n > 0 {
		slog.Info("Expired stale invitations", "count", n)
	}
	return n, nil
}
