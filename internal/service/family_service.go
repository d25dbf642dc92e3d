package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"coparent/internal/clock"
	"coparent/internal/database"
	"coparent/internal/models"
	"coparent/internal/repository"
	"coparent/internal/validation"
)

// FamilyService owns the family membership model: founding a family,
// deriving a user's membership, and the child roster.
type FamilyService struct {
	db       *database.DB
	families *repository.FamilyRepository
	children *repository.ChildRepository
	locks    *FamilyLocks
	clock    clock.Clock
}

// NewFamilyService creates a new family service
func NewFamilyService(db *database.DB, locks *FamilyLocks, clk clock.Clock) *FamilyService {
	return &FamilyService{
		db:       db,
		families: repository.NewFamilyRepository(db),
		children: repository.NewChildRepository(db),
		locks:    locks,
		clock:    clk,
	}
}

// CreateFamily founds a family with user as its admin parent and seeds
// the child roster. All rows are written in one transaction.
func (s *FamilyService) CreateFamily(ctx context.Context, founder *models.User, name string, children []models.ChildInput) (*models.MembershipContext, []models.Child, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateFamilyName(name); err != nil {
		return nil, nil, err
	}
	for i := range children {
		if err := validateChild(&children[i]); err != nil {
			return nil, nil, err
		}
	}

	existing, err := s.families.GetParentByUserID(ctx, founder.ID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, ErrAlreadyMember
	}

	now := s.clock.Now()
	var family *models.Family
	var parent *models.Parent
	created := []models.Child{}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		kids := s.children.WithTx(tx)

		var err error
		family, err = families.CreateFamily(ctx, name, now)
		if err != nil {
			return err
		}
		parent, err = families.AddParent(ctx, family.ID, founder.ID, models.RoleAdminParent, now)
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrAlreadyMember
		}
		if err != nil {
			return err
		}
		for _, in := range children {
			child, err := kids.CreateChild(ctx, family.ID, in, now)
			if err != nil {
				return err
			}
			created = append(created, *child)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	slog.Info("Family created", "family_id", family.ID, "user_id", founder.ID, "children", len(created))
	return &models.MembershipContext{User: founder, Family: family, Parent: parent}, created, nil
}

// GetMembershipContext derives where user belongs. It is read fresh from
// the store on every call.
func (s *FamilyService) GetMembershipContext(ctx context.Context, user *models.User) (*models.MembershipContext, error) {
	return membershipContext(ctx, s.families, user)
}

func membershipContext(ctx context.Context, families *repository.FamilyRepository, user *models.User) (*models.MembershipContext, error) {
	mc := &models.MembershipContext{User: user}
	parent, err := families.GetParentByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return mc, nil
	}
	family, err := families.GetFamilyByID(ctx, parent.FamilyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, fmt.Errorf("parent %d references missing family %d: %w", parent.ID, parent.FamilyID, ErrInvariantViolation)
	}
	mc.Family = family
	mc.Parent = parent
	return mc, nil
}

// requireParent returns the caller's parent record or ErrNoFamily
func requireParent(ctx context.Context, families *repository.FamilyRepository, userID int64) (*models.Parent, error) {
	parent, err := families.GetParentByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, ErrNoFamily
	}
	return parent, nil
}

// OnboardingStatus reports how far the user's family is through setup
func (s *FamilyService) OnboardingStatus(ctx context.Context, mc *models.MembershipContext) (models.OnboardingStatus, error) {
	if !mc.HasFamily() {
		return models.OnboardingNoFamily, nil
	}
	count, err := s.families.CountParents(ctx, mc.Family.ID)
	if err != nil {
		return "", err
	}
	return models.DeriveOnboarding(mc, count), nil
}

// ListMembers returns the parents of the caller's family
func (s *FamilyService) ListMembers(ctx context.Context, user *models.User) ([]models.FamilyMember, error) {
	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}
	return s.families.GetFamilyMembers(ctx, parent.FamilyID)
}

// RenameFamily changes the family name. Admin only.
func (s *FamilyService) RenameFamily(ctx context.Context, user *models.User, name string) (*models.Family, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateFamilyName(name); err != nil {
		return nil, err
	}

	var family *models.Family
	err := s.withAdmin(ctx, user, func(tx *database.Tx, admin *models.Parent) error {
		families := s.families.WithTx(tx)
		if err := families.RenameFamily(ctx, admin.FamilyID, name, s.clock.Now()); err != nil {
			return err
		}
		var err error
		family, err = families.GetFamilyByID(ctx, admin.FamilyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return family, nil
}

// ListChildren returns the roster of the caller's family
func (s *FamilyService) ListChildren(ctx context.Context, user *models.User) ([]models.Child, error) {
	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return nil, err
	}
	return s.children.ListChildren(ctx, parent.FamilyID)
}

// ChildFamily returns the id of the family a child belongs to
func (s *FamilyService) ChildFamily(ctx context.Context, childID int64) (int64, error) {
	familyID, err := s.children.FamilyOf(ctx, childID)
	if err != nil {
		return 0, err
	}
	if familyID == 0 {
		return 0, ErrNotFound
	}
	return familyID, nil
}

// AddChild adds a child to the caller's family. Admin only.
func (s *FamilyService) AddChild(ctx context.Context, user *models.User, in models.ChildInput) (*models.Child, error) {
	if err := validateChild(&in); err != nil {
		return nil, err
	}

	var child *models.Child
	err := s.withAdmin(ctx, user, func(tx *database.Tx, admin *models.Parent) error {
		var err error
		child, err = s.children.WithTx(tx).CreateChild(ctx, admin.FamilyID, in, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}

// UpdateChild edits a child of the caller's family. Admin only.
// A child of another family is reported as ErrNotFound.
func (s *FamilyService) UpdateChild(ctx context.Context, user *models.User, childID int64, in models.ChildInput) (*models.Child, error) {
	if err := validateChild(&in); err != nil {
		return nil, err
	}

	var child *models.Child
	err := s.withAdmin(ctx, user, func(tx *database.Tx, admin *models.Parent) error {
		kids := s.children.WithTx(tx)
		ok, err := kids.UpdateChild(ctx, admin.FamilyID, childID, in, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		child, err = kids.GetChildByID(ctx, admin.FamilyID, childID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}

// RemoveChild deletes a child of the caller's family. Admin only.
func (s *FamilyService) RemoveChild(ctx context.Context, user *models.User, childID int64) error {
	return s.withAdmin(ctx, user, func(tx *database.Tx, admin *models.Parent) error {
		ok, err := s.children.WithTx(tx).DeleteChild(ctx, admin.FamilyID, childID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return nil
	})
}

// withAdmin runs fn in a transaction under the family writer lock after
// re-reading the caller's parent record and requiring the admin role.
func (s *FamilyService) withAdmin(ctx context.Context, user *models.User, fn func(tx *database.Tx, admin *models.Parent) error) error {
	parent, err := requireParent(ctx, s.families, user.ID)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(parent.FamilyID)
	defer unlock()

	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		admin, err := requireParent(ctx, s.families.WithTx(tx), user.ID)
		if err != nil {
			return err
		}
		if !admin.IsAdmin() {
			return ErrForbidden
		}
		return fn(tx, admin)
	})
}

func validateChild(in *models.ChildInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.ValidateChildName(in.Name); err != nil {
		return err
	}
	if in.DateOfBirth != nil && *in.DateOfBirth == "" {
		in.DateOfBirth = nil
	}
	return validation.ValidateOptionalDate("dateOfBirth", in.DateOfBirth)
}
