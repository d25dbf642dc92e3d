package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"coparent/internal/clock"
	"coparent/internal/models"
	"coparent/internal/repository"
	"coparent/internal/validation"
)

const defaultUserName = "Parent"

// IdentityService maps verified identity-provider subjects to users
type IdentityService struct {
	users *repository.UserRepository
	clock clock.Clock
}

// NewIdentityService creates a new identity service
func NewIdentityService(users *repository.UserRepository, clk clock.Clock) *IdentityService {
	return &IdentityService{users: users, clock: clk}
}

// Resolve returns the user bound to subjectID, creating it on first sight.
// Calling it repeatedly with the same subject always yields the same user.
func (s *IdentityService) Resolve(ctx context.Context, subjectID, email string) (*models.User, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, validation.ValidationError{Field: "sub", Message: "subject is required"}
	}

	user, err := s.users.GetUserBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up subject: %w", err)
	}
	if user != nil {
		return checkActive(user)
	}

	email = strings.TrimSpace(email)
	if email != "" {
		if err := validation.ValidateEmail(email); err != nil {
			return nil, err
		}
	}

	user, err = s.users.CreateUser(ctx, subjectID, email, nameFromEmail(email), s.clock.Now())
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a first-sight race; the winner's row is authoritative
		user, err = s.users.GetUserBySubject(ctx, subjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read subject: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("subject %s vanished after duplicate insert: %w", subjectID, ErrInvariantViolation)
		}
		return checkActive(user)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("User created from identity", "user_id", user.ID)
	return user, nil
}

func checkActive(user *models.User) (*models.User, error) {
	if user.IsDeleted() {
		return nil, ErrIdentityConflict
	}
	return user, nil
}

func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local = strings.TrimSpace(local); local != "" {
		return local
	}
	return defaultUserName
}

// UpdateProfile changes the user's display name and contact email.
// The subject binding is immutable.
func (s *IdentityService) UpdateProfile(ctx context.Context, user *models.User, name, email string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.users.UpdateProfile(ctx, user.ID, name, email, now); err != nil {
		return nil, err
	}

	updated := *user
	updated.Name = name
	updated.Email = email
	updated.UpdatedAt = now
	return &updated, nil
}

// SoftDelete marks the user deleted. Later resolutions of the same subject
// fail with ErrIdentityConflict.
func (s *IdentityService) SoftDelete(ctx context.Context, user *models.User) error {
	if err := s.users.SoftDelete(ctx, user.ID, s.clock.Now()); err != nil {
		return err
	}
	slog.Info("User soft deleted", "user_id", user.ID)
	return nil
}
