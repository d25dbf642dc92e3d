package handlers

import (
	"context"
	"errors"

	"coparent/internal/authz"
	"coparent/internal/models"
	"coparent/internal/service"
)

// authorizeResource checks action against the family owning a resource.
// A resource of another family reads as not found.
func authorizeResource(ctx context.Context, guard *authz.Guard, user *models.User, action authz.Action, familyID int64) error {
	_, err := guard.Authorize(ctx, user, action, familyID)
	if errors.Is(err, service.ErrNotFamilyMember) {
		return service.ErrNotFound
	}
	return err
}
