package handlers

import (
	"net/http"

	"coparent/internal/authz"
	"coparent/internal/models"
	"coparent/internal/service"
)

// FamilyHandler serves the caller's own context, the family and its roster
type FamilyHandler struct {
	families    *service.FamilyService
	identity    *service.IdentityService
	invitations *service.InvitationService
	guard       *authz.Guard
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(families *service.FamilyService, identity *service.IdentityService, invitations *service.InvitationService, guard *authz.Guard) *FamilyHandler {
	return &FamilyHandler{
		families:    families,
		identity:    identity,
		invitations: invitations,
		guard:       guard,
	}
}

type meResponse struct {
	User            *models.User            `json:"user"`
	Family          *models.Family          `json:"family,omitempty"`
	Parent          *models.Parent          `json:"parent,omitempty"`
	Role            models.ParentRole       `json:"role,omitempty"`
	Onboarding      models.OnboardingStatus `json:"onboarding"`
	InvitationState models.InvitationState  `json:"invitationState"`
}

// Me returns the caller's membership context
func (h *FamilyHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	mc, err := h.families.GetMembershipContext(r.Context(), user)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	onboarding, err := h.families.OnboardingStatus(r.Context(), mc)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	resp := meResponse{
		User:            user,
		Onboarding:      onboarding,
		InvitationState: models.InvitationStateNone,
	}
	if mc.HasFamily() {
		resp.Family = mc.Family
		resp.Parent = mc.Parent
		resp.Role = mc.Parent.Role
		if resp.InvitationState, err = h.invitations.State(r.Context(), mc.Family.ID); err != nil {
			respondWithError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateMe edits the caller's display name and email
func (h *FamilyHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = user.Name
	}
	if req.Email == "" {
		req.Email = user.Email
	}

	updated, err := h.identity.UpdateProfile(r.Context(), user, req.Name, req.Email)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteMe soft deletes the caller's account
func (h *FamilyHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if err := h.identity.SoftDelete(r.Context(), user); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createFamilyRequest struct {
	Name     string              `json:"name"`
	Children []models.ChildInput `json:"children"`
}

type createFamilyResponse struct {
	Family   *models.Family `json:"family"`
	Parent   *models.Parent `json:"parent"`
	Children []models.Child `json:"children"`
}

// CreateFamily founds a family with the caller as admin parent
func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req createFamilyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	mc, children, err := h.families.CreateFamily(r.Context(), user, req.Name, req.Children)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, createFamilyResponse{Family: mc.Family, Parent: mc.Parent, Children: children})
}

type renameRequest struct {
	Name string `json:"name"`
}

// RenameFamily changes the family name (admin)
func (h *FamilyHandler) RenameFamily(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if _, err := h.guard.AuthorizeOwn(r.Context(), user, authz.ActionRenameFamily); err != nil {
		respondWithError(w, r, err)
		return
	}

	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	family, err := h.families.RenameFamily(r.Context(), user, req.Name)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, family)
}

// Members lists the parents of the caller's family
func (h *FamilyHandler) Members(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if _, err := h.guard.AuthorizeOwn(r.Context(), user, authz.ActionViewFamily); err != nil {
		respondWithError(w, r, err)
		return
	}

	members, err := h.families.ListMembers(r.Context(), user)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"members": members})
}

// ListChildren returns the roster
func (h *FamilyHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if _, err := h.guard.AuthorizeOwn(r.Context(), user, authz.ActionViewFamily); err != nil {
		respondWithError(w, r, err)
		return
	}

	children, err := h.families.ListChildren(r.Context(), user)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"children": children})
}

// CreateChild adds a child to the roster (admin)
func (h *FamilyHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if _, err := h.guard.AuthorizeOwn(r.Context(), user, authz.ActionEditChildren); err != nil {
		respondWithError(w, r, err)
		return
	}

	var req models.ChildInput
	if !decodeJSON(w, r, &req) {
		return
	}
	child, err := h.families.AddChild(r.Context(), user, req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, child)
}

// UpdateChild edits a child (admin)
func (h *FamilyHandler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	childID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	familyID, err := h.families.ChildFamily(r.Context(), childID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if err := authorizeResource(r.Context(), h.guard, user, authz.ActionEditChildren, familyID); err != nil {
		respondWithError(w, r, err)
		return
	}

	var req models.ChildInput
	if !decodeJSON(w, r, &req) {
		return
	}
	child, err := h.families.UpdateChild(r.Context(), user, childID, req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, child)
}

// DeleteChild removes a child (admin)
func (h *FamilyHandler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	childID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	familyID, err := h.families.ChildFamily(r.Context(), childID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if err := authorizeResource(r.Context(), h.guard, user, authz.ActionEditChildren, familyID); err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.families.RemoveChild(r.Context(), user, childID); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
