package handlers

import (
	"net/http"

	"coparent/internal/authz"
	"coparent/internal/models"
	"coparent/internal/service"
)

// InvitationHandler serves the invitation lifecycle
type InvitationHandler struct {
	invitations *service.InvitationService
	guard       *authz.Guard
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(invitations *service.InvitationService, guard *authz.Guard) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, guard: guard}
}

type issueRequest struct {
	Email string `json:"email"`
}

type issueResponse struct {
	Invitation    *models.Invitation `json:"invitation"`
	InvitationURL string             `json:"invitationUrl"`
}

// Issue creates an invitation for the co-parent (admin)
func (h *InvitationHandler) Issue(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if _, err := h.guard.AuthorizeOwn(r.Context(), user, authz.ActionIssueInvitation); err != nil {
		respondWithError(w, r, err)
		return
	}

	var req issueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	issued, err := h.invitations.Issue(r.Context(), user, req.Email)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, issueResponse{Invitation: issued.Invitation, InvitationURL: issued.URL})
}

// List returns the family's invitations (admin)
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if _, err := h.guard.AuthorizeOwn(r.Context(), user, authz.ActionListInvitations); err != nil {
		respondWithError(w, r, err)
		return
	}

	invitations, err := h.invitations.List(r.Context(), user)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"invitations": invitations})
}

// Revoke cancels a pending invitation (admin)
func (h *InvitationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	// No guard here: another family's invitation must read as NOT_FOUND
	// before any role check, which only the service can tell.
	revoked, err := h.invitations.Revoke(r.Context(), user, id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, revoked)
}

// Preview shows an invitation to an unauthenticated invitee
func (h *InvitationHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.invitations.Preview(r.Context(), r.PathValue("token"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

type acceptRequest struct {
	Token string `json:"token"`
}

type acceptResponse struct {
	Family *models.Family `json:"family"`
	Parent *models.Parent `json:"parent"`
}

// Accept joins the caller to the inviting family
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req acceptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.invitations.Accept(r.Context(), req.Token, user)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, acceptResponse{Family: result.Family, Parent: result.Parent})
}
