package handlers

import (
	"net/http"

	"coparent/internal/authz"
	"coparent/internal/service"
	"coparent/internal/validation"
)

// AdminHandler serves the admin role handover
type AdminHandler struct {
	transfers *service.TransferService
	guard     *authz.Guard
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(transfers *service.TransferService, guard *authz.Guard) *AdminHandler {
	return &AdminHandler{transfers: transfers, guard: guard}
}

type transferRequest struct {
	TargetUserID int64 `json:"targetUserId"`
}

// TransferAdmin hands the admin role to the co-parent
func (h *AdminHandler) TransferAdmin(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if _, err := h.guard.AuthorizeOwn(r.Context(), user, authz.ActionTransferAdmin); err != nil {
		respondWithError(w, r, err)
		return
	}

	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TargetUserID <= 0 {
		respondWithError(w, r, validation.ValidationError{Field: "targetUserId", Message: "target user is required"})
		return
	}

	result, err := h.transfers.TransferToUser(r.Context(), user, req.TargetUserID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
