package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"coparent/internal/security"
	"coparent/internal/service"
	"coparent/internal/validation"
)

// statusByCode maps stable domain error codes to HTTP statuses
var statusByCode = map[string]int{
	service.ErrAlreadyMember.Code:      http.StatusConflict,
	service.ErrFamilyFull.Code:         http.StatusConflict,
	service.ErrDuplicatePending.Code:   http.StatusConflict,
	service.ErrNotFound.Code:           http.StatusNotFound,
	service.ErrExpired.Code:            http.StatusGone,
	service.ErrInvalidState.Code:       http.StatusBadRequest,
	service.ErrSelfTransfer.Code:       http.StatusConflict,
	service.ErrNotCoParent.Code:        http.StatusConflict,
	service.ErrInvariantViolation.Code: http.StatusConflict,
	service.ErrIdentityConflict.Code:   http.StatusConflict,
	service.ErrForbidden.Code:          http.StatusForbidden,
	service.ErrNotFamilyMember.Code:    http.StatusForbidden,
	service.ErrNoFamily.Code:           http.StatusForbidden,
	service.ErrConflict.Code:           http.StatusConflict,
	service.ErrRoleSyncFailed.Code:     http.StatusBadGateway,
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

// classify turns an error into its HTTP status and wire body
func classify(err error) (int, errorDetail) {
	var verr validation.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorDetail{Code: CodeValidationFailed, Message: verr.Message, Field: verr.Field}
	}
	if errors.Is(err, security.ErrMissingToken) || errors.Is(err, security.ErrInvalidToken) {
		return http.StatusUnauthorized, errorDetail{Code: CodeUnauthenticated, Message: security.ErrInvalidToken.Error()}
	}
	var derr *service.Error
	if errors.As(err, &derr) {
		if status, ok := statusByCode[derr.Code]; ok {
			return status, errorDetail{Code: derr.Code, Message: derr.Message}
		}
	}
	return http.StatusInternalServerError, errorDetail{Code: CodeInternal, Message: ErrInternalServerError}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondWithError writes the error envelope for err. Server-side failures
// are logged; their detail never reaches the client.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"code", detail.Code,
			"error", err,
		)
	}
	respondJSON(w, status, errorResponse{Error: detail})
}

func respondWithCode(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}
