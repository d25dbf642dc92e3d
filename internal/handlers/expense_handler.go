package handlers

import (
	"net/http"

	"coparent/internal/authz"
	"coparent/internal/models"
	"coparent/internal/service"
)

// ExpenseHandler serves expenses through the visibility filter
type ExpenseHandler struct {
	expenses *service.ExpenseService
	guard    *authz.Guard
}

// NewExpenseHandler creates a new expense handler
func NewExpenseHandler(expenses *service.ExpenseService, guard *authz.Guard) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses, guard: guard}
}

// List returns the expenses the caller may see, newest first
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if _, err := h.guard.AuthorizeOwn(r.Context(), user, authz.ActionViewExpenses); err != nil {
		respondWithError(w, r, err)
		return
	}

	views, err := h.expenses.List(r.Context(), user)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"expenses": views})
}

// Create records an expense
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if _, err := h.guard.AuthorizeOwn(r.Context(), user, authz.ActionCreateExpense); err != nil {
		respondWithError(w, r, err)
		return
	}

	var req service.CreateExpenseInput
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.expenses.Create(r.Context(), user, req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// Get returns one expense
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	familyID, err := h.expenses.ExpenseFamily(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if err := authorizeResource(r.Context(), h.guard, user, authz.ActionViewExpenses, familyID); err != nil {
		respondWithError(w, r, err)
		return
	}

	view, err := h.expenses.Get(r.Context(), user, id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type privacyRequest struct {
	Privacy models.Privacy `json:"privacy"`
}

// UpdatePrivacy changes an expense's privacy (creator only)
func (h *ExpenseHandler) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	familyID, err := h.expenses.ExpenseFamily(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if err := authorizeResource(r.Context(), h.guard, user, authz.ActionViewExpenses, familyID); err != nil {
		respondWithError(w, r, err)
		return
	}

	var req privacyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.expenses.UpdatePrivacy(r.Context(), user, id, req.Privacy)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
