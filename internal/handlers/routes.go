package handlers

import "net/http"

// API bundles the handlers behind the JSON routes
type API struct {
	Middleware  *Middleware
	Family      *FamilyHandler
	Invitations *InvitationHandler
	Admin       *AdminHandler
	Expenses    *ExpenseHandler
}

// Register mounts every /api route on mux
func (a *API) Register(mux *http.ServeMux) {
	auth := a.Middleware.RequireIdentity

	// Caller context
	mux.HandleFunc("GET /api/me", auth(a.Family.Me))
	mux.HandleFunc("PATCH /api/me", auth(a.Family.UpdateMe))
	mux.HandleFunc("DELETE /api/me", auth(a.Family.DeleteMe))

	// Family and roster
	mux.HandleFunc("POST /api/families", auth(a.Family.CreateFamily))
	mux.HandleFunc("PATCH /api/family", auth(a.Family.RenameFamily))
	mux.HandleFunc("GET /api/family/members", auth(a.Family.Members))
	mux.HandleFunc("PUT /api/family/admin", auth(a.Admin.TransferAdmin))
	mux.HandleFunc("GET /api/family/children", auth(a.Family.ListChildren))
	mux.HandleFunc("POST /api/family/children", auth(a.Family.CreateChild))
	mux.HandleFunc("PUT /api/family/children/{id}", auth(a.Family.UpdateChild))
	mux.HandleFunc("DELETE /api/family/children/{id}", auth(a.Family.DeleteChild))

	// Invitations; preview is public and rate limited
	mux.HandleFunc("GET /api/invitations/preview/{token}", a.Middleware.RateLimit(a.Invitations.Preview))
	mux.HandleFunc("POST /api/invitations/accept", auth(a.Invitations.Accept))
	mux.HandleFunc("POST /api/invitations", auth(a.Invitations.Issue))
	mux.HandleFunc("GET /api/invitations", auth(a.Invitations.List))
	mux.HandleFunc("DELETE /api/invitations/{id}", auth(a.Invitations.Revoke))

	// Expenses
	mux.HandleFunc("GET /api/expenses", auth(a.Expenses.List))
	mux.HandleFunc("POST /api/expenses", auth(a.Expenses.Create))
	mux.HandleFunc("GET /api/expenses/{id}", auth(a.Expenses.Get))
	mux.HandleFunc("PUT /api/expenses/{id}/privacy", auth(a.Expenses.UpdatePrivacy))
}
