// Package visibility decides how much of an expense a given parent may see.
//
// The rules, in order:
//
//	creator         sees everything
//	PRIVATE         the other parent sees nothing, not even that it exists
//	AMOUNT_ONLY     the other parent sees id, amount, currency, date and category
//	FULL_SHARED     the other parent sees everything
//
// Project is pure. Callers must already have scoped the expense to the
// viewer's family.
package visibility

import (
	"time"

	"coparent/internal/models"
)

// ExpenseView is the projection of an expense sent to one viewer.
// Fields a viewer may not see are nil and omitted from JSON.
type ExpenseView struct {
	ID              int64           `json:"id"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	Date            string          `json:"date"`
	Category        string          `json:"category"`
	CreatorParentID *int64          `json:"creatorParentId,omitempty"`
	ChildID         *int64          `json:"childId,omitempty"`
	Description     *string         `json:"description,omitempty"`
	Privacy         *models.Privacy `json:"privacy,omitempty"`
	CreatedAt       *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time      `json:"updatedAt,omitempty"`
}

// IsFull reports whether the view carries the complete record
func (v ExpenseView) IsFull() bool {
	return v.Privacy != nil
}

// Project returns the view of e for viewerParentID. The second result is
// false when the viewer may not know the expense exists.
func Project(e models.Expense, viewerParentID int64) (ExpenseView, bool) {
	if e.CreatorParentID == viewerParentID {
		return full(e), true
	}
	switch e.Privacy {
	case models.PrivacyFullShared:
		return full(e), true
	case models.PrivacyAmountOnly:
		return amountOnly(e), true
	default:
		// PRIVATE and anything unrecognized stay hidden
		return ExpenseView{}, false
	}
}

// ProjectAll applies Project to each expense and keeps only visible ones,
// preserving order.
func ProjectAll(expenses []models.Expense, viewerParentID int64) []ExpenseView {
	views := make([]ExpenseView, 0, len(expenses))
	for _, e := range expenses {
		if v, ok := Project(e, viewerParentID); ok {
			views = append(views, v)
		}
	}
	return views
}

func amountOnly(e models.Expense) ExpenseView {
	return ExpenseView{
		ID:       e.ID,
		Amount:   e.Amount,
		Currency: e.Currency,
		Date:     e.ExpenseDate,
		Category: e.Category,
	}
}

func full(e models.Expense) ExpenseView {
	v := amountOnly(e)
	creator := e.CreatorParentID
	privacy := e.Privacy
	created := e.CreatedAt
	updated := e.UpdatedAt
	v.CreatorParentID = &creator
	v.Privacy = &privacy
	v.CreatedAt = &created
	v.UpdatedAt = &updated
	if e.ChildID != nil {
		id := *e.ChildID
		v.ChildID = &id
	}
	if e.Description != nil {
		d := *e.Description
		v.Description = &d
	}
	return v
}
