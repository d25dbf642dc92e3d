package models

import "time"

// Privacy controls how much of an expense the other parent may see
type Privacy string

const (
	PrivacyPrivate    Privacy = "PRIVATE"
	PrivacyAmountOnly Privacy = "AMOUNT_ONLY"
	PrivacyFullShared Privacy = "FULL_SHARED"
)

// Valid reports whether p is a known privacy level
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPrivate, PrivacyAmountOnly, PrivacyFullShared:
		return true
	}
	return false
}

// Expense is a financial record. Amount is in minor units of Currency.
type Expense struct {
	ID              int64
	FamilyID        int64
	CreatorParentID int64
	ChildID         *int64
	Amount          int64
	Currency        string
	Category        string
	Description     *string
	ExpenseDate     string // YYYY-MM-DD
	Privacy         Privacy
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
