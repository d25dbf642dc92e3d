package models

import "time"

// Child is a member of the family roster. Children have no login.
type Child struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"familyId"`
	Name        string    `json:"name"`
	DateOfBirth *string   `json:"dateOfBirth,omitempty"` // YYYY-MM-DD
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ChildInput carries the editable fields of a child
type ChildInput struct {
	Name        string  `json:"name"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
}
