package models

import "time"

// User is a parent identity bound to one identity-provider subject.
// Users are soft deleted; the subject binding is never reused.
type User struct {
	ID        int64      `json:"id"`
	SubjectID string     `json:"-"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	DeletedAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsDeleted reports whether the user has been soft deleted
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// PublicProfile is the subset of a user shown to other family members
// and to an invitee previewing an invitation.
type PublicProfile struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Profile returns the user's public profile
func (u *User) Profile() PublicProfile {
	return PublicProfile{UserID: u.ID, Name: u.Name, Email: u.Email}
}
