package models

import "time"

// InvitationStatus is the stored lifecycle state of an invitation
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
	InvitationRevoked  InvitationStatus = "REVOKED"
)

// IsTerminal reports whether no further transition is possible
func (s InvitationStatus) IsTerminal() bool {
	return s != InvitationPending
}

// InvitationState is the family-level invitation state reported to clients.
// It adds NONE for a family that never issued an invitation.
type InvitationState string

const (
	InvitationStateNone     InvitationState = "NONE"
	InvitationStatePending  InvitationState = "PENDING"
	InvitationStateAccepted InvitationState = "ACCEPTED"
	InvitationStateExpired  InvitationState = "EXPIRED"
	InvitationStateRevoked  InvitationState = "REVOKED"
)

// Invitation is a single-use offer for a second parent to join a family.
// Only the digest of the token is stored.
type Invitation struct {
	ID                int64            `json:"id"`
	FamilyID          int64            `json:"familyId"`
	InvitedByParentID int64            `json:"invitedByParentId"`
	Email             string           `json:"email"`
	TokenHash         string           `json:"-"`
	Status            InvitationStatus `json:"status"`
	CreatedAt         time.Time        `json:"createdAt"`
	ExpiresAt         time.Time        `json:"expiresAt"`
	AcceptedAt        *time.Time       `json:"acceptedAt,omitempty"`
	AcceptedByUserID  *int64           `json:"acceptedByUserId,omitempty"`
	RevokedAt         *time.Time       `json:"revokedAt,omitempty"`
}

// IsExpired reports whether a pending invitation has passed its expiry at now
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// EffectiveStatus is the status with lazy expiry applied: a PENDING row
// past its expiry reads as EXPIRED even before the sweep rewrites it.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && i.IsExpired(now) {
		return InvitationExpired
	}
	return i.Status
}

// State converts the effective status into the family-level state
func (i *Invitation) State(now time.Time) InvitationState {
	if i == nil {
		return InvitationStateNone
	}
	return InvitationState(i.EffectiveStatus(now))
}

// InvitationPreview is what an unauthenticated invitee sees before accepting
type InvitationPreview struct {
	FamilyName string        `json:"familyName"`
	InvitedBy  PublicProfile `json:"invitedBy"`
	Children   []Child       `json:"children"`
	Email      string        `json:"email"`
	ExpiresAt  time.Time     `json:"expiresAt"`
}
