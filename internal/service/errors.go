package service

import "errors"

// Error is a domain error with a stable code that callers can switch on
// without matching message text.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrAlreadyMember      = newError("ALREADY_MEMBER", "user already belongs to a family")
	ErrFamilyFull         = newError("FAMILY_FULL", "family already has two parents")
	ErrDuplicatePending   = newError("DUPLICATE_PENDING", "family already has a pending invitation")
	ErrNotFound           = newError("NOT_FOUND", "not found")
	ErrExpired            = newError("EXPIRED", "invitation has expired")
	ErrInvalidState       = newError("INVALID_STATE", "invitation is no longer pending")
	ErrSelfTransfer       = newError("SELF_TRANSFER", "cannot transfer the admin role to yourself")
	ErrNotCoParent        = newError("NOT_CO_PARENT", "target is not a co-parent of this family")
	ErrInvariantViolation = newError("INVARIANT_VIOLATION", "family invariant violated")
	ErrIdentityConflict   = newError("IDENTITY_CONFLICT", "identity is bound to a deleted account")
	ErrForbidden          = newError("FORBIDDEN", "action requires the admin parent")
	ErrNotFamilyMember    = newError("NOT_FAMILY_MEMBER", "user is not a member of this family")
	ErrNoFamily           = newError("NO_FAMILY", "user has not joined a family")
	ErrConflict           = newError("CONFLICT", "family was modified concurrently, retry")
	ErrRoleSyncFailed     = newError("ROLE_SYNC_FAILED", "identity provider role update failed")
)

// CodeOf returns the stable code of the first domain error in err's chain,
// or the empty string.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
