package handlers

// Wire codes for failures that do not come from a domain error
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL"
)

const (
	ErrInvalidJSON         = "Invalid JSON body"
	ErrInvalidID           = "Invalid id"
	ErrTooManyRequests     = "Too many requests"
	ErrInternalServerError = "Internal server error"

	maxBodyBytes = 1 << 20
)
