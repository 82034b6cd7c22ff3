package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnavailable  = errors.New("unavailable")
	ErrInternal     = errors.New("internal error")
)

// Client-facing error codes carried in the "error" field of JSON error bodies.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidEmail       = "invalid_email"
	CodeDomainNotAllowed   = "domain_not_allowed"
	CodeInvalidDomain      = "invalid_domain"
	CodeAdminOnly          = "admin_only"
	CodeRateLimited        = "rate_limited"
	CodeInvalidFormat      = "invalid_format"
	CodeNoActiveCode       = "no_active_code"
	CodeInvalidCode        = "invalid_code"
	CodeMaxAttempts        = "max_attempts_exceeded"
	CodeEmailFailed        = "email_failed"
	CodeUnauthorized       = "unauthorized"
	CodeProfileNotFound    = "profile_not_found"
	CodeProfileNotVerified = "profile_not_verified"
	CodeInvalidAnswers     = "invalid_answers"
	CodeInvalidVersion     = "invalid_version"
	CodeInvalidPhoto       = "invalid_photo"
	CodeInvalidResume      = "invalid_resume"
	CodeInvalidAdminKey    = "invalid_admin_key"
	CodeAdminNotConfigured = "admin_not_configured"
	CodeNotFound           = "not_found"
	CodeForbidden          = "forbidden"
	CodeInternal           = "internal_error"
)

// Error pairs a sentinel kind with a stable code and a message that is safe to show clients.
type Error struct {
	Kind       error
	Code       string
	Message    string
	RetryAfter int // seconds; set for rate limits only
}

// NewError builds a coded error of the given kind.
func NewError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// AsError extracts a coded error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
