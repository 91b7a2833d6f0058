package handlers

// Error codes carried in the ErrorResponse envelope. Clients branch on
// these, never on the message text, so each one is stable once shipped.
// The generic set mirrors plain HTTP status semantics; the domain codes
// cover outcomes a status alone cannot convey, e.g. an injected event the
// conversation engine rejected versus a listing query that failed.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeEventFailed      = "event_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
