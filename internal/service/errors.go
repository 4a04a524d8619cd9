package service

import "errors"

// Kind classifies a failure so transports can map it without knowing
// every individual error.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthenticated
	KindExpired
	KindPreconditionFailed
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindExpired:
		return "expired"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a typed failure returned by the registry, the session manager
// and the ledger. Reason is a stable machine-readable code; Message is
// fit for end users.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func (e *Error) Error() string { return e.Reason + ": " + e.Message }

// Not found.
var (
	ErrDJNotFound      = &Error{Kind: KindNotFound, Reason: "dj_not_found", Message: "DJ not found"}
	ErrVenueNotFound   = &Error{Kind: KindNotFound, Reason: "venue_not_found", Message: "venue not found"}
	ErrSessionNotFound = &Error{Kind: KindNotFound, Reason: "session_not_found", Message: "session not found"}
	ErrBookingNotFound = &Error{Kind: KindNotFound, Reason: "booking_not_found", Message: "booking not found"}
)

// Credential and lifetime.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Reason: "unauthenticated", Message: "missing or malformed session credential"}
	ErrSessionExpired  = &Error{Kind: KindExpired, Reason: "session_expired", Message: "session expired, scan the QR code again"}
)

// Preconditions.
var (
	ErrNoActiveVenue       = &Error{Kind: KindPreconditionFailed, Reason: "no_active_venue", Message: "the DJ has no active venue"}
	ErrVenueNoLongerActive = &Error{Kind: KindPreconditionFailed, Reason: "venue_no_longer_active", Message: "the venue of this session is no longer active"}
	ErrVenueInactive       = &Error{Kind: KindPreconditionFailed, Reason: "venue_inactive", Message: "venue not active"}
	ErrSongNotFound        = &Error{Kind: KindPreconditionFailed, Reason: "song_not_in_catalog", Message: "song not found in the DJ catalog"}
	ErrRateLimitExceeded   = &Error{Kind: KindPreconditionFailed, Reason: "rate_limit_exceeded", Message: "booking limit reached for this session"}
	ErrBlankBookingField   = &Error{Kind: KindPreconditionFailed, Reason: "blank_booking_field", Message: "user_name and song must not be blank"}
	ErrBookingNotPending   = &Error{Kind: KindPreconditionFailed, Reason: "booking_not_pending", Message: "only pending bookings can be cancelled"}
)

// ErrConflict signals an inconsistent state detected inside a transaction
// such as a second active venue. It is never expected in normal operation.
var ErrConflict = &Error{Kind: KindConflict, Reason: "conflict", Message: "conflicting state, retry"}

// KindOf returns the Kind of err, or KindInternal when err is not a
// service error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the Reason of err, or "internal_error".
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal_error"
}
