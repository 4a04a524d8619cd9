package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is an attendee's anonymous, time-bounded access to one DJ at
// one venue. The ID doubles as the bearer credential carried in the
// session cookie, so it must never be guessable.
//
// Fields:
//
//	ID           – random UUID, also the credential.
//	DJID         – DJ whose QR code was scanned.
//	VenueID      – venue that was active at creation time.
//	CreatedAt    – creation timestamp.
//	ExpiresAt    – hard expiry; the session is dead after this instant.
//	LastActivity – refreshed on each successful validation.
//	UserAgent    – best-effort audit data.
//	IPAddress    – best-effort audit data (up to 45 chars for IPv6).
//	BookingCount – number of live bookings created through this session.
type Session struct {
	ID           uuid.UUID // sessions.id
	DJID         uint64    // sessions.dj_id
	VenueID      uint64    // sessions.venue_id
	CreatedAt    time.Time // sessions.created_at
	ExpiresAt    time.Time // sessions.expires_at
	LastActivity time.Time // sessions.last_activity
	UserAgent    *string   // sessions.user_agent (nullable)
	IPAddress    *string   // sessions.ip_address (nullable)
	BookingCount int       // sessions.booking_count
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// RemainingMinutes returns the whole minutes left before expiry, never
// negative.
func (s *Session) RemainingMinutes(now time.Time) int {
	left := s.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Minute)
}
