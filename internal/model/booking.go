package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the DJ-facing lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingAccepted BookingStatus = "accepted"
	BookingRejected BookingStatus = "rejected"
)

// DefaultSongKey is stored when a request does not name a key shift.
const DefaultSongKey = "0"

// Booking is a song request at a venue. DJ-created bookings have no
// session; attendee bookings keep the session that created them until
// that session is swept, at which point the column is cleared.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserName  – display name of the singer (up to 100 chars).
//	Song      – requested title (up to 300 chars).
//	Key       – key shift, free text (up to 10 chars, default "0").
//	Status    – pending, accepted or rejected.
//	VenueID   – venue the booking belongs to.
//	SessionID – originating session, nil for DJ-created bookings.
//	CreatedAt – creation timestamp, the list ordering key.
type Booking struct {
	ID        uint64        // bookings.id
	UserName  string        // bookings.user_name
	Song      string        // bookings.song
	Key       string        // bookings.song_key
	Status    BookingStatus // bookings.status
	VenueID   uint64        // bookings.venue_id
	SessionID *uuid.UUID    // bookings.session_id (nullable)
	CreatedAt time.Time     // bookings.created_at
}

// FromSession reports whether the booking was created by an attendee.
func (b *Booking) FromSession() bool { return b.SessionID != nil }
