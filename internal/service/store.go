// Package service holds the session and booking state machine: the venue
// activity registry, the session manager, the booking ledger and the
// per-session rate limit. It talks to persistence through the Store port
// so that the MySQL implementation and the in-memory test store are
// interchangeable.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/queue"
)

// Queries is the data access surface used by the core. Single-row
// lookups return sql.ErrNoRows when nothing matches. Lock* methods take
// row locks that are held until the surrounding transaction ends; outside
// a transaction they behave like plain reads.
type Queries interface {
	DJByID(ctx context.Context, id uint64) (*model.DJ, error)
	DJByQRCode(ctx context.Context, qrCodeID string) (*model.DJ, error)

	VenueForDJ(ctx context.Context, venueID, djID uint64) (*model.Venue, error)
	ActiveVenue(ctx context.Context, djID uint64) (*model.Venue, error)
	LockVenuesForDJ(ctx context.Context, djID uint64) ([]model.Venue, error)
	DeactivateVenues(ctx context.Context, djID uint64) error
	SetVenueActive(ctx context.Context, venueID uint64, active bool) error

	SongExists(ctx context.Context, djID uint64, title string) (bool, error)

	InsertSession(ctx context.Context, s *model.Session) error
	SessionByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	LockSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
	TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error
	SetBookingCount(ctx context.Context, id uuid.UUID, n int) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	InsertBooking(ctx context.Context, b *model.Booking) error
	BookingForDJ(ctx context.Context, bookingID, djID uint64) (*model.Booking, error)
	BookingForSession(ctx context.Context, bookingID uint64, sessionID uuid.UUID) (*model.Booking, error)
	SetBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error
	DeleteBooking(ctx context.Context, bookingID uint64) error
	DeleteBookingsForVenue(ctx context.Context, venueID uint64) (int64, error)
	DeleteBookingsForDJ(ctx context.Context, djID uint64) (int64, error)
	BookingsForVenue(ctx context.Context, venueID uint64) ([]model.Booking, error)
	BookingsForSession(ctx context.Context, sessionID uuid.UUID, venueID uint64) ([]model.Booking, error)
}

// Store runs Queries either directly against the pool (Run) or inside a
// single transaction that is committed when fn returns nil and rolled
// back otherwise (WithinTx).
type Store interface {
	Run(ctx context.Context, fn func(q Queries) error) error
	WithinTx(ctx context.Context, fn func(q Queries) error) error
}

// EventPublisher receives booking events after their transaction has
// committed. Failures are logged by the caller and never undo the change.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, ev queue.BookingEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishBookingEvent(context.Context, queue.BookingEvent) error { return nil }

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
