package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/karaoke-booking/internal/clock"
	"github.com/iliyamo/karaoke-booking/internal/metrics"
	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/queue"
)

// BookingInput is the caller-supplied part of a booking.
type BookingInput struct {
	UserName string
	Song     string
	Key      string
}

func (in BookingInput) normalize() BookingInput {
	in.UserName = strings.TrimSpace(in.UserName)
	in.Song = strings.TrimSpace(in.Song)
	in.Key = strings.TrimSpace(in.Key)
	if in.Key == "" {
		in.Key = model.DefaultSongKey
	}
	return in
}

func (in BookingInput) validate() error {
	if in.UserName == "" || in.Song == "" {
		return ErrBlankBookingField
	}
	return nil
}

// AttendeeBooking is the result of a successful attendee request.
type AttendeeBooking struct {
	Booking   *model.Booking
	Venue     *model.Venue
	Cap       BookingCap
	Remaining Remaining
}

// SessionBookings is what an attendee sees of their own bookings.
// VenueInactive is set, with no bookings, when the DJ's active venue is
// no longer the one the session was opened at.
type SessionBookings struct {
	Bookings      []model.Booking
	Venue         *model.Venue
	VenueInactive bool
	Cap           BookingCap
	Remaining     Remaining
}

// AttendeeDeletion is the result of an attendee cancelling a booking.
type AttendeeDeletion struct {
	BookingID    uint64
	BookingCount int
	Remaining    Remaining
}

// BookingLedger owns the life of song requests. Attendee creation and
// deletion lock the session row so that the check of booking_count and its
// update happen atomically.
type BookingLedger struct {
	store  Store
	clock  clock.Clock
	events EventPublisher
	log    zerolog.Logger
}

// NewBookingLedger returns a ledger. events may be nil.
func NewBookingLedger(store Store, clk clock.Clock, events EventPublisher, logger zerolog.Logger) *BookingLedger {
	if events == nil {
		events = nopPublisher{}
	}
	return &BookingLedger{
		store:  store,
		clock:  clk,
		events: events,
		log:    logger.With().Str("component", "booking-ledger").Logger(),
	}
}

// CreateDJBooking records a booking entered by the DJ. It skips the
// catalog and rate-limit checks and starts out accepted.
func (l *BookingLedger) CreateDJBooking(ctx context.Context, djID, venueID uint64, in BookingInput) (*model.Booking, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	b := &model.Booking{
		UserName:  in.UserName,
		Song:      in.Song,
		Key:       in.Key,
		Status:    model.BookingAccepted,
		VenueID:   venueID,
		CreatedAt: l.clock.Now(),
	}
	err := l.store.WithinTx(ctx, func(q Queries) error {
		if _, err := q.VenueForDJ(ctx, venueID, djID); err != nil {
			if isNoRows(err) {
				return ErrVenueNotFound
			}
			return fmt.Errorf("venue for dj: %w", err)
		}
		return q.InsertBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordBookingCreated("dj")
	l.publish(ctx, queue.EventBookingCreatedByDJ, djID, b)
	return b, nil
}

// CreateAttendeeBooking records a request made through sess. Inside one
// transaction it re-validates the session, then checks in order the
// booking cap, that the session's venue is still active and that the song
// is in the DJ's catalog. On success booking_count grows by one.
func (l *BookingLedger) CreateAttendeeBooking(ctx context.Context, sess *model.Session, in BookingInput) (*AttendeeBooking, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		metrics.RecordBookingRejected(ErrBlankBookingField.Reason)
		return nil, err
	}
	now := l.clock.Now()
	var out AttendeeBooking
	var djID uint64
	err := l.store.WithinTx(ctx, func(q Queries) error {
		s, dj, err := l.lockLiveSession(ctx, q, sess, now)
		if err != nil {
			return err
		}
		djID = dj.ID

		limit := CapFromSetting(dj.MaxBookingsPerUser)
		if !limit.Allow(s.BookingCount) {
			return ErrRateLimitExceeded
		}

		venue, err := activeVenue(ctx, q, s.DJID)
		if err != nil {
			return err
		}
		if venue == nil || venue.ID != s.VenueID {
			return ErrVenueInactive
		}

		ok, err := q.SongExists(ctx, dj.ID, in.Song)
		if err != nil {
			return fmt.Errorf("song exists: %w", err)
		}
		if !ok {
			return ErrSongNotFound
		}

		sessionID := s.ID
		b := &model.Booking{
			UserName:  in.UserName,
			Song:      in.Song,
			Key:       in.Key,
			Status:    model.BookingPending,
			VenueID:   s.VenueID,
			SessionID: &sessionID,
			CreatedAt: now,
		}
		if err := q.InsertBooking(ctx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		count := s.BookingCount + 1
		if err := q.SetBookingCount(ctx, s.ID, count); err != nil {
			return fmt.Errorf("increment booking count: %w", err)
		}
		out = AttendeeBooking{Booking: b, Venue: venue, Cap: limit, Remaining: limit.Remaining(count)}
		return nil
	})
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Kind == KindPreconditionFailed {
			metrics.RecordBookingRejected(e.Reason)
		}
		return nil, err
	}
	metrics.RecordBookingCreated("attendee")
	l.publish(ctx, queue.EventBookingRequested, djID, out.Booking)
	return &out, nil
}

// ListForVenue returns every booking at a venue owned by djID, newest
// first.
func (l *BookingLedger) ListForVenue(ctx context.Context, djID, venueID uint64) ([]model.Booking, error) {
	var out []model.Booking
	err := l.store.Run(ctx, func(q Queries) error {
		if _, err := q.VenueForDJ(ctx, venueID, djID); err != nil {
			if isNoRows(err) {
				return ErrVenueNotFound
			}
			return fmt.Errorf("venue for dj: %w", err)
		}
		var err error
		out, err = q.BookingsForVenue(ctx, venueID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListForSession returns the bookings created through sess at the DJ's
// currently active venue, newest first. A venue change is reported
// through VenueInactive rather than as an error.
func (l *BookingLedger) ListForSession(ctx context.Context, sess *model.Session) (*SessionBookings, error) {
	out := SessionBookings{Bookings: []model.Booking{}}
	err := l.store.Run(ctx, func(q Queries) error {
		s, err := q.SessionByID(ctx, sess.ID)
		if isNoRows(err) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("session by id: %w", err)
		}
		dj, err := q.DJByID(ctx, s.DJID)
		if isNoRows(err) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("session dj: %w", err)
		}
		out.Cap = CapFromSetting(dj.MaxBookingsPerUser)
		out.Remaining = out.Cap.Remaining(s.BookingCount)

		venue, err := activeVenue(ctx, q, s.DJID)
		if err != nil {
			return err
		}
		out.Venue = venue
		if venue == nil || venue.ID != s.VenueID {
			out.VenueInactive = true
			return nil
		}
		bookings, err := q.BookingsForSession(ctx, s.ID, venue.ID)
		if err != nil {
			return fmt.Errorf("bookings for session: %w", err)
		}
		if bookings != nil {
			out.Bookings = bookings
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Accept marks a booking accepted. Accepting twice is a no-op.
func (l *BookingLedger) Accept(ctx context.Context, djID, bookingID uint64) (*model.Booking, error) {
	return l.setStatus(ctx, djID, bookingID, model.BookingAccepted, queue.EventBookingAccepted)
}

// Reject marks a booking rejected. Rejecting twice is a no-op.
func (l *BookingLedger) Reject(ctx context.Context, djID, bookingID uint64) (*model.Booking, error) {
	return l.setStatus(ctx, djID, bookingID, model.BookingRejected, queue.EventBookingRejected)
}

func (l *BookingLedger) setStatus(ctx context.Context, djID, bookingID uint64, status model.BookingStatus, evType queue.BookingEventType) (*model.Booking, error) {
	var (
		b       *model.Booking
		changed bool
	)
	err := l.store.WithinTx(ctx, func(q Queries) error {
		var err error
		b, err = q.BookingForDJ(ctx, bookingID, djID)
		if isNoRows(err) {
			return ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("booking for dj: %w", err)
		}
		if b.Status == status {
			return nil
		}
		if err := q.SetBookingStatus(ctx, bookingID, status); err != nil {
			return fmt.Errorf("set booking status: %w", err)
		}
		b.Status = status
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		l.publish(ctx, evType, djID, b)
	}
	return b, nil
}

// DeleteByDJ removes a single booking at one of the DJ's venues. The
// originating session's booking_count is left as is.
func (l *BookingLedger) DeleteByDJ(ctx context.Context, djID, bookingID uint64) error {
	var b *model.Booking
	err := l.store.WithinTx(ctx, func(q Queries) error {
		var err error
		b, err = q.BookingForDJ(ctx, bookingID, djID)
		if isNoRows(err) {
			return ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("booking for dj: %w", err)
		}
		return q.DeleteBooking(ctx, bookingID)
	})
	if err != nil {
		return err
	}
	metrics.RecordBookingsDeleted("dj", 1)
	l.publish(ctx, queue.EventBookingCancelled, djID, b)
	return nil
}

// DeleteAllForVenue clears every booking at one of the DJ's venues.
func (l *BookingLedger) DeleteAllForVenue(ctx context.Context, djID, venueID uint64) (int64, error) {
	var n int64
	err := l.store.WithinTx(ctx, func(q Queries) error {
		if _, err := q.VenueForDJ(ctx, venueID, djID); err != nil {
			if isNoRows(err) {
				return ErrVenueNotFound
			}
			return fmt.Errorf("venue for dj: %w", err)
		}
		var err error
		n, err = q.DeleteBookingsForVenue(ctx, venueID)
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordBookingsDeleted("dj", n)
	l.log.Info().Uint64("dj_id", djID).Uint64("venue_id", venueID).Int64("deleted", n).Msg("venue bookings cleared")
	return n, nil
}

// DeleteAllForDJ clears every booking at every venue of the DJ.
func (l *BookingLedger) DeleteAllForDJ(ctx context.Context, djID uint64) (int64, error) {
	var n int64
	err := l.store.WithinTx(ctx, func(q Queries) error {
		var err error
		n, err = q.DeleteBookingsForDJ(ctx, djID)
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordBookingsDeleted("dj", n)
	l.log.Info().Uint64("dj_id", djID).Int64("deleted", n).Msg("all bookings cleared")
	return n, nil
}

// DeleteByAttendee cancels one of the session's own pending bookings and
// gives the slot back. Bookings of other sessions are reported as not
// found.
func (l *BookingLedger) DeleteByAttendee(ctx context.Context, sess *model.Session, bookingID uint64) (*AttendeeDeletion, error) {
	now := l.clock.Now()
	var (
		out  AttendeeDeletion
		b    *model.Booking
		djID uint64
	)
	err := l.store.WithinTx(ctx, func(q Queries) error {
		s, dj, err := l.lockLiveSession(ctx, q, sess, now)
		if err != nil {
			return err
		}
		djID = dj.ID

		venue, err := activeVenue(ctx, q, s.DJID)
		if err != nil {
			return err
		}
		if venue == nil || venue.ID != s.VenueID {
			return ErrVenueInactive
		}

		b, err = q.BookingForSession(ctx, bookingID, s.ID)
		if isNoRows(err) {
			return ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("booking for session: %w", err)
		}
		if b.Status != model.BookingPending {
			return ErrBookingNotPending
		}
		if err := q.DeleteBooking(ctx, bookingID); err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}

		count := s.BookingCount - 1
		if count < 0 {
			count = 0
		}
		if err := q.SetBookingCount(ctx, s.ID, count); err != nil {
			return fmt.Errorf("decrement booking count: %w", err)
		}
		out = AttendeeDeletion{
			BookingID:    bookingID,
			BookingCount: count,
			Remaining:    CapFromSetting(dj.MaxBookingsPerUser).Remaining(count),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordBookingsDeleted("attendee", 1)
	l.publish(ctx, queue.EventBookingCancelled, djID, b)
	return &out, nil
}

// lockLiveSession locks the session row and re-checks that it still
// exists and has not expired.
func (l *BookingLedger) lockLiveSession(ctx context.Context, q Queries, sess *model.Session, now time.Time) (*model.Session, *model.DJ, error) {
	s, err := q.LockSession(ctx, sess.ID)
	if isNoRows(err) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock session: %w", err)
	}
	if s.Expired(now) {
		return nil, nil, ErrSessionExpired
	}
	dj, err := q.DJByID(ctx, s.DJID)
	if isNoRows(err) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("session dj: %w", err)
	}
	return s, dj, nil
}

func (l *BookingLedger) publish(ctx context.Context, typ queue.BookingEventType, djID uint64, b *model.Booking) {
	ev := queue.BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		DJID:       djID,
		VenueID:    b.VenueID,
		UserName:   b.UserName,
		Song:       b.Song,
		Key:        b.Key,
		Status:     string(b.Status),
		OccurredAt: l.clock.Now().Format(time.RFC3339),
	}
	if b.SessionID != nil {
		ev.SessionID = b.SessionID.String()
	}
	if err := l.events.PublishBookingEvent(ctx, ev); err != nil {
		l.log.Warn().Err(err).Str("type", string(typ)).Uint64("booking_id", b.ID).Msg("booking event not delivered")
	}
}
