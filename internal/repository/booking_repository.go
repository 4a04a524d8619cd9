package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/karaoke-booking/internal/model"
)

const bookingColumns = "b.id, b.user_name, b.song, b.song_key, b.status, b.venue_id, b.session_id, b.created_at"

func scanBooking(row scanner) (*model.Booking, error) {
	var (
		b         model.Booking
		sessionID uuid.NullUUID
	)
	if err := row.Scan(&b.ID, &b.UserName, &b.Song, &b.Key, &b.Status, &b.VenueID, &sessionID, &b.CreatedAt); err != nil {
		return nil, err
	}
	if sessionID.Valid {
		id := sessionID.UUID
		b.SessionID = &id
	}
	return &b, nil
}

func (q *Queries) scanBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertBooking stores b and fills its ID.
func (q *Queries) InsertBooking(ctx context.Context, b *model.Booking) error {
	var sessionID uuid.NullUUID
	if b.SessionID != nil {
		sessionID = uuid.NullUUID{UUID: *b.SessionID, Valid: true}
	}
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO bookings (user_name, song, song_key, status, venue_id, session_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		b.UserName, b.Song, b.Key, b.Status, b.VenueID, sessionID, b.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// BookingForDJ fetches a booking at one of the DJ's venues.
func (q *Queries) BookingForDJ(ctx context.Context, bookingID, djID uint64) (*model.Booking, error) {
	return scanBooking(q.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b JOIN venues v ON v.id = b.venue_id
		 WHERE b.id = ? AND v.dj_id = ?`, bookingID, djID))
}

// BookingForSession fetches a booking created through the session.
func (q *Queries) BookingForSession(ctx context.Context, bookingID uint64, sessionID uuid.UUID) (*model.Booking, error) {
	return scanBooking(q.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.id = ? AND b.session_id = ?", bookingID, sessionID))
}

func (q *Queries) SetBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error {
	_, err := q.db.ExecContext(ctx, "UPDATE bookings SET status = ? WHERE id = ?", status, bookingID)
	return err
}

func (q *Queries) DeleteBooking(ctx context.Context, bookingID uint64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", bookingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (q *Queries) DeleteBookingsForVenue(ctx context.Context, venueID uint64) (int64, error) {
	res, err := q.db.ExecContext(ctx, "DELETE FROM bookings WHERE venue_id = ?", venueID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteBookingsForDJ(ctx context.Context, djID uint64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"DELETE b FROM bookings b JOIN venues v ON v.id = b.venue_id WHERE v.dj_id = ?", djID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BookingsForVenue lists every booking at the venue, newest first.
func (q *Queries) BookingsForVenue(ctx context.Context, venueID uint64) ([]model.Booking, error) {
	return q.scanBookings(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.venue_id = ? ORDER BY b.created_at DESC, b.id DESC", venueID)
}

// BookingsForSession lists the session's bookings at venueID, newest first.
func (q *Queries) BookingsForSession(ctx context.Context, sessionID uuid.UUID, venueID uint64) ([]model.Booking, error) {
	return q.scanBookings(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.session_id = ? AND b.venue_id = ? ORDER BY b.created_at DESC, b.id DESC",
		sessionID, venueID)
}
