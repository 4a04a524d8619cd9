package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/karaoke-booking/internal/model"
)

const sessionColumns = "id, dj_id, venue_id, created_at, expires_at, last_activity, user_agent, ip_address, booking_count"

func scanSession(row scanner) (*model.Session, error) {
	var (
		s         model.Session
		userAgent sql.NullString
		ip        sql.NullString
	)
	if err := row.Scan(&s.ID, &s.DJID, &s.VenueID, &s.CreatedAt, &s.ExpiresAt, &s.LastActivity,
		&userAgent, &ip, &s.BookingCount); err != nil {
		return nil, err
	}
	s.UserAgent = stringPtr(userAgent)
	s.IPAddress = stringPtr(ip)
	return &s, nil
}

func (q *Queries) InsertSession(ctx context.Context, s *model.Session) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.DJID, s.VenueID, s.CreatedAt, s.ExpiresAt, s.LastActivity,
		nullString(s.UserAgent), nullString(s.IPAddress), s.BookingCount)
	return err
}

func (q *Queries) SessionByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(q.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
}

// LockSession reads the session row with an exclusive lock so that the
// booking_count check and update of one attendee request cannot interleave
// with another request on the same session.
func (q *Queries) LockSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(q.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ? FOR UPDATE", id))
}

func (q *Queries) TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.db.ExecContext(ctx, "UPDATE sessions SET last_activity = ? WHERE id = ?", at, id)
	return err
}

func (q *Queries) SetBookingCount(ctx context.Context, id uuid.UUID, n int) error {
	_, err := q.db.ExecContext(ctx, "UPDATE sessions SET booking_count = ? WHERE id = ?", n, id)
	return err
}

// DeleteExpiredSessions removes sessions whose expiry is before now. The
// foreign key on bookings.session_id clears the reference of their
// bookings.
func (q *Queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
