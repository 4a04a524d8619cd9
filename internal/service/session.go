package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/karaoke-booking/internal/clock"
	"github.com/iliyamo/karaoke-booking/internal/metrics"
	"github.com/iliyamo/karaoke-booking/internal/model"
)

// DefaultSessionDuration is how long an attendee session lives after
// creation. The session cookie carries the same lifetime.
const DefaultSessionDuration = 6 * time.Hour

// RequestMeta is best-effort audit data captured when a session is
// created.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

// EntryStatus is the outcome of resolving a scanned QR code.
type EntryStatus int

const (
	// EntryNotFound means no DJ owns the QR code.
	EntryNotFound EntryStatus = iota
	// EntryNoActiveVenue means the DJ exists but is not performing anywhere.
	EntryNoActiveVenue
	// EntryReady means the attendee can enter; Existing is set when the
	// presented credential already names a live session for this DJ and venue.
	EntryReady
)

// EntryOutcome is returned by ResolveEntry.
type EntryOutcome struct {
	Status   EntryStatus
	DJ       *model.DJ
	Venue    *model.Venue
	Existing *model.Session
}

// Validation is the result of a successful session check.
type Validation struct {
	Session *model.Session
	DJ      *model.DJ
	Venue   *model.Venue
}

// SessionManager issues, resolves and validates attendee sessions.
// Session state is re-derived from the stored row and the DJ's current
// active venue on every call; nothing is cached.
type SessionManager struct {
	store    Store
	clock    clock.Clock
	duration time.Duration
	log      zerolog.Logger
}

// NewSessionManager returns a SessionManager. A non-positive duration
// falls back to DefaultSessionDuration.
func NewSessionManager(store Store, clk clock.Clock, duration time.Duration, logger zerolog.Logger) *SessionManager {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &SessionManager{
		store:    store,
		clock:    clk,
		duration: duration,
		log:      logger.With().Str("component", "session-manager").Logger(),
	}
}

// Duration is the lifetime given to new sessions.
func (m *SessionManager) Duration() time.Duration { return m.duration }

// Now returns the manager's notion of the current time.
func (m *SessionManager) Now() time.Time { return m.clock.Now() }

// ParseCredential turns the raw cookie value into a session id.
func ParseCredential(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, ErrUnauthenticated
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

// ResolveEntry handles a QR scan. An unknown QR code or a DJ without an
// active venue are outcomes, not errors. When credential names a live
// session for the same DJ and the same active venue, its last activity is
// refreshed and it is returned as Existing.
func (m *SessionManager) ResolveEntry(ctx context.Context, qrCodeID, credential string) (EntryOutcome, error) {
	var out EntryOutcome
	err := m.store.Run(ctx, func(q Queries) error {
		dj, err := q.DJByQRCode(ctx, qrCodeID)
		if isNoRows(err) {
			out.Status = EntryNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("dj by qr: %w", err)
		}
		out.DJ = dj

		venue, err := activeVenue(ctx, q, dj.ID)
		if err != nil {
			return err
		}
		if venue == nil {
			out.Status = EntryNoActiveVenue
			return nil
		}
		out.Venue = venue
		out.Status = EntryReady

		id, err := ParseCredential(credential)
		if err != nil {
			return nil
		}
		s, err := q.SessionByID(ctx, id)
		if isNoRows(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("session by id: %w", err)
		}
		now := m.clock.Now()
		if s.DJID != dj.ID || s.VenueID != venue.ID || s.Expired(now) {
			return nil
		}
		if err := q.TouchSession(ctx, s.ID, now); err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		s.LastActivity = now
		out.Existing = s
		return nil
	})
	if err != nil {
		return EntryOutcome{}, err
	}
	return out, nil
}

// Create opens a new session for dj at venue. venue must be the DJ's
// active venue at the moment of creation.
func (m *SessionManager) Create(ctx context.Context, dj *model.DJ, venue *model.Venue, meta RequestMeta) (*model.Session, error) {
	// Session times are stored as DATETIME(6).
	now := m.clock.Now().Truncate(time.Microsecond)
	s := &model.Session{
		ID:           uuid.New(),
		DJID:         dj.ID,
		VenueID:      venue.ID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.duration),
		LastActivity: now,
		UserAgent:    optional(meta.UserAgent, 0),
		IPAddress:    optional(meta.IPAddress, 45),
	}
	err := m.store.WithinTx(ctx, func(q Queries) error {
		active, err := activeVenue(ctx, q, dj.ID)
		if err != nil {
			return err
		}
		if active == nil || active.ID != venue.ID {
			return ErrNoActiveVenue
		}
		return q.InsertSession(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	metrics.SessionsCreatedTotal.Inc()
	m.log.Info().Str("session_id", s.ID.String()).Uint64("dj_id", dj.ID).Uint64("venue_id", venue.ID).Msg("session created")
	return s, nil
}

// Start resolves the DJ behind qrCodeID and its active venue, then
// creates a session there.
func (m *SessionManager) Start(ctx context.Context, qrCodeID string, meta RequestMeta) (*Validation, error) {
	var (
		dj    *model.DJ
		venue *model.Venue
	)
	err := m.store.Run(ctx, func(q Queries) error {
		var err error
		dj, err = q.DJByQRCode(ctx, qrCodeID)
		if isNoRows(err) {
			return ErrDJNotFound
		}
		if err != nil {
			return fmt.Errorf("dj by qr: %w", err)
		}
		venue, err = activeVenue(ctx, q, dj.ID)
		if err != nil {
			return err
		}
		if venue == nil {
			return ErrNoActiveVenue
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s, err := m.Create(ctx, dj, venue, meta)
	if err != nil {
		return nil, err
	}
	return &Validation{Session: s, DJ: dj, Venue: venue}, nil
}

// Validate is the gate for every attendee-facing write. It fails with
// ErrUnauthenticated, ErrSessionNotFound, ErrSessionExpired or
// ErrVenueNoLongerActive, and refreshes last activity on success.
func (m *SessionManager) Validate(ctx context.Context, credential string) (*Validation, error) {
	return m.check(ctx, credential, true)
}

// Authenticate is Validate without the active-venue check. Read paths
// use it so that they can report a venue change instead of failing.
func (m *SessionManager) Authenticate(ctx context.Context, credential string) (*Validation, error) {
	return m.check(ctx, credential, false)
}

func (m *SessionManager) check(ctx context.Context, credential string, requireActiveVenue bool) (*Validation, error) {
	id, err := ParseCredential(credential)
	if err != nil {
		return nil, m.reject(err)
	}
	var out Validation
	err = m.store.Run(ctx, func(q Queries) error {
		s, err := q.SessionByID(ctx, id)
		if isNoRows(err) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("session by id: %w", err)
		}
		now := m.clock.Now()
		if s.Expired(now) {
			return ErrSessionExpired
		}

		var venue *model.Venue
		if requireActiveVenue {
			venue, err = activeVenue(ctx, q, s.DJID)
			if err != nil {
				return err
			}
			if venue == nil || venue.ID != s.VenueID {
				return ErrVenueNoLongerActive
			}
		} else {
			venue, err = q.VenueForDJ(ctx, s.VenueID, s.DJID)
			if isNoRows(err) {
				return ErrSessionNotFound
			}
			if err != nil {
				return fmt.Errorf("session venue: %w", err)
			}
		}

		dj, err := q.DJByID(ctx, s.DJID)
		if isNoRows(err) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("session dj: %w", err)
		}

		if err := q.TouchSession(ctx, s.ID, now); err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		s.LastActivity = now
		out = Validation{Session: s, DJ: dj, Venue: venue}
		return nil
	})
	if err != nil {
		return nil, m.reject(err)
	}
	return &out, nil
}

func (m *SessionManager) reject(err error) error {
	var e *Error
	if errors.As(err, &e) {
		metrics.RecordSessionRejected(e.Reason)
	}
	return err
}

// CleanupExpired deletes every session whose expiry is in the past and
// returns how many were removed. Bookings keep their rows with the
// session reference cleared.
func (m *SessionManager) CleanupExpired(ctx context.Context) (int64, error) {
	now := m.clock.Now()
	var n int64
	err := m.store.Run(ctx, func(q Queries) error {
		var err error
		n, err = q.DeleteExpiredSessions(ctx, now)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	metrics.RecordSessionsCleaned(n)
	if n > 0 {
		m.log.Info().Int64("deleted", n).Msg("expired sessions cleaned")
	}
	return n, nil
}

// optional trims s and returns nil when it is empty. A positive limit
// truncates the value to fit its column.
func optional(s string, limit int) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if limit > 0 && len(s) > limit {
		s = s[:limit]
	}
	return &s
}
