// Package servicetest provides an in-memory service.Store and a recording
// event publisher for tests. Transactions are serialized by a single
// mutex and applied to a copy of the data, so a failed transaction leaves
// nothing behind.
package servicetest

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/queue"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

type data struct {
	djs      map[uint64]model.DJ
	venues   map[uint64]model.Venue
	songs    []model.Song
	sessions map[uuid.UUID]model.Session
	bookings map[uint64]model.Booking
	nextID   uint64
}

func (d *data) clone() *data {
	c := &data{
		djs:      make(map[uint64]model.DJ, len(d.djs)),
		venues:   make(map[uint64]model.Venue, len(d.venues)),
		songs:    append([]model.Song(nil), d.songs...),
		sessions: make(map[uuid.UUID]model.Session, len(d.sessions)),
		bookings: make(map[uint64]model.Booking, len(d.bookings)),
		nextID:   d.nextID,
	}
	for k, v := range d.djs {
		c.djs[k] = v
	}
	for k, v := range d.venues {
		c.venues[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	return c
}

func (d *data) id() uint64 {
	d.nextID++
	return d.nextID
}

// MemStore is an in-memory service.Store.
type MemStore struct {
	mu sync.Mutex
	d  *data

	// Txs counts committed transactions.
	Txs int
}

var _ service.Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{d: &data{
		djs:      map[uint64]model.DJ{},
		venues:   map[uint64]model.Venue{},
		sessions: map[uuid.UUID]model.Session{},
		bookings: map[uint64]model.Booking{},
	}}
}

func (m *MemStore) Run(ctx context.Context, fn func(q service.Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&queries{d: m.d})
}

func (m *MemStore) WithinTx(ctx context.Context, fn func(q service.Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.d.clone()
	if err := fn(&queries{d: c}); err != nil {
		return err
	}
	m.d = c
	m.Txs++
	return nil
}

// AddDJ stores dj, assigning an id when zero. A zero cap setting defaults
// to unlimited.
func (m *MemStore) AddDJ(dj model.DJ) model.DJ {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dj.ID == 0 {
		dj.ID = m.d.id()
	}
	if dj.MaxBookingsPerUser == 0 {
		dj.MaxBookingsPerUser = service.UnlimitedSetting
	}
	m.d.djs[dj.ID] = dj
	return dj
}

// AddVenue stores v, assigning an id when zero.
func (m *MemStore) AddVenue(v model.Venue) model.Venue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == 0 {
		v.ID = m.d.id()
	}
	m.d.venues[v.ID] = v
	return v
}

// AddSongs adds titles to the DJ's catalog.
func (m *MemStore) AddSongs(djID uint64, titles ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range titles {
		m.d.songs = append(m.d.songs, model.Song{ID: m.d.id(), DJID: djID, FileName: t})
	}
}

// SetCap changes the DJ's max_bookings_per_user setting.
func (m *MemStore) SetCap(djID uint64, setting int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dj := m.d.djs[djID]
	dj.MaxBookingsPerUser = setting
	m.d.djs[djID] = dj
}

// ForceBookingCount overwrites a session's booking_count, bypassing the
// ledger.
func (m *MemStore) ForceBookingCount(id uuid.UUID, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.d.sessions[id]
	s.BookingCount = n
	m.d.sessions[id] = s
}

// Session returns a copy of the stored session.
func (m *MemStore) Session(id uuid.UUID) (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.d.sessions[id]
	return s, ok
}

// Venue returns a copy of the stored venue.
func (m *MemStore) Venue(id uint64) (model.Venue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.d.venues[id]
	return v, ok
}

// ActiveVenues returns how many venues of the DJ are active.
func (m *MemStore) ActiveVenues(djID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.d.venues {
		if v.DJID == djID && v.Active {
			n++
		}
	}
	return n
}

// SessionBookings counts stored bookings that reference the session.
func (m *MemStore) SessionBookings(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.d.bookings {
		if b.SessionID != nil && *b.SessionID == id {
			n++
		}
	}
	return n
}

// BookingCount returns the number of stored bookings.
func (m *MemStore) BookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.d.bookings)
}

type queries struct{ d *data }

func (q *queries) DJByID(_ context.Context, id uint64) (*model.DJ, error) {
	dj, ok := q.d.djs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &dj, nil
}

func (q *queries) DJByQRCode(_ context.Context, qrCodeID string) (*model.DJ, error) {
	for _, dj := range q.d.djs {
		if dj.QRCodeID == qrCodeID {
			dj := dj
			return &dj, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (q *queries) VenueForDJ(_ context.Context, venueID, djID uint64) (*model.Venue, error) {
	v, ok := q.d.venues[venueID]
	if !ok || v.DJID != djID {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (q *queries) ActiveVenue(_ context.Context, djID uint64) (*model.Venue, error) {
	var found *model.Venue
	for _, v := range q.d.venues {
		if v.DJID == djID && v.Active {
			v := v
			if found == nil || v.ID < found.ID {
				found = &v
			}
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

func (q *queries) LockVenuesForDJ(_ context.Context, djID uint64) ([]model.Venue, error) {
	var out []model.Venue
	for _, v := range q.d.venues {
		if v.DJID == djID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *queries) DeactivateVenues(_ context.Context, djID uint64) error {
	for id, v := range q.d.venues {
		if v.DJID == djID && v.Active {
			v.Active = false
			q.d.venues[id] = v
		}
	}
	return nil
}

func (q *queries) SetVenueActive(_ context.Context, venueID uint64, active bool) error {
	v, ok := q.d.venues[venueID]
	if !ok {
		return sql.ErrNoRows
	}
	v.Active = active
	q.d.venues[venueID] = v
	return nil
}

func (q *queries) SongExists(_ context.Context, djID uint64, title string) (bool, error) {
	for _, s := range q.d.songs {
		if s.DJID == djID && strings.EqualFold(s.FileName, title) {
			return true, nil
		}
	}
	return false, nil
}

func (q *queries) InsertSession(_ context.Context, s *model.Session) error {
	q.d.sessions[s.ID] = *s
	return nil
}

func (q *queries) SessionByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	s, ok := q.d.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (q *queries) LockSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return q.SessionByID(ctx, id)
}

func (q *queries) TouchSession(_ context.Context, id uuid.UUID, at time.Time) error {
	s, ok := q.d.sessions[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.LastActivity = at
	q.d.sessions[id] = s
	return nil
}

func (q *queries) SetBookingCount(_ context.Context, id uuid.UUID, n int) error {
	s, ok := q.d.sessions[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.BookingCount = n
	q.d.sessions[id] = s
	return nil
}

func (q *queries) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, s := range q.d.sessions {
		if s.ExpiresAt.Before(now) {
			delete(q.d.sessions, id)
			n++
			for bid, b := range q.d.bookings {
				if b.SessionID != nil && *b.SessionID == id {
					b.SessionID = nil
					q.d.bookings[bid] = b
				}
			}
		}
	}
	return n, nil
}

func (q *queries) InsertBooking(_ context.Context, b *model.Booking) error {
	b.ID = q.d.id()
	q.d.bookings[b.ID] = *b
	return nil
}

func (q *queries) BookingForDJ(_ context.Context, bookingID, djID uint64) (*model.Booking, error) {
	b, ok := q.d.bookings[bookingID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if v, ok := q.d.venues[b.VenueID]; !ok || v.DJID != djID {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (q *queries) BookingForSession(_ context.Context, bookingID uint64, sessionID uuid.UUID) (*model.Booking, error) {
	b, ok := q.d.bookings[bookingID]
	if !ok || b.SessionID == nil || *b.SessionID != sessionID {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (q *queries) SetBookingStatus(_ context.Context, bookingID uint64, status model.BookingStatus) error {
	b, ok := q.d.bookings[bookingID]
	if !ok {
		return sql.ErrNoRows
	}
	b.Status = status
	q.d.bookings[bookingID] = b
	return nil
}

func (q *queries) DeleteBooking(_ context.Context, bookingID uint64) error {
	delete(q.d.bookings, bookingID)
	return nil
}

func (q *queries) DeleteBookingsForVenue(_ context.Context, venueID uint64) (int64, error) {
	var n int64
	for id, b := range q.d.bookings {
		if b.VenueID == venueID {
			delete(q.d.bookings, id)
			n++
		}
	}
	return n, nil
}

func (q *queries) DeleteBookingsForDJ(_ context.Context, djID uint64) (int64, error) {
	var n int64
	for id, b := range q.d.bookings {
		if v, ok := q.d.venues[b.VenueID]; ok && v.DJID == djID {
			delete(q.d.bookings, id)
			n++
		}
	}
	return n, nil
}

func (q *queries) BookingsForVenue(_ context.Context, venueID uint64) ([]model.Booking, error) {
	return q.collect(func(b model.Booking) bool { return b.VenueID == venueID }), nil
}

func (q *queries) BookingsForSession(_ context.Context, sessionID uuid.UUID, venueID uint64) ([]model.Booking, error) {
	return q.collect(func(b model.Booking) bool {
		return b.VenueID == venueID && b.SessionID != nil && *b.SessionID == sessionID
	}), nil
}

// collect returns matching bookings ordered newest first.
func (q *queries) collect(match func(model.Booking) bool) []model.Booking {
	var out []model.Booking
	for _, b := range q.d.bookings {
		if match(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Events records published booking events.
type Events struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (e *Events) PublishBookingEvent(_ context.Context, ev queue.BookingEvent) error {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
	return nil
}

// Types returns the recorded event types in publish order.
func (e *Events) Types() []queue.BookingEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]queue.BookingEventType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}
