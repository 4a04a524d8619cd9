package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/karaoke-booking/internal/clock"
	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/service"
	"github.com/iliyamo/karaoke-booking/internal/service/servicetest"
)

var start = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

type fixture struct {
	store    *servicetest.MemStore
	clock    *clock.FakeClock
	events   *servicetest.Events
	venues   *service.VenueRegistry
	sessions *service.SessionManager
	ledger   *service.BookingLedger
	dj       model.DJ
	venue    model.Venue
}

// newFixture seeds one DJ with an active venue and a small catalog.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := servicetest.NewMemStore()
	clk := clock.Fake(start)
	events := &servicetest.Events{}
	logger := zerolog.Nop()

	dj := store.AddDJ(model.DJ{StageName: "DJ Nova", QRCodeID: "DJ-NOVA-2026-AB12CD34"})
	venue := store.AddVenue(model.Venue{DJID: dj.ID, Name: "Blue Note", Active: true})
	store.AddSongs(dj.ID, "Volare", "Azzurro", "Bohemian Rhapsody")

	return &fixture{
		store:    store,
		clock:    clk,
		events:   events,
		venues:   service.NewVenueRegistry(store, logger),
		sessions: service.NewSessionManager(store, clk, service.DefaultSessionDuration, logger),
		ledger:   service.NewBookingLedger(store, clk, events, logger),
		dj:       dj,
		venue:    venue,
	}
}

func (f *fixture) newSession(t *testing.T) *model.Session {
	t.Helper()
	v, err := f.sessions.Start(context.Background(), f.dj.QRCodeID, service.RequestMeta{UserAgent: "test", IPAddress: "127.0.0.1"})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return v.Session
}

func (f *fixture) book(t *testing.T, s *model.Session, song string) *service.AttendeeBooking {
	t.Helper()
	res, err := f.ledger.CreateAttendeeBooking(context.Background(), s, service.BookingInput{UserName: "Giulia", Song: song})
	if err != nil {
		t.Fatalf("create attendee booking %q: %v", song, err)
	}
	return res
}

func (f *fixture) count(t *testing.T, s *model.Session) int {
	t.Helper()
	got, ok := f.store.Session(s.ID)
	if !ok {
		t.Fatalf("session %s missing", s.ID)
	}
	return got.BookingCount
}
