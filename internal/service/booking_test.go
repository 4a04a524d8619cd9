package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/queue"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

func TestCapOfThree(t *testing.T) {
	f := newFixture(t)
	f.store.SetCap(f.dj.ID, 3)
	s := f.newSession(t)

	for i, want := range []int{2, 1, 0} {
		res := f.book(t, s, "Volare")
		n, ok := res.Remaining.Count()
		if !ok || n != want {
			t.Fatalf("booking %d: remaining = %d,%v want %d", i+1, n, ok, want)
		}
		if res.Booking.Status != model.BookingPending {
			t.Errorf("attendee booking status = %s, want pending", res.Booking.Status)
		}
	}

	_, err := f.ledger.CreateAttendeeBooking(context.Background(), s, service.BookingInput{UserName: "Giulia", Song: "Volare"})
	if !errors.Is(err, service.ErrRateLimitExceeded) {
		t.Fatalf("4th booking err = %v, want ErrRateLimitExceeded", err)
	}
	if got := f.count(t, s); got != 3 {
		t.Errorf("booking_count = %d, want 3", got)
	}
	if got := f.store.SessionBookings(s.ID); got != 3 {
		t.Errorf("stored bookings = %d, want 3", got)
	}
}

func TestUnlimitedCap(t *testing.T) {
	f := newFixture(t)
	s := f.newSession(t)
	for i := 0; i < 25; i++ {
		res := f.book(t, s, "Azzurro")
		if !res.Remaining.IsUnlimited() || !res.Cap.IsUnlimited() {
			t.Fatalf("booking %d reported a finite cap", i)
		}
	}
}

func TestPreconditionOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("rate limit before catalog", func(t *testing.T) {
		f := newFixture(t)
		f.store.SetCap(f.dj.ID, 1)
		s := f.newSession(t)
		f.book(t, s, "Volare")
		_, err := f.ledger.CreateAttendeeBooking(ctx, s, service.BookingInput{UserName: "A", Song: "Unknown"})
		if !errors.Is(err, service.ErrRateLimitExceeded) {
			t.Fatalf("err = %v, want ErrRateLimitExceeded", err)
		}
	})

	t.Run("venue before catalog", func(t *testing.T) {
		f := newFixture(t)
		s := f.newSession(t)
		if _, err := f.venues.Toggle(ctx, f.venue.ID, f.dj.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.ledger.CreateAttendeeBooking(ctx, s, service.BookingInput{UserName: "A", Song: "Unknown"})
		if !errors.Is(err, service.ErrVenueInactive) {
			t.Fatalf("err = %v, want ErrVenueInactive", err)
		}
	})

	t.Run("catalog", func(t *testing.T) {
		f := newFixture(t)
		s := f.newSession(t)
		_, err := f.ledger.CreateAttendeeBooking(ctx, s, service.BookingInput{UserName: "A", Song: "Unknown"})
		if !errors.Is(err, service.ErrSongNotFound) {
			t.Fatalf("err = %v, want ErrSongNotFound", err)
		}
		if service.KindOf(err) != service.KindPreconditionFailed {
			t.Errorf("kind = %v, want precondition_failed", service.KindOf(err))
		}
		if f.count(t, s) != 0 || f.store.BookingCount() != 0 {
			t.Error("failed booking left state behind")
		}
	})
}

func TestExpiredSessionCannotBook(t *testing.T) {
	f := newFixture(t)
	s := f.newSession(t)
	f.clock.Advance(6*time.Hour + time.Second)

	_, err := f.ledger.CreateAttendeeBooking(context.Background(), s, service.BookingInput{UserName: "A", Song: "Volare"})
	if !errors.Is(err, service.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestCreateDeleteRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newSession(t)
	f.book(t, s, "Volare")
	before := f.count(t, s)

	res := f.book(t, s, "Azzurro")
	del, err := f.ledger.DeleteByAttendee(ctx, s, res.Booking.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if del.BookingCount != before || f.count(t, s) != before {
		t.Fatalf("booking_count = %d (stored %d), want %d", del.BookingCount, f.count(t, s), before)
	}
	if f.store.SessionBookings(s.ID) != f.count(t, s) {
		t.Fatal("booking_count diverged from stored bookings")
	}
	want := []queue.BookingEventType{queue.EventBookingRequested, queue.EventBookingRequested, queue.EventBookingCancelled}
	got := f.events.Types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestAttendeeDeleteRules(t *testing.T) {
	ctx := context.Background()

	t.Run("only pending", func(t *testing.T) {
		f := newFixture(t)
		s := f.newSession(t)
		res := f.book(t, s, "Volare")
		if _, err := f.ledger.Accept(ctx, f.dj.ID, res.Booking.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.ledger.DeleteByAttendee(ctx, s, res.Booking.ID)
		if !errors.Is(err, service.ErrBookingNotPending) {
			t.Fatalf("err = %v, want ErrBookingNotPending", err)
		}
		if f.count(t, s) != 1 {
			t.Error("refused delete changed booking_count")
		}
	})

	t.Run("inactive venue", func(t *testing.T) {
		f := newFixture(t)
		s := f.newSession(t)
		res := f.book(t, s, "Volare")
		if _, err := f.venues.Toggle(ctx, f.venue.ID, f.dj.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.ledger.DeleteByAttendee(ctx, s, res.Booking.ID)
		if !errors.Is(err, service.ErrVenueInactive) {
			t.Fatalf("err = %v, want ErrVenueInactive", err)
		}
	})

	t.Run("count floors at zero", func(t *testing.T) {
		f := newFixture(t)
		s := f.newSession(t)
		res := f.book(t, s, "Volare")
		f.store.ForceBookingCount(s.ID, 0)
		del, err := f.ledger.DeleteByAttendee(ctx, s, res.Booking.ID)
		if err != nil {
			t.Fatal(err)
		}
		if del.BookingCount != 0 || f.count(t, s) != 0 {
			t.Fatalf("booking_count = %d, want 0", del.BookingCount)
		}
	})
}

func TestCrossSessionIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newSession(t)
	b := f.newSession(t)

	ra := f.book(t, a, "Volare")
	f.book(t, b, "Azzurro")

	_, err := f.ledger.DeleteByAttendee(ctx, b, ra.Booking.ID)
	if !errors.Is(err, service.ErrBookingNotFound) {
		t.Fatalf("err = %v, want ErrBookingNotFound", err)
	}

	list, err := f.ledger.ListForSession(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Bookings) != 1 || list.Bookings[0].ID != ra.Booking.ID {
		t.Fatalf("session A sees %+v", list.Bookings)
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newSession(t)
	res := f.book(t, s, "Volare")

	for i := 0; i < 2; i++ {
		b, err := f.ledger.Accept(ctx, f.dj.ID, res.Booking.ID)
		if err != nil {
			t.Fatalf("accept %d: %v", i, err)
		}
		if b.Status != model.BookingAccepted {
			t.Fatalf("status = %s", b.Status)
		}
	}
	accepted := 0
	for _, typ := range f.events.Types() {
		if typ == queue.EventBookingAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("accepted events = %d, want 1", accepted)
	}

	b, err := f.ledger.Reject(ctx, f.dj.ID, res.Booking.ID)
	if err != nil || b.Status != model.BookingRejected {
		t.Fatalf("reject = %+v, %v", b, err)
	}
}

func TestStatusChangeRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	s := f.newSession(t)
	res := f.book(t, s, "Volare")
	other := f.store.AddDJ(model.DJ{StageName: "Other", QRCodeID: "OTHER-2026-QQQQQQQQ"})

	_, err := f.ledger.Accept(context.Background(), other.ID, res.Booking.ID)
	if !errors.Is(err, service.ErrBookingNotFound) {
		t.Fatalf("err = %v, want ErrBookingNotFound", err)
	}
	if err := f.ledger.DeleteByDJ(context.Background(), other.ID, res.Booking.ID); !errors.Is(err, service.ErrBookingNotFound) {
		t.Fatalf("delete err = %v, want ErrBookingNotFound", err)
	}
}

func TestDJBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.ledger.CreateDJBooking(ctx, f.dj.ID, f.venue.ID, service.BookingInput{UserName: " Marco ", Song: "Not In Catalog"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != model.BookingAccepted || b.SessionID != nil {
		t.Fatalf("dj booking = %+v", b)
	}
	if b.Key != model.DefaultSongKey || b.UserName != "Marco" {
		t.Errorf("normalized fields = %q / %q", b.Key, b.UserName)
	}

	other := f.store.AddDJ(model.DJ{StageName: "Other", QRCodeID: "OTHER-2026-PPPPPPPP"})
	if _, err := f.ledger.CreateDJBooking(ctx, other.ID, f.venue.ID, service.BookingInput{UserName: "x", Song: "y"}); !errors.Is(err, service.ErrVenueNotFound) {
		t.Fatalf("foreign venue err = %v, want ErrVenueNotFound", err)
	}
}

func TestBlankBookingFieldsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newSession(t)

	_, err := f.ledger.CreateAttendeeBooking(ctx, s, service.BookingInput{UserName: "   ", Song: "Volare"})
	if !errors.Is(err, service.ErrBlankBookingField) {
		t.Fatalf("blank user_name err = %v, want ErrBlankBookingField", err)
	}
	if got := service.ReasonOf(err); got != "blank_booking_field" {
		t.Errorf("ReasonOf = %q", got)
	}
	if n := f.count(t, s); n != 0 {
		t.Errorf("booking_count = %d after rejected request, want 0", n)
	}

	_, err = f.ledger.CreateDJBooking(ctx, f.dj.ID, f.venue.ID, service.BookingInput{UserName: "Marco", Song: " \t "})
	if !errors.Is(err, service.ErrBlankBookingField) {
		t.Fatalf("blank song err = %v, want ErrBlankBookingField", err)
	}
	if n := f.store.BookingCount(); n != 0 {
		t.Errorf("%d bookings stored, want 0", n)
	}
	if got := service.ReasonOf(errors.New("boom")); got != "internal_error" {
		t.Errorf("ReasonOf(plain error) = %q", got)
	}
}

func TestListForVenueNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newSession(t)

	first := f.book(t, s, "Volare")
	f.clock.Advance(time.Minute)
	dj, err := f.ledger.CreateDJBooking(ctx, f.dj.ID, f.venue.ID, service.BookingInput{UserName: "Marco", Song: "Anything"})
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Minute)
	last := f.book(t, s, "Azzurro")

	list, err := f.ledger.ListForVenue(ctx, f.dj.ID, f.venue.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{last.Booking.ID, dj.ID, first.Booking.ID}
	if len(list) != len(want) {
		t.Fatalf("got %d bookings, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d = booking %d, want %d", i, list[i].ID, id)
		}
	}

	if _, err := f.ledger.ListForVenue(ctx, f.dj.ID+100, f.venue.ID); !errors.Is(err, service.ErrVenueNotFound) {
		t.Fatalf("foreign list err = %v", err)
	}
}

func TestListForSessionAfterVenueChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newSession(t)
	f.book(t, s, "Volare")

	second := f.store.AddVenue(model.Venue{DJID: f.dj.ID, Name: "Jazz Club"})
	if _, err := f.venues.Toggle(ctx, second.ID, f.dj.ID); err != nil {
		t.Fatal(err)
	}

	list, err := f.ledger.ListForSession(ctx, s)
	if err != nil {
		t.Fatalf("ListForSession must not fail on a venue change: %v", err)
	}
	if !list.VenueInactive || len(list.Bookings) != 0 {
		t.Fatalf("list = %+v, want empty with VenueInactive", list)
	}
	if list.Venue == nil || list.Venue.ID != second.ID {
		t.Errorf("list should report the new active venue")
	}
}

func TestDJDeletesDoNotRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newSession(t)
	res := f.book(t, s, "Volare")
	f.book(t, s, "Azzurro")

	if err := f.ledger.DeleteByDJ(ctx, f.dj.ID, res.Booking.ID); err != nil {
		t.Fatal(err)
	}
	if f.count(t, s) != 2 {
		t.Errorf("booking_count = %d after DJ delete, want 2", f.count(t, s))
	}

	n, err := f.ledger.DeleteAllForVenue(ctx, f.dj.ID, f.venue.ID)
	if err != nil || n != 1 {
		t.Fatalf("DeleteAllForVenue = %d, %v; want 1", n, err)
	}
	if _, err := f.ledger.DeleteAllForVenue(ctx, f.dj.ID+100, f.venue.ID); !errors.Is(err, service.ErrVenueNotFound) {
		t.Fatalf("foreign DeleteAllForVenue err = %v", err)
	}
}

func TestDeleteAllForDJ(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := f.store.AddVenue(model.Venue{DJID: f.dj.ID, Name: "Jazz Club"})
	other := f.store.AddDJ(model.DJ{StageName: "Other", QRCodeID: "OTHER-2026-RRRRRRRR"})
	otherVenue := f.store.AddVenue(model.Venue{DJID: other.ID, Name: "Elsewhere", Active: true})

	for _, v := range []uint64{f.venue.ID, second.ID} {
		if _, err := f.ledger.CreateDJBooking(ctx, f.dj.ID, v, service.BookingInput{UserName: "a", Song: "b"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.ledger.CreateDJBooking(ctx, other.ID, otherVenue.ID, service.BookingInput{UserName: "a", Song: "b"}); err != nil {
		t.Fatal(err)
	}

	n, err := f.ledger.DeleteAllForDJ(ctx, f.dj.ID)
	if err != nil || n != 2 {
		t.Fatalf("DeleteAllForDJ = %d, %v; want 2", n, err)
	}
	if f.store.BookingCount() != 1 {
		t.Fatal("another DJ's booking was deleted")
	}
}

func TestConcurrentBookingsRespectCap(t *testing.T) {
	f := newFixture(t)
	f.store.SetCap(f.dj.ID, 3)
	s := f.newSession(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.CreateAttendeeBooking(context.Background(), s, service.BookingInput{UserName: "G", Song: "Volare"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, service.ErrRateLimitExceeded):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 3 || limited != 9 {
		t.Fatalf("ok=%d limited=%d, want 3 and 9", ok, limited)
	}
	if f.count(t, s) != 3 || f.store.SessionBookings(s.ID) != 3 {
		t.Fatalf("count=%d stored=%d, want 3", f.count(t, s), f.store.SessionBookings(s.ID))
	}
}
