package queue

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatEventLine(t *testing.T) {
	line := formatEventLine(BookingEvent{
		Type:       EventBookingRequested,
		BookingID:  7,
		DJID:       1,
		VenueID:    2,
		SessionID:  "0b7d1b2e-9c61-4c1b-8a55-2f6d9a3b1c00",
		UserName:   "Giulia",
		Song:       "Volare",
		Key:        "+1",
		Status:     "pending",
		OccurredAt: "2026-03-01T21:00:00Z",
	})

	for _, want := range []string{
		"[2026-03-01T21:00:00Z] booking.requested",
		"booking_id=7",
		"session=0b7d1b2e-9c61-4c1b-8a55-2f6d9a3b1c00",
		`song="Volare"`,
		"status=pending",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q does not contain %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("line must end with a newline")
	}
}

func TestFormatEventLineDJOrigin(t *testing.T) {
	line := formatEventLine(BookingEvent{Type: EventBookingCreatedByDJ, BookingID: 1})
	if !strings.Contains(line, "| dj |") {
		t.Fatalf("expected dj origin marker in %q", line)
	}
}

func TestHandleMessageAppends(t *testing.T) {
	dir := t.TempDir()
	body, err := json.Marshal(BookingEvent{Type: EventBookingAccepted, BookingID: 3, Status: "accepted"})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := handleMessage(dir, body); err != nil {
			t.Fatalf("handleMessage: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, BookingLogFile))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "booking.accepted"); n != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", n, data)
	}
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := handleMessage(dir, []byte("not json")); !errors.Is(err, errMalformedEvent) {
		t.Fatalf("malformed body err = %v", err)
	}
	if err := handleMessage(dir, []byte(`{"booking_id":1}`)); !errors.Is(err, errMalformedEvent) {
		t.Fatalf("event without type err = %v", err)
	}
}

func TestHandleMessageDiskErrorIsRetryable(t *testing.T) {
	// A regular file where the log directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "logs")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(BookingEvent{Type: EventBookingRequested, BookingID: 4})
	if err != nil {
		t.Fatal(err)
	}
	err = handleMessage(blocker, body)
	if err == nil {
		t.Fatal("expected an error when the log directory cannot be created")
	}
	if errors.Is(err, errMalformedEvent) {
		t.Fatalf("disk error classified as malformed: %v", err)
	}
}
