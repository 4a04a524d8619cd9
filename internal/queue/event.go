// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

// BookingQueueName is the durable queue carrying booking lifecycle events.
const BookingQueueName = "booking.events"

// BookingEventType names what happened to a booking.
type BookingEventType string

const (
	EventBookingRequested   BookingEventType = "booking.requested"
	EventBookingCreatedByDJ BookingEventType = "booking.created_by_dj"
	EventBookingAccepted    BookingEventType = "booking.accepted"
	EventBookingRejected    BookingEventType = "booking.rejected"
	EventBookingCancelled   BookingEventType = "booking.cancelled"
)

// BookingEvent is published after a booking change commits. It carries
// enough information for downstream consumers to log or notify without
// querying the primary database.
type BookingEvent struct {
	Type       BookingEventType `json:"type"`
	BookingID  uint64           `json:"booking_id"`
	DJID       uint64           `json:"dj_id"`
	VenueID    uint64           `json:"venue_id"`
	SessionID  string           `json:"session_id,omitempty"`
	UserName   string           `json:"user_name"`
	Song       string           `json:"song"`
	Key        string           `json:"key"`
	Status     string           `json:"status"`
	OccurredAt string           `json:"occurred_at"`
}
