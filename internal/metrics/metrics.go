// Package metrics exposes Prometheus counters for the session and
// booking flows. The collectors register with the default registry and
// are served by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreatedTotal counts attendee sessions opened through a QR code.
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "karaoke_sessions_created_total",
		Help: "Total number of attendee sessions created",
	})

	// SessionRejectionsTotal counts failed session validations by reason.
	SessionRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_session_rejections_total",
			Help: "Total number of rejected session validations",
		},
		[]string{"reason"},
	)

	// SessionsCleanedTotal counts expired sessions removed by the sweep.
	SessionsCleanedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "karaoke_sessions_cleaned_total",
		Help: "Total number of expired sessions deleted",
	})

	// BookingsCreatedTotal counts bookings by origin (dj or attendee).
	BookingsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_bookings_created_total",
			Help: "Total number of bookings created",
		},
		[]string{"origin"},
	)

	// BookingRejectionsTotal counts attendee booking attempts refused by a precondition.
	BookingRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_booking_rejections_total",
			Help: "Total number of attendee booking attempts refused",
		},
		[]string{"reason"},
	)

	// BookingsDeletedTotal counts deleted bookings by actor (dj or attendee).
	BookingsDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_bookings_deleted_total",
			Help: "Total number of bookings deleted",
		},
		[]string{"actor"},
	)

	// VenueTogglesTotal counts venue toggles by resulting state.
	VenueTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_venue_toggles_total",
			Help: "Total number of venue activity toggles",
		},
		[]string{"state"},
	)
)

// RecordSessionRejected increments the rejection counter for reason.
func RecordSessionRejected(reason string) {
	SessionRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordBookingCreated increments the creation counter for origin.
func RecordBookingCreated(origin string) {
	BookingsCreatedTotal.WithLabelValues(origin).Inc()
}

// RecordBookingRejected increments the attendee refusal counter for reason.
func RecordBookingRejected(reason string) {
	BookingRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordBookingsDeleted adds n deletions for actor.
func RecordBookingsDeleted(actor string, n int64) {
	if n <= 0 {
		return
	}
	BookingsDeletedTotal.WithLabelValues(actor).Add(float64(n))
}

// RecordVenueToggle increments the toggle counter for the new state.
func RecordVenueToggle(active bool) {
	state := "inactive"
	if active {
		state = "active"
	}
	VenueTogglesTotal.WithLabelValues(state).Inc()
}

// RecordSessionsCleaned adds n swept sessions.
func RecordSessionsCleaned(n int64) {
	if n <= 0 {
		return
	}
	SessionsCleanedTotal.Add(float64(n))
}
