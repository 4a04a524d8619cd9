package handler // handler defines the HTTP handlers of the karaoke API

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/middleware"
	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

const dbTimeout = 5 * time.Second

var errNoDJ = errors.New("invalid dj_id in context")

// getDJID extracts the authenticated DJ id stored by the JWT middleware.
func getDJID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.ContextDJID).(type) {
	case uint64:
		if t != 0 {
			return t, nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
			return n, nil
		}
	}
	return 0, errNoDJ
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	return n, err == nil && n > 0
}

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// statusFor maps a service error kind to an HTTP status.
func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthenticated, service.KindExpired:
		return http.StatusUnauthorized
	case service.KindPreconditionFailed:
		switch {
		case errors.Is(err, service.ErrRateLimitExceeded):
			return http.StatusTooManyRequests
		case errors.Is(err, service.ErrBookingNotPending):
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case service.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError answers with the status and body for err. Internal errors are
// logged and never leak their message.
func writeError(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		return c.JSON(status, echo.Map{"error": "internal server error", "code": "internal_error"})
	}
	var se *service.Error
	errors.As(err, &se)
	return c.JSON(status, echo.Map{"error": se.Message, "code": service.ReasonOf(err)})
}

// capValue renders a cap for JSON: the number, or nil when unlimited.
func capValue(c service.BookingCap) any {
	if n, ok := c.Limit(); ok {
		return n
	}
	return nil
}

func remainingValue(r service.Remaining) any {
	if n, ok := r.Count(); ok {
		return n
	}
	return nil
}

type venueJSON struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	Capacity  *int      `json:"capacity,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toVenueJSON(v *model.Venue) *venueJSON {
	if v == nil {
		return nil
	}
	return &venueJSON{ID: v.ID, Name: v.Name, Address: v.Address, Capacity: v.Capacity, Notes: v.Notes, Active: v.Active, CreatedAt: v.CreatedAt}
}

type bookingJSON struct {
	ID        uint64              `json:"id"`
	UserName  string              `json:"user_name"`
	Song      string              `json:"song"`
	Key       string              `json:"key"`
	Status    model.BookingStatus `json:"status"`
	VenueID   uint64              `json:"venue_id"`
	VenueName string              `json:"venue_name,omitempty"`
	SessionID *string             `json:"session_id"`
	CreatedAt time.Time           `json:"created_at"`
	CanDelete *bool               `json:"can_delete,omitempty"`
}

func toBookingJSON(b *model.Booking) bookingJSON {
	out := bookingJSON{
		ID:        b.ID,
		UserName:  b.UserName,
		Song:      b.Song,
		Key:       b.Key,
		Status:    b.Status,
		VenueID:   b.VenueID,
		CreatedAt: b.CreatedAt,
	}
	if b.SessionID != nil {
		s := b.SessionID.String()
		out.SessionID = &s
	}
	return out
}
