package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/handler"
	"github.com/iliyamo/karaoke-booking/internal/middleware"
)

// AttendeeDeps groups what the attendee-facing routes need.
type AttendeeDeps struct {
	Sessions  *handler.SessionHandler
	Bookings  *handler.BookingHandler
	Songs     *handler.SongHandler
	Checker   middleware.SessionChecker
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
	JWTSecret string
}

// RegisterAttendee registers the QR flow, the public catalog and the
// cookie-authenticated booking routes. Writes are rate limited per
// session.
func RegisterAttendee(e *echo.Echo, d AttendeeDeps) {
	limit := d.RateLimit
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	cache := d.Cache
	if cache == nil {
		cache = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	s := e.Group("/v1/sessions")
	s.GET("/qr-flow/:qr", d.Sessions.QRFlow)
	s.POST("/create/:qr", d.Sessions.Create, limit)
	s.GET("/validate", d.Sessions.Validate, middleware.RequireSession(d.Checker, middleware.SessionStrict))
	s.POST("/cleanup", d.Sessions.Cleanup, djOnly(d.JWTSecret)...)

	// A cookie, if present, is checked before the cache can answer.
	e.GET("/v1/public/:qr/songs", d.Songs.Public,
		middleware.RequireSession(d.Checker, middleware.SessionOptional), cache)

	// The ledger re-checks the venue inside its transaction, so the soft
	// gate keeps the cap error ahead of the venue error.
	soft := middleware.RequireSession(d.Checker, middleware.SessionSoft)
	e.POST("/v1/bookings/user", d.Bookings.CreateForSession, soft, limit)
	e.GET("/v1/bookings/user/my-bookings", d.Bookings.MyBookings, soft)
	e.DELETE("/v1/bookings/user/:id", d.Bookings.DeleteForSession, soft, limit)
}
