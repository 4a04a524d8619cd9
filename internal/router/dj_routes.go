package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/handler"
	"github.com/iliyamo/karaoke-booking/internal/middleware"
	"github.com/iliyamo/karaoke-booking/internal/utils"
)

// djOnly returns the middleware chain of every DJ-scoped route.
func djOnly(jwtSecret string) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(utils.RoleDJ)}
}

// RegisterVenues registers the venue management routes.
func RegisterVenues(e *echo.Echo, h *handler.VenueHandler, jwtSecret string) {
	g := e.Group("/v1/venues", djOnly(jwtSecret)...)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/active", h.Active)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/toggle", h.Toggle)
}

// RegisterSongs registers the catalog management routes.
func RegisterSongs(e *echo.Echo, h *handler.SongHandler, jwtSecret string) {
	g := e.Group("/v1/songs", djOnly(jwtSecret)...)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/bulk", h.Bulk)
	g.DELETE("/:id", h.Delete)
	g.DELETE("", h.Clear)
}

// RegisterDJBookings registers the DJ booking board. Static segments
// ("all", "venue") win over the :id parameter in echo's router.
func RegisterDJBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	mw := djOnly(jwtSecret)
	e.GET("/v1/bookings", h.List, mw...)
	e.POST("/v1/bookings", h.Create, mw...)
	e.POST("/v1/bookings/:id/accept", h.Accept, mw...)
	e.POST("/v1/bookings/:id/reject", h.Reject, mw...)
	e.DELETE("/v1/bookings/:id", h.Delete, mw...)
	e.DELETE("/v1/bookings/venue/:venue_id", h.DeleteVenue, mw...)
	e.DELETE("/v1/bookings/all", h.DeleteAll, mw...)
}
