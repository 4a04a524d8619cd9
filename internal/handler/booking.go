package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/middleware"
	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

// BookingHandler serves both the DJ booking board and the attendee
// request endpoints.
type BookingHandler struct {
	Ledger *service.BookingLedger
}

func NewBookingHandler(ledger *service.BookingLedger) *BookingHandler {
	if ledger == nil {
		panic("nil ledger passed to NewBookingHandler")
	}
	return &BookingHandler{Ledger: ledger}
}

type djBookingReq struct {
	VenueID  uint64 `json:"venue_id" validate:"required"`
	UserName string `json:"user_name" validate:"required,notblank,max=100"`
	Song     string `json:"song" validate:"required,notblank,max=255"`
	Key      string `json:"key" validate:"max=10"`
}

type attendeeBookingReq struct {
	UserName string `json:"user_name" query:"user_name" validate:"required,notblank,max=100"`
	Song     string `json:"song" query:"song" validate:"required,notblank,max=255"`
	Key      string `json:"key" query:"key" validate:"max=10"`
}

func bookingList(bs []model.Booking) []bookingJSON {
	out := make([]bookingJSON, 0, len(bs))
	for i := range bs {
		out = append(out, toBookingJSON(&bs[i]))
	}
	return out
}

// ----- DJ endpoints -----

// List returns every booking at one of the DJ's venues, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	venueID, err := strconv.ParseUint(c.QueryParam("venue_id"), 10, 64)
	if err != nil || venueID == 0 {
		return badRequest(c, "venue_id is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	bs, err := h.Ledger.ListForVenue(ctx, djID, venueID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bookingList(bs))
}

// Create records a booking typed in by the DJ.
func (h *BookingHandler) Create(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req djBookingReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	b, err := h.Ledger.CreateDJBooking(ctx, djID, req.VenueID, service.BookingInput{
		UserName: req.UserName, Song: req.Song, Key: req.Key,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingJSON(b))
}

// Accept marks a booking accepted.
func (h *BookingHandler) Accept(c echo.Context) error {
	return h.setStatus(c, h.Ledger.Accept)
}

// Reject marks a booking rejected.
func (h *BookingHandler) Reject(c echo.Context) error {
	return h.setStatus(c, h.Ledger.Reject)
}

func (h *BookingHandler) setStatus(c echo.Context, apply func(ctx context.Context, djID, bookingID uint64) (*model.Booking, error)) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	b, err := apply(ctx, djID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingJSON(b))
}

// Delete removes one booking.
func (h *BookingHandler) Delete(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Ledger.DeleteByDJ(ctx, djID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteVenue clears the bookings of one venue.
func (h *BookingHandler) DeleteVenue(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	venueID, ok := paramID(c, "venue_id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	n, err := h.Ledger.DeleteAllForVenue(ctx, djID, venueID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n, "venue_id": venueID})
}

// DeleteAll clears the bookings of every venue of the DJ.
func (h *BookingHandler) DeleteAll(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	n, err := h.Ledger.DeleteAllForDJ(ctx, djID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// ----- attendee endpoints -----

// CreateForSession records a song request from the session behind the
// cookie. The body may be JSON or query parameters.
func (h *BookingHandler) CreateForSession(c echo.Context) error {
	v := middleware.CurrentSession(c)
	if v == nil {
		return writeError(c, service.ErrUnauthenticated)
	}
	var req attendeeBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Song == "" && req.UserName == "" {
		// Older clients send the fields as query parameters.
		_ = (&echo.DefaultBinder{}).BindQueryParams(c, &req)
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	res, err := h.Ledger.CreateAttendeeBooking(ctx, v.Session, service.BookingInput{
		UserName: req.UserName, Song: req.Song, Key: req.Key,
	})
	if err != nil {
		return writeError(c, err)
	}
	out := toBookingJSON(res.Booking)
	out.VenueName = res.Venue.Name
	return c.JSON(http.StatusCreated, echo.Map{
		"booking":            out,
		"remaining_bookings": remainingValue(res.Remaining),
		"max_bookings":       capValue(res.Cap),
		"unlimited":          res.Cap.IsUnlimited(),
	})
}

// MyBookings lists the session's bookings at the DJ's active venue. After
// a venue change the list is empty and venue_active is false.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	v := middleware.CurrentSession(c)
	if v == nil {
		return writeError(c, service.ErrUnauthenticated)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	res, err := h.Ledger.ListForSession(ctx, v.Session)
	if err != nil {
		return writeError(c, err)
	}
	out := bookingList(res.Bookings)
	for i := range out {
		can := out[i].Status == model.BookingPending && !res.VenueInactive
		out[i].CanDelete = &can
	}
	body := echo.Map{
		"bookings":        out,
		"remaining_slots": remainingValue(res.Remaining),
		"max_bookings":    capValue(res.Cap),
		"unlimited":       res.Cap.IsUnlimited(),
		"venue_active":    !res.VenueInactive,
	}
	if !res.VenueInactive && res.Venue != nil {
		body["venue"] = echo.Map{"id": res.Venue.ID, "name": res.Venue.Name}
	}
	return c.JSON(http.StatusOK, body)
}

// DeleteForSession cancels one of the session's pending bookings.
func (h *BookingHandler) DeleteForSession(c echo.Context) error {
	v := middleware.CurrentSession(c)
	if v == nil {
		return writeError(c, service.ErrUnauthenticated)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	res, err := h.Ledger.DeleteByAttendee(ctx, v.Session, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"deleted_booking_id": res.BookingID,
		"booking_count":      res.BookingCount,
		"remaining_bookings": remainingValue(res.Remaining),
	})
}
