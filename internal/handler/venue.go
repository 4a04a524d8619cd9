package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/repository"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

// VenueHandler serves the DJ's venue management endpoints. Activation goes
// through the registry so the one-active-venue rule holds.
type VenueHandler struct {
	Venues   *repository.VenueRepo
	Registry *service.VenueRegistry
}

func NewVenueHandler(venues *repository.VenueRepo, registry *service.VenueRegistry) *VenueHandler {
	if registry == nil {
		panic("nil registry passed to NewVenueHandler")
	}
	return &VenueHandler{Venues: venues, Registry: registry}
}

type venueReq struct {
	Name     string  `json:"name" validate:"required,notblank,max=100"`
	Address  *string `json:"address" validate:"omitempty,max=255"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=1"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
}

func (r venueReq) venue(djID uint64) *model.Venue {
	return &model.Venue{DJID: djID, Name: strings.TrimSpace(r.Name), Address: r.Address, Capacity: r.Capacity, Notes: r.Notes}
}

// List returns the DJ's venues, the active one first.
func (h *VenueHandler) List(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	venues, err := h.Venues.ListByDJ(ctx, djID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list venues failed"})
	}
	out := make([]*venueJSON, 0, len(venues))
	for i := range venues {
		out = append(out, toVenueJSON(&venues[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Create adds an inactive venue.
func (h *VenueHandler) Create(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req venueReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	v := req.venue(djID)
	if err := h.Venues.Create(ctx, v); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create venue failed"})
	}
	return c.JSON(http.StatusCreated, toVenueJSON(v))
}

// Update replaces the descriptive fields of a venue.
func (h *VenueHandler) Update(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	var req venueReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	v := req.venue(djID)
	v.ID = id
	if err := h.Venues.Update(ctx, v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return writeError(c, service.ErrVenueNotFound)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update venue failed"})
	}
	return c.JSON(http.StatusOK, toVenueJSON(v))
}

// Delete removes a venue with its bookings and sessions.
func (h *VenueHandler) Delete(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Venues.DeleteByIDAndDJ(ctx, id, djID); err != nil {
		if repository.IsNotFound(err) {
			return writeError(c, service.ErrVenueNotFound)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete venue failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Toggle flips a venue's active flag. Activating one venue deactivates
// every other venue of the DJ.
func (h *VenueHandler) Toggle(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	active, err := h.Registry.Toggle(ctx, id, djID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "active": active})
}

// Active returns the DJ's active venue, or null.
func (h *VenueHandler) Active(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	v, err := h.Registry.ActiveVenue(ctx, djID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"active_venue": toVenueJSON(v)})
}
