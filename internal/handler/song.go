package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/repository"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

const (
	defaultPerPage     = 50
	defaultPublicLimit = 50
)

// SongHandler serves the DJ's catalog and the public song picker.
type SongHandler struct {
	Songs *repository.SongRepo
	DJs   *repository.DJRepo
}

func NewSongHandler(songs *repository.SongRepo, djs *repository.DJRepo) *SongHandler {
	return &SongHandler{Songs: songs, DJs: djs}
}

type songReq struct {
	FileName string `json:"file_name" validate:"required,notblank,max=255"`
}

type bulkSongsReq struct {
	Songs []string `json:"songs" validate:"required,min=1,max=10000,dive,required,max=255"`
}

type songJSON struct {
	ID        uint64    `json:"id"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
}

func queryInt(c echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return n
	}
	return def
}

// List returns one page of the catalog. Searches count at most
// repository.MaxSearchResults matches and flag the result as limited.
func (h *SongHandler) List(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", defaultPerPage)
	if page < 1 || perPage < 1 || perPage > repository.MaxPerPage {
		return badRequest(c, "page must be >= 1 and per_page between 1 and 1000")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	res, err := h.Songs.List(ctx, djID, c.QueryParam("search"), page, perPage)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list songs failed"})
	}
	songs := make([]songJSON, 0, len(res.Songs))
	for _, s := range res.Songs {
		songs = append(songs, songJSON{ID: s.ID, FileName: s.FileName, CreatedAt: s.CreatedAt})
	}
	pages := (res.Total + res.PerPage - 1) / res.PerPage
	return c.JSON(http.StatusOK, echo.Map{
		"songs":        songs,
		"total":        res.Total,
		"pages":        pages,
		"current_page": res.Page,
		"limited":      res.Limited,
	})
}

// Create adds one title to the catalog.
func (h *SongHandler) Create(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req songReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	s, err := h.Songs.Create(ctx, djID, strings.TrimSpace(req.FileName))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "song already in catalog"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create song failed"})
	}
	return c.JSON(http.StatusCreated, songJSON{ID: s.ID, FileName: s.FileName, CreatedAt: s.CreatedAt})
}

// Bulk imports many titles at once; duplicates are skipped.
func (h *SongHandler) Bulk(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req bulkSongsReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	added, err := h.Songs.BulkCreate(ctx, djID, req.Songs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "import failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"count":   added,
		"skipped": int64(len(req.Songs)) - added,
	})
}

// Delete removes one title.
func (h *SongHandler) Delete(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid song id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Songs.Delete(ctx, id, djID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "song not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete song failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Clear empties the catalog.
func (h *SongHandler) Clear(c echo.Context) error {
	djID, err := getDJID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	n, err := h.Songs.Clear(ctx, djID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "clear catalog failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// Public lists catalog titles of the DJ behind a QR id for the attendee
// song picker. A session cookie, when sent, is checked by the session
// middleware in front of this handler.
func (h *SongHandler) Public(c echo.Context) error {
	limit := queryInt(c, "limit", defaultPublicLimit)
	if limit < 1 || limit > repository.MaxSearchResults {
		return badRequest(c, "limit must be between 1 and 1000")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	dj, err := h.DJs.GetByQRCode(ctx, c.Param("qr"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return writeError(c, service.ErrDJNotFound)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load dj failed"})
	}
	titles, err := h.Songs.Search(ctx, dj.ID, c.QueryParam("search"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	total, err := h.Songs.Count(ctx, dj.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"songs":   titles,
		"total":   total,
		"dj_name": dj.StageName,
	})
}
