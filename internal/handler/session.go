package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/middleware"
	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

// SessionHandler serves the attendee QR flow.
type SessionHandler struct {
	Sessions     *service.SessionManager
	CookieSecure bool
	SameSite     http.SameSite
}

// NewSessionHandler returns a SessionHandler. Development relaxes the
// cookie to SameSite=Lax so the flow can be tested from a phone on the LAN.
func NewSessionHandler(sessions *service.SessionManager, cookieSecure, development bool) *SessionHandler {
	sameSite := http.SameSiteStrictMode
	if development {
		sameSite = http.SameSiteLaxMode
	}
	return &SessionHandler{Sessions: sessions, CookieSecure: cookieSecure, SameSite: sameSite}
}

type djBrief struct {
	ID        uint64 `json:"id"`
	StageName string `json:"stage_name"`
	QRCodeID  string `json:"qr_code_id"`
}

type venueBrief struct {
	ID      uint64  `json:"id"`
	Name    string  `json:"name"`
	Address *string `json:"address"`
}

func briefDJ(dj *model.DJ) djBrief {
	return djBrief{ID: dj.ID, StageName: dj.StageName, QRCodeID: dj.QRCodeID}
}

func briefVenue(v *model.Venue) venueBrief {
	return venueBrief{ID: v.ID, Name: v.Name, Address: v.Address}
}

func (h *SessionHandler) credential(c echo.Context) string {
	if ck, err := c.Cookie(middleware.SessionCookie); err == nil {
		return ck.Value
	}
	return ""
}

func (h *SessionHandler) setCookie(c echo.Context, s *model.Session) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    s.ID.String(),
		Path:     "/",
		MaxAge:   int(h.Sessions.Duration() / time.Second),
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: h.SameSite,
	})
}

// QRFlow tells the client what to do after a QR scan: redirect with an
// existing session, show the welcome page, or show an error.
func (h *SessionHandler) QRFlow(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Sessions.ResolveEntry(ctx, c.Param("qr"), h.credential(c))
	if err != nil {
		return writeError(c, err)
	}
	switch out.Status {
	case service.EntryNotFound:
		return c.JSON(http.StatusOK, echo.Map{"action": "error", "error_type": "qr_not_found"})
	case service.EntryNoActiveVenue:
		return c.JSON(http.StatusOK, echo.Map{"action": "error", "error_type": "no_active_venue"})
	}
	if out.Existing != nil {
		return c.JSON(http.StatusOK, echo.Map{"action": "redirect", "session_id": out.Existing.ID.String()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"action": "welcome",
		"data": echo.Map{
			"dj":           briefDJ(out.DJ),
			"active_venue": briefVenue(out.Venue),
		},
	})
}

// Create opens a session after the attendee accepts the welcome page and
// sets the session cookie.
func (h *SessionHandler) Create(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	v, err := h.Sessions.Start(ctx, c.Param("qr"), service.RequestMeta{
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return writeError(c, err)
	}
	h.setCookie(c, v.Session)
	return c.JSON(http.StatusCreated, echo.Map{
		"session_id":   v.Session.ID.String(),
		"expires_at":   v.Session.ExpiresAt,
		"dj":           briefDJ(v.DJ),
		"active_venue": briefVenue(v.Venue),
	})
}

// Validate reports the state of the session behind the cookie. The
// strict session middleware has already rejected dead sessions.
func (h *SessionHandler) Validate(c echo.Context) error {
	v := middleware.CurrentSession(c)
	if v == nil {
		return writeError(c, service.ErrUnauthenticated)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":             true,
		"session_id":        v.Session.ID.String(),
		"dj":                briefDJ(v.DJ),
		"active_venue":      briefVenue(v.Venue),
		"expires_at":        v.Session.ExpiresAt,
		"remaining_minutes": v.Session.RemainingMinutes(h.Sessions.Now()),
	})
}

// Cleanup deletes expired sessions. Cron jobs can use the
// cleanup-sessions command instead.
func (h *SessionHandler) Cleanup(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	n, err := h.Sessions.CleanupExpired(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}
