package middleware

// identity.go holds the helpers that name the caller of a request. DJs are
// identified by the id in their access token, attendees by their session
// cookie.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/service"
)

// SessionCookie is the name of the attendee session cookie.
const SessionCookie = "session_id"

// sessionCredential returns the raw session cookie value, or "".
func sessionCredential(c echo.Context) string {
	ck, err := c.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return ck.Value
}

// sessionKey returns the session id when the cookie holds a well-formed
// credential. Arbitrary cookie values are never used as keys.
func sessionKey(c echo.Context) string {
	id, err := service.ParseCredential(sessionCredential(c))
	if err != nil {
		return ""
	}
	return id.String()
}

// callerID names the caller for rate limiting and cache keys.
func callerID(c echo.Context) string {
	if id, ok := c.Get(ContextDJID).(uint64); ok && id != 0 {
		return "dj:" + strconv.FormatUint(id, 10)
	}
	if s := sessionKey(c); s != "" {
		return "session:" + s
	}
	return "anon"
}
