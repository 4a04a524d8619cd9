package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/karaoke-booking/internal/service"
)

// ContextSession is the context key holding the *service.Validation of
// the attendee session.
const ContextSession = "session"

// SessionMode selects how strictly a route checks the session cookie.
type SessionMode int

const (
	// SessionStrict requires a live session whose venue is still active.
	SessionStrict SessionMode = iota
	// SessionSoft requires a live session but tolerates a venue change.
	SessionSoft
	// SessionOptional lets cookieless requests through; a cookie that is
	// present must still name a live session.
	SessionOptional
)

// SessionChecker is the subset of the session manager used here.
type SessionChecker interface {
	Validate(ctx context.Context, credential string) (*service.Validation, error)
	Authenticate(ctx context.Context, credential string) (*service.Validation, error)
}

// RequireSession checks the attendee session cookie and stores the
// resulting validation under ContextSession.
func RequireSession(sessions SessionChecker, mode SessionMode) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cred := sessionCredential(c)
			if cred == "" && mode == SessionOptional {
				return next(c)
			}
			ctx := c.Request().Context()
			var (
				v   *service.Validation
				err error
			)
			if mode == SessionStrict {
				v, err = sessions.Validate(ctx, cred)
			} else {
				v, err = sessions.Authenticate(ctx, cred)
			}
			if err != nil {
				return sessionError(c, err)
			}
			c.Set(ContextSession, v)
			return next(c)
		}
	}
}

// CurrentSession returns the validation stored by RequireSession, or nil.
func CurrentSession(c echo.Context) *service.Validation {
	v, _ := c.Get(ContextSession).(*service.Validation)
	return v
}

// sessionError answers a failed session check. Every failure of the
// credential itself is a 401 so the client restarts from the QR code; a
// venue change is a 400.
func sessionError(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error", "code": "internal_error"})
	}
	status := http.StatusUnauthorized
	if se.Kind == service.KindPreconditionFailed {
		status = http.StatusBadRequest
	}
	return c.JSON(status, echo.Map{"error": se.Message, "code": se.Reason})
}
