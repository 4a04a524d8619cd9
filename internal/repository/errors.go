// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. Single-row
// lookups report a missing row as sql.ErrNoRows.
package repository

import (
	"database/sql"
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate this into HTTP 404 so that
// the existence of other DJs' rows is not revealed.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert or update collides with a unique
// constraint, such as a duplicate QR code. Handlers translate this into
// an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// isDuplicate reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}

// IsNotFound reports whether err means the row does not exist or is not
// visible to the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrForbidden)
}
