// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
)

// StatusLocked is the status used when a credential lockout is active.
const StatusLocked = http.StatusLocked

// RespondError maps domain errors to HTTP responses using RFC7807.
// Authorization failures stay generic: the response never enumerates which
// permission tokens exist.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthenticated", "authentication required")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "insufficient permission")
	case errors.Is(err, shared.ErrKeyInvalid):
		Problem(w, http.StatusUnauthorized, "Invalid Key", "monthly key does not match")
	case errors.Is(err, shared.ErrKeyLocked):
		Problem(w, StatusLocked, "Locked", "verification temporarily locked")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
