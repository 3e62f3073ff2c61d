package httpx

import (
	"errors"
	"net/http"

	"github.com/portalescola/portalescola/internal/shared"
)

// RespondError maps auth core error kinds to HTTP responses using
// RFC7807. Sign-in failures deliberately share one generic message.
func RespondError(w http.ResponseWriter, err error) {
	if verr, ok := shared.AsValidationError(err); ok {
		JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"title":    "Validation Failed",
			"status":   http.StatusUnprocessableEntity,
			"messages": verr.Messages,
		})
		return
	}
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrProfileNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", "invalid credentials")
	case errors.Is(err, shared.ErrSessionExpired), errors.Is(err, shared.ErrSessionRefreshFailed):
		Problem(w, http.StatusUnauthorized, "Session Expired", "sign in again")
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Upstream Unavailable", "try again shortly")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
