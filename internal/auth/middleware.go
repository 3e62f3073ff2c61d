package auth

import (
	"log/slog"
	"net/http"

	"github.com/portalescola/portalescola/internal/authz"
	"github.com/portalescola/portalescola/internal/platform/httpx"
	"github.com/portalescola/portalescola/internal/shared"
)

// RequirePermission guards a route behind one module/action grant. The
// check reads the cached resolution when live, so it normally costs no
// upstream round trip.
func (h *Handler) RequirePermission(module string, action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := shared.UserIDFromContext(r.Context())
			if userID == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
				return
			}
			granted, err := h.facade.HasPermission(r.Context(), userID, module, action)
			if err != nil {
				h.logger.Error("permission guard", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			if !granted {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole guards a route behind a role-hierarchy check.
func (h *Handler) RequireRole(required authz.RoleLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := shared.UserIDFromContext(r.Context())
			if userID == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
				return
			}
			satisfied, err := h.facade.HasRole(r.Context(), userID, required)
			if err != nil {
				h.logger.Error("role guard", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			if !satisfied {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
