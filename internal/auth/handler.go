package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/portalescola/portalescola/internal/authz"
	"github.com/portalescola/portalescola/internal/platform/httpx"
	"github.com/portalescola/portalescola/internal/session"
	"github.com/portalescola/portalescola/internal/shared"
)

// Handler wires the auth facade to JSON HTTP endpoints for consumers
// that do not link the Go packages directly.
type Handler struct {
	logger    *slog.Logger
	facade    *Facade
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, facade *Facade) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, facade: facade, validator: validator.New()}
}

// MountRoutes registers auth routes on the provided router. The
// credential endpoint carries its own tight rate limit to slow
// brute-force attempts.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/sign-in", h.signIn)
	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Post("/sign-out", h.signOut)
		r.Post("/refresh", h.refresh)
		r.Get("/me", h.me)
		r.Patch("/profile", h.updateProfile)
		r.Get("/permissions/{module}/{action}", h.probePermission)
		r.Get("/roles/{role}", h.probeRole)
	})
}

// RequireSession authenticates the bearer access token and stores the
// user id in the request context. An expired token is a 401 telling the
// client to refresh or sign in again, never a server error.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}
		sess, err := h.facade.Sessions().LookupAccessToken(r.Context(), token)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if sess.IsExpired() {
			httpx.RespondError(w, shared.ErrSessionExpired)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithUserID(r.Context(), sess.UserID)))
	})
}

type signInResponse struct {
	User    User            `json:"user"`
	Session session.Session `json:"session"`
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var credentials Credentials
	if err := httpx.DecodeJSON(r, &credentials); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(credentials); err != nil {
		// A malformed sign-in gets the same generic answer as a wrong
		// password.
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}
	user, sess, err := h.facade.SignIn(r.Context(), credentials)
	if err != nil {
		h.respondError(w, "sign in", err)
		return
	}
	httpx.JSON(w, http.StatusOK, signInResponse{User: user, Session: sess})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.facade.SignOut(r.Context(), shared.UserIDFromContext(r.Context())); err != nil {
		h.respondError(w, "sign out", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	sess, err := h.facade.Refresh(r.Context(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "refresh", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.facade.CurrentUser(r.Context(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "current user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Name           *string           `json:"name"`
	Role           *string           `json:"role"`
	DynamicRoleIDs []string          `json:"dynamicRoleIds"`
	Preferences    map[string]string `json:"preferences"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	update := ProfileUpdate{
		Name:           req.Name,
		DynamicRoleIDs: req.DynamicRoleIDs,
		Preferences:    req.Preferences,
	}
	if req.Role != nil {
		role := authz.RoleLevel(*req.Role)
		update.Role = &role
	}
	profile, err := h.facade.UpdateProfile(r.Context(), shared.UserIDFromContext(r.Context()), update)
	if err != nil {
		h.respondError(w, "update profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) probePermission(w http.ResponseWriter, r *http.Request) {
	granted, err := h.facade.HasPermission(
		r.Context(),
		shared.UserIDFromContext(r.Context()),
		chi.URLParam(r, "module"),
		authz.Action(chi.URLParam(r, "action")),
	)
	if err != nil {
		h.respondError(w, "probe permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

func (h *Handler) probeRole(w http.ResponseWriter, r *http.Request) {
	satisfied, err := h.facade.HasRole(
		r.Context(),
		shared.UserIDFromContext(r.Context()),
		authz.RoleLevel(chi.URLParam(r, "role")),
	)
	if err != nil {
		h.respondError(w, "probe role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"satisfied": satisfied})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if isServerError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isServerError(err error) bool {
	for _, known := range []error{
		shared.ErrInvalidCredentials,
		shared.ErrSessionExpired,
		shared.ErrSessionRefreshFailed,
		shared.ErrProfileNotFound,
		shared.ErrNotFound,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
