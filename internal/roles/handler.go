package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/portalescola/portalescola/internal/authz"
	"github.com/portalescola/portalescola/internal/platform/httpx"
	"github.com/portalescola/portalescola/internal/shared"
)

// Handler exposes the role registry admin API as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers role admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Post("/", h.createRole)
	r.Get("/{roleID}", h.getRole)
	r.Patch("/{roleID}", h.updateRole)
	r.Delete("/{roleID}", h.deleteRole)
	r.Get("/{roleID}/permissions/{module}/{action}", h.probePermission)
}

type createRoleRequest struct {
	Name        string                  `json:"name" validate:"required"`
	Description string                  `json:"description"`
	Permissions authz.ModulePermissions `json:"permissions"`
	IsActive    *bool                   `json:"isActive"`
}

type updateRoleRequest struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Permissions authz.ModulePermissions `json:"permissions"`
	IsActive    *bool                   `json:"isActive"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("active") == "true" {
		httpx.JSON(w, http.StatusOK, h.service.ListActiveRoles())
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.ListRoles())
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.service.GetRole(chi.URLParam(r, "roleID"))
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		messages := make([]string, 0)
		for _, fieldErr := range err.(validator.ValidationErrors) {
			messages = append(messages, fieldErr.Field()+" failed on "+fieldErr.Tag())
		}
		h.respondError(w, r, "create role", shared.NewValidationError(messages...))
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	role, err := h.service.AddRole(r.Context(), req.Name, req.Description, req.Permissions, isActive)
	if err != nil {
		h.respondError(w, r, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	role, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "roleID"), RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.respondError(w, r, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.RemoveRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.respondError(w, r, "delete role", err)
		return
	}
	if !removed {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) probePermission(w http.ResponseWriter, r *http.Request) {
	granted := h.service.HasPermission(
		chi.URLParam(r, "roleID"),
		chi.URLParam(r, "module"),
		authz.Action(chi.URLParam(r, "action")),
	)
	httpx.JSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if verr, ok := shared.AsValidationError(err); ok {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"title":    "Validation Failed",
			"status":   http.StatusUnprocessableEntity,
			"messages": verr.Messages,
		})
		return
	}
	if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
