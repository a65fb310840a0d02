package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/umucyo/guarantee-gateway/internal/platform/httpx"
)

// RoleLister is the read side of Store used by Handler.
type RoleLister interface {
	ListRoles(ctx context.Context) ([]Role, error)
}

// Handler exposes role and grant listings to superusers.
type Handler struct {
	logger *slog.Logger
	roles  RoleLister
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, roles RoleLister) *Handler {
	return &Handler{logger: logger, roles: roles}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
}

type grantView struct {
	Operation string `json:"operation"`
	Active    bool   `json:"active"`
}

type roleView struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Grants []grantView `json:"grants"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if p == nil || !p.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if !p.IsSuperuser {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Error("rbac list roles", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		view := roleView{ID: role.ID, Name: role.Name, Grants: make([]grantView, 0, len(role.Grants))}
		for _, g := range role.Grants {
			view.Grants = append(view.Grants, grantView{Operation: g.OperationName, Active: g.Active})
		}
		out = append(out, view)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}
