package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/umucyo/guarantee-gateway/internal/audit"
	"github.com/umucyo/guarantee-gateway/internal/platform/httpx"
	"github.com/umucyo/guarantee-gateway/internal/rbac"
)

// Lister is the read side of the audit store.
type Lister interface {
	List(ctx context.Context, filter audit.Filter) (audit.Page, error)
}

// Handler serves the audit log listing.
type Handler struct {
	logger *slog.Logger
	store  Lister
}

// NewHandler constructs an audit log handler.
func NewHandler(logger *slog.Logger, store Lister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil || !principal.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Superusers see the whole trail, everyone else only their own calls.
	if !principal.IsSuperuser {
		id := principal.ID
		filter.UserID = &id
	}

	page, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list audit records", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	filter := audit.Filter{Page: 1, PageSize: audit.DefaultPageSize}
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.Filter{}, validationError("page")
		}
		filter.Page = parsed
	}
	if v := strings.TrimSpace(r.URL.Query().Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.Filter{}, validationError("page_size")
		}
		if parsed > audit.MaxPageSize {
			parsed = audit.MaxPageSize
		}
		filter.PageSize = parsed
	}
	return filter, nil
}

func validationError(field string) error {
	return fmt.Errorf("%w: invalid %s", httpx.ErrValidation, field)
}
