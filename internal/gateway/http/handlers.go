package gatewayhttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/umucyo/guarantee-gateway/internal/gateway"
	"github.com/umucyo/guarantee-gateway/internal/platform/httpx"
	"github.com/umucyo/guarantee-gateway/internal/rbac"
)

// Dispatcher is the gateway core as seen by the HTTP front end.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, principal *rbac.Principal, raw map[string]any) gateway.Result
	Operations() []string
}

// Handler exposes the operation catalogue and execution over JSON.
type Handler struct {
	logger     *slog.Logger
	dispatcher Dispatcher
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, dispatcher Dispatcher) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		dispatcher: dispatcher,
		validator:  validator.New(),
	}
}

// MountRoutes registers operation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listOperations)
	r.Post("/{operation}/execute", h.execute)
}

// Names outside the catalogue still reach the dispatcher so they are audited
// as unknown operations; only oversized names stop here.
type executeRequest struct {
	Operation string `validate:"required,max=128"`
}

func (h *Handler) listOperations(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if p == nil || !p.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"operations": h.dispatcher.Operations()})
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	req := executeRequest{Operation: chi.URLParam(r, "operation")}
	if err := h.validator.Struct(req); err != nil {
		httpx.TypedProblem(w, http.StatusBadRequest, string(gateway.KindInvalidArguments), "Invalid Operation", "operation name is too long")
		return
	}

	var args map[string]any
	if err := httpx.DecodeJSON(r, &args); err != nil {
		httpx.TypedProblem(w, http.StatusBadRequest, string(gateway.KindInvalidArguments), "Invalid Arguments", "request body must be a JSON object")
		return
	}
	if args == nil {
		args = map[string]any{}
	}

	res := h.dispatcher.Dispatch(r.Context(), req.Operation, rbac.PrincipalFromContext(r.Context()), args)
	if res.OK() {
		httpx.JSON(w, http.StatusOK, res.Payload)
		return
	}
	status, title := problemFor(res.Kind)
	h.logger.Info("operation not executed",
		slog.String("operation", req.Operation),
		slog.String("kind", string(res.Kind)),
		slog.Int("status", status))
	httpx.TypedProblem(w, status, string(res.Kind), title, res.Message)
}

func problemFor(kind gateway.Kind) (int, string) {
	switch kind {
	case gateway.KindAuthRequired:
		return http.StatusUnauthorized, "Unauthorized"
	case gateway.KindPermissionDenied:
		return http.StatusForbidden, "Forbidden"
	case gateway.KindUnknownOperation:
		return http.StatusNotFound, "Unknown Operation"
	case gateway.KindInvalidArguments:
		return http.StatusBadRequest, "Invalid Arguments"
	case gateway.KindRemoteUnavailable:
		return http.StatusBadGateway, "Bad Gateway"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}
