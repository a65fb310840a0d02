package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/umucyo/guarantee-gateway/internal/platform/httpx"
	"github.com/umucyo/guarantee-gateway/internal/rbac"
)

// Middleware resolves HTTP Basic credentials into a principal.
type Middleware struct {
	service *Service
	logger  *slog.Logger
	realm   string
}

// NewMiddleware constructs the authentication middleware.
func NewMiddleware(service *Service, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{service: service, logger: logger, realm: "guarantee-gateway"}
}

// Authenticate attaches the principal to the request context. Requests
// without credentials continue anonymously; the downstream handlers decide
// what an anonymous caller may do. Wrong credentials are rejected here.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.service.Authenticate(r.Context(), username, password)
		if err != nil {
			if !errors.Is(err, ErrInvalidCredentials) {
				m.logger.Error("authenticate", slog.Any("error", err))
			}
			m.logger.Warn("authentication failed",
				slog.String("username", username),
				slog.String("remote_addr", r.RemoteAddr))
			w.Header().Set("WWW-Authenticate", `Basic realm="`+m.realm+`"`)
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		ctx := rbac.ContextWithPrincipal(r.Context(), user.Principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
