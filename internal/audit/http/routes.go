package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/umucyo/guarantee-gateway/internal/rbac"
)

const rateLimit = 30
const rateWindow = time.Minute

// MountRoutes mendaftarkan endpoint daftar log audit.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.With(limiter).Get("/", h.handleList)
}

func rateLimitKey(r *http.Request) (string, error) {
	if p := rbac.PrincipalFromContext(r.Context()); p != nil && p.Authenticated {
		return "user:" + strconv.FormatInt(p.ID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
