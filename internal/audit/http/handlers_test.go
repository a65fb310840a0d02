package audithttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umucyo/guarantee-gateway/internal/audit"
	"github.com/umucyo/guarantee-gateway/internal/rbac"
)

type stubLister struct {
	page       audit.Page
	err        error
	lastFilter audit.Filter
	calls      int
}

func (s *stubLister) List(ctx context.Context, filter audit.Filter) (audit.Page, error) {
	s.calls++
	s.lastFilter = filter
	return s.page, s.err
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/logs", h.MountRoutes)
	return r
}

func request(t *testing.T, target string, p *rbac.Principal) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if p != nil {
		req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), p))
	}
	return req
}

func TestListRequiresAuthentication(t *testing.T) {
	store := &stubLister{}
	rr := httptest.NewRecorder()
	newRouter(NewHandler(nil, store)).ServeHTTP(rr, request(t, "/api/logs", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, store.calls)
}

func TestListScopesRegularUsersToOwnRecords(t *testing.T) {
	store := &stubLister{page: audit.Page{Records: []audit.Record{{Operation: "getTenderInformation", Status: audit.StatusSuccess}}}}
	rr := httptest.NewRecorder()
	newRouter(NewHandler(nil, store)).ServeHTTP(rr,
		request(t, "/api/logs?page=2&page_size=5", &rbac.Principal{ID: 42, Authenticated: true}))

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, store.lastFilter.UserID)
	assert.Equal(t, int64(42), *store.lastFilter.UserID)
	assert.Equal(t, 2, store.lastFilter.Page)
	assert.Equal(t, 5, store.lastFilter.PageSize)

	var body audit.Page
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Records, 1)
	assert.Equal(t, "getTenderInformation", body.Records[0].Operation)
}

func TestListShowsEverythingToSuperusers(t *testing.T) {
	store := &stubLister{}
	rr := httptest.NewRecorder()
	newRouter(NewHandler(nil, store)).ServeHTTP(rr,
		request(t, "/api/logs?page_size=1000", &rbac.Principal{ID: 1, Authenticated: true, IsSuperuser: true}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, store.lastFilter.UserID)
	assert.Equal(t, audit.MaxPageSize, store.lastFilter.PageSize)
}

func TestListRejectsBadPaging(t *testing.T) {
	for _, target := range []string{"/api/logs?page=0", "/api/logs?page=x", "/api/logs?page_size=-1"} {
		store := &stubLister{}
		rr := httptest.NewRecorder()
		newRouter(NewHandler(nil, store)).ServeHTTP(rr, request(t, target, &rbac.Principal{ID: 3, Authenticated: true}))
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Zero(t, store.calls)
	}
}

func TestListHidesStoreErrors(t *testing.T) {
	store := &stubLister{err: errors.New("relation does not exist")}
	rr := httptest.NewRecorder()
	newRouter(NewHandler(nil, store)).ServeHTTP(rr, request(t, "/api/logs", &rbac.Principal{ID: 3, Authenticated: true}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "relation")
}
