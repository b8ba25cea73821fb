package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-gateway/internal/auth"
	"intake-gateway/internal/refdata"
	refdatahandler "intake-gateway/internal/refdata/handler"
	id "intake-gateway/pkg/domain"
	"intake-gateway/pkg/requestcontext"
)

type echoUser struct{ seen id.UserID }

func (e *echoUser) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		e.seen = requestcontext.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

type public struct{}

func (public) Register(r chi.Router) {
	r.Get("/open", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestRouter(t *testing.T, checks []HealthCheck) (http.Handler, *auth.JWTService, *echoUser) {
	t.Helper()
	jwtSvc := auth.NewJWTService("test-signing-key", "intake-gateway", "intake-clients")
	echo := &echoUser{}
	router := NewRouter(Config{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:       nil,
		Validator:     jwtSvc,
		Authenticated: []Registrar{echo},
		Public:        []Registrar{public{}},
		Checks:        checks,
	})
	return router, jwtSvc, echo
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
}

func TestRouter_ValidTokenReachesHandler(t *testing.T) {
	router, jwtSvc, echo := newTestRouter(t, nil)

	userID := id.NewUserID()
	token, err := jwtSvc.GenerateToken(userID, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, echo.seen)
}

func TestRouter_PublicRoutesSkipAuth(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

type staticRefdata struct{}

func (staticRefdata) Municipalities(context.Context) ([]refdata.Item, error) {
	return []refdata.Item{{ID: "004", Name: "Centro"}}, nil
}

func (staticRefdata) Localities(context.Context, string) ([]refdata.Item, error) {
	return nil, nil
}

// Reference data mounts in the public group: clients need the catalogs
// before they hold a token.
func TestRouter_RefdataServedWithoutToken(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-signing-key", "intake-gateway", "intake-clients")
	router := NewRouter(Config{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator: jwtSvc,
		Public: []Registrar{
			refdatahandler.New(staticRefdata{}, slog.New(slog.NewTextHandler(io.Discard, nil))),
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/refdata/municipalities", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Centro")
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestHealthz_AllUp(t *testing.T) {
	router, _, _ := newTestRouter(t, []HealthCheck{
		{Name: "redis", Probe: func(context.Context) error { return nil }},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHealthz_DependencyDown(t *testing.T) {
	router, _, _ := newTestRouter(t, []HealthCheck{
		{Name: "redis", Probe: func(context.Context) error { return nil }},
		{Name: "postgres", Probe: func(context.Context) error { return errors.New("refused") }},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"down"`)
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)
	// the probe error itself must not reach the client
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
