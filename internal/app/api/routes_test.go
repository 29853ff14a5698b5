package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/health"
	"github.com/magabrotheeeer/fonoapp/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fonoapp/internal/lib/jwt"
	"github.com/magabrotheeeer/fonoapp/internal/lib/signature"
	retentionservice "github.com/magabrotheeeer/fonoapp/internal/services/retention"
)

const (
	testSecret = "session-secret"
	testIssuer = "https://id.fonoapp.test"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type staticUsers struct{}

func (staticUsers) EnsureUser(context.Context, string, string) (string, string, error) {
	return "550e8400-e29b-41d4-a716-446655440000", "user", nil
}

func newTestRouter(t *testing.T, limiter *middlewarectx.RateLimiter) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := jwt.NewVerifier(testSecret, "", testIssuer)
	require.NoError(t, err)

	r := chi.NewRouter()
	RegisterRoutes(r, logger, Deps{
		Retention:       retentionservice.New(nil, logger),
		Tokens:          tokens,
		Users:           staticUsers{},
		Limiter:         limiter,
		PaymentVerifier: signature.NewTimestampedVerifier("whsec_payment"),
		WebhookTimeout:  time.Second,
		Checks:          map[string]health.Checker{"database": okPinger{}},
		CORSOrigins:     []string{"https://app.fonoapp.test"},
	})
	return r
}

func TestRegisterRoutes_Table(t *testing.T) {
	r := chi.NewRouter()
	RegisterRoutes(r, slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{})

	routes := make(map[string]bool)
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes[method+" "+route] = true
		return nil
	})
	require.NoError(t, err)

	for _, want := range []string{
		"GET /api/v1/health",
		"GET /api/v1/privacy/retention-policies",
		"GET /api/v1/profile",
		"PUT /api/v1/profile",
		"GET /api/v1/subscription",
		"POST /api/v1/subscription/checkout",
		"POST /api/v1/subscription/cancel",
		"GET /api/v1/downloads/limit",
		"POST /api/v1/downloads",
		"GET /api/v1/downloads/history",
		"GET /api/v1/consents",
		"PUT /api/v1/consents",
		"GET /api/v1/consents/history",
		"GET /api/v1/privacy/export",
		"POST /api/v1/privacy/deletion",
		"PUT /api/v1/privacy/rectification",
		"POST /webhooks/identity",
		"POST /webhooks/payment",
		"GET /metrics",
	} {
		assert.True(t, routes[want], "route %s is not registered", want)
	}
}

func TestRoutes_PublicAndProtected(t *testing.T) {
	router := newTestRouter(t, middlewarectx.NewRateLimiter(100, 100))

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{name: "health is public", method: http.MethodGet, path: "/api/v1/health", expectedStatus: http.StatusOK},
		{name: "retention policies are public", method: http.MethodGet, path: "/api/v1/privacy/retention-policies", expectedStatus: http.StatusOK},
		{name: "profile requires session", method: http.MethodGet, path: "/api/v1/profile", expectedStatus: http.StatusUnauthorized},
		{name: "download record requires session", method: http.MethodPost, path: "/api/v1/downloads", body: `{}`, expectedStatus: http.StatusUnauthorized},
		{name: "export requires session", method: http.MethodGet, path: "/api/v1/privacy/export?format=csv", expectedStatus: http.StatusUnauthorized},
		{name: "payment webhook rejects unsigned body", method: http.MethodPost, path: "/webhooks/payment", body: `{"id":"evt_1"}`, expectedStatus: http.StatusUnauthorized},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/unknown", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestRoutes_RateLimitAfterAuthentication(t *testing.T) {
	router := newTestRouter(t, middlewarectx.NewRateLimiter(1, 0))

	token, err := jwt.NewJWTMaker(testSecret, testIssuer, time.Hour).GenerateToken("idp_user_1", "ana@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRoutes_PublicRoutesLimitedByIP(t *testing.T) {
	router := newTestRouter(t, middlewarectx.NewRateLimiter(0.001, 1))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/privacy/retention-policies", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5678"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
}

func TestRoutes_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, middlewarectx.NewRateLimiter(100, 100))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/profile", nil)
	req.Header.Set("Origin", "https://app.fonoapp.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.fonoapp.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
