package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"prokat/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := newTestConfig(t)
	cfg.API.Auth.Enabled = true
	cfg.API.Auth.APIKeys = []config.APIClientKey{
		{Key: "full", Extra: "full-extra", Name: "ops"},
		{Key: "reader", Extra: "reader-extra", Name: "dashboard", Permissions: []string{permReadItems}},
	}
	return cfg
}

func withAPIKey(key, extra string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(apiKeyHeaderDefault, key)
		r.Header.Set(apiExtraHeaderDefault, extra)
	}
}

func TestHTTPAuth(t *testing.T) {
	ts := newTestServer(t, newAuthConfig(t))

	tests := []struct {
		name   string
		method string
		path   string
		opts   []requestOption
		status int
	}{
		{"MissingHeaders", http.MethodGet, "/api/v1/items", nil, http.StatusUnauthorized},
		{"UnknownKey", http.MethodGet, "/api/v1/items", []requestOption{withAPIKey("nope", "full-extra")}, http.StatusUnauthorized},
		{"WrongExtra", http.MethodGet, "/api/v1/items", []requestOption{withAPIKey("full", "reader-extra")}, http.StatusUnauthorized},
		{"FullAccess", http.MethodGet, "/api/v1/items", []requestOption{withAPIKey("full", "full-extra")}, http.StatusOK},
		{"ReaderCanRead", http.MethodGet, "/api/v1/stats", []requestOption{withAPIKey("reader", "reader-extra")}, http.StatusOK},
		{"ReaderCannotWrite", http.MethodPost, "/api/v1/items/Dune/return", []requestOption{withAPIKey("reader", "reader-extra")}, http.StatusForbidden},
		{"ReaderCannotExport", http.MethodGet, "/api/v1/catalog/export", []requestOption{withAPIKey("reader", "reader-extra")}, http.StatusForbidden},
		{"ProbeBypass", http.MethodGet, "/healthz", nil, http.StatusOK},
		{"ReadyBypass", http.MethodGet, "/readyz", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, tt.method, tt.path, nil, tt.opts...)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
		})
	}
}

func TestHTTPAuth_CustomHeaders(t *testing.T) {
	cfg := newAuthConfig(t)
	cfg.API.Auth.HeaderAPIKey = "X-Client"
	cfg.API.Auth.HeaderExtra = "X-Secret"
	ts := newTestServer(t, cfg)

	resp, _ := ts.do(t, http.MethodGet, "/api/v1/items", nil, withAPIKey("full", "full-extra"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/items", nil,
		withHeader("X-Client", "full"), withHeader("X-Secret", "full-extra"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.API.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 1}
	ts := newTestServer(t, cfg)

	resp, _ := ts.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, string(body))

	// Пробы не ограничиваются
	resp, _ = ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiter_PerKey(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 1})

	first := l.getLimiter("a")
	assert.Same(t, first, l.getLimiter("a"))
	assert.NotSame(t, first, l.getLimiter("b"))
	assert.Equal(t, defaultBurst, first.Burst())
}

func TestClientKey(t *testing.T) {
	a := NewHTTPAuth(config.Default().API)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/items", http.NoBody)
	r.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "10.0.0.7", a.clientKey(r))

	r.Header.Set(apiKeyHeaderDefault, " key-1 ")
	assert.Equal(t, "key-1", a.clientKey(r))

	r = httptest.NewRequest(http.MethodGet, "/api/v1/items", http.NoBody)
	r.RemoteAddr = "garbage"
	assert.Equal(t, clientKeyUnknown, a.clientKey(r))
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/items", permReadItems},
		{http.MethodHead, "/api/v1/items/Dune", permReadItems},
		{http.MethodGet, "/api/v1/notifications", permReadItems},
		{http.MethodPost, "/api/v1/items", permWriteItems},
		{http.MethodDelete, "/api/v1/items/Dune", permWriteItems},
		{http.MethodGet, "/api/v1/catalog/export", permManageCatalog},
		{http.MethodPost, "/api/v1/catalog/save", permManageCatalog},
		{http.MethodPost, "/api/v1/users/login", permManageAccess},
		{http.MethodPost, "/api/v1/admins", permManageAccess},
		{http.MethodPost, "/unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			assert.Equal(t, tt.want, requiredPermission(r))
		})
	}
}

func TestCheckPermissions(t *testing.T) {
	client := config.APIClientKey{Permissions: []string{" read:items ", permWriteItems}}

	assert.NoError(t, checkPermissions(client, permReadItems))
	assert.NoError(t, checkPermissions(client, ""))
	assert.ErrorIs(t, checkPermissions(client, permManageAccess), errPermissionDenied)
	assert.NoError(t, checkPermissions(config.APIClientKey{}, permManageAccess))
}
