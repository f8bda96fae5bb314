package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuvalaufer/students-calander/internal/auth"
	"github.com/yuvalaufer/students-calander/internal/calendar"
	"github.com/yuvalaufer/students-calander/internal/config"
	"github.com/yuvalaufer/students-calander/internal/docstore"
	"github.com/yuvalaufer/students-calander/internal/oauthstate"
	"golang.org/x/oauth2"
)

type noEvents struct{}

func (noEvents) ListEvents(context.Context, oauth2.TokenSource, time.Time, time.Time) ([]calendar.Event, error) {
	return []calendar.Event{}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Store.Backend = config.BackendMemory
	cfg.Store.Timeout = time.Second
	cfg.Lessons.WindowDays = 30
	cfg.Google.ClientID = "client"
	cfg.Google.ClientSecret = "secret"
	cfg.Google.RedirectURL = "http://localhost:3000/oauth2callback"
	return cfg
}

func newTestRouter(t *testing.T, cfg *config.Config, store docstore.Store, ping func(context.Context) error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	states, err := oauthstate.NewSignedStore("secret", time.Minute)
	require.NoError(t, err)
	return newRouter(routerDeps{
		cfg:       cfg,
		store:     store,
		storePing: ping,
		states:    states,
		holder:    auth.NewHolder(),
		events:    noEvents{},
	})
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndReady(t *testing.T) {
	r := newTestRouter(t, testConfig(), docstore.NewMemoryStore(), nil)

	w := serve(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", w.Body.String())

	w = serve(r, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status string          `json:"status"`
		Deps   map[string]bool `json:"deps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.True(t, body.Deps["store"])
	assert.True(t, body.Deps["google"])
}

func TestReady_StoreDown(t *testing.T) {
	ping := func(context.Context) error { return errors.New("connection refused") }
	r := newTestRouter(t, testConfig(), docstore.NewMemoryStore(), ping)

	w := serve(r, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "not_ready")
}

func TestRoutesAreWired(t *testing.T) {
	r := newTestRouter(t, testConfig(), docstore.NewMemoryStore(), nil)

	w := serve(r, http.MethodGet, "/api/students", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = serve(r, http.MethodGet, "/api/calendar/events", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authUrl")

	w = serve(r, http.MethodPost, "/api/payments/save", `{"lessonKey":"e1","status":"paid"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/auth/google", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "accounts.google.com")

	w = serve(r, http.MethodOptions, "/api/students/save", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "ETag")

	w = serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/swagger/doc.json", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfiguredRefreshTokenAuthenticates(t *testing.T) {
	cfg := testConfig()
	cfg.Google.RefreshToken = "1//configured"
	r := newTestRouter(t, cfg, docstore.NewMemoryStore(), nil)

	w := serve(r, http.MethodGet, "/api/auth/status", "")
	assert.JSONEq(t, `{"authenticated":true}`, w.Body.String())
}

func TestRateLimitApplied(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RPS = 0.01
	cfg.RateLimit.Burst = 1
	r := newTestRouter(t, cfg, docstore.NewMemoryStore(), nil)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/health", "").Code)
}

func TestTutorEmailWithoutVerifierRefusesConsent(t *testing.T) {
	cfg := testConfig()
	cfg.Google.TutorEmail = "tutor@example.com"
	store := docstore.NewMemoryStore()
	r := newTestRouter(t, cfg, store, nil)

	w := serve(r, http.MethodGet, "/api/auth/google", "")
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	w = serve(r, http.MethodGet, "/oauth2callback?code=any&state="+url.QueryEscape(state), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	doc, err := store.Fetch(context.Background(), "credentials")
	require.NoError(t, err)
	assert.False(t, doc.Exists())
}
