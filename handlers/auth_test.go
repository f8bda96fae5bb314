package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuvalaufer/students-calander/internal/auth"
	"github.com/yuvalaufer/students-calander/internal/docstore"
	"github.com/yuvalaufer/students-calander/internal/oauthstate"
	"github.com/yuvalaufer/students-calander/internal/repository"
	"golang.org/x/oauth2"
)

type emailVerifier string

func (e emailVerifier) VerifyEmail(context.Context, string) (string, error) { return string(e), nil }

type authFixture struct {
	router    *gin.Engine
	store     *docstore.MemoryStore
	lifecycle *auth.Lifecycle
}

func newAuthFixture(t *testing.T, tokenResponse map[string]interface{}) *authFixture {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(tokenResponse)
	}))
	t.Cleanup(tokenSrv.Close)

	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	states := oauthstate.NewRedisStore(redis.NewClient(&redis.Options{Addr: m.Addr()}), "", time.Minute)

	store := docstore.NewMemoryStore()
	oc := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3000/oauth2callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   tokenSrv.URL + "/auth",
			TokenURL:  tokenSrv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	lifecycle := auth.NewLifecycle(auth.NewHolder(), repository.NewCredentialRecords(store), oc, "").
		WithHTTPClient(tokenSrv.Client())

	g := gin.New()
	NewAuthHandler(lifecycle, states, true).Register(g)
	return &authFixture{router: g, store: store, lifecycle: lifecycle}
}

func defaultTokenResponse() map[string]interface{} {
	return map[string]interface{}{
		"access_token":  "ya29.a",
		"token_type":    "Bearer",
		"expires_in":    3599,
		"refresh_token": "1//0refresh-token-value",
		"scope":         "https://www.googleapis.com/auth/calendar.readonly",
		"id_token":      "raw",
	}
}

// startConsent follows /api/auth/google and returns the issued state.
func startConsent(t *testing.T, g *gin.Engine) string {
	w := do(g, http.MethodGet, "/api/auth/google", "")
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "consent", loc.Query().Get("prompt"))
	assert.Equal(t, "offline", loc.Query().Get("access_type"))
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestAuth_FullConsentRoundTrip(t *testing.T) {
	f := newAuthFixture(t, defaultTokenResponse())

	w := do(f.router, http.MethodGet, "/api/auth/status", "")
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())

	state := startConsent(t, f.router)
	w = do(f.router, http.MethodGet, "/oauth2callback?code=good-code&state="+url.QueryEscape(state), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Calendar connected")
	assert.NotContains(t, w.Body.String(), "1//0refresh-token-value")

	rec, err := repository.NewCredentialRecords(f.store).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "1//0refresh-token-value", rec.RefreshToken)

	w = do(f.router, http.MethodGet, "/api/auth/status", "")
	assert.JSONEq(t, `{"authenticated":true}`, w.Body.String())

	// the state was single-use
	w = do(f.router, http.MethodGet, "/oauth2callback?code=good-code&state="+url.QueryEscape(state), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuth_CallbackRejectsMissingCodeAndBadState(t *testing.T) {
	f := newAuthFixture(t, defaultTokenResponse())

	w := do(f.router, http.MethodGet, "/oauth2callback?state=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(f.router, http.MethodGet, "/oauth2callback?code=good-code&state=forged", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(f.router, http.MethodGet, "/oauth2callback?error=access_denied", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	doc, err := f.store.Fetch(context.Background(), repository.CredentialsDocument)
	require.NoError(t, err)
	assert.False(t, doc.Exists())
}

func TestAuth_ExchangeFailureIs500(t *testing.T) {
	f := newAuthFixture(t, defaultTokenResponse())
	state := startConsent(t, f.router)
	w := do(f.router, http.MethodGet, "/oauth2callback?code=bad-code&state="+url.QueryEscape(state), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAuth_NoRefreshTokenPersistsNothing(t *testing.T) {
	resp := defaultTokenResponse()
	delete(resp, "refresh_token")
	f := newAuthFixture(t, resp)

	state := startConsent(t, f.router)
	w := do(f.router, http.MethodGet, "/oauth2callback?code=good-code&state="+url.QueryEscape(state), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, f.lifecycle.Authenticated())

	doc, err := f.store.Fetch(context.Background(), repository.CredentialsDocument)
	require.NoError(t, err)
	assert.False(t, doc.Exists())
}

func TestAuth_WrongTutorIs403(t *testing.T) {
	f := newAuthFixture(t, defaultTokenResponse())
	f.lifecycle.WithVerifier(emailVerifier("stranger@example.com"), "tutor@example.com")

	state := startConsent(t, f.router)
	w := do(f.router, http.MethodGet, "/oauth2callback?code=good-code&state="+url.QueryEscape(state), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, f.lifecycle.Authenticated())
}

func TestAuth_NotConfigured(t *testing.T) {
	states, err := oauthstate.NewSignedStore("", time.Minute)
	require.NoError(t, err)
	lifecycle := auth.NewLifecycle(auth.NewHolder(), repository.NewCredentialRecords(docstore.NewMemoryStore()), &oauth2.Config{}, "")
	g := gin.New()
	NewAuthHandler(lifecycle, states, false).Register(g)

	w := do(g, http.MethodGet, "/api/auth/google", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
