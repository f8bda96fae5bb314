package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yuvalaufer/students-calander/internal/auth"
	"github.com/yuvalaufer/students-calander/internal/oauthstate"
	"github.com/yuvalaufer/students-calander/internal/repository"
	"github.com/yuvalaufer/students-calander/pkg/logger"
)

// ErrGoogleNotConfigured is returned by the consent routes when no OAuth client is set up.
var ErrGoogleNotConfigured = errors.New("google oauth client is not configured")

// AuthHandler holds dependencies of the Google consent round-trip.
type AuthHandler struct {
	lifecycle  *auth.Lifecycle
	states     oauthstate.Store
	configured bool
}

func NewAuthHandler(l *auth.Lifecycle, states oauthstate.Store, configured bool) *AuthHandler {
	return &AuthHandler{lifecycle: l, states: states, configured: configured}
}

// Register routes for the consent flow
func (h *AuthHandler) Register(rg gin.IRouter) {
	rg.GET("/api/auth/google", h.Start)
	rg.GET("/api/auth/status", h.Status)
	rg.GET("/oauth2callback", h.Callback)
}

// ConsentURL issues a state and returns the Google consent URL carrying it.
func (h *AuthHandler) ConsentURL(ctx context.Context) (string, error) {
	if !h.configured {
		return "", ErrGoogleNotConfigured
	}
	state, err := h.states.Issue(ctx)
	if err != nil {
		return "", err
	}
	return h.lifecycle.AuthCodeURL(state), nil
}

// Start redirects the tutor to Google's consent screen.
func (h *AuthHandler) Start(c *gin.Context) {
	u, err := h.ConsentURL(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.Redirect(http.StatusFound, u)
}

// Status reports whether a calendar credential is currently held.
func (h *AuthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": h.lifecycle.Authenticated()})
}

// Callback completes the consent: state check, code exchange, persistence.
func (h *AuthHandler) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		writeError(c, fmt.Errorf("%w: consent was not granted (%s)", repository.ErrInvalidInput, e), nil)
		return
	}
	code := c.Query("code")
	if code == "" {
		writeError(c, fmt.Errorf("%w: missing code", repository.ErrInvalidInput), nil)
		return
	}
	ctx := c.Request.Context()
	if err := h.states.Consume(ctx, c.Query("state")); err != nil {
		writeError(c, err, nil)
		return
	}

	cred, err := h.lifecycle.Complete(ctx, code)
	if err != nil {
		if errors.Is(err, auth.ErrNoRefreshToken) {
			logger.Warnf("consent completed without a refresh token; revoke the app's access in the Google account and retry")
		}
		writeError(c, err, nil)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = successPage.Execute(c.Writer, gin.H{"Token": auth.Mask(cred.RefreshToken)})
}

var successPage = template.Must(template.New("ok").Parse(`<!doctype html>
<html>
  <head><meta charset="utf-8" /><title>Calendar connected</title></head>
  <body>
    <h1>Calendar connected</h1>
    <p>The calendar credential ({{.Token}}) was saved. You can close this window and return to the app.</p>
    <p><a href="/">Back to lessons</a></p>
  </body>
</html>`))
