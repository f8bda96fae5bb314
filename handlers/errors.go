package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yuvalaufer/students-calander/internal/auth"
	"github.com/yuvalaufer/students-calander/internal/docstore"
	"github.com/yuvalaufer/students-calander/internal/oauthstate"
	"github.com/yuvalaufer/students-calander/internal/repository"
	"github.com/yuvalaufer/students-calander/pkg/logger"
)

// ConsentLinker produces a fresh consent URL for 401 responses.
type ConsentLinker interface {
	ConsentURL(ctx context.Context) (string, error)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrInvalidInput),
		errors.Is(err, docstore.ErrInvalidContent),
		errors.Is(err, oauthstate.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrWrongAccount):
		return http.StatusForbidden
	case errors.Is(err, docstore.ErrRevisionConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError is the single error-to-response mapping of the API.
func writeError(c *gin.Context, err error, linker ConsentLinker) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	switch status {
	case http.StatusUnauthorized:
		if linker != nil {
			if u, lerr := linker.ConsentURL(c.Request.Context()); lerr == nil {
				body["authUrl"] = u
			} else {
				logger.Warnf("could not build consent url: %v", lerr)
			}
		}
	case http.StatusConflict:
		body["error"] = "the data was changed by someone else; reload and try again"
	case http.StatusInternalServerError:
		logger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, body)
}
