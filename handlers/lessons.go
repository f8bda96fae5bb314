package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuvalaufer/students-calander/internal/lessons"
	"github.com/yuvalaufer/students-calander/internal/repository"
)

// LessonsHandler serves calendar lessons merged with payment status.
type LessonsHandler struct {
	reconciler *lessons.Reconciler
	linker     ConsentLinker
	window     time.Duration
	now        func() time.Time
}

func NewLessonsHandler(r *lessons.Reconciler, linker ConsentLinker, windowDays int) *LessonsHandler {
	return &LessonsHandler{
		reconciler: r,
		linker:     linker,
		window:     time.Duration(windowDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

func (h *LessonsHandler) Register(rg gin.IRouter) {
	rg.GET("/api/calendar/events", h.List)
}

// List accepts optional from/to as RFC 3339 timestamps or dates.
func (h *LessonsHandler) List(c *gin.Context) {
	start := h.now()
	if v := c.Query("from"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			writeError(c, fmt.Errorf("%w: from: %v", repository.ErrInvalidInput, err), nil)
			return
		}
		start = t
	}
	end := start.Add(h.window)
	if v := c.Query("to"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			writeError(c, fmt.Errorf("%w: to: %v", repository.ErrInvalidInput, err), nil)
			return
		}
		end = t
	}

	merged, err := h.reconciler.ListUpcoming(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, err, h.linker)
		return
	}
	c.JSON(http.StatusOK, merged)
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
