package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yuvalaufer/students-calander/internal/docstore"
	"github.com/yuvalaufer/students-calander/internal/repository"
)

// StudentsHandler serves the roster.
type StudentsHandler struct {
	rosters *repository.Rosters
}

func NewStudentsHandler(r *repository.Rosters) *StudentsHandler {
	return &StudentsHandler{rosters: r}
}

func (h *StudentsHandler) Register(rg gin.IRouter) {
	rg.GET("/api/students", h.List)
	rg.POST("/api/students/save", h.Save)
}

// List returns the roster; the ETag header carries its revision.
func (h *StudentsHandler) List(c *gin.Context) {
	students, rev, err := h.rosters.Load(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	setETag(c, rev)
	c.JSON(http.StatusOK, students)
}

type saveStudentsRequest struct {
	Students []repository.StudentInput `json:"students"`
	Revision string                    `json:"revision"`
}

// Save replaces the roster. The expected revision comes from the body, then If-Match;
// without either the current revision is read, so the request overwrites whatever is stored.
func (h *StudentsHandler) Save(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req saveStudentsRequest
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		// bare array form
		err = json.Unmarshal(raw, &req.Students)
	} else {
		err = json.Unmarshal(raw, &req)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	expected := docstore.Revision(req.Revision)
	if expected == docstore.NoRevision {
		expected = parseIfMatch(c.GetHeader("If-Match"))
	}
	if expected == docstore.NoRevision && req.Students != nil {
		_, current, err := h.rosters.Load(ctx)
		if err != nil {
			writeError(c, err, nil)
			return
		}
		expected = current
	}

	students, rev, err := h.rosters.Save(ctx, req.Students, expected)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	setETag(c, rev)
	c.JSON(http.StatusOK, gin.H{"ok": true, "revision": rev.String(), "students": students})
}

func setETag(c *gin.Context, rev docstore.Revision) {
	if rev != docstore.NoRevision {
		c.Header("ETag", `"`+rev.String()+`"`)
	}
}

func parseIfMatch(v string) docstore.Revision {
	v = strings.TrimSpace(v)
	if v == "" || v == "*" {
		return docstore.NoRevision
	}
	v = strings.TrimPrefix(v, "W/")
	return docstore.Revision(strings.Trim(v, `"`))
}
