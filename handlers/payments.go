package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yuvalaufer/students-calander/internal/repository"
)

type PaymentsHandler struct {
	ledgers *repository.Ledgers
}

func NewPaymentsHandler(l *repository.Ledgers) *PaymentsHandler {
	return &PaymentsHandler{ledgers: l}
}

func (h *PaymentsHandler) Register(rg gin.IRouter) {
	rg.POST("/api/payments/save", h.Save)
}

type savePaymentRequest struct {
	LessonKey string `json:"lessonKey"`
	Status    string `json:"status"`
}

// Save records the payment status of one lesson. A concurrent ledger change answers 409.
func (h *PaymentsHandler) Save(c *gin.Context) {
	var req savePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.ledgers.RecordPayment(c.Request.Context(), req.LessonKey, req.Status)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "lessonKey": strings.TrimSpace(req.LessonKey), "status": rec.Status, "updated": rec.UpdatedAt})
}
