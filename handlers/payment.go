package handlers

import (
	"net/http"

	"lessonhub/services/payment"
	"lessonhub/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler ingests gateway webhooks and exposes health.
type PaymentHandler struct {
	engine *payment.WorkflowEngine
	logger *zap.Logger
}

func NewPaymentHandler(engine *payment.WorkflowEngine, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{engine: engine, logger: logger}
}

// DisputeWebhook handles POST /api/webhooks/disputes. Opening a dispute parks
// the booking's payment in manual review; the capture job skips it from then
// on.
func (h *PaymentHandler) DisputeWebhook(c *gin.Context) {
	var input struct {
		BookingID   string `json:"bookingId" binding:"required"`
		DisputeID   string `json:"disputeId" binding:"required"`
		AmountCents int64  `json:"amountCents"`
		Status      string `json:"status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	var err error
	switch input.Status {
	case "won", "lost":
		err = h.engine.ResolveDispute(c.Request.Context(), input.BookingID, input.Status)
	default:
		err = h.engine.OpenDispute(c.Request.Context(), input.BookingID, input.DisputeID, input.AmountCents)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// ReportNoShow handles POST /api/bookings/:id/no-show. Accepted only while
// the capture hold window is open; the authorized funds are released back to
// the student.
func (h *PaymentHandler) ReportNoShow(c *gin.Context) {
	var input struct {
		ReporterID string `json:"reporterId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	if err := h.engine.ReportNoShow(c.Request.Context(), c.Param("id"), input.ReporterID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reported": true})
}

// Health handles GET /healthz.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, utils.GetHealthStatus())
}
