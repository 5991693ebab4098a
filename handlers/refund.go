package handlers

import (
	"net/http"

	"lessonhub/services/refund"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RefundHandler exposes the two-step refund confirm flow.
type RefundHandler struct {
	svc    refund.RefundService
	logger *zap.Logger
}

func NewRefundHandler(svc refund.RefundService, logger *zap.Logger) *RefundHandler {
	return &RefundHandler{svc: svc, logger: logger}
}

// Preview handles POST /api/refunds/preview. The amount field is accepted
// loosely typed; the policy engine normalizes it.
func (h *RefundHandler) Preview(c *gin.Context) {
	var input struct {
		BookingID       string      `json:"bookingId" binding:"required"`
		ReasonCode      string      `json:"reasonCode" binding:"required"`
		RequestedAmount interface{} `json:"requestedAmountCents"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	preview, err := h.svc.Preview(c.Request.Context(), input.BookingID, input.ReasonCode, input.RequestedAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Execute handles POST /api/refunds/execute. Replaying the same idempotency
// key returns the recorded result without refunding twice.
func (h *RefundHandler) Execute(c *gin.Context) {
	var input struct {
		ConfirmationToken string `json:"confirmationToken" binding:"required"`
		IdempotencyKey    string `json:"idempotencyKey" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	execution, err := h.svc.Execute(c.Request.Context(), input.ConfirmationToken, input.IdempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}
