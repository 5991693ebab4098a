package handlers

import (
	"net/http"

	"lessonhub/models"
	"lessonhub/services/availability"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AvailabilityHandler exposes instructor availability management.
type AvailabilityHandler struct {
	svc    availability.AvailabilityService
	logger *zap.Logger
}

func NewAvailabilityHandler(svc availability.AvailabilityService, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, logger: logger}
}

// UpsertWeek handles PUT /api/instructors/:id/availability. Each posted day
// replaces the stored bitset wholesale; the week read cache is invalidated.
func (h *AvailabilityHandler) UpsertWeek(c *gin.Context) {
	var input struct {
		Days []models.DayWindows `json:"days" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	written, err := h.svc.UpsertWeek(c.Request.Context(), c.Param("id"), input.Days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rowsWritten": written})
}

// GetRange handles GET /api/instructors/:id/availability?start=...&end=...
func (h *AvailabilityHandler) GetRange(c *gin.Context) {
	start := c.Query("start")
	end := c.Query("end")
	if start == "" || end == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end query params are required"})
		return
	}

	days, err := h.svc.GetRange(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// Backfill handles POST /api/instructors/:id/availability/backfill.
func (h *AvailabilityHandler) Backfill(c *gin.Context) {
	var input struct {
		Days int `json:"days" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	written, err := h.svc.BackfillFromCurrentWeek(c.Request.Context(), c.Param("id"), input.Days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rowsWritten": written})
}
