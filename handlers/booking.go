package handlers

import (
	"net/http"

	"lessonhub/models"
	"lessonhub/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler exposes the booking lifecycle over HTTP.
type BookingHandler struct {
	svc    booking.BookingService
	logger *zap.Logger
}

func NewBookingHandler(svc booking.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// CreateBooking handles POST /api/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var input struct {
		StudentID    string   `json:"studentId" binding:"required"`
		InstructorID string   `json:"instructorId" binding:"required"`
		ServiceID    string   `json:"serviceId" binding:"required"`
		Date         string   `json:"date" binding:"required"`
		Start        int      `json:"start"`
		DurationMin  int      `json:"durationMin" binding:"required"`
		Latitude     *float64 `json:"latitude"`
		Longitude    *float64 `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	created, err := h.svc.CreateBooking(c.Request.Context(), booking.CreateBookingRequest{
		StudentID:    input.StudentID,
		InstructorID: input.InstructorID,
		ServiceID:    input.ServiceID,
		Date:         input.Date,
		Start:        input.Start,
		DurationMin:  input.DurationMin,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewBookingResponse(created))
}

// ConfirmPayment handles POST /api/bookings/:id/payment.
func (h *BookingHandler) ConfirmPayment(c *gin.Context) {
	var input struct {
		PaymentMethodID string `json:"paymentMethodId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	confirmed, err := h.svc.ConfirmBookingPayment(c.Request.Context(), c.Param("id"), input.PaymentMethodID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewBookingResponse(confirmed))
}

// Cancel handles POST /api/bookings/:id/cancel. Cancelling an already
// cancelled booking succeeds without side effects.
func (h *BookingHandler) Cancel(c *gin.Context) {
	var input struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&input)

	cancelled, err := h.svc.CancelBooking(c.Request.Context(), c.Param("id"), input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewBookingResponse(cancelled))
}

// Get handles GET /api/bookings/:id.
func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.svc.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewBookingResponse(b))
}

// Delete handles DELETE /api/bookings/:id; the booking and its satellite
// payment records go together.
func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteBooking(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
