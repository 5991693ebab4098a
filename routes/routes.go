package routes

import (
	"lessonhub/handlers"
	"lessonhub/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Register wires all HTTP endpoints onto the router.
func Register(
	r *gin.Engine,
	bookingHandler *handlers.BookingHandler,
	availabilityHandler *handlers.AvailabilityHandler,
	refundHandler *handlers.RefundHandler,
	paymentHandler *handlers.PaymentHandler,
) {
	r.Use(cors.Default())
	r.GET("/healthz", handlers.Health)

	api := r.Group("/api")
	api.Use(middleware.PrincipalMiddleware())
	api.Use(middleware.RateLimitMiddleware())

	bookings := api.Group("/bookings")
	{
		bookings.POST("", middleware.RequireScope("bookings:write"), bookingHandler.CreateBooking)
		bookings.GET("/:id", middleware.RequireScope("bookings:read"), bookingHandler.Get)
		bookings.POST("/:id/payment", middleware.RequireScope("bookings:write"), bookingHandler.ConfirmPayment)
		bookings.POST("/:id/cancel", middleware.RequireScope("bookings:write"), bookingHandler.Cancel)
		bookings.POST("/:id/no-show", middleware.RequireScope("bookings:write"), paymentHandler.ReportNoShow)
		bookings.DELETE("/:id", middleware.RequireScope("bookings:admin"), bookingHandler.Delete)
	}

	instructors := api.Group("/instructors")
	{
		instructors.PUT("/:id/availability", middleware.RequireScope("availability:write"), availabilityHandler.UpsertWeek)
		instructors.GET("/:id/availability", availabilityHandler.GetRange)
		instructors.POST("/:id/availability/backfill", middleware.RequireScope("availability:write"), availabilityHandler.Backfill)
	}

	refunds := api.Group("/refunds")
	{
		refunds.POST("/preview", middleware.RequireScope("bookings:write"), refundHandler.Preview)
		refunds.POST("/execute", middleware.RequireScope("bookings:write"), refundHandler.Execute)
	}

	// Webhooks are authenticated as service principals.
	api.POST("/webhooks/disputes", middleware.RequireScope("webhooks:disputes"), paymentHandler.DisputeWebhook)
}
