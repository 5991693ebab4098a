// File: services/payment/disputes.go
package payment

import (
	"context"

	"lessonhub/models"
	"lessonhub/services/booking"
)

// OpenDispute records a gateway dispute against a booking and parks its
// payment in manual review so the capture job skips it. The Dispute satellite
// is created lazily, on the first webhook for the booking.
func (e *WorkflowEngine) OpenDispute(ctx context.Context, bookingID, gatewayDisputeID string, amountCents int64) error {
	b, err := e.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return booking.NewRepositoryError(err)
	}
	if b == nil {
		return booking.NewNotFoundError("booking not found")
	}

	existing, err := e.Repo.GetDisputeByBooking(ctx, bookingID)
	if err != nil {
		return booking.NewRepositoryError(err)
	}
	if existing == nil {
		if err := e.Repo.CreateDispute(ctx, &models.Dispute{
			BookingID:   bookingID,
			GatewayID:   gatewayDisputeID,
			Status:      "open",
			AmountCents: amountCents,
			OpenedAt:    e.now().UTC(),
		}); err != nil {
			return booking.NewRepositoryError(err)
		}
	}

	if _, err := e.Repo.SetPaymentStatus(ctx, bookingID,
		[]models.PaymentStatus{models.PaymentAuthorized, models.PaymentSettled},
		models.PaymentManualReview); err != nil {
		return booking.NewRepositoryError(err)
	}

	e.Dispatcher.Dispatch(ctx, models.Event{
		Type:      models.EventDisputeOpened,
		BookingID: bookingID,
		Recipient: b.InstructorID,
	})
	return nil
}

// ResolveDispute closes a dispute. A dispute won by the platform returns the
// payment to settled; a lost dispute marks it refunded.
func (e *WorkflowEngine) ResolveDispute(ctx context.Context, bookingID, outcome string) error {
	dispute, err := e.Repo.GetDisputeByBooking(ctx, bookingID)
	if err != nil {
		return booking.NewRepositoryError(err)
	}
	if dispute == nil {
		return booking.NewNotFoundError("no dispute for booking")
	}
	if dispute.ResolvedAt != nil {
		return nil
	}

	target := models.PaymentSettled
	if outcome == "lost" {
		target = models.PaymentRefunded
	}
	if _, err := e.Repo.SetPaymentStatus(ctx, bookingID,
		[]models.PaymentStatus{models.PaymentManualReview},
		target); err != nil {
		return booking.NewRepositoryError(err)
	}
	if err := e.Repo.ResolveDispute(ctx, bookingID, outcome); err != nil {
		return booking.NewRepositoryError(err)
	}
	return nil
}
