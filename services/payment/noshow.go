// File: services/payment/noshow.go
package payment

import (
	"context"

	"lessonhub/models"
	"lessonhub/services/booking"
	"lessonhub/utils"

	"go.uber.org/zap"
)

// ReportNoShow marks a completed lesson as a no-show and releases the
// authorized hold instead of capturing it. The report is only accepted while
// the capture hold window is still open; once the window elapses the capture
// job settles the funds and the report is refused.
func (e *WorkflowEngine) ReportNoShow(ctx context.Context, bookingID, reporterID string) error {
	release, ok, err := e.Locker.TryLock(ctx, utils.BookingLockPrefix+bookingID, utils.BookingLockTTL)
	if err != nil {
		return booking.NewRepositoryError(err)
	}
	if !ok {
		return booking.NewBusinessRuleError("booking is being processed, retry shortly")
	}
	defer release()

	b, err := e.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return booking.NewRepositoryError(err)
	}
	if b == nil {
		return booking.NewNotFoundError("booking not found")
	}
	if b.Status != models.BookingCompleted || b.PaymentStatus != models.PaymentAuthorized {
		return booking.NewBusinessRuleError("booking is not awaiting capture")
	}
	if b.CompletedAt == nil || e.now().Sub(*b.CompletedAt) > e.CaptureHold {
		return booking.NewBusinessRuleError("no-show reporting window has closed")
	}

	detail, err := e.Repo.GetPaymentDetail(ctx, bookingID)
	if err != nil {
		return booking.NewRepositoryError(err)
	}
	if detail == nil || detail.PaymentIntentID == "" {
		return booking.NewBusinessRuleError("no authorization on file for booking")
	}

	ok, err = e.Repo.SetStatus(ctx, bookingID,
		[]models.BookingStatus{models.BookingCompleted},
		models.BookingNoShow)
	if err != nil {
		return booking.NewRepositoryError(err)
	}
	if !ok {
		return booking.NewBusinessRuleError("booking is not awaiting capture")
	}

	gatewayErr := utils.Measure(e.Logger, "gateway.release", func() error {
		return e.Gateway.Release(ctx, detail.PaymentIntentID)
	})
	if gatewayErr != nil {
		// The row is already off the capture path; the stranded hold
		// expires at the gateway. Surface the failure to the reporter.
		e.Logger.Error("failed to release authorization for no-show",
			zap.String("bookingId", bookingID), zap.Error(gatewayErr))
		return &booking.DomainError{Code: booking.CodeRepository, Message: "payment gateway release failed", Err: gatewayErr}
	}

	if _, err := e.Repo.SetPaymentStatus(ctx, bookingID,
		[]models.PaymentStatus{models.PaymentAuthorized},
		models.PaymentRefunded); err != nil {
		return booking.NewRepositoryError(err)
	}
	if err := e.Repo.ResolveHold(ctx, bookingID, "released"); err != nil {
		e.Logger.Error("failed to resolve hold", zap.String("bookingId", bookingID), zap.Error(err))
	}

	e.Dispatcher.Dispatch(ctx, models.Event{
		Type:      models.EventNoShowReported,
		BookingID: bookingID,
		Recipient: b.InstructorID,
		Data:      map[string]string{"reportedBy": reporterID},
	})
	return nil
}
