// File: services/refund/service.go
package refund

import (
	"context"
	"time"

	"lessonhub/database/repository"
	"lessonhub/models"
	"lessonhub/services/booking"
	"lessonhub/services/notification"
	"lessonhub/services/payment"
	"lessonhub/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// executionRecordTTL keeps idempotent execution records long enough for any
// reasonable client replay.
const executionRecordTTL = 24 * time.Hour

// RefundService implements the two-step confirm pattern: Preview returns a
// short-lived confirmation token plus an idempotency key; Execute is
// replay-safe under that key.
type RefundService interface {
	Preview(ctx context.Context, bookingID, reasonCode string, requestedAmount interface{}) (*models.RefundPreview, error)
	Execute(ctx context.Context, confirmationToken, idempotencyKey string) (*models.RefundExecution, error)
}

// DefaultRefundService is the production implementation.
type DefaultRefundService struct {
	Repo       repository.BookingRepository
	Gateway    payment.Gateway
	Cache      *utils.Cache
	Locker     booking.Locker
	Dispatcher notification.Dispatcher
	Logger     *zap.Logger

	// Now is swappable in tests; defaults to time.Now.
	Now func() time.Time
}

func (s *DefaultRefundService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Preview evaluates the refund policy and, when eligible, stores a
// confirmation token the client must present to Execute.
func (s *DefaultRefundService) Preview(ctx context.Context, bookingID, reasonCode string, requestedAmount interface{}) (*models.RefundPreview, error) {
	b, err := s.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, booking.NewRepositoryError(err)
	}
	if b == nil {
		return nil, booking.NewNotFoundError("booking not found")
	}
	detail, err := s.Repo.GetPaymentDetail(ctx, bookingID)
	if err != nil {
		return nil, booking.NewRepositoryError(err)
	}

	policy := Evaluate(b, detail, reasonCode, requestedAmount, s.now())
	preview := &models.RefundPreview{
		BookingID: bookingID,
		Policy:    policy,
	}
	if !policy.Eligible {
		return preview, nil
	}

	preview.ConfirmationToken = uuid.New().String()
	preview.IdempotencyKey = uuid.New().String()
	preview.ExpiresAt = s.now().Add(utils.RefundPreviewTTL)

	if err := s.Cache.Set(ctx, utils.RefundPreviewPrefix+preview.ConfirmationToken, preview, utils.RefundPreviewTTL); err != nil {
		return nil, booking.NewRepositoryError(err)
	}
	return preview, nil
}

// Execute performs the previewed refund. Replaying the same idempotency key
// returns the stored result without refunding twice.
func (s *DefaultRefundService) Execute(ctx context.Context, confirmationToken, idempotencyKey string) (*models.RefundExecution, error) {
	if confirmationToken == "" || idempotencyKey == "" {
		return nil, booking.NewValidationError("confirmationToken and idempotencyKey are required")
	}

	var replayed models.RefundExecution
	found, err := s.Cache.Get(ctx, utils.RefundExecutionPrefix+idempotencyKey, &replayed)
	if err != nil {
		return nil, booking.NewRepositoryError(err)
	}
	if found {
		replayed.Replayed = true
		return &replayed, nil
	}

	var preview models.RefundPreview
	found, err = s.Cache.Get(ctx, utils.RefundPreviewPrefix+confirmationToken, &preview)
	if err != nil {
		return nil, booking.NewRepositoryError(err)
	}
	if !found {
		return nil, booking.NewValidationError("refund preview expired or unknown; request a new preview")
	}

	release, ok, err := s.Locker.TryLock(ctx, utils.BookingLockPrefix+preview.BookingID, utils.BookingLockTTL)
	if err != nil {
		return nil, booking.NewRepositoryError(err)
	}
	if !ok {
		return nil, booking.NewBusinessRuleError("booking is busy; retry the refund shortly")
	}
	defer release()

	// Fresh read: the booking may have settled, disputed, or refunded since
	// the preview.
	b, err := s.Repo.GetByID(ctx, preview.BookingID)
	if err != nil {
		return nil, booking.NewRepositoryError(err)
	}
	if b == nil {
		return nil, booking.NewNotFoundError("booking not found")
	}
	if !refundableStatuses[b.PaymentStatus] {
		return nil, booking.NewBusinessRuleError("booking payment is no longer refundable")
	}

	execution := &models.RefundExecution{
		BookingID:  preview.BookingID,
		Policy:     preview.Policy,
		ExecutedAt: s.now().UTC(),
	}

	if preview.Policy.Method == models.RefundMethodCard && preview.Policy.StudentCardRefundCents > 0 {
		detail, err := s.Repo.GetPaymentDetail(ctx, preview.BookingID)
		if err != nil {
			return nil, booking.NewRepositoryError(err)
		}
		if detail == nil || detail.PaymentIntentID == "" {
			return nil, booking.NewBusinessRuleError("no captured payment to refund")
		}
		result, err := s.Gateway.Refund(ctx, detail.PaymentIntentID, preview.Policy.StudentCardRefundCents)
		if err != nil {
			return nil, booking.NewRepositoryError(err)
		}
		execution.RefundID = result.RefundID
	}

	if _, err := s.Repo.SetPaymentStatus(ctx, preview.BookingID,
		[]models.PaymentStatus{models.PaymentAuthorized, models.PaymentSettled},
		models.PaymentRefunded); err != nil {
		return nil, booking.NewRepositoryError(err)
	}

	if err := s.Cache.Set(ctx, utils.RefundExecutionPrefix+idempotencyKey, execution, executionRecordTTL); err != nil {
		s.Logger.Error("failed to store refund execution record",
			zap.String("bookingId", preview.BookingID), zap.Error(err))
	}
	s.Cache.Invalidate(ctx, utils.RefundPreviewPrefix+confirmationToken)

	s.Dispatcher.Dispatch(ctx, models.Event{
		Type:      models.EventRefundIssued,
		BookingID: preview.BookingID,
		Recipient: b.StudentID,
	})
	return execution, nil
}
