// File: services/payment/engine.go
package payment

import (
	"context"
	"math"
	"math/rand"
	"time"

	"lessonhub/database/repository"
	"lessonhub/models"
	"lessonhub/services/booking"
	"lessonhub/services/notification"
	"lessonhub/utils"

	"go.uber.org/zap"
)

// Skip reasons reported in job summaries.
const (
	SkipLockContended = "lock_contended"
	SkipMissing       = "missing"
	SkipStateChanged  = "state_changed"
	SkipCancelled     = "cancelled"
	SkipSettled       = "already_settled"
	SkipManualReview  = "manual_review"
	SkipNotEligible   = "not_yet_eligible"
	SkipBackoff       = "backoff"
	SkipNoMethod      = "no_payment_method"
)

// WorkflowEngine runs the time-triggered payment jobs. Every per-booking
// mutation follows the three-phase pattern: a short read-validate phase, the
// gateway call with no transaction held, then a short persist phase — all
// under the per-booking lock, after a fresh read of the row.
type WorkflowEngine struct {
	Repo       repository.BookingRepository
	Gateway    Gateway
	Locker     booking.Locker
	Dispatcher notification.Dispatcher
	Logger     *zap.Logger

	AuthorizationWindow time.Duration
	RetryDeadline       time.Duration
	CaptureHold         time.Duration
	MaxAuthAttempts     int
	BatchSize           int

	// Now is swappable in tests; defaults to time.Now.
	Now func() time.Time
}

func (e *WorkflowEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *WorkflowEngine) batch() int {
	if e.BatchSize > 0 {
		return e.BatchSize
	}
	return 100
}

// withBookingLock acquires the per-booking lock non-blocking, performs a fresh
// read, and hands the current row to fn. A contended lock or missing row is
// recorded as a labeled skip; the next scheduled run picks the booking up
// again.
func (e *WorkflowEngine) withBookingLock(ctx context.Context, bookingID string, summary *models.JobSummary, fn func(fresh *models.Booking)) {
	summary.Processed++
	release, ok, err := e.Locker.TryLock(ctx, utils.BookingLockPrefix+bookingID, utils.BookingLockTTL)
	if err != nil {
		e.Logger.Error("lock acquisition failed", zap.String("bookingId", bookingID), zap.Error(err))
		summary.Failed++
		return
	}
	if !ok {
		summary.Skip(SkipLockContended)
		return
	}
	defer release()

	fresh, err := e.Repo.GetByID(ctx, bookingID)
	if err != nil {
		e.Logger.Error("fresh read failed", zap.String("bookingId", bookingID), zap.Error(err))
		summary.Failed++
		return
	}
	if fresh == nil {
		summary.Skip(SkipMissing)
		return
	}
	fn(fresh)
}

// ProcessScheduledAuthorizations authorizes confirmed bookings with a deferred
// authorization whose lesson starts within the authorization window.
func (e *WorkflowEngine) ProcessScheduledAuthorizations(ctx context.Context) models.JobSummary {
	summary := models.JobSummary{Job: "processScheduledAuthorizations"}
	now := e.now()

	candidates, err := e.Repo.FindScheduledForAuthorization(ctx, now.Add(e.AuthorizationWindow), e.batch())
	if err != nil {
		e.Logger.Error("failed to select scheduled authorizations", zap.Error(err))
		return summary
	}

	for _, candidate := range candidates {
		e.withBookingLock(ctx, candidate.ID, &summary, func(fresh *models.Booking) {
			if fresh.Status != models.BookingConfirmed || fresh.PaymentStatus != models.PaymentScheduled {
				summary.Skip(SkipStateChanged)
				return
			}
			e.authorize(ctx, fresh, &summary)
		})
	}
	e.logSummary(summary)
	return summary
}

// RetryFailedAuthorizations retries failed authorizations with exponential
// backoff and jitter. At or inside the hard retry deadline before the lesson
// the booking is cancelled instead — never retried.
func (e *WorkflowEngine) RetryFailedAuthorizations(ctx context.Context) models.JobSummary {
	summary := models.JobSummary{Job: "retryFailedAuthorizations"}
	now := e.now()

	candidates, err := e.Repo.FindAuthFailed(ctx, e.batch())
	if err != nil {
		e.Logger.Error("failed to select failed authorizations", zap.Error(err))
		return summary
	}

	for _, candidate := range candidates {
		e.withBookingLock(ctx, candidate.ID, &summary, func(fresh *models.Booking) {
			if fresh.Status != models.BookingConfirmed || fresh.PaymentStatus != models.PaymentAuthFailed {
				summary.Skip(SkipStateChanged)
				return
			}

			if fresh.HoursUntilStart(now) <= e.RetryDeadline.Hours() {
				e.cancelUnauthorizable(ctx, fresh, "authorization retry deadline reached")
				summary.Cancelled++
				return
			}

			detail, err := e.Repo.GetPaymentDetail(ctx, fresh.ID)
			if err != nil {
				e.Logger.Error("failed to load payment detail", zap.String("bookingId", fresh.ID), zap.Error(err))
				summary.Failed++
				return
			}
			if detail == nil || detail.PaymentMethodID == "" {
				summary.Skip(SkipNoMethod)
				return
			}
			if detail.AuthFailureCount >= e.MaxAuthAttempts {
				e.cancelUnauthorizable(ctx, fresh, "authorization attempts exhausted")
				summary.Cancelled++
				return
			}
			if now.Sub(detail.UpdatedAt) < backoffDelay(detail.AuthFailureCount) {
				summary.Skip(SkipBackoff)
				return
			}
			e.authorize(ctx, fresh, &summary)
		})
	}
	e.logSummary(summary)
	return summary
}

// CaptureCompletedLessons captures the held amount for completed lessons once
// the dispute/no-show holding window has elapsed. Cancelled, already-settled,
// disputed, and not-yet-eligible bookings are skipped, never failed.
func (e *WorkflowEngine) CaptureCompletedLessons(ctx context.Context) models.JobSummary {
	summary := models.JobSummary{Job: "captureCompletedLessons"}
	now := e.now()

	candidates, err := e.Repo.FindCapturable(ctx, now.Add(-e.CaptureHold), e.batch())
	if err != nil {
		e.Logger.Error("failed to select capturable lessons", zap.Error(err))
		return summary
	}

	for _, candidate := range candidates {
		e.withBookingLock(ctx, candidate.ID, &summary, func(fresh *models.Booking) {
			switch {
			case fresh.Status == models.BookingCancelled:
				summary.Skip(SkipCancelled)
				return
			case fresh.PaymentStatus == models.PaymentSettled:
				summary.Skip(SkipSettled)
				return
			case fresh.PaymentStatus == models.PaymentManualReview:
				summary.Skip(SkipManualReview)
				return
			case fresh.Status != models.BookingCompleted || fresh.PaymentStatus != models.PaymentAuthorized:
				summary.Skip(SkipStateChanged)
				return
			case fresh.CompletedAt == nil || fresh.CompletedAt.After(now.Add(-e.CaptureHold)):
				summary.Skip(SkipNotEligible)
				return
			}
			e.capture(ctx, fresh, "captured", &summary)
		})
	}
	e.logSummary(summary)
	return summary
}

// CaptureLateCancellation captures the held amount when a student cancels
// inside the no-refund window. Invoked directly, not batch-scheduled, with
// the same lock and fresh-read guards.
func (e *WorkflowEngine) CaptureLateCancellation(ctx context.Context, bookingID string) models.JobSummary {
	summary := models.JobSummary{Job: "captureLateCancellation"}

	e.withBookingLock(ctx, bookingID, &summary, func(fresh *models.Booking) {
		if fresh.Status != models.BookingCancelled || fresh.PaymentStatus != models.PaymentAuthorized {
			summary.Skip(SkipStateChanged)
			return
		}
		e.capture(ctx, fresh, "late_cancellation", &summary)
	})
	e.logSummary(summary)
	return summary
}

// CompleteElapsedLessons marks confirmed bookings whose lesson end has passed
// as completed, feeding the capture job.
func (e *WorkflowEngine) CompleteElapsedLessons(ctx context.Context) models.JobSummary {
	summary := models.JobSummary{Job: "completeElapsedLessons"}
	now := e.now()

	candidates, err := e.Repo.FindElapsedConfirmed(ctx, now, e.batch())
	if err != nil {
		e.Logger.Error("failed to select elapsed lessons", zap.Error(err))
		return summary
	}
	for _, candidate := range candidates {
		e.withBookingLock(ctx, candidate.ID, &summary, func(fresh *models.Booking) {
			if fresh.Status != models.BookingConfirmed || fresh.EndUTC.After(now) {
				summary.Skip(SkipStateChanged)
				return
			}
			ok, err := e.Repo.SetStatus(ctx, fresh.ID,
				[]models.BookingStatus{models.BookingConfirmed},
				models.BookingCompleted)
			if err != nil {
				e.Logger.Error("failed to complete booking", zap.String("bookingId", fresh.ID), zap.Error(err))
				summary.Failed++
				return
			}
			if !ok {
				summary.Skip(SkipStateChanged)
				return
			}
			summary.Succeeded++
		})
	}
	e.logSummary(summary)
	return summary
}

// AuthorizeBooking runs one immediate authorization attempt for a booking in
// the authorizing state; dispatched when payment is confirmed close to the
// lesson start.
func (e *WorkflowEngine) AuthorizeBooking(ctx context.Context, bookingID string) models.JobSummary {
	summary := models.JobSummary{Job: "authorizeBooking"}

	e.withBookingLock(ctx, bookingID, &summary, func(fresh *models.Booking) {
		if fresh.Status != models.BookingConfirmed ||
			(fresh.PaymentStatus != models.PaymentAuthorizing && fresh.PaymentStatus != models.PaymentScheduled) {
			summary.Skip(SkipStateChanged)
			return
		}
		e.authorize(ctx, fresh, &summary)
	})
	e.logSummary(summary)
	return summary
}

// authorize performs the three phases of one authorization attempt. The
// caller holds the per-booking lock and has fresh-read-validated the row.
func (e *WorkflowEngine) authorize(ctx context.Context, b *models.Booking, summary *models.JobSummary) {
	// Phase 1: short validation reads.
	detail, err := e.Repo.GetPaymentDetail(ctx, b.ID)
	if err != nil {
		e.Logger.Error("failed to load payment detail", zap.String("bookingId", b.ID), zap.Error(err))
		summary.Failed++
		return
	}
	if detail == nil || detail.PaymentMethodID == "" {
		summary.Skip(SkipNoMethod)
		return
	}
	ok, err := e.Repo.SetPaymentStatus(ctx, b.ID,
		[]models.PaymentStatus{models.PaymentScheduled, models.PaymentAuthorizing, models.PaymentAuthFailed},
		models.PaymentAuthorizing)
	if err != nil {
		summary.Failed++
		return
	}
	if !ok {
		summary.Skip(SkipStateChanged)
		return
	}

	// Phase 2: gateway call, no transaction held.
	var result *models.AuthorizationResult
	gatewayErr := utils.Measure(e.Logger, "gateway.authorize", func() error {
		var err error
		result, err = e.Gateway.Authorize(ctx, AuthorizeRequest{
			BookingID:       b.ID,
			PaymentMethodID: detail.PaymentMethodID,
			AmountCents:     b.TotalPriceCents,
			StudentID:       b.StudentID,
		})
		return err
	})

	// Phase 3: persist the outcome.
	if gatewayErr != nil {
		detail.AuthFailureCount++
		if err := e.Repo.UpsertPaymentDetail(ctx, detail); err != nil {
			e.Logger.Error("failed to record auth failure count", zap.String("bookingId", b.ID), zap.Error(err))
		}
		if _, err := e.Repo.SetPaymentStatus(ctx, b.ID,
			[]models.PaymentStatus{models.PaymentAuthorizing},
			models.PaymentAuthFailed); err != nil {
			e.Logger.Error("failed to mark auth_failed", zap.String("bookingId", b.ID), zap.Error(err))
		}
		e.Dispatcher.Dispatch(ctx, models.Event{
			Type:      models.EventAuthorizationFailed,
			BookingID: b.ID,
			Recipient: b.StudentID,
		})
		summary.Failed++
		return
	}

	detail.PaymentIntentID = result.PaymentIntentID
	if err := e.Repo.UpsertPaymentDetail(ctx, detail); err != nil {
		e.Logger.Error("failed to persist payment intent", zap.String("bookingId", b.ID), zap.Error(err))
		summary.Failed++
		return
	}
	if err := e.Repo.CreateHold(ctx, &models.PaymentHold{
		BookingID:       b.ID,
		HeldAmountCents: result.AmountCents,
	}); err != nil {
		e.Logger.Error("failed to record payment hold", zap.String("bookingId", b.ID), zap.Error(err))
	}
	ok, err = e.Repo.SetPaymentStatus(ctx, b.ID,
		[]models.PaymentStatus{models.PaymentAuthorizing},
		models.PaymentAuthorized)
	if err != nil {
		summary.Failed++
		return
	}
	if !ok {
		e.Logger.Warn("payment state changed after gateway authorization",
			zap.String("bookingId", b.ID))
		summary.Skip(SkipStateChanged)
		return
	}
	summary.Succeeded++
}

// capture performs the three phases of a capture, resolving the hold with the
// given resolution label.
func (e *WorkflowEngine) capture(ctx context.Context, b *models.Booking, resolution string, summary *models.JobSummary) {
	detail, err := e.Repo.GetPaymentDetail(ctx, b.ID)
	if err != nil || detail == nil || detail.PaymentIntentID == "" {
		e.Logger.Error("missing payment intent for capture", zap.String("bookingId", b.ID), zap.Error(err))
		summary.Failed++
		return
	}

	var result *models.CaptureResult
	gatewayErr := utils.Measure(e.Logger, "gateway.capture", func() error {
		var err error
		result, err = e.Gateway.Capture(ctx, detail.PaymentIntentID, b.TotalPriceCents)
		return err
	})
	if gatewayErr != nil {
		detail.CaptureRetries++
		if err := e.Repo.UpsertPaymentDetail(ctx, detail); err != nil {
			e.Logger.Error("failed to record capture retry", zap.String("bookingId", b.ID), zap.Error(err))
		}
		summary.Failed++
		return
	}

	ok, err := e.Repo.SetPaymentStatus(ctx, b.ID,
		[]models.PaymentStatus{models.PaymentAuthorized},
		models.PaymentSettled)
	if err != nil || !ok {
		e.Logger.Error("failed to settle booking", zap.String("bookingId", b.ID), zap.Error(err))
		summary.Failed++
		return
	}
	if err := e.Repo.ResolveHold(ctx, b.ID, resolution); err != nil {
		e.Logger.Error("failed to resolve hold", zap.String("bookingId", b.ID), zap.Error(err))
	}
	if err := e.Repo.UpsertTransfer(ctx, &models.Transfer{
		BookingID:  b.ID,
		TransferID: result.ChargeID,
	}); err != nil {
		e.Logger.Error("failed to record transfer", zap.String("bookingId", b.ID), zap.Error(err))
	}
	e.Dispatcher.Dispatch(ctx, models.Event{
		Type:      models.EventLessonCaptured,
		BookingID: b.ID,
		Recipient: b.InstructorID,
	})
	summary.Succeeded++
}

// cancelUnauthorizable cancels a booking whose payment could not be secured
// in time and emits the failure notification.
func (e *WorkflowEngine) cancelUnauthorizable(ctx context.Context, b *models.Booking, reason string) {
	ok, err := e.Repo.SetStatus(ctx, b.ID,
		[]models.BookingStatus{models.BookingPending, models.BookingConfirmed},
		models.BookingCancelled)
	if err != nil {
		e.Logger.Error("failed to cancel booking", zap.String("bookingId", b.ID), zap.Error(err))
		return
	}
	if !ok {
		e.Logger.Warn("booking left the cancellable states before workflow cancel",
			zap.String("bookingId", b.ID))
		return
	}
	e.Dispatcher.Dispatch(ctx, models.Event{
		Type:      models.EventBookingCancelled,
		BookingID: b.ID,
		Recipient: b.StudentID,
		Data:      map[string]string{"reason": reason},
	})
	e.Logger.Info("booking cancelled by payment workflow",
		zap.String("bookingId", b.ID),
		zap.String("reason", reason),
	)
}

func (e *WorkflowEngine) logSummary(s models.JobSummary) {
	e.Logger.Info("payment job finished",
		zap.String("job", s.Job),
		zap.Int("processed", s.Processed),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
		zap.Int("cancelled", s.Cancelled),
	)
}

// backoffDelay returns the exponential backoff with jitter before retry
// attempt n: base 2^n minutes, capped at an hour, plus up to 25% jitter.
func backoffDelay(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt))) * time.Minute
	if base > time.Hour {
		base = time.Hour
	}
	jitter := time.Duration(rand.Int63n(int64(base / 4)))
	return base + jitter
}
