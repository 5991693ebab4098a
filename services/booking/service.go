package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lessonhub/database/repository"
	bookingRepo "lessonhub/database/repository/booking"
	"lessonhub/models"
	"lessonhub/services/notification"
	"lessonhub/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// reminderLead is how long before the lesson start the student reminder
// fires.
const reminderLead = 2 * time.Hour

// BookingService orchestrates the booking lifecycle: creation, payment-method
// attachment, cancellation, completion.
type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error)
	ConfirmBookingPayment(ctx context.Context, bookingID, paymentMethodID string) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason string) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	DeleteBooking(ctx context.Context, bookingID string) error
}

// TaskEnqueuer hands time-sensitive payment work to the background worker.
type TaskEnqueuer interface {
	EnqueueImmediateAuthorization(ctx context.Context, bookingID string) error
	EnqueueLateCancellationCapture(ctx context.Context, bookingID string) error
}

// Locker provides non-blocking per-key mutual exclusion.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error)
}

// CreateBookingRequest is the validated input for a new booking.
type CreateBookingRequest struct {
	StudentID    string
	InstructorID string
	ServiceID    string
	Date         string
	Start        int
	DurationMin  int
	Latitude     *float64
	Longitude    *float64
}

// DefaultBookingService is the production implementation.
type DefaultBookingService struct {
	Repo           repository.BookingRepository
	InstructorRepo repository.InstructorRepository
	Arbiter        *ConflictArbiter
	Dispatcher     notification.Dispatcher
	Tasks          TaskEnqueuer
	Locker         Locker
	Logger         *zap.Logger

	// Policy knobs, injected from config.
	MinAdvanceNotice    time.Duration
	AuthorizationWindow time.Duration
	PlatformFeeRate     float64

	// Now is swappable in tests; defaults to time.Now.
	Now func() time.Time
}

func (s *DefaultBookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateBooking validates prerequisites, runs the conflict arbiter, and
// persists the booking as pending/pending_payment_method. The guarded insert
// makes the loser of two concurrent conflicting requests fail with a slot
// conflict instead of double-booking.
func (s *DefaultBookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if req.StudentID == "" || req.InstructorID == "" || req.ServiceID == "" {
		return nil, NewValidationError("studentId, instructorId and serviceId are required")
	}
	if req.DurationMin <= 0 {
		return nil, NewValidationError("duration must be positive")
	}
	end := req.Start + req.DurationMin
	if req.Start < 0 || end > 24*60 {
		return nil, NewValidationError("booking window must fall within a single day")
	}

	instructor, err := s.InstructorRepo.GetByID(ctx, req.InstructorID)
	if err != nil {
		return nil, NewRepositoryError(err)
	}
	if instructor == nil {
		return nil, NewNotFoundError("instructor not found")
	}
	if !instructor.Verified || !instructor.Live {
		return nil, NewBusinessRuleError("instructor is not verified and live")
	}

	service, err := s.InstructorRepo.GetServiceByID(ctx, req.ServiceID)
	if err != nil {
		return nil, NewRepositoryError(err)
	}
	if service == nil {
		return nil, NewNotFoundError("service not found")
	}
	if !service.Active {
		return nil, NewBusinessRuleError("service is not active")
	}
	if service.InstructorID != instructor.ID {
		return nil, NewValidationError("service does not belong to this instructor")
	}

	startUTC, endUTC, err := resolveUTC(req.Date, req.Start, end, instructor.Timezone)
	if err != nil {
		return nil, NewValidationError(err.Error())
	}
	if startUTC.Sub(s.now()) < s.MinAdvanceNotice {
		return nil, NewBusinessRuleError(fmt.Sprintf("bookings require at least %s advance notice", s.MinAdvanceNotice))
	}

	if err := s.Arbiter.Admit(ctx, AdmissionRequest{
		Instructor: instructor,
		Date:       req.Date,
		Start:      req.Start,
		End:        end,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	}); err != nil {
		return nil, err
	}

	total := instructor.HourlyRateCents * int64(req.DurationMin) / 60
	fee := int64(float64(total) * s.PlatformFeeRate)

	now := s.now().UTC()
	booking := &models.Booking{
		ID:               uuid.New().String(),
		StudentID:        req.StudentID,
		InstructorID:     req.InstructorID,
		ServiceID:        req.ServiceID,
		Date:             req.Date,
		Start:            req.Start,
		End:              end,
		StartUTC:         startUTC,
		EndUTC:           endUTC,
		Timezone:         instructor.Timezone,
		Status:           models.BookingPending,
		PaymentStatus:    models.PaymentPendingMethod,
		HourlyRateCents:  instructor.HourlyRateCents,
		TotalPriceCents:  total,
		PlatformFeeCents: fee,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.Repo.CreateBookingGuarded(ctx, booking); err != nil {
		if errors.Is(err, bookingRepo.ErrSlotTaken) {
			return nil, NewSlotConflictError()
		}
		return nil, NewRepositoryError(err)
	}

	s.Dispatcher.Dispatch(ctx, models.Event{
		Type:      models.EventBookingCreated,
		BookingID: booking.ID,
		Recipient: booking.InstructorID,
		Data:      map[string]string{"date": booking.Date},
	})
	s.Logger.Info("booking created",
		zap.String("bookingId", booking.ID),
		zap.String("instructorId", booking.InstructorID),
	)
	return booking, nil
}

// ConfirmBookingPayment attaches a payment method and flips the booking to
// confirmed. The overlap re-check runs under the per-(instructor, date) slot
// lock so at most one of two competing pending bookings confirms; the other
// receives a slot conflict. Authorization timing: strictly less than the
// authorization window (24h) before the lesson means an immediate attempt,
// exactly the window or more defers to the scheduler.
func (s *DefaultBookingService) ConfirmBookingPayment(ctx context.Context, bookingID, paymentMethodID string) (*models.Booking, error) {
	if paymentMethodID == "" {
		return nil, NewValidationError("paymentMethodId is required")
	}
	booking, err := s.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, NewRepositoryError(err)
	}
	if booking == nil {
		return nil, NewNotFoundError("booking not found")
	}
	if booking.Status != models.BookingPending {
		return nil, NewBusinessRuleError(fmt.Sprintf("booking is %s, only pending bookings can be confirmed", booking.Status))
	}

	lockKey := utils.SlotLockPrefix + booking.InstructorID + ":" + booking.Date
	release, ok, err := s.Locker.TryLock(ctx, lockKey, utils.BookingLockTTL)
	if err != nil {
		return nil, NewRepositoryError(err)
	}
	if !ok {
		// A competing confirmation holds the slot; the caller may retry.
		return nil, NewSlotConflictError()
	}
	defer release()

	// Fresh read under the lock, then re-check the overlap invariant.
	booking, err = s.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, NewRepositoryError(err)
	}
	if booking == nil || booking.Status != models.BookingPending {
		return nil, NewBusinessRuleError("booking state changed during confirmation")
	}
	overlapping, err := s.Repo.FindOverlapping(ctx, booking.InstructorID, booking.Date, booking.Start, booking.End)
	if err != nil {
		return nil, NewRepositoryError(err)
	}
	for _, other := range overlapping {
		if other.ID != booking.ID {
			return nil, NewSlotConflictError()
		}
	}

	detail := &models.PaymentDetail{
		BookingID:       booking.ID,
		PaymentMethodID: paymentMethodID,
	}
	if err := s.Repo.UpsertPaymentDetail(ctx, detail); err != nil {
		return nil, NewRepositoryError(err)
	}

	hoursUntilLesson := booking.HoursUntilStart(s.now())
	immediate := hoursUntilLesson < s.AuthorizationWindow.Hours()

	booking.Status = models.BookingConfirmed
	if immediate {
		booking.PaymentStatus = models.PaymentAuthorizing
	} else {
		booking.PaymentStatus = models.PaymentScheduled
	}
	if err := s.Repo.UpdateBooking(ctx, booking); err != nil {
		return nil, NewRepositoryError(err)
	}

	if immediate {
		if err := s.Tasks.EnqueueImmediateAuthorization(ctx, booking.ID); err != nil {
			// The retry job picks the booking up; log and continue.
			s.Logger.Error("failed to enqueue immediate authorization",
				zap.String("bookingId", booking.ID), zap.Error(err))
		}
	}

	s.Dispatcher.Dispatch(ctx, models.Event{
		Type:      models.EventBookingConfirmed,
		BookingID: booking.ID,
		Recipient: booking.StudentID,
	})
	if remindAt := booking.StartUTC.Add(-reminderLead); remindAt.After(s.now()) {
		s.Dispatcher.DispatchAt(ctx, models.Event{
			Type:      models.EventLessonReminder,
			BookingID: booking.ID,
			Recipient: booking.StudentID,
			Data:      map[string]string{"date": booking.Date},
		}, remindAt)
	}
	return booking, nil
}

// CancelBooking is idempotent: cancelling an already-cancelled booking is a
// no-op success. A cancellation inside the no-refund window triggers the late
// cancellation capture path.
func (s *DefaultBookingService) CancelBooking(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	booking, err := s.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, NewRepositoryError(err)
	}
	if booking == nil {
		return nil, NewNotFoundError("booking not found")
	}
	if booking.Status == models.BookingCancelled {
		return booking, nil
	}
	if booking.Status == models.BookingCompleted {
		return nil, NewBusinessRuleError("completed bookings cannot be cancelled")
	}

	lateCancellation := booking.Status == models.BookingConfirmed &&
		booking.PaymentStatus == models.PaymentAuthorized &&
		booking.HoursUntilStart(s.now()) < s.AuthorizationWindow.Hours()

	ok, err := s.Repo.SetStatus(ctx, bookingID,
		[]models.BookingStatus{models.BookingPending, models.BookingConfirmed},
		models.BookingCancelled)
	if err != nil {
		return nil, NewRepositoryError(err)
	}
	if !ok {
		// Lost a race with a concurrent transition; re-read to answer
		// consistently with what actually happened.
		current, err := s.Repo.GetByID(ctx, bookingID)
		if err != nil {
			return nil, NewRepositoryError(err)
		}
		if current != nil && current.Status == models.BookingCancelled {
			return current, nil
		}
		return nil, NewBusinessRuleError("booking can no longer be cancelled")
	}
	booking.Status = models.BookingCancelled
	now := s.now().UTC()
	booking.CancelledAt = &now

	if lateCancellation {
		if err := s.Tasks.EnqueueLateCancellationCapture(ctx, booking.ID); err != nil {
			s.Logger.Error("failed to enqueue late cancellation capture",
				zap.String("bookingId", booking.ID), zap.Error(err))
		}
	}

	s.Dispatcher.Dispatch(ctx, models.Event{
		Type:      models.EventBookingCancelled,
		BookingID: booking.ID,
		Recipient: booking.InstructorID,
		Data:      map[string]string{"reason": reason},
	})
	return booking, nil
}

func (s *DefaultBookingService) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, NewRepositoryError(err)
	}
	if booking == nil {
		return nil, NewNotFoundError("booking not found")
	}
	return booking, nil
}

// DeleteBooking removes the booking and its satellite payment records
// atomically.
func (s *DefaultBookingService) DeleteBooking(ctx context.Context, bookingID string) error {
	if err := s.Repo.DeleteBookingCascade(ctx, bookingID); err != nil {
		return NewRepositoryError(err)
	}
	return nil
}

// resolveUTC converts a local date plus minutes-from-midnight window into
// absolute UTC instants using the lesson timezone.
func resolveUTC(date string, start, end int, timezone string) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	startLocal := day.Add(time.Duration(start) * time.Minute)
	endLocal := day.Add(time.Duration(end) * time.Minute)
	return startLocal.UTC(), endLocal.UTC(), nil
}
