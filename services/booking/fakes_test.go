package booking

import (
	"context"
	"sync"
	"time"

	bookingRepo "lessonhub/database/repository/booking"
	"lessonhub/models"
)

// fakeBookingRepo is an in-memory BookingRepository for service and arbiter
// tests.
type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
	details  map[string]*models.PaymentDetail
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		bookings: make(map[string]*models.Booking),
		details:  make(map[string]*models.PaymentDetail),
	}
}

func (f *fakeBookingRepo) put(b *models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.bookings[b.ID] = &cp
}

func (f *fakeBookingRepo) CreateBookingGuarded(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.bookings {
		if other.InstructorID == b.InstructorID && other.Date == b.Date &&
			(other.Status == models.BookingConfirmed || other.Status == models.BookingCompleted) &&
			other.Overlaps(b.Start, b.End) {
			return bookingRepo.ErrSlotTaken
		}
	}
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookingRepo) GetByID(_ context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeBookingRepo) UpdateBooking(_ context.Context, b *models.Booking) error {
	f.put(b)
	return nil
}

func (f *fakeBookingRepo) SetStatus(_ context.Context, id string, from []models.BookingStatus, to models.BookingStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return false, nil
	}
	if len(from) == 0 {
		b.Status = to
		return true, nil
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingRepo) SetPaymentStatus(_ context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if b.PaymentStatus == s {
			b.PaymentStatus = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingRepo) DeleteBookingCascade(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookings, id)
	delete(f.details, id)
	return nil
}

func (f *fakeBookingRepo) FindOverlapping(_ context.Context, instructorID, date string, start, end int) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if b.InstructorID == instructorID && b.Date == date &&
			(b.Status == models.BookingConfirmed || b.Status == models.BookingCompleted) &&
			b.Overlaps(start, end) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) FindScheduledForAuthorization(_ context.Context, _ time.Time, _ int) ([]models.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepo) FindAuthFailed(_ context.Context, _ int) ([]models.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepo) FindCapturable(_ context.Context, _ time.Time, _ int) ([]models.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepo) FindElapsedConfirmed(_ context.Context, _ time.Time, _ int) ([]models.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepo) GetPaymentDetail(_ context.Context, bookingID string) (*models.PaymentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.details[bookingID]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeBookingRepo) UpsertPaymentDetail(_ context.Context, detail *models.PaymentDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *detail
	f.details[detail.BookingID] = &cp
	return nil
}

func (f *fakeBookingRepo) CreateHold(_ context.Context, _ *models.PaymentHold) error { return nil }

func (f *fakeBookingRepo) ResolveHold(_ context.Context, _, _ string) error { return nil }

func (f *fakeBookingRepo) CreateDispute(_ context.Context, _ *models.Dispute) error { return nil }

func (f *fakeBookingRepo) GetDisputeByBooking(_ context.Context, _ string) (*models.Dispute, error) {
	return nil, nil
}

func (f *fakeBookingRepo) ResolveDispute(_ context.Context, _, _ string) error { return nil }

func (f *fakeBookingRepo) UpsertTransfer(_ context.Context, _ *models.Transfer) error { return nil }

func (f *fakeBookingRepo) EnsureIndexes() error { return nil }

// fakeAvailRepo serves encoded day rows keyed by date.
type fakeAvailRepo struct {
	days map[string]*models.AvailabilityDay
}

func (f *fakeAvailRepo) UpsertDays(_ context.Context, _ string, days []models.AvailabilityDay) (int, error) {
	for i := range days {
		f.days[days[i].Date] = &days[i]
	}
	return len(days), nil
}

func (f *fakeAvailRepo) GetByDate(_ context.Context, _ string, date string) (*models.AvailabilityDay, error) {
	return f.days[date], nil
}

func (f *fakeAvailRepo) GetRange(_ context.Context, _ string, startDate, endDate string) ([]models.AvailabilityDay, error) {
	var out []models.AvailabilityDay
	for date, d := range f.days {
		if date >= startDate && date <= endDate {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeAvailRepo) DeleteBefore(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (f *fakeAvailRepo) EnsureIndexes() error { return nil }

// fakeInstructorRepo serves a fixed instructor and service set.
type fakeInstructorRepo struct {
	instructors map[string]*models.Instructor
	services    map[string]*models.Service
}

func (f *fakeInstructorRepo) GetByID(_ context.Context, id string) (*models.Instructor, error) {
	return f.instructors[id], nil
}

func (f *fakeInstructorRepo) GetServiceByID(_ context.Context, id string) (*models.Service, error) {
	return f.services[id], nil
}

// fakeEnqueuer records which background tasks were requested.
type fakeEnqueuer struct {
	immediate []string
	lateCap   []string
}

func (f *fakeEnqueuer) EnqueueImmediateAuthorization(_ context.Context, bookingID string) error {
	f.immediate = append(f.immediate, bookingID)
	return nil
}

func (f *fakeEnqueuer) EnqueueLateCancellationCapture(_ context.Context, bookingID string) error {
	f.lateCap = append(f.lateCap, bookingID)
	return nil
}

// fakeLocker grants every lock unless a key is marked held.
type fakeLocker struct {
	held map[string]bool
}

func (f *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	if f.held != nil && f.held[key] {
		return nil, false, nil
	}
	return func() {}, true, nil
}
