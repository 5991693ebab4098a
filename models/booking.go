package models

import "time"

// BookingStatus is the lesson-level lifecycle state.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingNoShow    BookingStatus = "no_show"
)

// PaymentStatus tracks the authorization/capture workflow for a booking.
type PaymentStatus string

const (
	PaymentPendingMethod PaymentStatus = "pending_payment_method"
	PaymentAuthorizing   PaymentStatus = "authorizing"
	PaymentScheduled     PaymentStatus = "scheduled"
	PaymentAuthorized    PaymentStatus = "authorized"
	PaymentAuthFailed    PaymentStatus = "auth_failed"
	PaymentSettled       PaymentStatus = "settled"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentManualReview  PaymentStatus = "manual_review"
)

// Booking is a lesson reservation between a student and an instructor.
// Start/End are minutes from midnight on Date in the lesson timezone;
// StartUTC/EndUTC are the resolved absolute instants. A confirmed booking
// always carries non-zero UTC instants.
type Booking struct {
	ID           string `bson:"id" json:"id"`
	StudentID    string `bson:"studentId" json:"studentId"`
	InstructorID string `bson:"instructorId" json:"instructorId"`
	ServiceID    string `bson:"serviceId" json:"serviceId"`

	Date     string    `bson:"date" json:"date"` // "2006-01-02"
	Start    int       `bson:"start" json:"start"`
	End      int       `bson:"end" json:"end"`
	StartUTC time.Time `bson:"startUtc" json:"startUtc"`
	EndUTC   time.Time `bson:"endUtc" json:"endUtc"`
	Timezone string    `bson:"timezone" json:"timezone"`

	Status        BookingStatus `bson:"status" json:"status"`
	PaymentStatus PaymentStatus `bson:"paymentStatus" json:"paymentStatus"`

	HourlyRateCents  int64 `bson:"hourlyRateCents" json:"hourlyRateCents"`
	TotalPriceCents  int64 `bson:"totalPriceCents" json:"totalPriceCents"`
	PlatformFeeCents int64 `bson:"platformFeeCents" json:"platformFeeCents"`

	CancelledAt *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// HoursUntilStart reports how far in the future the lesson starts, measured
// from now. Negative once the lesson has begun.
func (b *Booking) HoursUntilStart(now time.Time) float64 {
	return b.StartUTC.Sub(now).Hours()
}

// Overlaps reports half-open interval overlap with another window on the
// same date: existing.start < requested.end AND existing.end > requested.start.
func (b *Booking) Overlaps(start, end int) bool {
	return b.Start < end && b.End > start
}
