package models

import "time"

// Event is a fire-and-forget notification payload emitted by the booking and
// payment workflows. Delivery mechanics live behind the dispatcher; the core
// never waits for confirmation.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	BookingID string            `json:"bookingId,omitempty"`
	Recipient string            `json:"recipient,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	EmittedAt time.Time         `json:"emittedAt"`
}

// Event types emitted by the core.
const (
	EventBookingCreated      = "booking_created"
	EventBookingConfirmed    = "booking_confirmed"
	EventBookingCancelled    = "booking_cancelled"
	EventAuthorizationFailed = "authorization_failed"
	EventLessonCaptured      = "lesson_captured"
	EventRefundIssued        = "refund_issued"
	EventDisputeOpened       = "dispute_opened"
	EventLessonReminder      = "lesson_reminder"
	EventNoShowReported      = "no_show_reported"
)
