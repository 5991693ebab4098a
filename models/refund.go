package models

import "time"

// Refund reason codes accepted by the policy engine.
const (
	RefundReasonStudentCancel    = "student_cancel"
	RefundReasonInstructorCancel = "instructor_cancel"
	RefundReasonAuthFailure      = "auth_failure"
	RefundReasonDispute          = "dispute"
	RefundReasonNoShow           = "no_show"
)

// Refund methods.
const (
	RefundMethodCard   = "card"
	RefundMethodCredit = "credit"
	RefundMethodNone   = "none"
)

// RefundPolicyResult is the pure output of the refund policy engine: whether a
// refund may proceed, through which method, and how the money splits between
// the student, the instructor, and the platform.
type RefundPolicyResult struct {
	Eligible                   bool   `json:"eligible"`
	Reason                     string `json:"reason"`
	Method                     string `json:"method"`
	StudentCardRefundCents     int64  `json:"studentCardRefundCents"`
	StudentCreditCents         int64  `json:"studentCreditCents"`
	InstructorPayoutDeltaCents int64  `json:"instructorPayoutDeltaCents"`
	PlatformFeeRefundedCents   int64  `json:"platformFeeRefundedCents"`
	PolicyBasis                string `json:"policyBasis"`
}

// RefundPreview is the first half of the two-step refund confirm flow. The
// token is short-lived; the idempotency key makes execute replay-safe.
type RefundPreview struct {
	BookingID         string             `json:"bookingId"`
	ConfirmationToken string             `json:"confirmationToken"`
	IdempotencyKey    string             `json:"idempotencyKey"`
	Policy            RefundPolicyResult `json:"policy"`
	ExpiresAt         time.Time          `json:"expiresAt"`
}

// RefundExecution is the terminal record of an executed refund; re-executing
// with the same idempotency key returns the stored record unchanged.
type RefundExecution struct {
	BookingID  string             `json:"bookingId"`
	RefundID   string             `json:"refundId"`
	Policy     RefundPolicyResult `json:"policy"`
	ExecutedAt time.Time          `json:"executedAt"`
	Replayed   bool               `json:"replayed"`
}
