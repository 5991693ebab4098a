package models

import "time"

// PaymentDetail carries payment-gateway bookkeeping for one booking. It is
// kept out of the hot Booking row and created lazily on first use; deleting
// the parent booking cascades to it.
type PaymentDetail struct {
	BookingID        string    `bson:"bookingId" json:"bookingId"`
	PaymentMethodID  string    `bson:"paymentMethodId" json:"paymentMethodId"`
	PaymentIntentID  string    `bson:"paymentIntentId,omitempty" json:"paymentIntentId,omitempty"`
	AuthFailureCount int       `bson:"authFailureCount" json:"authFailureCount"`
	CaptureRetries   int       `bson:"captureRetries" json:"captureRetries"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PaymentHold records an authorized amount held against a booking and how the
// hold was eventually resolved (captured, released, reversed).
type PaymentHold struct {
	BookingID       string     `bson:"bookingId" json:"bookingId"`
	HeldAmountCents int64      `bson:"heldAmountCents" json:"heldAmountCents"`
	Resolution      string     `bson:"resolution,omitempty" json:"resolution,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	ResolvedAt      *time.Time `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// Dispute mirrors a payment-gateway dispute opened against a booking's charge.
type Dispute struct {
	BookingID   string     `bson:"bookingId" json:"bookingId"`
	GatewayID   string     `bson:"gatewayId" json:"gatewayId"`
	Status      string     `bson:"status" json:"status"`
	AmountCents int64      `bson:"amountCents" json:"amountCents"`
	OpenedAt    time.Time  `bson:"openedAt" json:"openedAt"`
	ResolvedAt  *time.Time `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// Transfer tracks the instructor payout for a settled booking.
type Transfer struct {
	BookingID  string    `bson:"bookingId" json:"bookingId"`
	TransferID string    `bson:"transferId" json:"transferId"`
	RetryCount int       `bson:"retryCount" json:"retryCount"`
	Reversed   bool      `bson:"reversed" json:"reversed"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AuthorizationResult is the gateway outcome of an authorize call.
type AuthorizationResult struct {
	PaymentIntentID string
	AmountCents     int64
}

// CaptureResult is the gateway outcome of a capture call.
type CaptureResult struct {
	ChargeID    string
	AmountCents int64
}

// RefundResult is the gateway outcome of a refund call.
type RefundResult struct {
	RefundID    string
	AmountCents int64
}
