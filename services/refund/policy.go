// File: services/refund/policy.go
package refund

import (
	"strconv"
	"strings"
	"time"

	"lessonhub/models"
)

// nearTermWindow is the cutoff separating card refunds from store credit:
// cancellations at least this far before the lesson refund to the card,
// anything closer is credited instead, protecting instructor earnings from
// late cancellations while still making the student whole.
const nearTermWindow = 24 * time.Hour

// refundableStatuses are the payment states a refund may be evaluated from.
var refundableStatuses = map[models.PaymentStatus]bool{
	models.PaymentAuthorized: true,
	models.PaymentSettled:    true,
}

// Evaluate is the pure refund policy computation. It never errors: malformed
// upstream data is coerced and normalized, ineligible cases come back with
// eligible=false and a policy basis explaining why.
func Evaluate(booking *models.Booking, detail *models.PaymentDetail, reasonCode string, requestedAmount interface{}, now time.Time) models.RefundPolicyResult {
	result := models.RefundPolicyResult{
		Reason: reasonCode,
		Method: models.RefundMethodNone,
	}
	if booking == nil {
		result.PolicyBasis = "Booking missing"
		return result
	}
	if !refundableStatuses[booking.PaymentStatus] {
		result.PolicyBasis = "Payment status " + string(booking.PaymentStatus) + " is not refundable"
		return result
	}
	if booking.StartUTC.IsZero() {
		result.PolicyBasis = "Booking start time missing"
		return result
	}

	gross := booking.TotalPriceCents
	requested := CoerceCents(requestedAmount)
	if requested <= 0 || requested > gross {
		requested = gross
	}

	result.Eligible = true

	// Platform fee is refunded proportionally to the refunded fraction of the
	// gross payment. A zero gross skips proration entirely.
	var feeRefund int64
	if gross > 0 {
		feeRefund = booking.PlatformFeeCents * requested / gross
	}
	result.PlatformFeeRefundedCents = feeRefund

	if booking.StartUTC.Sub(now) >= nearTermWindow {
		result.Method = models.RefundMethodCard
		result.StudentCardRefundCents = requested
		result.InstructorPayoutDeltaCents = -(requested - feeRefund)
		result.PolicyBasis = "Cancellation at least 24h before lesson start: card refund"
	} else {
		result.Method = models.RefundMethodCredit
		result.StudentCreditCents = requested
		result.InstructorPayoutDeltaCents = 0
		result.PolicyBasis = "Late cancellation inside 24h window: store credit only"
	}
	return result
}

// CoerceCents normalizes a loosely-typed amount to integer cents. The engine
// sits at a boundary and must never throw on malformed upstream data: a
// boolean miscoded as an amount becomes 0/1, strings are parsed, anything
// unrecognized becomes 0.
func CoerceCents(v interface{}) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case float32:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}
