// File: services/payment/gateway.go
package payment

import (
	"context"
	"fmt"
	"time"

	"lessonhub/models"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	striperefund "github.com/stripe/stripe-go/v76/refund"
)

// Gateway is the payment-gateway port: authorize reserves funds without
// transferring them, capture finalizes a previous authorization, release
// voids an uncaptured authorization, refund reverses a captured charge.
// Calls are blocking network I/O and must run outside any database
// transaction.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*models.AuthorizationResult, error)
	Capture(ctx context.Context, paymentIntentID string, amountCents int64) (*models.CaptureResult, error)
	Release(ctx context.Context, paymentIntentID string) error
	Refund(ctx context.Context, paymentIntentID string, amountCents int64) (*models.RefundResult, error)
}

// AuthorizeRequest describes one authorization attempt.
type AuthorizeRequest struct {
	BookingID       string
	PaymentMethodID string
	AmountCents     int64
	Currency        string
	StudentID       string
}

// StripeGateway implements Gateway against Stripe PaymentIntents with manual
// capture.
type StripeGateway struct {
	// Timeout bounds every gateway call; a timed-out call is treated as a
	// failure and retried on a later scheduled run, never assumed to have
	// silently succeeded.
	Timeout time.Duration
}

func NewStripeGateway(timeout time.Duration) *StripeGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &StripeGateway{Timeout: timeout}
}

func (g *StripeGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*models.AuthorizationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	currency := req.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.AddMetadata("bookingId", req.BookingID)
	params.AddMetadata("studentId", req.StudentID)

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe authorization failed: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusRequiresCapture {
		return nil, fmt.Errorf("stripe authorization not captured-ready: status %s", intent.Status)
	}
	return &models.AuthorizationResult{
		PaymentIntentID: intent.ID,
		AmountCents:     intent.Amount,
	}, nil
}

func (g *StripeGateway) Capture(ctx context.Context, paymentIntentID string, amountCents int64) (*models.CaptureResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentCaptureParams{
		Params:          stripe.Params{Context: ctx},
		AmountToCapture: stripe.Int64(amountCents),
	}
	intent, err := paymentintent.Capture(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe capture failed: %w", err)
	}
	return &models.CaptureResult{
		ChargeID:    intent.ID,
		AmountCents: intent.AmountReceived,
	}, nil
}

// Release cancels an uncaptured PaymentIntent, returning the held funds to
// the student without a charge.
func (g *StripeGateway) Release(ctx context.Context, paymentIntentID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	}
	if _, err := paymentintent.Cancel(paymentIntentID, params); err != nil {
		return fmt.Errorf("stripe release failed: %w", err)
	}
	return nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentIntentID string, amountCents int64) (*models.RefundResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amountCents),
	}
	r, err := striperefund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund failed: %w", err)
	}
	return &models.RefundResult{
		RefundID:    r.ID,
		AmountCents: r.Amount,
	}, nil
}
