// File: database/repository/booking/bookingMongoCrud.go
package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"lessonhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	err := r.bookingColl.FindOne(ctx, bson.M{"id": id}).Decode(&booking)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", id, err)
	}
	return &booking, nil
}

func (r *mongoBookingRepo) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	booking.UpdatedAt = time.Now().UTC()
	res, err := r.bookingColl.ReplaceOne(ctx, bson.M{"id": booking.ID}, booking)
	if err != nil {
		return fmt.Errorf("failed to update booking %s: %w", booking.ID, err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetStatus transitions the booking status to `to` only if the current value
// is one of `from`; an empty `from` applies unconditionally. The guarded
// update is what keeps the booking lifecycle monotonic under concurrent
// workers; false means the precondition no longer held.
func (r *mongoBookingRepo) SetStatus(ctx context.Context, id string, from []models.BookingStatus, to models.BookingStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	set := bson.M{"status": to, "updatedAt": now}
	switch to {
	case models.BookingCancelled:
		set["cancelledAt"] = now
	case models.BookingCompleted:
		set["completedAt"] = now
	}
	filter := bson.M{"id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}
	res, err := r.bookingColl.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to set booking status: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// SetPaymentStatus transitions paymentStatus to `to` only if the current value
// is one of `from`. The guarded update is what keeps the payment state machine
// monotonic under concurrent workers; false means the precondition no longer
// held.
func (r *mongoBookingRepo) SetPaymentStatus(ctx context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id}
	if len(from) > 0 {
		filter["paymentStatus"] = bson.M{"$in": from}
	}
	res, err := r.bookingColl.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"paymentStatus": to, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return false, fmt.Errorf("failed to set payment status: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// --- Satellite records ---

func (r *mongoBookingRepo) GetPaymentDetail(ctx context.Context, bookingID string) (*models.PaymentDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var detail models.PaymentDetail
	err := r.detailColl.FindOne(ctx, bson.M{"bookingId": bookingID}).Decode(&detail)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment detail: %w", err)
	}
	return &detail, nil
}

func (r *mongoBookingRepo) UpsertPaymentDetail(ctx context.Context, detail *models.PaymentDetail) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	detail.UpdatedAt = time.Now().UTC()
	_, err := r.detailColl.ReplaceOne(ctx,
		bson.M{"bookingId": detail.BookingID},
		detail,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert payment detail: %w", err)
	}
	return nil
}

func (r *mongoBookingRepo) CreateHold(ctx context.Context, hold *models.PaymentHold) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	hold.CreatedAt = time.Now().UTC()
	if _, err := r.holdColl.InsertOne(ctx, hold); err != nil {
		return fmt.Errorf("failed to insert payment hold: %w", err)
	}
	return nil
}

func (r *mongoBookingRepo) ResolveHold(ctx context.Context, bookingID, resolution string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	_, err := r.holdColl.UpdateOne(ctx,
		bson.M{"bookingId": bookingID, "resolution": bson.M{"$in": bson.A{nil, ""}}},
		bson.M{"$set": bson.M{"resolution": resolution, "resolvedAt": now}})
	if err != nil {
		return fmt.Errorf("failed to resolve payment hold: %w", err)
	}
	return nil
}

func (r *mongoBookingRepo) CreateDispute(ctx context.Context, dispute *models.Dispute) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.disputeColl.InsertOne(ctx, dispute); err != nil {
		return fmt.Errorf("failed to insert dispute: %w", err)
	}
	return nil
}

func (r *mongoBookingRepo) GetDisputeByBooking(ctx context.Context, bookingID string) (*models.Dispute, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var dispute models.Dispute
	err := r.disputeColl.FindOne(ctx, bson.M{"bookingId": bookingID}).Decode(&dispute)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dispute: %w", err)
	}
	return &dispute, nil
}

func (r *mongoBookingRepo) ResolveDispute(ctx context.Context, bookingID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	res, err := r.disputeColl.UpdateOne(ctx,
		bson.M{"bookingId": bookingID},
		bson.M{"$set": bson.M{"status": status, "resolvedAt": now}})
	if err != nil {
		return fmt.Errorf("failed to resolve dispute: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *mongoBookingRepo) UpsertTransfer(ctx context.Context, transfer *models.Transfer) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	transfer.UpdatedAt = time.Now().UTC()
	_, err := r.transferColl.ReplaceOne(ctx,
		bson.M{"bookingId": transfer.BookingID},
		transfer,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert transfer: %w", err)
	}
	return nil
}
