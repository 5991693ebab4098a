// File: database/repository/booking/bookingMongoQueries.go
package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"lessonhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoBookingRepo) findBookings(ctx context.Context, filter bson.M, limit int) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "startUtc", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.bookingColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

// FindOverlapping returns confirmed or completed bookings for the instructor
// on date whose half-open time window overlaps [start, end).
func (r *mongoBookingRepo) FindOverlapping(ctx context.Context, instructorID, date string, start, end int) ([]models.Booking, error) {
	return r.findBookings(ctx, bson.M{
		"instructorId": instructorID,
		"date":         date,
		"status":       bson.M{"$in": bson.A{models.BookingConfirmed, models.BookingCompleted}},
		"start":        bson.M{"$lt": end},
		"end":          bson.M{"$gt": start},
	}, 0)
}

// FindScheduledForAuthorization selects confirmed bookings with a deferred
// authorization whose lesson starts before the given instant.
func (r *mongoBookingRepo) FindScheduledForAuthorization(ctx context.Context, startsBefore time.Time, limit int) ([]models.Booking, error) {
	return r.findBookings(ctx, bson.M{
		"status":        models.BookingConfirmed,
		"paymentStatus": models.PaymentScheduled,
		"startUtc":      bson.M{"$lte": startsBefore},
	}, limit)
}

func (r *mongoBookingRepo) FindAuthFailed(ctx context.Context, limit int) ([]models.Booking, error) {
	return r.findBookings(ctx, bson.M{
		"status":        models.BookingConfirmed,
		"paymentStatus": models.PaymentAuthFailed,
	}, limit)
}

// FindCapturable selects completed, authorized bookings whose completion
// happened before the given instant (the dispute/no-show holding window).
func (r *mongoBookingRepo) FindCapturable(ctx context.Context, completedBefore time.Time, limit int) ([]models.Booking, error) {
	return r.findBookings(ctx, bson.M{
		"status":        models.BookingCompleted,
		"paymentStatus": models.PaymentAuthorized,
		"completedAt":   bson.M{"$lte": completedBefore},
	}, limit)
}

// FindElapsedConfirmed selects confirmed bookings whose lesson end has passed
// without a cancellation; the scheduler marks these completed.
func (r *mongoBookingRepo) FindElapsedConfirmed(ctx context.Context, endedBefore time.Time, limit int) ([]models.Booking, error) {
	return r.findBookings(ctx, bson.M{
		"status": models.BookingConfirmed,
		"endUtc": bson.M{"$lte": endedBefore},
	}, limit)
}
