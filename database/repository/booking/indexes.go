// FILE: database/repository/booking/indexes.go
package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the necessary indexes on the booking collections.
func (r *mongoBookingRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bookingIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		// Primary overlap-check pattern.
		{
			Keys: bson.D{
				{Key: "instructorId", Value: 1},
				{Key: "date", Value: 1},
				{Key: "status", Value: 1},
				{Key: "start", Value: 1},
				{Key: "end", Value: 1},
			},
			Options: options.Index().SetName("instructor_date_status_window_idx"),
		},
		// Scheduler selection patterns.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "paymentStatus", Value: 1}, {Key: "startUtc", Value: 1}},
			Options: options.Index().SetName("status_payment_start_idx"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "endUtc", Value: 1}},
			Options: options.Index().SetName("status_end_idx"),
		},
	}
	if _, err := r.bookingColl.Indexes().CreateMany(ctx, bookingIndexes); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}

	satellite := mongo.IndexModel{
		Keys:    bson.D{{Key: "bookingId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_booking_id"),
	}
	for _, coll := range []*mongo.Collection{r.detailColl, r.holdColl, r.disputeColl, r.transferColl} {
		if _, err := coll.Indexes().CreateOne(ctx, satellite); err != nil {
			return fmt.Errorf("failed to create satellite index on %s: %w", coll.Name(), err)
		}
	}
	return nil
}
