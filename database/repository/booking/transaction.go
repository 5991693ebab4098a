// File: database/repository/booking/transaction.go
package bookingRepo

import (
	"context"
	"fmt"

	"lessonhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrSlotTaken is returned when the overlap re-check inside the insert
// transaction finds a competing confirmed booking. The second of two
// concurrent conflicting requests always lands here.
var ErrSlotTaken = fmt.Errorf("slot already taken by a confirmed booking")

// CreateBookingGuarded inserts a booking inside a transaction that re-checks
// the overlap invariant against confirmed/completed bookings. The arbiter's
// read phase is not atomic with the insert, so the store enforces the
// single-winner invariant independently here.
func (r *mongoBookingRepo) CreateBookingGuarded(ctx context.Context, booking *models.Booking) error {
	client := r.bookingColl.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnFn := func(sc mongo.SessionContext) error {
		count, err := r.bookingColl.CountDocuments(sc, bson.M{
			"instructorId": booking.InstructorID,
			"date":         booking.Date,
			"status":       bson.M{"$in": bson.A{models.BookingConfirmed, models.BookingCompleted}},
			"start":        bson.M{"$lt": booking.End},
			"end":          bson.M{"$gt": booking.Start},
		})
		if err != nil {
			return fmt.Errorf("overlap re-check failed: %w", err)
		}
		if count > 0 {
			return ErrSlotTaken
		}
		if _, err := r.bookingColl.InsertOne(sc, booking); err != nil {
			return fmt.Errorf("insert booking failed: %w", err)
		}
		return nil
	}

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		if err == ErrSlotTaken {
			return err
		}
		return fmt.Errorf("booking transaction failed: %w", err)
	}
	return nil
}

// DeleteBookingCascade removes a booking and all of its satellite records in
// one transaction so orphaned payment bookkeeping can never survive.
func (r *mongoBookingRepo) DeleteBookingCascade(ctx context.Context, id string) error {
	client := r.bookingColl.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnFn := func(sc mongo.SessionContext) error {
		res, err := r.bookingColl.DeleteOne(sc, bson.M{"id": id})
		if err != nil {
			return fmt.Errorf("delete booking failed: %w", err)
		}
		if res.DeletedCount == 0 {
			return mongo.ErrNoDocuments
		}
		satellite := bson.M{"bookingId": id}
		for _, coll := range []*mongo.Collection{r.detailColl, r.holdColl, r.disputeColl, r.transferColl} {
			if _, err := coll.DeleteMany(sc, satellite); err != nil {
				return fmt.Errorf("delete satellite rows failed: %w", err)
			}
		}
		return nil
	}

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		if err == mongo.ErrNoDocuments {
			return err
		}
		return fmt.Errorf("cascade delete transaction failed: %w", err)
	}
	return nil
}
