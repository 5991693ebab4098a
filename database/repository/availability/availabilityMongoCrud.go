// File: database/repository/availability/availabilityMongoCrud.go
package availabilityRepo

import (
	"context"
	"fmt"
	"time"

	"lessonhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpsertDays writes the given rows last-write-wins per date: existing rows are
// replaced wholesale, missing rows created. Returns the number of rows written.
func (r *mongoAvailabilityRepo) UpsertDays(ctx context.Context, instructorID string, days []models.AvailabilityDay) (int, error) {
	if len(days) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(days))
	for _, day := range days {
		day.InstructorID = instructorID
		day.UpdatedAt = now
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"instructorId": instructorID, "date": day.Date}).
			SetReplacement(day).
			SetUpsert(true))
	}

	res, err := r.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert availability days: %w", err)
	}
	return int(res.ModifiedCount + res.UpsertedCount), nil
}

func (r *mongoAvailabilityRepo) GetByDate(ctx context.Context, instructorID, date string) (*models.AvailabilityDay, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var day models.AvailabilityDay
	err := r.coll.FindOne(ctx, bson.M{"instructorId": instructorID, "date": date}).Decode(&day)
	if err == mongo.ErrNoDocuments {
		// Absence of a row means no availability, never an error.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch availability day: %w", err)
	}
	return &day, nil
}

// GetRange returns rows with startDate <= date <= endDate, sorted ascending.
func (r *mongoAvailabilityRepo) GetRange(ctx context.Context, instructorID, startDate, endDate string) ([]models.AvailabilityDay, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"instructorId": instructorID,
		"date":         bson.M{"$gte": startDate, "$lte": endDate},
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query availability range: %w", err)
	}
	defer cursor.Close(ctx)

	var days []models.AvailabilityDay
	if err := cursor.All(ctx, &days); err != nil {
		return nil, fmt.Errorf("failed to decode availability range: %w", err)
	}
	return days, nil
}

// DeleteBefore removes rows older than date across all instructors; used by
// the nightly retention purge.
func (r *mongoAvailabilityRepo) DeleteBefore(ctx context.Context, date string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := r.coll.DeleteMany(ctx, bson.M{
		"date": bson.M{"$lt": date},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge availability rows: %w", err)
	}
	return int(res.DeletedCount), nil
}
