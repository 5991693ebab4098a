// File: database/repository/availability/interface.go
package availabilityRepo

import (
	"context"

	"lessonhub/database"
	"lessonhub/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// AvailabilityRepository is the storage contract for per-instructor, per-day
// availability bitset rows.
type AvailabilityRepository interface {
	UpsertDays(ctx context.Context, instructorID string, days []models.AvailabilityDay) (int, error)
	GetByDate(ctx context.Context, instructorID, date string) (*models.AvailabilityDay, error)
	GetRange(ctx context.Context, instructorID, startDate, endDate string) ([]models.AvailabilityDay, error)
	DeleteBefore(ctx context.Context, date string) (int, error)
	EnsureIndexes() error
}

type mongoAvailabilityRepo struct {
	coll *mongo.Collection
}

// NewMongoAvailabilityRepo constructs a new MongoDB AvailabilityRepository.
func NewMongoAvailabilityRepo() AvailabilityRepository {
	db := database.MongoClient.Database(database.DatabaseName)
	return &mongoAvailabilityRepo{
		coll: db.Collection("availability_days"),
	}
}
