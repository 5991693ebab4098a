// File: database/repository/instructor/interface.go
package instructorRepo

import (
	"context"

	"lessonhub/database"
	"lessonhub/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// InstructorRepository exposes the instructor/service reads the scheduling
// core depends on. Profile management itself lives outside the core.
type InstructorRepository interface {
	GetByID(ctx context.Context, id string) (*models.Instructor, error)
	GetServiceByID(ctx context.Context, id string) (*models.Service, error)
}

type mongoInstructorRepo struct {
	instructorColl *mongo.Collection
	serviceColl    *mongo.Collection
}

// NewMongoInstructorRepo constructs a new MongoDB InstructorRepository.
func NewMongoInstructorRepo() InstructorRepository {
	db := database.MongoClient.Database(database.DatabaseName)
	return &mongoInstructorRepo{
		instructorColl: db.Collection("instructors"),
		serviceColl:    db.Collection("services"),
	}
}
