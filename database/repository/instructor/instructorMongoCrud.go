// File: database/repository/instructor/instructorMongoCrud.go
package instructorRepo

import (
	"context"
	"fmt"
	"time"

	"lessonhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (r *mongoInstructorRepo) GetByID(ctx context.Context, id string) (*models.Instructor, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var instructor models.Instructor
	err := r.instructorColl.FindOne(ctx, bson.M{"id": id}).Decode(&instructor)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instructor %s: %w", id, err)
	}
	return &instructor, nil
}

func (r *mongoInstructorRepo) GetServiceByID(ctx context.Context, id string) (*models.Service, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var service models.Service
	err := r.serviceColl.FindOne(ctx, bson.M{"id": id}).Decode(&service)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch service %s: %w", id, err)
	}
	return &service, nil
}
