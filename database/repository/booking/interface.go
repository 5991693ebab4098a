// File: database/repository/booking/interface.go
package bookingRepo

import (
	"context"
	"time"

	"lessonhub/database"
	"lessonhub/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// BookingRepository is the storage contract for bookings and their satellite
// payment records.
type BookingRepository interface {
	// Core booking row.
	CreateBookingGuarded(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	SetStatus(ctx context.Context, id string, from []models.BookingStatus, to models.BookingStatus) (bool, error)
	SetPaymentStatus(ctx context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (bool, error)
	DeleteBookingCascade(ctx context.Context, id string) error

	// Selection queries for the arbiter and scheduler jobs.
	FindOverlapping(ctx context.Context, instructorID, date string, start, end int) ([]models.Booking, error)
	FindScheduledForAuthorization(ctx context.Context, startsBefore time.Time, limit int) ([]models.Booking, error)
	FindAuthFailed(ctx context.Context, limit int) ([]models.Booking, error)
	FindCapturable(ctx context.Context, completedBefore time.Time, limit int) ([]models.Booking, error)
	FindElapsedConfirmed(ctx context.Context, endedBefore time.Time, limit int) ([]models.Booking, error)

	// Satellite records, created lazily by whichever component first needs them.
	GetPaymentDetail(ctx context.Context, bookingID string) (*models.PaymentDetail, error)
	UpsertPaymentDetail(ctx context.Context, detail *models.PaymentDetail) error
	CreateHold(ctx context.Context, hold *models.PaymentHold) error
	ResolveHold(ctx context.Context, bookingID, resolution string) error
	CreateDispute(ctx context.Context, dispute *models.Dispute) error
	GetDisputeByBooking(ctx context.Context, bookingID string) (*models.Dispute, error)
	ResolveDispute(ctx context.Context, bookingID, status string) error
	UpsertTransfer(ctx context.Context, transfer *models.Transfer) error

	EnsureIndexes() error
}

type mongoBookingRepo struct {
	bookingColl  *mongo.Collection
	detailColl   *mongo.Collection
	holdColl     *mongo.Collection
	disputeColl  *mongo.Collection
	transferColl *mongo.Collection
}

// NewMongoBookingRepo constructs a new MongoDB BookingRepository.
func NewMongoBookingRepo() BookingRepository {
	db := database.MongoClient.Database(database.DatabaseName)
	return &mongoBookingRepo{
		bookingColl:  db.Collection("bookings"),
		detailColl:   db.Collection("payment_details"),
		holdColl:     db.Collection("payment_holds"),
		disputeColl:  db.Collection("disputes"),
		transferColl: db.Collection("transfers"),
	}
}
