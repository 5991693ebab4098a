package booking

import (
	"context"
	"math"

	"lessonhub/database/repository"
	"lessonhub/models"
	"lessonhub/services/availability"

	"go.uber.org/zap"
)

// ConflictArbiter decides whether a requested booking window may be admitted
// for an instructor. Its checks run in a read phase that is not atomic with
// the eventual insert; the repository's guarded insert enforces the
// single-winner invariant independently.
type ConflictArbiter struct {
	AvailabilityRepo repository.AvailabilityRepository
	BookingRepo      repository.BookingRepository
	Logger           *zap.Logger
}

// AdmissionRequest is one booking window to arbitrate.
type AdmissionRequest struct {
	Instructor *models.Instructor
	Date       string
	Start      int
	End        int
	// Latitude/Longitude are nil for online lessons.
	Latitude  *float64
	Longitude *float64
}

// Admit validates the request in order: availability containment, overlap
// against confirmed/completed bookings, then service area. The first failing
// check wins.
func (a *ConflictArbiter) Admit(ctx context.Context, req AdmissionRequest) error {
	day, err := a.AvailabilityRepo.GetByDate(ctx, req.Instructor.ID, req.Date)
	if err != nil {
		return NewRepositoryError(err)
	}
	// A missing row means the instructor has no availability that day.
	if day == nil {
		return NewOutsideAvailabilityError()
	}
	windows := availability.DecodeBits(day.Bits)
	if !availability.Contains(windows, req.Start, req.End) {
		return NewOutsideAvailabilityError()
	}

	existing, err := a.BookingRepo.FindOverlapping(ctx, req.Instructor.ID, req.Date, req.Start, req.End)
	if err != nil {
		return NewRepositoryError(err)
	}
	if len(existing) > 0 {
		a.Logger.Debug("slot conflict",
			zap.String("instructorId", req.Instructor.ID),
			zap.String("date", req.Date),
			zap.Int("start", req.Start),
			zap.Int("end", req.End),
		)
		return NewSlotConflictError()
	}

	if req.Instructor.RequiresFixedArea {
		if req.Instructor.Area == nil {
			return NewBusinessRuleError("instructor requires a fixed service area but has none configured")
		}
		if req.Latitude == nil || req.Longitude == nil {
			return NewValidationError("lesson location coordinates are required for this instructor")
		}
		dist := haversineKm(req.Instructor.Area.Latitude, req.Instructor.Area.Longitude, *req.Latitude, *req.Longitude)
		if dist > req.Instructor.Area.RadiusKm {
			return NewOutsideServiceAreaError()
		}
	}

	return nil
}

// haversineKm returns the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
