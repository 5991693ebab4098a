package repository

import (
	availabilityRepo "lessonhub/database/repository/availability"
	bookingRepo "lessonhub/database/repository/booking"
	instructorRepo "lessonhub/database/repository/instructor"
)

// Re-export the AvailabilityRepository interface and constructor.
type AvailabilityRepository = availabilityRepo.AvailabilityRepository

var NewMongoAvailabilityRepo = availabilityRepo.NewMongoAvailabilityRepo

// Re-export the BookingRepository interface and constructor.
type BookingRepository = bookingRepo.BookingRepository

var NewMongoBookingRepo = bookingRepo.NewMongoBookingRepo

// Re-export the InstructorRepository interface and constructor.
type InstructorRepository = instructorRepo.InstructorRepository

var NewMongoInstructorRepo = instructorRepo.NewMongoInstructorRepo
