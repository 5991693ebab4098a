package models

import "time"

// ServiceArea is a fixed circular serviceable region for in-person lessons.
type ServiceArea struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
	RadiusKm  float64 `bson:"radiusKm" json:"radiusKm"`
}

// Instructor holds the subset of the instructor profile the scheduling core
// depends on. Profile CRUD lives elsewhere.
type Instructor struct {
	ID       string `bson:"id" json:"id"`
	Verified bool   `bson:"verified" json:"verified"`
	Live     bool   `bson:"live" json:"live"`
	Timezone string `bson:"timezone" json:"timezone"`

	// RequiresFixedArea gates the service-area check on booking requests.
	RequiresFixedArea bool         `bson:"requiresFixedArea" json:"requiresFixedArea"`
	Area              *ServiceArea `bson:"area,omitempty" json:"area,omitempty"`

	HourlyRateCents int64     `bson:"hourlyRateCents" json:"hourlyRateCents"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}

// Service is a bookable lesson offering.
type Service struct {
	ID           string `bson:"id" json:"id"`
	InstructorID string `bson:"instructorId" json:"instructorId"`
	Name         string `bson:"name" json:"name"`
	Active       bool   `bson:"active" json:"active"`
}
