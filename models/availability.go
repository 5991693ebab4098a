package models

import "time"

// Availability bitset deployment constants. One bit per 30-minute interval,
// 48 intervals per day packed into 6 bytes. The byte length is fixed across
// all rows; merge and replace operations stay O(1) in row size.
const (
	IntervalMinutes = 30
	IntervalsPerDay = 24 * 60 / IntervalMinutes
	DayBitsLen      = IntervalsPerDay / 8
)

// TimeWindow is a contiguous time range within a day, expressed in minutes
// from midnight with a half-open [Start, End) interpretation.
type TimeWindow struct {
	Start int `bson:"start" json:"start"`
	End   int `bson:"end" json:"end"`
}

// AvailabilityDay is the per-instructor, per-day availability row. Exactly one
// row exists per (instructor, day); a missing row means no availability.
type AvailabilityDay struct {
	InstructorID string    `bson:"instructorId" json:"instructorId"`
	Date         string    `bson:"date" json:"date"` // "2006-01-02"
	Bits         []byte    `bson:"bits" json:"bits"` // always DayBitsLen bytes
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DayWindows pairs a date with its decoded windows, used by the availability
// write API (whole-day replacement) and read responses.
type DayWindows struct {
	Date    string       `bson:"date" json:"date"`
	Windows []TimeWindow `bson:"windows" json:"windows"`
}
