package models

import "time"

// BookingResponse is the public shape returned by booking endpoints.
type BookingResponse struct {
	BookingID     string        `json:"bookingId"`
	InstructorID  string        `json:"instructorId"`
	StudentID     string        `json:"studentId"`
	Date          string        `json:"date"`
	Start         int           `json:"start"`
	End           int           `json:"end"`
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	TotalCents    int64         `json:"totalCents"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// NewBookingResponse maps a Booking to its public shape.
func NewBookingResponse(b *Booking) BookingResponse {
	return BookingResponse{
		BookingID:     b.ID,
		InstructorID:  b.InstructorID,
		StudentID:     b.StudentID,
		Date:          b.Date,
		Start:         b.Start,
		End:           b.End,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		TotalCents:    b.TotalPriceCents,
		CreatedAt:     b.CreatedAt,
	}
}
