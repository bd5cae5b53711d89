// Package api holds the JSON request and response bodies of the booking HTTP API.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	RequestId        string            `json:"requestId"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

// SeatConflictResponse is returned with 409 and names the seats another booking holds.
type SeatConflictResponse struct {
	Message          string    `json:"message"`
	RequestId        string    `json:"requestId"`
	Timestamp        time.Time `json:"timestamp"`
	ConflictingSeats []string  `json:"conflictingSeats"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type BookSeatsRequest struct {
	SeatIds []string `json:"seatIds" validate:"required,min=1,max=50,dive,seat_id"`
}

type Booking struct {
	Id            string          `json:"id"`
	BookingNumber int64           `json:"bookingNumber"`
	UserId        string          `json:"userId"`
	ShowId        int             `json:"showId"`
	Seats         []string        `json:"seats"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type BookingResponse struct {
	Booking  Booking `json:"booking"`
	Replayed bool    `json:"replayed"`
}

type OccupiedSeatsResponse struct {
	ShowId        int      `json:"showId"`
	OccupiedSeats []string `json:"occupiedSeats"`
}

type ShowBookingsResponse struct {
	ShowId   int       `json:"showId"`
	Bookings []Booking `json:"bookings"`
}
