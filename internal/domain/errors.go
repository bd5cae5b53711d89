package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrSeatAlreadyReserved  = errors.New("seat(s) are already reserved")
	ErrVersionMismatch      = errors.New("occupancy changed since it was read")
	ErrTransientContention  = errors.New("the show is under heavy booking load, please retry")
	ErrInvalidSeatSelection = errors.New("invalid seat selection")
	ErrDuplicateSubmission  = errors.New("a booking was already submitted with this idempotency key")
	ErrIdempotencyKeyReused = errors.New("idempotency key was already used for a different booking")
)

// SeatConflictError names the requested seats that another booking already owns.
type SeatConflictError struct {
	ShowID int
	Seats  []SeatID
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSeatAlreadyReserved, joinSeats(e.Seats))
}

func (e *SeatConflictError) Is(target error) bool {
	return target == ErrSeatAlreadyReserved
}

const (
	ReasonNoSeats        = "no seats selected"
	ReasonDuplicateSeats = "duplicate seats selected"
	ReasonUnknownSeats   = "seats do not exist for this show"
)

// SeatSelectionError is a client input error: the selection can never succeed as submitted.
type SeatSelectionError struct {
	Reason string
	Seats  []SeatID
}

func (e *SeatSelectionError) Error() string {
	if len(e.Seats) == 0 {
		return e.Reason
	}

	return fmt.Sprintf("%s: %s", e.Reason, joinSeats(e.Seats))
}

func (e *SeatSelectionError) Unwrap() error {
	return ErrInvalidSeatSelection
}

func joinSeats(seats []SeatID) string {
	labels := make([]string, len(seats))
	for i, seat := range seats {
		labels[i] = string(seat)
	}

	return strings.Join(labels, ", ")
}
