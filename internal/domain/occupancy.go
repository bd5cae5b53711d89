package domain

import (
	"context"
	"slices"
)

// Occupancy maps every committed seat of a show to the booking that owns it. Seats are only
// ever added; Version increases by one with each successful commit.
type Occupancy struct {
	ShowID  int
	Version int64
	Seats   map[SeatID]string
}

func NewOccupancy(showID int, version int64) *Occupancy {
	return &Occupancy{
		ShowID:  showID,
		Version: version,
		Seats:   make(map[SeatID]string),
	}
}

// Taken returns the requested seats that are already owned, in request order.
func (o *Occupancy) Taken(seats []SeatID) []SeatID {
	var taken []SeatID

	for _, seat := range seats {
		if _, ok := o.Seats[seat]; ok {
			taken = append(taken, seat)
		}
	}

	return taken
}

// OwnedBy reports whether every given seat is held by bookingRef.
func (o *Occupancy) OwnedBy(seats []SeatID, bookingRef string) bool {
	if len(seats) == 0 {
		return false
	}

	for _, seat := range seats {
		if o.Seats[seat] != bookingRef {
			return false
		}
	}

	return true
}

// SeatIDs returns the occupied seats in ascending order.
func (o *Occupancy) SeatIDs() []SeatID {
	seatIDs := make([]SeatID, 0, len(o.Seats))
	for seat := range o.Seats {
		seatIDs = append(seatIDs, seat)
	}

	slices.Sort(seatIDs)

	return seatIDs
}

// Reservation is the result of a successful commit of a seat selection.
type Reservation struct {
	ShowID     int
	Seats      []SeatID
	BookingRef string
	Version    int64
	Attempts   int
}

// OccupancyStore persists one occupancy record per show. TryCommitSeats is the only way to
// mutate a record: it either assigns every seat to bookingRef or none of them, and only when
// the record is still at expectedVersion.
//
// TryCommitSeats returns the new version on success, *SeatConflictError when some seats are
// already owned, ErrVersionMismatch when the record changed since it was read and
// ErrRecordNotFound for unknown shows.
type OccupancyStore interface {
	RegisterShow(ctx context.Context, showID int) error
	ReadOccupancy(ctx context.Context, showID int) (*Occupancy, error)
	TryCommitSeats(ctx context.Context, showID int, seats []SeatID, bookingRef string, expectedVersion int64) (int64, error)
}
