package app

import (
	"fmt"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// demoShows seeds the memory store so the API is usable without a database.
func demoShows() []domain.Show {
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

	return []domain.Show{
		{
			ID:         1,
			MovieTitle: "The Grand Budapest Hotel",
			StartTime:  start,
			SeatPrice:  decimal.RequireFromString("12.50"),
			Seats:      hallSeats("ABCDEFGH", 12),
		},
		{
			ID:         2,
			MovieTitle: "Paris, Texas",
			StartTime:  start.Add(3 * time.Hour),
			SeatPrice:  decimal.RequireFromString("9.00"),
			Seats:      hallSeats("ABCDE", 8),
		},
	}
}

func hallSeats(rows string, seatsPerRow int) []domain.SeatID {
	seats := make([]domain.SeatID, 0, len(rows)*seatsPerRow)

	for _, row := range rows {
		for n := 1; n <= seatsPerRow; n++ {
			seats = append(seats, domain.SeatID(fmt.Sprintf("%c%d", row, n)))
		}
	}

	return seats
}
