package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SeatID identifies a seat within a single show, e.g. "A1".
type SeatID string

type Show struct {
	ID         int
	MovieTitle string
	StartTime  time.Time
	SeatPrice  decimal.Decimal
	Seats      []SeatID
}

// ShowRepository is the read side of the show scheduling service. Shows and their seat sets
// are created there and are immutable from the engine's point of view.
type ShowRepository interface {
	GetByID(ctx context.Context, showID int) (*Show, error)
}
