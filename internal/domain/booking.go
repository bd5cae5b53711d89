package domain

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
)

func (s BookingStatus) String() string {
	return string(s)
}

type Booking struct {
	ID             string
	Number         int64
	UserID         string
	ShowID         int
	Seats          []SeatID
	Amount         decimal.Decimal
	Status         BookingStatus
	IdempotencyKey string
	CreatedAt      time.Time
}

// NewBooking builds the confirmed booking for a committed reservation. The amount is always
// derived from the show's seat price, never from client input.
func NewBooking(userID string, show *Show, reservation *Reservation, idempotencyKey string) *Booking {
	seats := slices.Clone(reservation.Seats)

	return &Booking{
		ID:             reservation.BookingRef,
		UserID:         userID,
		ShowID:         show.ID,
		Seats:          seats,
		Amount:         show.SeatPrice.Mul(decimal.NewFromInt(int64(len(seats)))),
		Status:         BookingStatusConfirmed,
		IdempotencyKey: idempotencyKey,
	}
}

// Matches reports whether the booking was made for exactly this show and seat sequence.
func (b *Booking) Matches(showID int, seats []SeatID) bool {
	return b.ShowID == showID && slices.Equal(b.Seats, seats)
}

// IdempotencyClaim ties a user's idempotency key to one request before any seat is committed.
// Every request that presents the same key for the same show and seats reuses BookingRef, so
// the seats and the booking they end up in share one reference.
type IdempotencyClaim struct {
	UserID     string
	Key        string
	ShowID     int
	Seats      []SeatID
	BookingRef string
}

func (c *IdempotencyClaim) Matches(showID int, seats []SeatID) bool {
	return c.ShowID == showID && slices.Equal(c.Seats, seats)
}

func (b *Booking) BelongsToUser(userID string) bool {
	return b.UserID == userID
}

// BookingLedger is the append-only record of confirmed bookings. Append assigns Number and
// CreatedAt and returns ErrDuplicateSubmission when the booking id or the user's idempotency
// key is already recorded.
//
// Claim stores claim unless the user's key is already claimed, and returns whichever claim
// holds the key afterwards.
type BookingLedger interface {
	Claim(ctx context.Context, claim *IdempotencyClaim) (*IdempotencyClaim, error)
	Append(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*Booking, error)
	ListByShow(ctx context.Context, showID int) ([]Booking, error)
}

// BookingConfirmedEvent is published once a booking has been written to the ledger.
type BookingConfirmedEvent struct {
	BookingID     string          `json:"bookingId"`
	BookingNumber int64           `json:"bookingNumber"`
	UserID        string          `json:"userId"`
	ShowID        int             `json:"showId"`
	Seats         []SeatID        `json:"seats"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func NewBookingConfirmedEvent(booking *Booking) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		BookingID:     booking.ID,
		BookingNumber: booking.Number,
		UserID:        booking.UserID,
		ShowID:        booking.ShowID,
		Seats:         slices.Clone(booking.Seats),
		Amount:        booking.Amount,
		CreatedAt:     booking.CreatedAt,
	}
}

type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error
}

// EventOutbox holds booking events that were written together with their booking and still
// have to reach the broker. DispatchPending hands up to limit pending events to publish in
// the order they were recorded, stops at the first publish error and marks every event that
// publish accepted as dispatched. It returns how many events were dispatched.
type EventOutbox interface {
	DispatchPending(ctx context.Context, limit int, publish func(ctx context.Context, event BookingConfirmedEvent) error) (int, error)
}
