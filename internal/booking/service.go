// Package booking exposes the booking use cases: reserving seats for a user, listing what a
// show has sold and looking up confirmed bookings.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/metinatakli/seat-reservation-engine/internal/reservation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/metinatakli/seat-reservation-engine/internal/booking"

type BookSeatsInput struct {
	UserID         string
	ShowID         int
	Seats          []domain.SeatID
	IdempotencyKey string
}

// Confirmation is what a booking request returns. Replayed is set when the booking was created
// by an earlier request carrying the same idempotency key.
type Confirmation struct {
	Booking  *domain.Booking
	Replayed bool
}

type Service struct {
	shows     domain.ShowRepository
	occupancy domain.OccupancyStore
	ledger    domain.BookingLedger
	reserver  *reservation.Reserver
	publisher domain.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewService(
	shows domain.ShowRepository,
	occupancy domain.OccupancyStore,
	ledger domain.BookingLedger,
	reserver *reservation.Reserver,
	publisher domain.EventPublisher,
	logger *slog.Logger) *Service {

	return &Service{
		shows:     shows,
		occupancy: occupancy,
		ledger:    ledger,
		reserver:  reserver,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// BookSeats reserves every requested seat for the user or none of them and records the
// booking. The amount charged is computed from the show's seat price.
func (s *Service) BookSeats(ctx context.Context, input BookSeatsInput) (*Confirmation, error) {
	ctx, span := s.tracer.Start(ctx, "booking.BookSeats", trace.WithAttributes(
		attribute.Int("show.id", input.ShowID),
		attribute.Int("seats.count", len(input.Seats)),
	))
	defer span.End()

	confirmation, err := s.bookSeats(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking.id", confirmation.Booking.ID),
		attribute.Bool("booking.replayed", confirmation.Replayed),
	)

	return confirmation, nil
}

func (s *Service) bookSeats(ctx context.Context, input BookSeatsInput) (*Confirmation, error) {
	if input.IdempotencyKey != "" {
		confirmation, err := s.replay(ctx, input)
		if err != nil || confirmation != nil {
			return confirmation, err
		}
	}

	show, err := s.shows.GetByID(ctx, input.ShowID)
	if err != nil {
		return nil, err
	}

	// Rejected selections never reach the occupancy store.
	err = domain.ValidateSeatSelection(show, input.Seats)
	if err != nil {
		return nil, err
	}

	bookingRef, err := s.claimBookingRef(ctx, input)
	if err != nil {
		return nil, err
	}

	err = s.occupancy.RegisterShow(ctx, show.ID)
	if err != nil {
		return nil, err
	}

	reservation, err := s.reserver.Reserve(ctx, show, input.Seats, bookingRef)
	if err != nil {
		return nil, err
	}

	booking := domain.NewBooking(input.UserID, show, reservation, input.IdempotencyKey)

	err = s.ledger.Append(ctx, booking)
	if err != nil {
		// A twin request holding the same claim recorded the booking first.
		if input.IdempotencyKey != "" && errors.Is(err, domain.ErrDuplicateSubmission) {
			confirmation, replayErr := s.replay(ctx, input)
			if replayErr != nil {
				return nil, replayErr
			}
			if confirmation != nil {
				return confirmation, nil
			}
		}

		s.logger.Error("seats committed but booking was not recorded",
			"booking_id", bookingRef,
			"show_id", show.ID,
			"seats", reservation.Seats,
			"error", err)

		return nil, fmt.Errorf("failed to record booking %s: %w", bookingRef, err)
	}

	s.logger.Info("booking confirmed",
		"booking_id", booking.ID,
		"booking_number", booking.Number,
		"show_id", booking.ShowID,
		"seats", booking.Seats,
		"attempts", reservation.Attempts)

	s.publishConfirmed(ctx, booking)

	return &Confirmation{Booking: booking}, nil
}

// claimBookingRef returns the reference the seats are committed under. A keyed request first
// claims its key, so a twin with the same key and selection gets the same reference and one
// with a different selection is turned away before it can commit anything.
func (s *Service) claimBookingRef(ctx context.Context, input BookSeatsInput) (string, error) {
	bookingRef := uuid.NewString()

	if input.IdempotencyKey == "" {
		return bookingRef, nil
	}

	claim, err := s.ledger.Claim(ctx, &domain.IdempotencyClaim{
		UserID:     input.UserID,
		Key:        input.IdempotencyKey,
		ShowID:     input.ShowID,
		Seats:      input.Seats,
		BookingRef: bookingRef,
	})
	if err != nil {
		return "", err
	}

	if !claim.Matches(input.ShowID, input.Seats) {
		return "", domain.ErrIdempotencyKeyReused
	}

	return claim.BookingRef, nil
}

// replay returns the earlier confirmation for the user's idempotency key, nil if the key is
// unused, or ErrIdempotencyKeyReused if it was used for a different request.
func (s *Service) replay(ctx context.Context, input BookSeatsInput) (*Confirmation, error) {
	original, err := s.ledger.GetByIdempotencyKey(ctx, input.UserID, input.IdempotencyKey)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	if !original.Matches(input.ShowID, input.Seats) {
		return nil, domain.ErrIdempotencyKeyReused
	}

	return &Confirmation{Booking: original, Replayed: true}, nil
}

func (s *Service) publishConfirmed(ctx context.Context, booking *domain.Booking) {
	err := s.publisher.PublishBookingConfirmed(ctx, domain.NewBookingConfirmedEvent(booking))
	if err != nil {
		s.logger.Warn("failed to publish booking confirmed event",
			"booking_id", booking.ID,
			"error", err)
	}
}

// GetOccupiedSeats lists the seats already sold for a show in ascending order. The answer is
// advisory: seats may be taken between this read and a booking attempt.
func (s *Service) GetOccupiedSeats(ctx context.Context, showID int) ([]domain.SeatID, error) {
	ctx, span := s.tracer.Start(ctx, "booking.GetOccupiedSeats", trace.WithAttributes(
		attribute.Int("show.id", showID),
	))
	defer span.End()

	_, err := s.shows.GetByID(ctx, showID)
	if err != nil {
		return nil, err
	}

	// A known show that was never booked may have no occupancy record yet.
	occupancy, err := s.occupancy.ReadOccupancy(ctx, showID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return []domain.SeatID{}, nil
		}

		return nil, err
	}

	return occupancy.SeatIDs(), nil
}

func (s *Service) ListBookings(ctx context.Context, showID int) ([]domain.Booking, error) {
	_, err := s.shows.GetByID(ctx, showID)
	if err != nil {
		return nil, err
	}

	return s.ledger.ListByShow(ctx, showID)
}

// GetBooking returns the booking only to the user who made it. Other users get
// ErrRecordNotFound, so they cannot tell which booking ids exist.
func (s *Service) GetBooking(ctx context.Context, userID, bookingID string) (*domain.Booking, error) {
	booking, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.BelongsToUser(userID) {
		return nil, domain.ErrRecordNotFound
	}

	return booking, nil
}
