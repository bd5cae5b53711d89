// Package reservation turns a seat selection into a committed reservation using optimistic
// concurrency against an OccupancyStore.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/metinatakli/seat-reservation-engine/internal/reservation"

// Config bounds the retry loop that runs when a commit loses a race on the occupancy version.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries          int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:          5,
		InitialInterval:     10 * time.Millisecond,
		MaxInterval:         250 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

type Reserver struct {
	store    domain.OccupancyStore
	logger   *slog.Logger
	config   Config
	attempts metric.Int64Counter
}

func NewReserver(store domain.OccupancyStore, logger *slog.Logger, config Config) *Reserver {
	attempts, err := otel.Meter(meterName).Int64Counter(
		"reservation.commit.attempts",
		metric.WithDescription("Seat commit attempts by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create reservation attempts counter", "error", err)
	}

	return &Reserver{
		store:    store,
		logger:   logger,
		config:   config,
		attempts: attempts,
	}
}

// Reserve commits seats of show to bookingRef. The selection is validated before the store is
// touched. Seats that already belong to bookingRef were committed by an earlier attempt of the
// same request and are returned as reserved without another commit. It returns *domain.SeatSelectionError for bad input, *domain.SeatConflictError
// naming exactly the seats that are taken, domain.ErrRecordNotFound for unknown shows and
// domain.ErrTransientContention when every retry lost the race on the occupancy version.
func (r *Reserver) Reserve(
	ctx context.Context,
	show *domain.Show,
	seats []domain.SeatID,
	bookingRef string) (*domain.Reservation, error) {

	err := domain.ValidateSeatSelection(show, seats)
	if err != nil {
		return nil, err
	}

	attempts := 0

	operation := func() (int64, error) {
		attempts++

		occupancy, err := r.store.ReadOccupancy(ctx, show.ID)
		if err != nil {
			r.record(ctx, "read_failed")
			return 0, backoff.Permanent(err)
		}

		// The version check in TryCommitSeats makes this snapshot authoritative, so a
		// request can never commit the same reference twice.
		if occupancy.OwnedBy(seats, bookingRef) {
			r.record(ctx, "already_committed")
			return occupancy.Version, nil
		}

		if taken := occupancy.Taken(seats); len(taken) > 0 {
			r.record(ctx, "unavailable")
			return 0, backoff.Permanent(&domain.SeatConflictError{ShowID: show.ID, Seats: taken})
		}

		version, err := r.store.TryCommitSeats(ctx, show.ID, seats, bookingRef, occupancy.Version)
		switch {
		case err == nil:
			r.record(ctx, "committed")
			return version, nil
		case errors.Is(err, domain.ErrVersionMismatch):
			r.record(ctx, "version_mismatch")
			return 0, err
		default:
			r.record(ctx, "rejected")
			return 0, backoff.Permanent(err)
		}
	}

	version, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.config.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Debug("retrying seat commit",
				"show_id", show.ID,
				"attempt", attempts,
				"next_in", next,
				"error", err)
		}),
	)
	if err != nil {
		if errors.Is(err, domain.ErrVersionMismatch) {
			return nil, fmt.Errorf("%w: gave up after %d attempts", domain.ErrTransientContention, attempts)
		}

		return nil, err
	}

	return &domain.Reservation{
		ShowID:     show.ID,
		Seats:      seats,
		BookingRef: bookingRef,
		Version:    version,
		Attempts:   attempts,
	}, nil
}

func (r *Reserver) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialInterval
	b.MaxInterval = r.config.MaxInterval
	b.Multiplier = r.config.Multiplier
	b.RandomizationFactor = r.config.RandomizationFactor

	return b
}

func (r *Reserver) record(ctx context.Context, outcome string) {
	if r.attempts == nil {
		return
	}

	r.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
