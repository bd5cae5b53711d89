package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

type PostgresBookingLedger struct {
	db *pgxpool.Pool
}

func NewPostgresBookingLedger(db *pgxpool.Pool) *PostgresBookingLedger {
	return &PostgresBookingLedger{
		db: db,
	}
}

const bookingColumns = `
	id::text,
	number,
	user_id,
	show_id,
	seat_ids,
	amount,
	status,
	COALESCE(idempotency_key, ''),
	created_at
`

// Claim inserts the claim and then reads back whichever row holds the key. The read runs as
// its own statement so it sees a claim committed by a concurrent request.
func (p *PostgresBookingLedger) Claim(ctx context.Context, claim *domain.IdempotencyClaim) (*domain.IdempotencyClaim, error) {
	insert := `
		INSERT INTO idempotency_claims (user_id, idempotency_key, show_id, seat_ids, booking_ref)
		VALUES ($1, $2, $3, $4, $5::uuid)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
	`

	_, err := p.db.Exec(ctx, insert, claim.UserID, claim.Key, claim.ShowID, toSeatLabels(claim.Seats), claim.BookingRef)
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	query := `
		SELECT show_id, seat_ids, booking_ref::text
		FROM idempotency_claims
		WHERE user_id = $1 AND idempotency_key = $2
	`

	stored := domain.IdempotencyClaim{UserID: claim.UserID, Key: claim.Key}
	var seatLabels []string

	err = p.db.QueryRow(ctx, query, claim.UserID, claim.Key).Scan(&stored.ShowID, &seatLabels, &stored.BookingRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency claim: %w", err)
	}

	stored.Seats = toSeatIDs(seatLabels)

	return &stored, nil
}

// Append records the booking and its confirmed event in one transaction. The event waits in
// booking_outbox until PostgresBookingOutbox dispatches it.
func (p *PostgresBookingLedger) Append(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (id, user_id, show_id, seat_ids, amount, status, idempotency_key)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING number, created_at
	`

	err := runInTx(ctx, p.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(
			ctx,
			query,
			booking.ID,
			booking.UserID,
			booking.ShowID,
			toSeatLabels(booking.Seats),
			booking.Amount,
			booking.Status.String(),
			booking.IdempotencyKey,
		).Scan(&booking.Number, &booking.CreatedAt)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(domain.NewBookingConfirmedEvent(booking))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `INSERT INTO booking_outbox (booking_id, payload) VALUES ($1::uuid, $2)`, booking.ID, payload)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrDuplicateSubmission
		}

		return fmt.Errorf("failed to append booking: %w", err)
	}

	return nil
}

func (p *PostgresBookingLedger) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1::uuid`

	return p.getOne(ctx, query, id)
}

func (p *PostgresBookingLedger) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 AND idempotency_key = $2`

	return p.getOne(ctx, query, userID, key)
}

func (p *PostgresBookingLedger) getOne(ctx context.Context, query string, args ...any) (*domain.Booking, error) {
	booking, err := scanBooking(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return booking, nil
}

func (p *PostgresBookingLedger) ListByShow(ctx context.Context, showID int) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE show_id = $1 ORDER BY number`

	rows, err := p.db.Query(ctx, query, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)

	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}

		bookings = append(bookings, *booking)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var booking domain.Booking
	var seatLabels []string
	var status string

	err := row.Scan(
		&booking.ID,
		&booking.Number,
		&booking.UserID,
		&booking.ShowID,
		&seatLabels,
		&booking.Amount,
		&status,
		&booking.IdempotencyKey,
		&booking.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.Status = domain.BookingStatus(status)
	booking.Seats = toSeatIDs(seatLabels)

	return &booking, nil
}
