package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

// PostgresOccupancyStore keeps occupancy in seat_occupancy rows guarded by the
// shows.occupancy_version counter. The (show_id, seat_id) primary key backs up the version
// check so a seat row can never be written twice.
type PostgresOccupancyStore struct {
	db *pgxpool.Pool
}

func NewPostgresOccupancyStore(db *pgxpool.Pool) *PostgresOccupancyStore {
	return &PostgresOccupancyStore{
		db: db,
	}
}

// RegisterShow is a no-op: the shows row created by the scheduling service is the record.
func (p *PostgresOccupancyStore) RegisterShow(ctx context.Context, showID int) error {
	return nil
}

func (p *PostgresOccupancyStore) ReadOccupancy(ctx context.Context, showID int) (*domain.Occupancy, error) {
	var occupancy *domain.Occupancy

	// Version and seat rows must come from the same snapshot.
	txOptions := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

	err := runInTx(ctx, p.db, txOptions, func(tx pgx.Tx) error {
		var version int64

		err := tx.QueryRow(ctx, `SELECT occupancy_version FROM shows WHERE id = $1`, showID).Scan(&version)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRecordNotFound
			}

			return err
		}

		occupancy = domain.NewOccupancy(showID, version)

		query := `
			SELECT seat_id, booking_id::text
			FROM seat_occupancy
			WHERE show_id = $1
		`

		rows, err := tx.Query(ctx, query, showID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var seatID, bookingID string

			err = rows.Scan(&seatID, &bookingID)
			if err != nil {
				return err
			}

			occupancy.Seats[domain.SeatID(seatID)] = bookingID
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return occupancy, nil
}

func (p *PostgresOccupancyStore) TryCommitSeats(
	ctx context.Context,
	showID int,
	seats []domain.SeatID,
	bookingRef string,
	expectedVersion int64) (int64, error) {

	var newVersion int64

	err := runInTx(ctx, p.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		query := `
			UPDATE shows
			SET occupancy_version = occupancy_version + 1, updated_at = NOW()
			WHERE id = $1 AND occupancy_version = $2
			RETURNING occupancy_version
		`

		err := tx.QueryRow(ctx, query, showID, expectedVersion).Scan(&newVersion)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return classifyStaleVersion(ctx, tx, showID)
			}

			return err
		}

		taken, err := takenSeats(ctx, tx, showID, seats)
		if err != nil {
			return err
		}

		if len(taken) > 0 {
			return &domain.SeatConflictError{ShowID: showID, Seats: taken}
		}

		rows := make([][]any, 0, len(seats))
		for _, seat := range seats {
			rows = append(rows, []any{showID, string(seat), bookingRef})
		}

		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"seat_occupancy"},
			[]string{"show_id", "seat_id", "booking_id"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return domain.ErrVersionMismatch
			}

			return fmt.Errorf("failed to insert seat occupancy: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return newVersion, nil
}

func classifyStaleVersion(ctx context.Context, tx pgx.Tx, showID int) error {
	var exists bool

	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shows WHERE id = $1)`, showID).Scan(&exists)
	if err != nil {
		return err
	}

	if !exists {
		return domain.ErrRecordNotFound
	}

	return domain.ErrVersionMismatch
}

func takenSeats(ctx context.Context, tx pgx.Tx, showID int, seats []domain.SeatID) ([]domain.SeatID, error) {
	query := `
		SELECT seat_id
		FROM seat_occupancy
		WHERE show_id = $1 AND seat_id = ANY($2)
	`

	rows, err := tx.Query(ctx, query, showID, toSeatLabels(seats))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owned := make(map[domain.SeatID]bool)

	for rows.Next() {
		var seatID string

		err = rows.Scan(&seatID)
		if err != nil {
			return nil, err
		}

		owned[domain.SeatID(seatID)] = true
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	var taken []domain.SeatID

	for _, seat := range seats {
		if owned[seat] {
			taken = append(taken, seat)
		}
	}

	return taken, nil
}
