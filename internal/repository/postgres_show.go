package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

// PostgresShowRepository reads the tables owned by the show scheduling service.
type PostgresShowRepository struct {
	db *pgxpool.Pool
}

func NewPostgresShowRepository(db *pgxpool.Pool) *PostgresShowRepository {
	return &PostgresShowRepository{
		db: db,
	}
}

func (p *PostgresShowRepository) GetByID(ctx context.Context, showID int) (*domain.Show, error) {
	query := `
		SELECT
			s.id,
			s.movie_title,
			s.start_time,
			s.seat_price,
			COALESCE(
				array_agg(ss.seat_id ORDER BY ss.seat_id) FILTER (WHERE ss.seat_id IS NOT NULL),
				'{}'
			)
		FROM shows s
		LEFT JOIN show_seats ss
			ON ss.show_id = s.id
		WHERE s.id = $1
		GROUP BY s.id
	`

	var show domain.Show
	var seatLabels []string

	err := p.db.QueryRow(ctx, query, showID).Scan(
		&show.ID,
		&show.MovieTitle,
		&show.StartTime,
		&show.SeatPrice,
		&seatLabels,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	show.Seats = toSeatIDs(seatLabels)

	return &show, nil
}
