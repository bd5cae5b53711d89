package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

func runInTx(ctx context.Context, db *pgxpool.Pool, txOptions pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}

func toSeatLabels[S ~string](seats []S) []string {
	labels := make([]string, len(seats))
	for i, seat := range seats {
		labels[i] = string(seat)
	}

	return labels
}

func toSeatIDs(labels []string) []domain.SeatID {
	seats := make([]domain.SeatID, len(labels))
	for i, label := range labels {
		seats[i] = domain.SeatID(label)
	}

	return seats
}
