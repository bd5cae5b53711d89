package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

// PostgresBookingOutbox dispatches the events PostgresBookingLedger.Append leaves in
// booking_outbox. Rows are locked with SKIP LOCKED so several relays can run side by side.
// Delivery is at least once: a crash after publishing and before the commit sends the event
// again, and consumers deduplicate on the booking id.
type PostgresBookingOutbox struct {
	db *pgxpool.Pool
}

func NewPostgresBookingOutbox(db *pgxpool.Pool) *PostgresBookingOutbox {
	return &PostgresBookingOutbox{
		db: db,
	}
}

type outboxRow struct {
	id    int64
	event domain.BookingConfirmedEvent
}

func (p *PostgresBookingOutbox) DispatchPending(
	ctx context.Context,
	limit int,
	publish func(ctx context.Context, event domain.BookingConfirmedEvent) error) (int, error) {

	var (
		dispatched int
		publishErr error
	)

	err := runInTx(ctx, p.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		pending, err := lockPending(ctx, tx, limit)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(pending))

		for _, row := range pending {
			publishErr = publish(ctx, row.event)
			if publishErr != nil {
				break
			}

			ids = append(ids, row.id)
		}

		if len(ids) == 0 {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE booking_outbox SET dispatched_at = NOW() WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}

		dispatched = len(ids)

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to dispatch booking events: %w", err)
	}

	if publishErr != nil {
		return dispatched, fmt.Errorf("failed to publish booking event: %w", publishErr)
	}

	return dispatched, nil
}

func lockPending(ctx context.Context, tx pgx.Tx, limit int) ([]outboxRow, error) {
	query := `
		SELECT id, payload
		FROM booking_outbox
		WHERE dispatched_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []outboxRow

	for rows.Next() {
		var row outboxRow
		var payload []byte

		err = rows.Scan(&row.id, &payload)
		if err != nil {
			return nil, err
		}

		err = json.Unmarshal(payload, &row.event)
		if err != nil {
			return nil, fmt.Errorf("outbox row %d: %w", row.id, err)
		}

		pending = append(pending, row)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return pending, nil
}
