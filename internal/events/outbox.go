package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

type OutboxRelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func DefaultOutboxRelayConfig() OutboxRelayConfig {
	return OutboxRelayConfig{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    100,
	}
}

// OutboxRelay moves booking events from the outbox to the broker. An event whose publish
// fails stays in the outbox and is retried on the next poll.
type OutboxRelay struct {
	outbox    domain.EventOutbox
	publisher domain.EventPublisher
	logger    *slog.Logger
	config    OutboxRelayConfig
}

func NewOutboxRelay(
	outbox domain.EventOutbox,
	publisher domain.EventPublisher,
	logger *slog.Logger,
	config OutboxRelayConfig) *OutboxRelay {

	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Run polls until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", "poll_interval", r.config.PollInterval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain dispatches full batches until the outbox runs dry or a batch fails, and returns how
// many events reached the broker.
func (r *OutboxRelay) Drain(ctx context.Context) int {
	total := 0

	for ctx.Err() == nil {
		dispatched, err := r.outbox.DispatchPending(ctx, r.config.BatchSize, r.publisher.PublishBookingConfirmed)
		total += dispatched

		if err != nil {
			r.logger.Warn("failed to dispatch booking events",
				"dispatched", dispatched,
				"error", err)
			break
		}

		if dispatched < r.config.BatchSize {
			break
		}
	}

	if total > 0 {
		r.logger.Debug("dispatched booking events", "count", total)
	}

	return total
}
