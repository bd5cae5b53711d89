package integration_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-engine/internal/app"
	"github.com/metinatakli/seat-reservation-engine/internal/booking"
	"github.com/metinatakli/seat-reservation-engine/internal/events"
	"github.com/metinatakli/seat-reservation-engine/internal/repository"
	"github.com/metinatakli/seat-reservation-engine/internal/reservation"
	appvalidator "github.com/metinatakli/seat-reservation-engine/internal/validator"
	"github.com/redis/go-redis/v9"
)

type TestApp struct {
	App         *app.Application
	Config      app.Config
	Logger      *slog.Logger
	DB          *pgxpool.Pool
	RedisClient *redis.Client
	Publisher   *events.RabbitMQPublisher
	Outbox      *repository.PostgresBookingOutbox
	stopRelay   func()
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := appvalidator.NewValidator()

	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	publisher, err := events.NewRabbitMQPublisher(cfg.AMQP.URL, logger)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, err
	}

	showRepo := repository.NewPostgresShowRepository(db)
	occupancyStore := repository.NewPostgresOccupancyStore(db)
	bookingLedger := repository.NewPostgresBookingLedger(db)

	outbox := repository.NewPostgresBookingOutbox(db)

	reserver := reservation.NewReserver(occupancyStore, logger, cfg.Retry)

	bookingService := booking.NewService(
		showRepo,
		occupancyStore,
		bookingLedger,
		reserver,
		events.NoopPublisher{},
		logger,
	)

	relay := events.NewOutboxRelay(outbox, publisher, logger, events.OutboxRelayConfig{
		PollInterval: 20 * time.Millisecond,
		BatchSize:    10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		relay.Run(ctx)
	}()

	application := app.NewApp(cfg, logger, validator, bookingService)

	return &TestApp{
		App:         application,
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		RedisClient: redisClient,
		Publisher:   publisher,
		Outbox:      outbox,
		stopRelay: func() {
			cancel()
			<-done
		},
	}, nil
}

func (app *TestApp) Close() {
	app.stopRelay()
	app.Publisher.Close()
	app.RedisClient.Close()
	app.DB.Close()
}
