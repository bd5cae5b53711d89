package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/metinatakli/seat-reservation-engine/internal/booking"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/metinatakli/seat-reservation-engine/internal/events"
	"github.com/metinatakli/seat-reservation-engine/internal/repository"
	"github.com/metinatakli/seat-reservation-engine/internal/reservation"
	appvalidator "github.com/metinatakli/seat-reservation-engine/internal/validator"
	"github.com/metinatakli/seat-reservation-engine/internal/vcs"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const serviceName = "seat-reservation-engine"

var (
	version = vcs.Version()
)

// BookingService is the booking use case layer behind the HTTP handlers.
type BookingService interface {
	BookSeats(ctx context.Context, input booking.BookSeatsInput) (*booking.Confirmation, error)
	GetOccupiedSeats(ctx context.Context, showID int) ([]domain.SeatID, error)
	ListBookings(ctx context.Context, showID int) ([]domain.Booking, error)
	GetBooking(ctx context.Context, userID, bookingID string) (*domain.Booking, error)
}

type Application struct {
	config    Config
	logger    *slog.Logger
	validator *validator.Validate
	bookings  BookingService
}

type Config struct {
	Port             int
	Env              string
	Store            string
	DB               DBConfig
	Redis            RedisConfig
	AMQP             AMQPConfig
	JWT              JWTConfig
	Retry            reservation.Config
	OtelCollectorUrl string
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type AMQPConfig struct {
	URL string
}

// JWTConfig holds the secret shared with the identity service that issues access tokens.
type JWTConfig struct {
	Secret string
}

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

func Run() error {
	// A missing .env file is fine: flags and the real environment still apply.
	_ = godotenv.Load()

	var cfg Config

	defaultRetry := reservation.DefaultConfig()

	flag.IntVar(&cfg.Port, "port", envInt("PORT", 3000), "server port")
	flag.StringVar(&cfg.Env, "env", envString("ENV", "dev"), "Environment (dev|staging|prod)")
	flag.StringVar(&cfg.Store, "store", envString("OCCUPANCY_STORE", StorePostgres), "Occupancy store (postgres|redis|memory)")

	flag.StringVar(&cfg.DB.DSN, "db-dsn", envString("DB_DSN", ""), "PostgreSQL DSN")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.Redis.URL, "redis-url", envString("REDIS_URL", ""), "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.AMQP.URL, "amqp-url", envString("RABBITMQ_URL", ""), "RabbitMQ URL, events are not published when empty")
	flag.StringVar(&cfg.JWT.Secret, "jwt-secret", envString("JWT_SECRET", ""), "HMAC secret of the identity service tokens")

	flag.IntVar(&cfg.Retry.MaxRetries, "retry-max", defaultRetry.MaxRetries, "Max commit retries on concurrent modification")
	flag.DurationVar(&cfg.Retry.InitialInterval, "retry-initial-interval", defaultRetry.InitialInterval, "First retry backoff")
	flag.DurationVar(&cfg.Retry.MaxInterval, "retry-max-interval", defaultRetry.MaxInterval, "Upper bound of a single retry backoff")
	cfg.Retry.Multiplier = defaultRetry.Multiplier
	cfg.Retry.RandomizationFactor = defaultRetry.RandomizationFactor

	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", envString("OTEL_COLLECTOR_URL", ""), "OpenTelemetry collector gRPC endpoint")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	err := cfg.validate()
	if err != nil {
		return err
	}

	textHandler := slog.NewTextHandler(os.Stdout, nil)

	app := NewApp(cfg, slog.New(textHandler), appvalidator.NewValidator(), nil)

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	if cfg.OtelCollectorUrl != "" {
		app.logger = slog.New(NewMultiHandler(textHandler, otelslog.NewHandler(serviceName)))
	}

	stores, err := app.openStores()
	if err != nil {
		return err
	}
	defer stores.close()

	publisher, closePublisher, err := app.newPublisher()
	if err != nil {
		return err
	}
	defer closePublisher()

	servicePublisher := publisher
	if stores.outbox != nil {
		// The ledger writes each event with its booking and the relay delivers it.
		servicePublisher = events.NoopPublisher{}

		stopRelay := app.startOutboxRelay(stores.outbox, publisher)
		defer stopRelay()
	}

	reserver := reservation.NewReserver(stores.occupancy, app.logger, cfg.Retry)
	app.bookings = booking.NewService(stores.shows, stores.occupancy, stores.ledger, reserver, servicePublisher, app.logger)

	return app.serve()
}

func NewApp(cfg Config, logger *slog.Logger, validator *validator.Validate, bookings BookingService) *Application {
	return &Application{
		config:    cfg,
		logger:    logger,
		validator: validator,
		bookings:  bookings,
	}
}

func (cfg Config) validate() error {
	switch cfg.Store {
	case StorePostgres, StoreRedis:
		if cfg.DB.DSN == "" {
			return errors.New("db-dsn is required for the postgres and redis stores")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown occupancy store %q", cfg.Store)
	}

	if cfg.Store == StoreRedis && cfg.Redis.URL == "" {
		return errors.New("redis-url is required for the redis store")
	}

	if cfg.JWT.Secret == "" {
		return errors.New("jwt-secret is required")
	}

	if cfg.Retry.MaxRetries < 0 {
		return errors.New("retry-max must not be negative")
	}

	return nil
}

type stores struct {
	shows     domain.ShowRepository
	occupancy domain.OccupancyStore
	ledger    domain.BookingLedger
	outbox    domain.EventOutbox
	close     func()
}

// openStores wires the show repository, occupancy store and ledger for the configured store.
// The redis store keeps occupancy in Redis while shows and bookings stay in PostgreSQL.
func (app *Application) openStores() (*stores, error) {
	if app.config.Store == StoreMemory {
		app.logger.Warn("using in-memory stores, bookings are lost on restart")

		return &stores{
			shows:     repository.NewMemoryShowRepository(demoShows()...),
			occupancy: repository.NewMemoryOccupancyStore(),
			ledger:    repository.NewMemoryBookingLedger(),
			close:     func() {},
		}, nil
	}

	db, err := NewDatabasePool(app.config)
	if err != nil {
		return nil, err
	}

	s := &stores{
		shows:     repository.NewPostgresShowRepository(db),
		occupancy: repository.NewPostgresOccupancyStore(db),
		ledger:    repository.NewPostgresBookingLedger(db),
		outbox:    repository.NewPostgresBookingOutbox(db),
		close:     db.Close,
	}

	if app.config.Store == StoreRedis {
		redisClient, err := NewRedisClient(app.config)
		if err != nil {
			db.Close()
			return nil, err
		}

		s.occupancy = repository.NewRedisOccupancyStore(redisClient)
		s.close = func() {
			redisClient.Close()
			db.Close()
		}
	}

	app.logger.Info("stores opened", "occupancy_store", app.config.Store)

	return s, nil
}

func (app *Application) newPublisher() (domain.EventPublisher, func(), error) {
	if app.config.AMQP.URL == "" {
		app.logger.Info("RabbitMQ URL not set, booking events will not be published")

		return events.NoopPublisher{}, func() {}, nil
	}

	publisher, err := events.NewRabbitMQPublisher(app.config.AMQP.URL, app.logger)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		err := publisher.Close()
		if err != nil {
			app.logger.Error("failed to close rabbitmq publisher", "error", err)
		}
	}

	return publisher, closeFn, nil
}

// startOutboxRelay runs the relay until the returned stop function is called. Without a broker
// the events stay in the outbox until one is configured.
func (app *Application) startOutboxRelay(outbox domain.EventOutbox, publisher domain.EventPublisher) func() {
	if app.config.AMQP.URL == "" {
		return func() {}
	}

	relay := events.NewOutboxRelay(outbox, publisher, app.logger, events.DefaultOutboxRelayConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		relay.Run(ctx)
	}()

	return func() {
		cancel()
		<-done
	}
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	err := redisotel.InstrumentTracing(rdb)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		shutdownError <- srv.Shutdown(ctx)
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env, "version", version)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

func envString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func envInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}

	return n
}
