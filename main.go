package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jessevdk/go-flags"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"tours/app"
	"tours/attempts"
	"tours/booking"
	"tours/gateway"
	"tours/tracing"
)

type config struct {
	HTTPAddr             string        `long:"http-addr" env:"HTTP_ADDR" default:":8080"`
	ContentAPIURL        string        `long:"content-api-url" env:"CONTENT_API_URL" required:"true"`
	StripeAPIURL         string        `long:"stripe-api-url" env:"STRIPE_API_URL" default:"https://api.stripe.com"`
	StripePublishableKey string        `long:"stripe-publishable-key" env:"STRIPE_PUBLISHABLE_KEY" required:"true"`
	PostgresURL          string        `long:"postgres-url" env:"POSTGRES_URL" required:"true"`
	RedisAddr            string        `long:"redis-addr" env:"REDIS_ADDR" required:"true"`
	JaegerEndpoint       string        `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT"`
	AttemptStore         string        `long:"attempt-store" env:"ATTEMPT_STORE" default:"redis" choice:"redis" choice:"memory"`
	AttemptTTL           time.Duration `long:"attempt-ttl" env:"ATTEMPT_TTL" default:"1h"`
	HTTPClientTimeout    time.Duration `long:"http-client-timeout" env:"HTTP_CLIENT_TIMEOUT" default:"15s"`
	ReferenceRate        string        `long:"reference-rate" env:"REFERENCE_RATE" default:"12500"`
	Timezone             string        `long:"timezone" env:"TIMEZONE" default:"Asia/Tashkent"`
	VerifyReplayed       string        `long:"verify-replayed-intents" env:"VERIFY_REPLAYED_INTENTS" default:"true" choice:"true" choice:"false"`
	RebuildReadModel     bool          `long:"rebuild-read-model" env:"REBUILD_READ_MODEL"`
	LogLevel             string        `long:"log-level" env:"LOG_LEVEL" default:"info"`
}

func main() {
	var cfg config
	if _, err := flags.Parse(&cfg); err != nil {
		os.Exit(1)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.Init(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("tours service failed")
	}
}

func run(ctx context.Context, cfg config) error {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	traceProvider, err := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("could not configure tracing: %w", err)
	}

	traceDB, err := otelsql.Open("postgres", cfg.PostgresURL,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithDBName("tours"))
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	dbconn := sqlx.NewDb(traceDB, "postgres")
	defer dbconn.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	var attemptRepo booking.AttemptRepository
	switch cfg.AttemptStore {
	case "memory":
		attemptRepo = attempts.NewMemoryRepository(cfg.AttemptTTL)
	default:
		attemptRepo = attempts.NewRedisRepository(redisClient, cfg.AttemptTTL, cfg.HTTPClientTimeout)
	}

	application, err := app.New(
		app.Config{
			HTTPAddr:             cfg.HTTPAddr,
			StripePublishableKey: cfg.StripePublishableKey,
			RebuildReadModel:     cfg.RebuildReadModel,
			Booking: booking.Config{
				ReferenceRate:         cfg.ReferenceRate,
				Location:              location,
				VerifyReplayedIntents: cfg.VerifyReplayed == "true",
			},
		},
		dbconn,
		redisClient,
		gateway.NewContentClient(cfg.ContentAPIURL, cfg.HTTPClientTimeout),
		gateway.NewStripeProcessor(cfg.StripeAPIURL, cfg.StripePublishableKey, cfg.HTTPClientTimeout),
		attemptRepo,
		traceProvider,
	)
	if err != nil {
		return err
	}

	return application.Run(ctx)
}
