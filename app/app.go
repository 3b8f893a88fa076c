package app

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"tours/booking"
	dbLib "tours/db"
	"tours/http"
	migrations "tours/migration"
	"tours/pubsub"
	"tours/pubsub/bus"
	"tours/pubsub/event"
	"tours/pubsub/outbox"
)

// ContentService is everything the app needs from the content service.
type ContentService interface {
	booking.ContentService
	booking.GuideDirectory
	http.Catalog
}

type Config struct {
	HTTPAddr             string
	StripePublishableKey string
	RebuildReadModel     bool
	Booking              booking.Config
}

type App struct {
	db               *sqlx.DB
	watermillRouter  *message.Router
	httpServer       *http.Server
	opsHandlers      event.OpsPaymentIntentHandlers
	dataLake         dbLib.DataLake
	traceProvider    *tracesdk.TracerProvider
	rebuildReadModel bool
}

func New(
	config Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	content ContentService,
	processor booking.PaymentProcessor,
	attempts booking.AttemptRepository,
	traceProvider *tracesdk.TracerProvider,
) (App, error) {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher := pubsub.NewRedisPublisher(redisClient, watermillLogger)

	eventBus, err := bus.NewEventBus(redisPublisher)
	if err != nil {
		return App{}, fmt.Errorf("failed to create event bus: %w", err)
	}

	controller, err := booking.NewController(content, processor, config.Booking)
	if err != nil {
		return App{}, fmt.Errorf("failed to create booking controller: %w", err)
	}
	bookingService := booking.NewService(controller, content, attempts, eventBus)

	opsReadModel := dbLib.NewOpsPaymentIntents(db)
	dataLake := dbLib.NewDataLake(db)
	opsHandlers := event.NewOpsPaymentIntentHandlers(opsReadModel, eventBus)

	watermillRouter, err := pubsub.NewWatermillRouter(
		outbox.NewPostgresSubscriber(db.DB, watermillLogger),
		redisPublisher,
		func(consumerGroup string) message.Subscriber {
			return pubsub.NewRedisSubscriber(redisClient, consumerGroup, watermillLogger)
		},
		event.NewProcessorConfig(redisClient, watermillLogger),
		opsHandlers.Handlers(),
		dataLake,
		watermillLogger,
	)
	if err != nil {
		return App{}, fmt.Errorf("failed to create watermill router: %w", err)
	}

	httpServer := http.NewServer(
		config.HTTPAddr,
		bookingService,
		content,
		opsReadModel,
		config.StripePublishableKey,
	)

	return App{
		db:               db,
		watermillRouter:  watermillRouter,
		httpServer:       httpServer,
		opsHandlers:      opsHandlers,
		dataLake:         dataLake,
		traceProvider:    traceProvider,
		rebuildReadModel: config.RebuildReadModel,
	}, nil
}

func (a App) Run(ctx context.Context) error {
	if err := dbLib.InitializeDatabaseSchema(a.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.traceProvider != nil {
		g.Go(func() error {
			<-ctx.Done()
			return a.traceProvider.Shutdown(context.WithoutCancel(ctx))
		})
	}

	g.Go(func() error {
		return a.watermillRouter.Run(ctx)
	})

	if a.rebuildReadModel {
		g.Go(func() error {
			<-a.watermillRouter.Running()

			if err := migrations.RebuildOpsReadModel(ctx, a.dataLake, a.opsHandlers); err != nil {
				log.FromContext(ctx).WithError(err).Error("failed to rebuild ops read model")
			}
			return nil
		})
	}

	g.Go(func() error {
		// the app is not healthy before the router is ready
		<-a.watermillRouter.Running()

		return a.httpServer.Run(ctx)
	})

	return g.Wait()
}
