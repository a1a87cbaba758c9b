package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"travels/config"
	dbLib "travels/db"
	"travels/db/bookings"
	"travels/db/payments"
	"travels/db/read_model_ops_bookings"
	"travels/gateway"
	"travels/http"
	"travels/lifecycle"
	"travels/locks"
	migrations "travels/migration"
	"travels/pkg"
	"travels/pubsub"
	"travels/pubsub/bus"
	"travels/pubsub/event"
	"travels/pubsub/outbox"
	"travels/pubsub/read_models_handlers"
	"travels/reconciliation"
	"travels/service"
	"travels/tracing"
)

const readModelMigrationWait = 5 * time.Second

type App struct {
	db               *sqlx.DB
	watermillRouter  *message.Router
	forwarder        *forwarder.Forwarder
	httpServer       *http.Server
	opsReadModel     read_models_handlers.OpsBookingReadModel
	dataLake         dbLib.DataLake
	traceProvider    *tracesdk.TracerProvider
	rebuildReadModel bool
}

func New(
	cfg config.Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	paymentGateway event.PaymentGateway,
	traceProvider *tracesdk.TracerProvider,
) (App, error) {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher, err := pubsub.NewRedisPublisher(redisClient, watermillLogger)
	if err != nil {
		return App{}, err
	}
	redisPublisher = log.CorrelationPublisherDecorator{Publisher: redisPublisher}

	var outboxPublisher message.Publisher
	outboxPublisher, err = outbox.NewPublisher(db, watermillLogger)
	if err != nil {
		return App{}, err
	}
	outboxPublisher = log.CorrelationPublisherDecorator{Publisher: outboxPublisher}
	outboxPublisher = tracing.PublisherDecorator{Publisher: outboxPublisher}

	fwd, err := outbox.NewForwarder(db, redisPublisher, watermillLogger)
	if err != nil {
		return App{}, err
	}

	eventBus, err := bus.NewEventBus(outboxPublisher)
	if err != nil {
		return App{}, fmt.Errorf("failed to create event bus: %w", err)
	}
	notifier := pubsub.NewNotifier(eventBus)

	bookingsRepo := bookings.NewPostgresRepository(db)
	paymentsRepo := payments.NewPostgresRepository(db)
	opsBookingsRepo := read_model_ops_bookings.NewPostgresRepository(db)
	dataLake := dbLib.NewDataLake(db)

	locker := locks.NewRedisLocker(redisClient, locks.RedisLockerConfig{
		TTL:  cfg.LockTTL,
		Wait: cfg.LockWait,
	})
	machine := lifecycle.NewStateMachine(nil)

	retryPolicy := pkg.DefaultRetryPolicy()
	retryPolicy.MaxAttempts = cfg.MaxUpdateAttempts

	reconciler := reconciliation.NewService(
		bookingsRepo,
		paymentsRepo,
		machine,
		locker,
		notifier,
		reconciliation.Config{Retry: retryPolicy},
	)

	bookingService := service.NewBookingService(
		bookingsRepo,
		paymentsRepo,
		reconciler,
		machine,
		locker,
		notifier,
		service.Config{
			DefaultCurrency: cfg.DefaultCurrency,
			PaymentProvider: cfg.PaymentProvider,
			Retry:           retryPolicy,
		},
	)

	opsReadModel := read_models_handlers.NewOpsBookingReadModel(opsBookingsRepo)
	eventsHandler := event.NewHandler(paymentGateway)

	watermillRouter, err := pubsub.NewWatermillRouter(pubsub.RouterConfig{
		Publisher: redisPublisher,
		NewEventsSubscriber: func(handlerName string) (message.Subscriber, error) {
			return pubsub.NewRedisSubscriber(redisClient, "svc-travels."+handlerName, watermillLogger)
		},
		EventProcessorConfig: event.NewProcessorConfig(redisClient, watermillLogger),
		EventHandlers:        append(eventsHandler.Handlers(), opsReadModel.Handlers()...),
		DataLake:             dataLake,
	}, watermillLogger)
	if err != nil {
		return App{}, fmt.Errorf("failed to create watermill router: %w", err)
	}

	httpServer := http.NewServer(
		cfg.HTTPAddr,
		bookingService,
		reconciler,
		opsBookingsRepo,
		gateway.NewSignatureVerifier(cfg.GatewayWebhookSecret),
	)

	return App{
		db:               db,
		watermillRouter:  watermillRouter,
		forwarder:        fwd,
		httpServer:       httpServer,
		opsReadModel:     opsReadModel,
		dataLake:         dataLake,
		traceProvider:    traceProvider,
		rebuildReadModel: cfg.RebuildReadModel,
	}, nil
}

func (a App) Run(ctx context.Context) error {
	if err := dbLib.InitializeDatabaseSchema(a.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.rebuildReadModel {
		g.Go(func() error {
			err := migrations.MigrateReadModel(ctx, a.dataLake, a.opsReadModel, readModelMigrationWait)
			if err != nil {
				log.FromContext(ctx).WithError(err).Error("failed to migrate read model")
			}
			return nil
		})
	}

	if a.traceProvider != nil {
		g.Go(func() error {
			<-ctx.Done()
			return a.traceProvider.Shutdown(context.WithoutCancel(ctx))
		})
	}

	g.Go(func() error {
		return a.forwarder.Run(ctx)
	})

	g.Go(func() error {
		return a.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		// the app is not healthy before events can flow
		<-a.watermillRouter.Running()
		<-a.forwarder.Running()

		return a.httpServer.Run(ctx)
	})

	return g.Wait()
}
