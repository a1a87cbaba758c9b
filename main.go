package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/ThreeDotsLabs/go-event-driven/common/clients"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"travels/app"
	"travels/config"
	"travels/gateway"
	"travels/pkg"
	"travels/tracing"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		log.FromContext(ctx).WithError(err).Error("travels stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	log.Init(cfg.Level())

	traceProvider, err := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint, cfg.GatewayAddr)
	if err != nil {
		return err
	}

	// outgoing gateway calls carry the trace context
	http.DefaultTransport = otelhttp.NewTransport(http.DefaultTransport)

	apiClients, err := clients.NewClients(cfg.GatewayAddr, func(ctx context.Context, req *http.Request) error {
		req.Header.Set("Correlation-ID", log.CorrelationIDFromContext(ctx))
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not create gateway clients: %w", err)
	}

	traceDB, err := otelsql.Open("postgres", cfg.PostgresURL,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithDBName("travels"),
	)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	db := sqlx.NewDb(traceDB, "postgres")
	defer db.Close()

	redisClient := pkg.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()

	a, err := app.New(
		cfg,
		db,
		redisClient,
		gateway.NewPaymentClient(apiClients),
		traceProvider,
	)
	if err != nil {
		return err
	}

	return a.Run(ctx)
}
