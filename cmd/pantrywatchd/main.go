// Package main is the entry point for the pantrywatch daemon.
//
// It loads the configuration, opens the Postgres pool, wires the run-state
// and item repositories, the attention scanner, the notification decision
// engine, the alarm scheduler, and the daily metrics refresher, then serves
// the HTTP API for the UI collaborator.
//
// On start it arms the morning check and the watchdog, so a restarted daemon
// picks up its delivery schedule without outside help. Graceful shutdown is
// handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"pantrywatch/internal/api"
	"pantrywatch/internal/config"
	"pantrywatch/internal/groceries"
	"pantrywatch/internal/notify"
	"pantrywatch/internal/push"
	"pantrywatch/internal/scan"
	"pantrywatch/internal/sched"
	"pantrywatch/internal/store"
	"pantrywatch/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := types.NewSlogLogger(newSlog(cfg.LogLevel))
	loc := cfg.Location()
	clock := types.RealClock{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	kv := store.NewPGKV(pool, cfg.Notify.StateScope)
	state := store.NewRunState(kv)
	items := store.NewItemRepository(pool, logger)
	scanner := scan.New(state, clock, loc, logger)
	identity := types.StaticIdentity{UserID: cfg.Notify.UserID}

	notifier, err := buildNotifier(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}

	presence := api.NewHeartbeatPresence(cfg.Notify.PresenceWindow, clock)
	svc := sched.NewService(clock, loc, logger)
	engine := notify.NewEngine(items, identity, presence, state, scanner, notifier, svc, clock, loc, logger)
	svc.Bind(engine)
	svc.Start(ctx)
	defer svc.Stop()

	refresher := groceries.NewRefresher(items, identity, engine, clock, loc, logger)
	server := api.NewServer(engine, presence, pool, logger)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("pantrywatch starting",
		"env", cfg.Environment,
		"port", cfg.Server.Port,
		"timezone", cfg.Notify.Timezone,
		"transport", cfg.Notify.Transport)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := refresher.Loop(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("metrics refresh loop: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("pantrywatch stopped")
	return err
}

// newSlog builds the JSON logger at the configured level.
func newSlog(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// openPool opens and verifies the Postgres connection pool.
func openPool(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	pc.MaxConns = int32(dc.MaxConns)
	pc.MinConns = int32(dc.MinConns)
	pc.MaxConnLifetime = dc.MaxConnLifetime
	pc.HealthCheckPeriod = dc.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("opening database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// buildNotifier selects the delivery transport and, when CloudWatch metrics
// are enabled, wraps it with outcome instrumentation.
func buildNotifier(ctx context.Context, cfg *config.Config, clock types.Clock, logger types.Logger) (notify.Notifier, error) {
	needAWS := cfg.Notify.Transport == "queue" || cfg.AWS.EnableMetrics

	var awsCfg aws.Config
	if needAWS {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
	}

	var notifier notify.Notifier
	switch cfg.Notify.Transport {
	case "queue":
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		notifier = push.NewQueueNotifier(client, cfg.AWS.PushQueueURL, clock, logger)
	default:
		client := &http.Client{Timeout: cfg.Notify.RelayTimeout}
		notifier = push.NewRelayNotifier(client, cfg.Notify.RelayURL, clock, logger)
	}

	if cfg.AWS.EnableMetrics {
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		metrics := push.NewDeliveryMetrics(cwClient, logger)
		notifier = push.NewInstrumentedNotifier(notifier, metrics, cfg.Notify.Transport, clock)
	}
	return notifier, nil
}
