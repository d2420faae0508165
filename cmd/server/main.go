// main wires the ticket engine: stores (postgres or in-memory), the key
// locker, the assembled services, the lifecycle scheduler and the ops
// HTTP surface. Business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"interdict/internal/directory"
	"interdict/internal/engine"
	"interdict/internal/platform/audit"
	kafkaaudit "interdict/internal/platform/audit/kafka"
	"interdict/internal/platform/config"
	"interdict/internal/platform/httpserver"
	"interdict/internal/platform/logger"
	"interdict/internal/platform/metrics"
	"interdict/internal/platform/postgres"
	platformredis "interdict/internal/platform/redis"
	"interdict/internal/scheduler"
	"interdict/internal/ticket/ports"
	"interdict/internal/ticket/store/items"
	"interdict/internal/ticket/store/lock"
	"interdict/internal/ticket/store/ticketerrors"
	"interdict/internal/ticket/store/tickets"
	"interdict/internal/ticket/store/whitelist"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		stores engine.Stores
		db     *sql.DB
	)

	if cfg.PostgresURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		stores = engine.Stores{
			Tickets:      tickets.NewPostgres(db),
			Items:        items.NewPostgres(db),
			Whitelist:    whitelist.NewPostgres(db),
			TicketErrors: ticketerrors.NewPostgres(db),
			Locker:       lock.NewAdvisoryLocker(db),
		}
		log.Info("using postgres stores")
	} else {
		stores = engine.Stores{
			Tickets:      tickets.NewInMemory(),
			Items:        items.NewInMemory(),
			Whitelist:    whitelist.NewInMemory(),
			TicketErrors: ticketerrors.NewInMemory(),
			Locker:       lock.NewKeyedLocker(),
		}
		log.Info("using in-memory stores")
	}

	var auditPublisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaOpts := []kafkaaudit.Option{kafkaaudit.WithLogger(log)}
		if cfg.KafkaTopic != "" {
			kafkaOpts = append(kafkaOpts, kafkaaudit.WithTopic(cfg.KafkaTopic))
		}
		publisher, err := kafkaaudit.New(cfg.KafkaBrokers, kafkaOpts...)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := publisher.Close(flushCtx); err != nil {
				log.Warn("failed to flush audit publisher", "error", err)
			}
		}()
		auditPublisher = publisher
		log.Info("audit events published to kafka", "brokers", cfg.KafkaBrokers)
	}

	var accountDirectory ports.AccountDirectory = directory.NewStatic(nil)
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		accountDirectory = directory.NewCached(accountDirectory, redisClient.Client, config.DirectoryCacheTTL)
		log.Info("directory lookups cached in redis")
	}

	m := metrics.New()

	eng, err := engine.New(stores, engine.Options{
		Logger:         log,
		AuditPublisher: auditPublisher,
		Metrics:        m,
		Directory:      accountDirectory,
	})
	if err != nil {
		return err
	}

	sweep, err := scheduler.New(stores.Tickets, eng.Lifecycle,
		scheduler.WithLogger(log),
		scheduler.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	if err := sweep.Start(ctx, cfg.SweepSchedule); err != nil {
		return err
	}
	defer sweep.Stop()

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting interdict", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
