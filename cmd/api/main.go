package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fastplay/tokenarcade/internal/api"
	"github.com/fastplay/tokenarcade/internal/events"
	eventskafka "github.com/fastplay/tokenarcade/internal/events/kafka"
	"github.com/fastplay/tokenarcade/internal/infra/logging"
	"github.com/fastplay/tokenarcade/internal/infra/pgutils"
	"github.com/fastplay/tokenarcade/internal/ledger"
	ledgerpg "github.com/fastplay/tokenarcade/internal/ledger/postgres"
	"github.com/fastplay/tokenarcade/internal/session"
	sessionmem "github.com/fastplay/tokenarcade/internal/session/memory"
	"github.com/fastplay/tokenarcade/internal/session/redisstore"
	"github.com/fastplay/tokenarcade/internal/settle"
	"github.com/fastplay/tokenarcade/pkg/envconf"
	"github.com/fastplay/tokenarcade/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	// Local dev convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		return db.Close()
	})

	ledgerSrv := ledger.NewService(ledgerpg.New(db))

	var sessionStore session.Store = sessionmem.New()

	if redisURL := strings.TrimSpace(os.Getenv("REDIS_URL")); redisURL != "" {
		opts, perr := redis.ParseURL(redisURL)
		if perr != nil {
			return fmt.Errorf("parse redis url: %w", perr)
		}

		rdb := redis.NewClient(opts)

		perr = rdb.Ping(ctx).Err()
		if perr != nil {
			return fmt.Errorf("ping redis: %w", perr)
		}

		shutdownqueue.Add(func(context.Context) error {
			return rdb.Close()
		})

		sessionStore = redisstore.New(rdb)

		slog.Info("sessions stored in redis")
	} else {
		slog.Info("sessions stored in memory")
	}

	var publisher events.Publisher = events.Noop{}

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		kp := eventskafka.NewPublisher(strings.Split(brokers, ","))

		shutdownqueue.Add(func(context.Context) error {
			return kp.Close()
		})

		publisher = kp

		slog.Info("publishing wallet events to kafka")
	}

	manager := session.NewManager(ledgerSrv, sessionStore, settle.NewPolicy(),
		session.WithPublisher(publisher))

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.Deps{Ledger: ledgerSrv, Sessions: manager})

	// Register HTTP server graceful shutdown
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
