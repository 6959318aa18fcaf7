package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skarath13/cards/internal/bizdate"
	"github.com/Skarath13/cards/internal/config"
	"github.com/Skarath13/cards/internal/infra"
	"github.com/Skarath13/cards/internal/router"
	"github.com/Skarath13/cards/internal/session"
	"github.com/Skarath13/cards/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title Cards turn ledger API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey CronAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in production
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	cal, err := bizdate.New(cfg.BusinessTimezone, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid BUSINESS_TIMEZONE")
	}

	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	// Redis backs sessions, the job queue and the DLQ. The memory session
	// backend runs without it, and then jobs and the DLQ are off too.
	var rdb *redis.Client
	if cfg.SessionBackend != "memory" || cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			if cfg.SessionBackend != "memory" {
				log.Fatal().Err(err).Msg("failed to connect to redis")
			}
			log.Warn().Err(err).Msg("redis unavailable, running without jobs")
			rdb = nil
		}
	}

	var storage session.Storage
	switch cfg.SessionBackend {
	case "memory":
		storage = session.NewMemoryStorage()
	case "redis", "":
		storage = session.NewRedisStorage(rdb, session.DefaultRedisTTL)
	default:
		log.Fatal().Str("backend", cfg.SessionBackend).Msg("unsupported SESSION_BACKEND")
	}
	sessions := session.NewManager(storage, cal.Clock(), cfg.SessionTimeout())
	sessions.OnExpire(infra.SessionExpirations.Inc)

	reports, err := infra.NewReportStore(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("report storage unavailable, resets will not produce reports")
	}

	deps := router.Deps{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Sessions: sessions,
		Calendar: cal,
		Breaker:  infra.NewCircuitBreaker(infra.DefaultCBConfig("ledger-db")),
		Reports:  reports,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	var dispatcher *worker.Dispatcher
	if rdb != nil {
		dispatcher = worker.NewDispatcher(rdb)
		deps.Dispatcher = dispatcher
		deps.Sink = worker.NewLedgerDLQ(rdb, max(cfg.PersistMaxAttempts, 1))
	}
	svcs := router.NewServices(deps)

	if dispatcher != nil {
		handlers := &worker.WorkerHandlers{
			DailyReset: worker.NewResetWorker(svcs.Reset),
		}
		if cfg.SMTPEnabled() && reports != nil {
			handlers.ReportEmail = worker.NewEmailWorker(infra.NewMailer(cfg), reports)
		}
		worker.StartWorkerPool(ctx, rdb, handlers, cfg.WorkerPoolSize)

		if cfg.ResetCronEnabled {
			worker.StartResetCron(ctx, worker.ResetCronConfig{
				Calendar: cal,
				Queue:    dispatcher,
				Guard:    worker.NewRedisOnceGuard(rdb),
				ResetAt:  cfg.ResetAt,
			})
		}
	} else if cfg.ResetCronEnabled {
		log.Warn().Msg("reset cron needs redis; use the cron endpoint instead")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.New(deps, svcs),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("cards ledger listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	// queued cell edits must reach the database before exit
	if err := svcs.Ledger.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ledger rows left unsaved")
	}
	cancel()
	log.Info().Msg("server exited")
}
