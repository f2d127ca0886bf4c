package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/internal/config"
	"github.com/careslot/hospital-booking/internal/db"
	"github.com/careslot/hospital-booking/internal/logging"
	"github.com/careslot/hospital-booking/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("booking_ttl", cfg.BookingTTL).
		Msg("reaper-worker starting up")

	if cfg.BookingTTL <= 0 {
		logger.Warn().Msg("BOOKING_TTL is zero, reaper disabled, exiting")
		return
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PgMaxConns)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	repo := booking.NewPgRepository(pgPool)
	reaper := booking.NewReaper(repo, cfg.BookingTTL, metrics.New(nil), logger)

	// Run once at startup
	runOnce(rootCtx, reaper, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reaper worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, reaper, logger)
		}
	}
}

func runOnce(ctx context.Context, reaper *booking.Reaper, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := reaper.Run(runCtx); err != nil {
		logger.Error().Err(err).Msg("reaper run error")
		return
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("reaper run complete")
}
