package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/careslot/hospital-booking/internal/api"
	"github.com/careslot/hospital-booking/internal/auth"
	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/internal/config"
	"github.com/careslot/hospital-booking/internal/db"
	"github.com/careslot/hospital-booking/internal/logging"
	"github.com/careslot/hospital-booking/internal/metrics"
	"github.com/careslot/hospital-booking/internal/notify"
	"github.com/careslot/hospital-booking/internal/payment"
	redisclient "github.com/careslot/hospital-booking/internal/redis"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

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

	// Redis is a contention guard and callback dedup store; the service
	// stays correct without it, so a failed connection only degrades.
	var locker redisclient.Locker = redisclient.NoopLocker{}
	var dedup redisclient.Deduper = redisclient.NoopDeduper{}
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisPoolSize)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without slot locks")
		rdb = nil
	} else {
		defer func() { _ = rdb.Close() }()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		dedup = redisclient.NewRedisDeduper(rdb)
		logger.Info().Msg("connected to Redis")
	}

	var sender notify.Sender = notify.NoopSender{}
	if cfg.SendGridAPIKey != "" {
		sender = notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName, logger)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	repo := booking.NewPgRepository(pgPool)
	gateway := payment.NewRazorpayGateway(cfg.PaymentKeyID, cfg.PaymentKeySecret, cfg.PaymentBaseURL, logger)
	bookingSvc := booking.NewService(repo, gateway, locker, dedup, sender, m, logger)
	adminSvc := booking.NewAdminService(repo, m, cfg.PublicBaseURL, logger)
	verifier := auth.NewVerifier(cfg.SessionJWTSecret)

	router := api.NewRouter(api.RouterConfig{
		Booking:  bookingSvc,
		Admin:    adminSvc,
		Verifier: verifier,
		PgPool:   pgPool,
		Redis:    rdb,
		Registry: registry,
		Logger:   logger,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// In-process sweep for abandoned bookings; the standalone worker covers
	// deployments that scale the API horizontally.
	if cfg.BookingTTL > 0 {
		reaper := booking.NewReaper(repo, cfg.BookingTTL, m, logger)
		go func() {
			ticker := time.NewTicker(cfg.WorkerInterval)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					runCtx, cancel := context.WithTimeout(rootCtx, 20*time.Second)
					if err := reaper.Run(runCtx); err != nil {
						logger.Error().Err(err).Msg("reaper run error")
					}
					cancel()
				}
			}
		}()
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
