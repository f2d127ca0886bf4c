package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careslot/hospital-booking/internal/auth"
	"github.com/careslot/hospital-booking/internal/booking"
)

type RouterConfig struct {
	Booking  *booking.Service
	Admin    *booking.AdminService
	Verifier *auth.Verifier
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Registry *prometheus.Registry
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Patient surface
		r.Group(func(r chi.Router) {
			r.Use(cfg.Verifier.RequirePatient)
			r.Get("/hospitals/{hospitalID}/slots", listHospitalSlotsHandler(cfg.Booking))
			r.Post("/bookings", initiateBookingHandler(cfg.Booking))
			r.Post("/payments/verify", verifyPaymentHandler(cfg.Booking))
			r.Get("/appointments", listMyAppointmentsHandler(cfg.Booking))
		})

		// Hospital admin surface
		r.Route("/admin", func(r chi.Router) {
			r.Use(cfg.Verifier.RequireHospitalAdmin)
			r.Get("/appointments", listPaidAppointmentsHandler(cfg.Admin))
			r.Patch("/appointments", updateAppointmentStatusHandler(cfg.Admin))
			r.Get("/slots", listAdminSlotsHandler(cfg.Admin))
			r.Post("/slots", createSlotHandler(cfg.Admin))
			r.Delete("/slots/{id}", deleteSlotHandler(cfg.Admin))
			r.Get("/services", listServicesHandler(cfg.Admin))
			r.Post("/services", createServiceHandler(cfg.Admin))
			r.Delete("/services/{id}", deleteServiceHandler(cfg.Admin))
		})
	})

	return r
}
