package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling-core/internal/availability"
	"github.com/hackgods/clinic-scheduling-core/internal/booking"
	"github.com/hackgods/clinic-scheduling-core/internal/calendar"
	"github.com/hackgods/clinic-scheduling-core/internal/hold"
	"github.com/hackgods/clinic-scheduling-core/internal/records"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

type RouterConfig struct {
	Calendar     *calendar.Calendar
	Holds        *hold.Manager
	Booking      *booking.Engine
	Availability *availability.Service
	Directory    *records.Directory

	Postgres Pinger
	Redis    *redis.Client
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger

	WindowDays int
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/doctors/{id}/slots/free", freeSlotsHandler(cfg.Calendar, cfg.WindowDays, logger))
	r.Get("/availability", availabilityHandler(cfg.Availability, cfg.Calendar, cfg.WindowDays, logger))
	r.Get("/search", searchHandler(cfg.Directory, logger))

	r.Route("/holds", func(r chi.Router) {
		r.Post("/", createHoldHandler(cfg.Holds, logger))
		r.Get("/{id}", getHoldHandler(cfg.Holds, logger))
		r.Delete("/{id}", releaseHoldHandler(cfg.Holds, logger))
		r.Post("/{id}/extend", extendHoldHandler(cfg.Holds, logger))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Booking, logger))
		r.Get("/", listAppointmentsHandler(cfg.Booking, cfg.Calendar.Now, cfg.WindowDays, logger))
		r.Get("/{id}", getAppointmentHandler(cfg.Booking, logger))
		r.Post("/{id}/confirm", confirmAppointmentHandler(cfg.Booking, logger))
		r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Booking, logger))
	})

	return r
}
