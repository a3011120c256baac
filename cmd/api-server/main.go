package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hackgods/clinic-scheduling-core/internal/api"
	"github.com/hackgods/clinic-scheduling-core/internal/app/bootstrap"
	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server")
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bootCtx, cancelBoot := context.WithTimeout(rootCtx, 15*time.Second)
	core, err := bootstrap.BuildCore(bootCtx, &cfg, reg, logger)
	cancelBoot()
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer core.Close()

	var pg api.Pinger
	if core.Postgres != nil {
		pg = core.Postgres
	}

	router := api.NewRouter(api.RouterConfig{
		Calendar:     core.Calendar,
		Holds:        core.Holds,
		Booking:      core.Booking,
		Availability: core.Availability,
		Directory:    core.Directory,
		Postgres:     pg,
		Redis:        core.Redis,
		Gatherer:     reg,
		Logger:       logger,
		WindowDays:   cfg.AvailabilityWindowDays,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	logger.Info("api-server stopped")
}
