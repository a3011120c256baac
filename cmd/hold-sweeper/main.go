package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-scheduling-core/internal/app/bootstrap"
	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/hold"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

// hold-sweeper releases lapsed holds on a fixed interval. It only makes sense
// against shared backends; with the memory stores it sweeps its own empty
// process state.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "hold-sweeper")
	logger.Info("hold-sweeper starting up", "env", cfg.Env, "interval", cfg.SweepInterval)
	if cfg.StoreBackend == config.BackendMemory || cfg.HoldBackend == config.BackendMemory {
		logger.Warn("running against in-memory backends; nothing outside this process will be swept")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancelBoot := context.WithTimeout(rootCtx, 15*time.Second)
	core, err := bootstrap.BuildCore(bootCtx, &cfg, nil, logger)
	cancelBoot()
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer core.Close()

	// Run once at startup
	runOnce(rootCtx, core.Holds, logger)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping hold sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, core.Holds, logger)
		}
	}
}

func runOnce(ctx context.Context, holds *hold.Manager, logger *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := holds.Sweep(runCtx)
	if err != nil {
		logger.Error("sweep run failed", "error", err, "released", n)
		return
	}
	logger.Info("sweep run complete", "released", n, "duration", time.Since(start))
}
