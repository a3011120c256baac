package main

import (
	"flag"
	"log"

	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/db"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.RequirePostgres(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "migrate")

	if *down {
		if err := db.MigrateDown(cfg.PostgresDSN); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		logger.Info("migrations rolled back")
		return
	}

	if err := db.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("migrate up: %v", err)
	}
	logger.Info("migrations applied")
}
