package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling-core/internal/availability"
	"github.com/hackgods/clinic-scheduling-core/internal/booking"
	"github.com/hackgods/clinic-scheduling-core/internal/calendar"
	appconfig "github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/db"
	"github.com/hackgods/clinic-scheduling-core/internal/hold"
	"github.com/hackgods/clinic-scheduling-core/internal/observability/metrics"
	"github.com/hackgods/clinic-scheduling-core/internal/records"
	redisclient "github.com/hackgods/clinic-scheduling-core/internal/redis"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

// Core is the wired scheduling core shared by the binaries.
type Core struct {
	Calendar     *calendar.Calendar
	Holds        *hold.Manager
	Booking      *booking.Engine
	Availability *availability.Service
	Directory    *records.Directory
	Metrics      *metrics.SchedulingMetrics

	// Postgres and Redis are nil for the in-memory backends.
	Postgres *pgxpool.Pool
	Redis    *redis.Client
}

// BuildCore connects the configured backends and wires the scheduling
// services on top of them. reg may be nil to skip metrics registration.
func BuildCore(ctx context.Context, cfg *appconfig.Config, reg prometheus.Registerer, logger *logging.Logger) (*Core, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	core := &Core{}
	if reg != nil {
		core.Metrics = metrics.NewSchedulingMetrics(reg)
	}

	table := availability.DefaultConditionTable()
	if cfg.ConditionTableJSON != "" {
		parsed, err := availability.ParseConditionTable([]byte(cfg.ConditionTableJSON))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		table = parsed
	}

	var (
		slotStore   calendar.Store
		recordStore records.Store
		repo        booking.Repository
	)
	switch cfg.StoreBackend {
	case appconfig.BackendPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.DefaultPoolOptions())
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		core.Postgres = pool
		slotStore = calendar.NewPgStore(pool)
		recordStore = records.NewPgStore(pool)
		repo = booking.NewPgRepository(pool)
		logger.Info("connected to postgres")
	default:
		slotStore = calendar.NewMemoryStore()
		recordStore = records.NewSeededMemoryStore()
		repo = booking.NewMemoryRepository()
	}

	var holdStore hold.Store
	switch cfg.HoldBackend {
	case appconfig.BackendRedis:
		rdb, err := redisclient.Connect(ctx, redisclient.DefaultOptions(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword))
		if err != nil {
			core.Close()
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		core.Redis = rdb
		holdStore = hold.NewRedisStore(rdb)
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	default:
		holdStore = hold.NewMemoryStore()
	}

	core.Directory = records.NewDirectory(recordStore, logger, core.Metrics)
	if err := core.Directory.Reload(ctx); err != nil {
		core.Close()
		return nil, fmt.Errorf("bootstrap: load records: %w", err)
	}

	calOpts := []calendar.Option{calendar.WithMetrics(core.Metrics)}
	if cfg.MaxRangeDays > 0 {
		calOpts = append(calOpts, calendar.WithMaxRange(time.Duration(cfg.MaxRangeDays)*24*time.Hour))
	}
	core.Calendar = calendar.New(slotStore, core.Directory, logger, calOpts...)
	core.Holds = hold.NewManager(core.Calendar, holdStore, logger,
		hold.WithTTL(cfg.HoldTTL),
		hold.WithSweepBatch(cfg.SweepBatch),
		hold.WithManagerMetrics(core.Metrics),
	)
	core.Booking = booking.NewEngine(core.Calendar, core.Holds, core.Directory, core.Directory, repo, logger,
		booking.WithEngineMetrics(core.Metrics),
	)
	core.Availability = availability.NewService(core.Directory, core.Calendar, table, logger,
		availability.WithConcurrency(cfg.AvailabilityConcurrency),
		availability.WithMetrics(core.Metrics),
	)

	logger.Info("scheduling core ready",
		"store_backend", cfg.StoreBackend,
		"hold_backend", cfg.HoldBackend,
		"hold_ttl", cfg.HoldTTL,
		"conditions", table.Len(),
	)
	return core, nil
}

func (c *Core) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
}
