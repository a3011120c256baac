package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

func memoryConfig() *appconfig.Config {
	return &appconfig.Config{
		StoreBackend:            appconfig.BackendMemory,
		HoldBackend:             appconfig.BackendMemory,
		HoldTTL:                 5 * time.Minute,
		AvailabilityConcurrency: 4,
	}
}

func TestBuildCoreRequiresConfig(t *testing.T) {
	_, err := BuildCore(context.Background(), nil, nil, nil)
	require.Error(t, err)
}

func TestBuildCoreMemory(t *testing.T) {
	ctx := context.Background()
	core, err := BuildCore(ctx, memoryConfig(), prometheus.NewRegistry(), logging.Discard())
	require.NoError(t, err)
	defer core.Close()

	assert.Nil(t, core.Postgres)
	assert.Nil(t, core.Redis)
	assert.NotNil(t, core.Metrics)
	assert.Equal(t, 5*time.Minute, core.Holds.TTL())

	// the seeded roster is loaded into the directory
	profile, err := core.Directory.DoctorProfile(ctx, "D001")
	require.NoError(t, err)
	assert.Contains(t, profile.Specialties, "Cardiology")

	day := scheduling.Day(core.Calendar.Now().AddDate(0, 0, 1))
	slots, err := core.Calendar.Generate(ctx, "D001", day)
	require.NoError(t, err)
	assert.NotEmpty(t, slots)
}

func TestBuildCoreRedisHolds(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.HoldBackend = appconfig.BackendRedis
	cfg.RedisAddr = mr.Addr()

	core, err := BuildCore(context.Background(), cfg, nil, logging.Discard())
	require.NoError(t, err)
	defer core.Close()

	require.NotNil(t, core.Redis)
	assert.Nil(t, core.Metrics)
}

func TestBuildCoreConditionTableOverride(t *testing.T) {
	cfg := memoryConfig()
	cfg.ConditionTableJSON = `{"palpitations": ["Cardiology"]}`

	core, err := BuildCore(context.Background(), cfg, nil, logging.Discard())
	require.NoError(t, err)
	core.Close()

	cfg.ConditionTableJSON = `not json`
	_, err = BuildCore(context.Background(), cfg, nil, logging.Discard())
	assert.Error(t, err)
}
