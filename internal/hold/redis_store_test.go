package hold

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisStore(client), mr
}

func newHold(slotID uuid.UUID, created time.Time) scheduling.Hold {
	return scheduling.Hold{
		ID:        uuid.New(),
		SlotID:    slotID,
		DoctorID:  "D1",
		PatientID: "P001",
		CreatedAt: created,
		ExpiresAt: created.Add(DefaultTTL),
	}
}

func TestRedisStoreSaveAndGet(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	h := newHold(uuid.New(), now)
	require.NoError(t, store.Save(ctx, h))

	got, err := store.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)
	assert.Equal(t, h.SlotID, got.SlotID)
	assert.Equal(t, "P001", got.PatientID)
	assert.True(t, h.ExpiresAt.Equal(got.ExpiresAt))

	guard, err := mr.Get(slotGuardKey(h.SlotID))
	require.NoError(t, err)
	assert.Equal(t, h.ID.String(), guard)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, scheduling.ErrHoldInvalid)
}

func TestRedisStoreGuardsSlot(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	slotID := uuid.New()

	first := newHold(slotID, now)
	require.NoError(t, store.Save(ctx, first))

	second := newHold(slotID, now.Add(time.Minute))
	err := store.Save(ctx, second)
	assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable)

	// saving the owner again refreshes it
	first.ExpiresAt = first.ExpiresAt.Add(time.Minute)
	require.NoError(t, store.Save(ctx, first))

	// once the first hold has lapsed a new one may take the guard
	third := newHold(slotID, first.ExpiresAt)
	require.NoError(t, store.Save(ctx, third))
}

func TestRedisStoreDeleteKeepsForeignGuard(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	slotID := uuid.New()

	old := newHold(slotID, now.Add(-2*DefaultTTL))
	require.NoError(t, store.Save(ctx, old))
	current := newHold(slotID, now)
	require.NoError(t, store.Save(ctx, current))

	require.NoError(t, store.Delete(ctx, old))

	guard, err := mr.Get(slotGuardKey(slotID))
	require.NoError(t, err)
	assert.Equal(t, current.ID.String(), guard)

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, scheduling.ErrHoldInvalid)

	require.NoError(t, store.Delete(ctx, current))
	assert.False(t, mr.Exists(slotGuardKey(slotID)))
	require.NoError(t, store.Delete(ctx, current))
}

func TestRedisStoreExpired(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := newHold(uuid.New(), now.Add(-10*time.Minute))
	b := newHold(uuid.New(), now.Add(-7*time.Minute))
	live := newHold(uuid.New(), now)
	for _, h := range []scheduling.Hold{live, b, a} {
		require.NoError(t, store.Save(ctx, h))
	}

	expired, err := store.Expired(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, a.ID, expired[0].ID)
	assert.Equal(t, b.ID, expired[1].ID)

	expired, err = store.Expired(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, a.ID, expired[0].ID)
}

func TestManagerWithRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	f := newFixture(t, store)
	ctx := context.Background()
	slot := f.slots[0]

	h, err := f.mgr.Acquire(ctx, slot.ID, "P001")
	require.NoError(t, err)

	_, err = f.mgr.Acquire(ctx, slot.ID, "P002")
	assert.ErrorIs(t, err, scheduling.ErrSlotUnavailable)

	require.NoError(t, f.mgr.Release(ctx, h.ID))

	_, err = f.mgr.Acquire(ctx, slot.ID, "P002")
	require.NoError(t, err)

	f.clock.Advance(DefaultTTL)
	n, err := f.mgr.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
