package hold

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

const (
	expiryIndexKey = "holds:by_expiry"
	// records outlive their expiry so the sweeper can still find and release
	// the slot they point at
	recordRetention = time.Hour
)

func holdKey(id uuid.UUID) string {
	return fmt.Sprintf("hold:%s", id.String())
}

func slotGuardKey(slotID uuid.UUID) string {
	return fmt.Sprintf("hold:slot:%s", slotID.String())
}

// RedisStore keeps holds in Redis: one JSON record per hold, a sorted set
// indexed by expiry for the sweeper and a per-slot guard key naming the hold
// that currently owns the slot.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("hold: redis client required")
	}
	return &RedisStore{client: client}
}

type holdRecord struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	DoctorID  string    `json:"doctor_id"`
	PatientID string    `json:"patient_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// claimScript takes the slot guard unless another hold that is still live at
// ARGV[2] (unix ms) owns it. ARGV[3] is the guard lifetime in ms.
var claimScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur and cur ~= ARGV[1] then
  local score = redis.call("ZSCORE", KEYS[2], cur)
  if score and tonumber(score) > tonumber(ARGV[2]) then
    return 0
  end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// releaseScript drops the slot guard only if it still names this hold.
var releaseScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (s *RedisStore) Save(ctx context.Context, h scheduling.Hold) error {
	lifetime := h.ExpiresAt.Sub(h.CreatedAt)
	if lifetime < time.Millisecond {
		lifetime = time.Millisecond
	}

	ok, err := claimScript.Run(ctx, s.client,
		[]string{slotGuardKey(h.SlotID), expiryIndexKey},
		h.ID.String(),
		strconv.FormatInt(h.CreatedAt.UnixMilli(), 10),
		strconv.FormatInt(lifetime.Milliseconds(), 10),
	).Int()
	if err != nil {
		return fmt.Errorf("claim slot guard: %w", err)
	}
	if ok == 0 {
		return scheduling.ErrSlotUnavailable
	}

	data, err := json.Marshal(holdRecord(h))
	if err != nil {
		return fmt.Errorf("marshal hold: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, holdKey(h.ID), data, lifetime+recordRetention)
		pipe.ZAdd(ctx, expiryIndexKey, redis.Z{Score: float64(h.ExpiresAt.UnixMilli()), Member: h.ID.String()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save hold: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*scheduling.Hold, error) {
	data, err := s.client.Get(ctx, holdKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, scheduling.ErrHoldInvalid
		}
		return nil, fmt.Errorf("load hold: %w", err)
	}

	var rec holdRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode hold: %w", err)
	}
	h := scheduling.Hold(rec)
	return &h, nil
}

func (s *RedisStore) Delete(ctx context.Context, h scheduling.Hold) error {
	if _, err := releaseScript.Run(ctx, s.client, []string{slotGuardKey(h.SlotID)}, h.ID.String()).Result(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot guard: %w", err)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, holdKey(h.ID))
		pipe.ZRem(ctx, expiryIndexKey, h.ID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete hold: %w", err)
	}
	return nil
}

func (s *RedisStore) Expired(ctx context.Context, now time.Time, limit int) ([]scheduling.Hold, error) {
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, expiryIndexKey, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("scan expired holds: %w", err)
	}

	out := make([]scheduling.Hold, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = s.client.ZRem(ctx, expiryIndexKey, raw).Err()
			continue
		}
		h, err := s.Get(ctx, id)
		if errors.Is(err, scheduling.ErrHoldInvalid) {
			// record aged out before the sweeper saw it
			_ = s.client.ZRem(ctx, expiryIndexKey, raw).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, nil
}
