package hold

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

// Store keeps hold records. Slot state stays in the calendar; a record only
// says who holds what until when.
type Store interface {
	// Save creates or refreshes a hold. It fails with ErrSlotUnavailable when
	// another unexpired hold already references the same slot.
	Save(ctx context.Context, h scheduling.Hold) error
	// Get returns ErrHoldInvalid for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*scheduling.Hold, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, h scheduling.Hold) error
	// Expired lists up to limit holds whose expiry is at or before now.
	Expired(ctx context.Context, now time.Time, limit int) ([]scheduling.Hold, error)
}

type MemoryStore struct {
	mu     sync.Mutex
	holds  map[uuid.UUID]scheduling.Hold
	bySlot map[uuid.UUID]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		holds:  make(map[uuid.UUID]scheduling.Hold),
		bySlot: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *MemoryStore) Save(_ context.Context, h scheduling.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.bySlot[h.SlotID]; ok && cur != h.ID {
		if other, ok := s.holds[cur]; ok && !other.Expired(h.CreatedAt) {
			return scheduling.ErrSlotUnavailable
		}
	}
	s.holds[h.ID] = h
	s.bySlot[h.SlotID] = h.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*scheduling.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[id]
	if !ok {
		return nil, scheduling.ErrHoldInvalid
	}
	return &h, nil
}

func (s *MemoryStore) Delete(_ context.Context, h scheduling.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.holds, h.ID)
	if s.bySlot[h.SlotID] == h.ID {
		delete(s.bySlot, h.SlotID)
	}
	return nil
}

func (s *MemoryStore) Expired(_ context.Context, now time.Time, limit int) ([]scheduling.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []scheduling.Hold
	for _, h := range s.holds {
		if h.Expired(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
