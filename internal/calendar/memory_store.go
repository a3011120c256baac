package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

type slotKey struct {
	doctorID string
	start    int64
}

type slotEntry struct {
	mu   sync.Mutex
	slot scheduling.TimeSlot
}

// MemoryStore keeps slots indexed by (doctor, start). The index lock only
// guards the maps; transitions lock the single slot they touch.
type MemoryStore struct {
	mu     sync.RWMutex
	byKey  map[slotKey]*slotEntry
	byID   map[uuid.UUID]*slotEntry
	starts map[string][]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:  make(map[slotKey]*slotEntry),
		byID:   make(map[uuid.UUID]*slotEntry),
		starts: make(map[string][]int64),
	}
}

func (s *MemoryStore) Insert(_ context.Context, doctorID string, windows []scheduling.SlotWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := false
	for _, w := range windows {
		key := slotKey{doctorID: doctorID, start: w.Start.UnixNano()}
		if _, ok := s.byKey[key]; ok {
			continue
		}
		e := &slotEntry{slot: scheduling.TimeSlot{
			ID:       scheduling.SlotID(doctorID, w.Start),
			DoctorID: doctorID,
			Start:    w.Start,
			End:      w.End,
			State:    scheduling.SlotFree,
		}}
		s.byKey[key] = e
		s.byID[e.slot.ID] = e
		s.starts[doctorID] = append(s.starts[doctorID], key.start)
		added = true
	}
	if added {
		starts := s.starts[doctorID]
		sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*scheduling.TimeSlot, error) {
	s.mu.RLock()
	e, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, scheduling.ErrSlotNotFound
	}

	e.mu.Lock()
	slot := e.slot
	e.mu.Unlock()
	return &slot, nil
}

func (s *MemoryStore) Page(_ context.Context, doctorID string, r scheduling.DateRange, after time.Time, limit int) ([]scheduling.TimeSlot, error) {
	lower := r.From.UnixNano()
	strict := false
	if !after.IsZero() && after.UnixNano() >= lower {
		lower = after.UnixNano()
		strict = true
	}
	upper := r.To.UnixNano()

	s.mu.RLock()
	starts := s.starts[doctorID]
	i := sort.Search(len(starts), func(i int) bool {
		if strict {
			return starts[i] > lower
		}
		return starts[i] >= lower
	})
	var entries []*slotEntry
	for ; i < len(starts) && starts[i] < upper; i++ {
		if limit > 0 && len(entries) == limit {
			break
		}
		entries = append(entries, s.byKey[slotKey{doctorID: doctorID, start: starts[i]}])
	}
	s.mu.RUnlock()

	out := make([]scheduling.TimeSlot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.slot)
		e.mu.Unlock()
	}
	return out, nil
}

func (s *MemoryStore) CompareAndSet(_ context.Context, tr scheduling.Transition, now time.Time) (*scheduling.TimeSlot, error) {
	s.mu.RLock()
	e, ok := s.byID[tr.SlotID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("slot %s: %w", tr.SlotID, scheduling.ErrSlotNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := tr.Check(e.slot, now); err != nil {
		return nil, err
	}
	e.slot = tr.Apply(e.slot)
	slot := e.slot
	return &slot, nil
}
