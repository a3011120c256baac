package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

// StatusChange is a conditional status update: it only applies while the
// appointment is still in From.
type StatusChange struct {
	From   scheduling.AppointmentStatus
	To     scheduling.AppointmentStatus
	Reason string
	At     time.Time
}

type Repository interface {
	// Create fails with ErrStateConflict when a live appointment already
	// holds the slot.
	Create(ctx context.Context, a scheduling.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	// UpdateStatus fails with ErrStateConflict when the status moved on.
	UpdateStatus(ctx context.Context, id uuid.UUID, ch StatusChange) (*scheduling.Appointment, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]scheduling.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string, r scheduling.DateRange) ([]scheduling.Appointment, error)
	InsertEvent(ctx context.Context, ev scheduling.EventLog) error
}

type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]scheduling.Appointment
	events []scheduling.EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[uuid.UUID]scheduling.Appointment)}
}

func (r *MemoryRepository) Create(_ context.Context, a scheduling.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.byID {
		if other.SlotID == a.SlotID && other.Status != scheduling.StatusCancelled {
			return scheduling.ErrStateConflict
		}
	}
	r.byID[a.ID] = a
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, ch StatusChange) (*scheduling.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	if a.Status != ch.From {
		return nil, scheduling.ErrStateConflict
	}
	a.Status = ch.To
	a.UpdatedAt = ch.At
	if ch.To == scheduling.StatusCancelled {
		at := ch.At
		a.CancelledAt = &at
		a.CancelReason = ch.Reason
	}
	r.byID[id] = a
	return &a, nil
}

func sortByStart(list []scheduling.Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Start.Equal(list[j].Start) {
			return list[i].Start.Before(list[j].Start)
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID string, limit, offset int) ([]scheduling.Appointment, error) {
	r.mu.RLock()
	var out []scheduling.Appointment
	for _, a := range r.byID {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sortByStart(out)
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListByDoctor(_ context.Context, doctorID string, rng scheduling.DateRange) ([]scheduling.Appointment, error) {
	r.mu.RLock()
	var out []scheduling.Appointment
	for _, a := range r.byID {
		if a.DoctorID == doctorID && rng.Contains(a.Start) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sortByStart(out)
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev scheduling.EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log.
func (r *MemoryRepository) Events() []scheduling.EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]scheduling.EventLog(nil), r.events...)
}
