package hold

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/clinic-scheduling-core/internal/calendar"
	"github.com/hackgods/clinic-scheduling-core/internal/observability/metrics"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

var holdTracer = otel.Tracer("clinic.internal.hold")

const (
	DefaultTTL        = 5 * time.Minute
	defaultSweepBatch = 256
)

// Manager issues short-lived slot reservations. The hold itself lives in the
// calendar as a held slot; the store only keeps the record the patient refers
// to by id.
type Manager struct {
	cal     *calendar.Calendar
	store   Store
	ttl     time.Duration
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics

	sweepBatch int
	sweeping   atomic.Bool
}

type ManagerOption func(*Manager)

func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithManagerMetrics(mt *metrics.SchedulingMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

func WithSweepBatch(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.sweepBatch = n
		}
	}
}

// NewManager wires the manager to cal and registers the lazy sweep on every
// calendar read.
func NewManager(cal *calendar.Calendar, store Store, logger *logging.Logger, opts ...ManagerOption) *Manager {
	if cal == nil {
		panic("hold: calendar required")
	}
	if store == nil {
		panic("hold: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		cal:        cal,
		store:      store,
		ttl:        DefaultTTL,
		logger:     logger,
		sweepBatch: defaultSweepBatch,
	}
	for _, opt := range opts {
		opt(m)
	}
	cal.OnRead(m.lazySweep)
	return m
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Acquire moves a free slot to held for patientID. A slot whose previous hold
// lapsed counts as free.
func (m *Manager) Acquire(ctx context.Context, slotID uuid.UUID, patientID string) (*scheduling.Hold, error) {
	ctx, span := holdTracer.Start(ctx, "hold.acquire")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.slot_id", slotID.String()))

	if slotID == uuid.Nil {
		return nil, fmt.Errorf("%w: slot_id is required", scheduling.ErrValidation)
	}
	if patientID == "" {
		return nil, fmt.Errorf("%w: patient_id is required", scheduling.ErrValidation)
	}

	now := m.cal.Now()
	h := scheduling.Hold{
		ID:        uuid.New(),
		SlotID:    slotID,
		PatientID: patientID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	slot, err := m.cal.Transition(ctx, scheduling.Transition{
		SlotID:    slotID,
		From:      scheduling.SlotFree,
		To:        scheduling.SlotHeld,
		Owner:     &h.ID,
		HeldUntil: &h.ExpiresAt,
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, scheduling.ErrStateConflict) {
			m.metrics.ObserveHold("acquire", "conflict")
			return nil, fmt.Errorf("%w: %w", scheduling.ErrSlotUnavailable, err)
		}
		m.metrics.ObserveHold("acquire", "error")
		return nil, err
	}
	h.DoctorID = slot.DoctorID

	if err := m.store.Save(ctx, h); err != nil {
		span.RecordError(err)
		m.revert(ctx, h)
		m.metrics.ObserveHold("acquire", "error")
		if errors.Is(err, scheduling.ErrSlotUnavailable) {
			return nil, fmt.Errorf("%w: %w", scheduling.ErrSlotUnavailable, scheduling.ErrStateConflict)
		}
		return nil, fmt.Errorf("save hold: %w", err)
	}

	m.metrics.ObserveHold("acquire", "ok")
	m.logger.Debug("hold acquired",
		"hold_id", h.ID,
		"slot_id", h.SlotID,
		"doctor_id", h.DoctorID,
		"expires_at", h.ExpiresAt,
	)
	return &h, nil
}

func (m *Manager) Get(ctx context.Context, holdID uuid.UUID) (*scheduling.Hold, error) {
	return m.store.Get(ctx, holdID)
}

// Release frees the slot and drops the record. Unknown or already released
// holds are not an error.
func (m *Manager) Release(ctx context.Context, holdID uuid.UUID) error {
	ctx, span := holdTracer.Start(ctx, "hold.release")
	defer span.End()

	h, err := m.store.Get(ctx, holdID)
	if errors.Is(err, scheduling.ErrHoldInvalid) {
		m.metrics.ObserveHold("release", "noop")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := m.release(ctx, *h); err != nil {
		span.RecordError(err)
		m.metrics.ObserveHold("release", "error")
		return err
	}
	m.metrics.ObserveHold("release", "ok")
	return nil
}

// release is shared by Release and the sweeper. A conflict means the slot
// already moved on (booked, or re-held after lapsing) and only the record
// needs to go.
func (m *Manager) release(ctx context.Context, h scheduling.Hold) error {
	_, err := m.cal.Transition(ctx, scheduling.Transition{
		SlotID:      h.SlotID,
		From:        scheduling.SlotHeld,
		To:          scheduling.SlotFree,
		ExpectOwner: &h.ID,
	})
	if err != nil && !errors.Is(err, scheduling.ErrStateConflict) && !errors.Is(err, scheduling.ErrSlotNotFound) {
		return err
	}
	return m.store.Delete(ctx, h)
}

func (m *Manager) revert(ctx context.Context, h scheduling.Hold) {
	if _, err := m.cal.Transition(ctx, scheduling.Transition{
		SlotID:      h.SlotID,
		From:        scheduling.SlotHeld,
		To:          scheduling.SlotFree,
		ExpectOwner: &h.ID,
	}); err != nil {
		m.logger.Error("failed to revert hold", "hold_id", h.ID, "slot_id", h.SlotID, "error", err)
	}
}

// Extend pushes the expiry to now+TTL. Once the hold has lapsed it cannot be
// revived, even if nobody took the slot yet.
func (m *Manager) Extend(ctx context.Context, holdID uuid.UUID) (*scheduling.Hold, error) {
	ctx, span := holdTracer.Start(ctx, "hold.extend")
	defer span.End()

	h, err := m.store.Get(ctx, holdID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := m.cal.Now()
	if h.Expired(now) {
		m.metrics.ObserveHold("extend", "expired")
		return nil, fmt.Errorf("hold %s: %w", holdID, scheduling.ErrHoldExpired)
	}

	expires := now.Add(m.ttl)
	_, err = m.cal.Transition(ctx, scheduling.Transition{
		SlotID:      h.SlotID,
		From:        scheduling.SlotHeld,
		To:          scheduling.SlotHeld,
		ExpectOwner: &h.ID,
		Owner:       &h.ID,
		HeldUntil:   &expires,
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, scheduling.ErrStateConflict) {
			m.metrics.ObserveHold("extend", "expired")
			return nil, fmt.Errorf("hold %s: %w", holdID, scheduling.ErrHoldExpired)
		}
		m.metrics.ObserveHold("extend", "error")
		return nil, err
	}

	h.ExpiresAt = expires
	if err := m.store.Save(ctx, *h); err != nil {
		span.RecordError(err)
		m.metrics.ObserveHold("extend", "error")
		return nil, fmt.Errorf("save hold: %w", err)
	}
	m.metrics.ObserveHold("extend", "ok")
	return h, nil
}

// Verify succeeds only for a live hold owned by patientID on slotID.
func (m *Manager) Verify(ctx context.Context, holdID uuid.UUID, patientID string, slotID uuid.UUID) (*scheduling.Hold, error) {
	h, err := m.store.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}
	switch {
	case h.Expired(m.cal.Now()):
		return nil, fmt.Errorf("%w: hold %s has expired", scheduling.ErrHoldInvalid, holdID)
	case h.PatientID != patientID:
		return nil, fmt.Errorf("%w: hold %s belongs to another patient", scheduling.ErrHoldInvalid, holdID)
	case h.SlotID != slotID:
		return nil, fmt.Errorf("%w: hold %s is for a different slot", scheduling.ErrHoldInvalid, holdID)
	}
	return h, nil
}

// Consume drops the record once the slot has been promoted to booked.
func (m *Manager) Consume(ctx context.Context, holdID uuid.UUID) error {
	h, err := m.store.Get(ctx, holdID)
	if errors.Is(err, scheduling.ErrHoldInvalid) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, *h); err != nil {
		return fmt.Errorf("consume hold: %w", err)
	}
	m.metrics.ObserveHold("consume", "ok")
	return nil
}

// Sweep releases lapsed holds in batches until none are left.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	ctx, span := holdTracer.Start(ctx, "hold.sweep")
	defer span.End()

	total := 0
	for {
		expired, err := m.store.Expired(ctx, m.cal.Now(), m.sweepBatch)
		if err != nil {
			span.RecordError(err)
			return total, fmt.Errorf("list expired holds: %w", err)
		}
		if len(expired) == 0 {
			break
		}
		for _, h := range expired {
			if err := m.release(ctx, h); err != nil {
				span.RecordError(err)
				m.metrics.ObserveSwept(total)
				return total, fmt.Errorf("release hold %s: %w", h.ID, err)
			}
			total++
		}
		if len(expired) < m.sweepBatch {
			break
		}
	}

	span.SetAttributes(attribute.Int("clinic.holds_swept", total))
	m.metrics.ObserveSwept(total)
	if total > 0 {
		m.logger.Info("released expired holds", "count", total)
	}
	return total, nil
}

// lazySweep runs on calendar reads. Concurrent readers skip it while another
// sweep is in flight.
func (m *Manager) lazySweep(ctx context.Context) {
	if !m.sweeping.CompareAndSwap(false, true) {
		return
	}
	defer m.sweeping.Store(false)

	if _, err := m.Sweep(ctx); err != nil {
		m.logger.Warn("lazy hold sweep failed", "error", err)
	}
}
