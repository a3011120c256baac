package calendar

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/observability/metrics"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

// Doctors resolves the read-only doctor projection. Lookups are not cached so
// a doctor removed from the record store stops generating slots at once.
type Doctors interface {
	DoctorProfile(ctx context.Context, id string) (*scheduling.DoctorProfile, error)
}

// ReadHook runs before every slot read. The hold manager registers its lazy
// sweep here.
type ReadHook func(ctx context.Context)

// Calendar owns slot generation and the only write path to slot state.
type Calendar struct {
	store    Store
	doctors  Doctors
	logger   *logging.Logger
	metrics  *metrics.SchedulingMetrics
	now      func() time.Time
	pageSize int
	maxRange time.Duration

	hooksMu sync.RWMutex
	hooks   []ReadHook
}

type Option func(*Calendar)

func WithClock(now func() time.Time) Option {
	return func(c *Calendar) { c.now = now }
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(c *Calendar) { c.metrics = m }
}

// WithPageSize sets how many slots ListFree pulls from the store at a time.
func WithPageSize(n int) Option {
	return func(c *Calendar) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// DefaultMaxRange bounds how far one read may materialise a calendar.
const DefaultMaxRange = 92 * 24 * time.Hour

// WithMaxRange caps the length of ranges accepted by Generate, ListFree and
// NextFree. Longer ranges fail with ErrValidation.
func WithMaxRange(d time.Duration) Option {
	return func(c *Calendar) {
		if d > 0 {
			c.maxRange = d
		}
	}
}

func New(store Store, doctors Doctors, logger *logging.Logger, opts ...Option) *Calendar {
	if store == nil {
		panic("calendar: store required")
	}
	if doctors == nil {
		panic("calendar: doctor lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Calendar{
		store:    store,
		doctors:  doctors,
		logger:   logger,
		now:      time.Now,
		pageSize: 64,
		maxRange: DefaultMaxRange,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now is the calendar's clock. Holds and bookings share it so expiry is
// judged against one time source.
func (c *Calendar) Now() time.Time {
	return c.now()
}

func (c *Calendar) OnRead(hook ReadHook) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, hook)
}

func (c *Calendar) beforeRead(ctx context.Context) {
	c.hooksMu.RLock()
	hooks := c.hooks
	c.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx)
	}
}

// Generate materialises the doctor's slots for r from the shift template and
// returns every slot in r ordered by start. Calling it again for the same
// range returns the existing slots unchanged.
func (c *Calendar) Generate(ctx context.Context, doctorID string, r scheduling.DateRange) ([]scheduling.TimeSlot, error) {
	if err := c.materialize(ctx, doctorID, r); err != nil {
		return nil, err
	}
	c.beforeRead(ctx)

	now := c.now()
	var out []scheduling.TimeSlot
	var after time.Time
	for {
		page, err := c.store.Page(ctx, doctorID, r, after, c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("read slots: %w", err)
		}
		for _, s := range page {
			out = append(out, s.View(now))
		}
		if len(page) < c.pageSize {
			return out, nil
		}
		after = page[len(page)-1].Start
	}
}

func (c *Calendar) materialize(ctx context.Context, doctorID string, r scheduling.DateRange) error {
	if doctorID == "" {
		return fmt.Errorf("%w: doctor id is required", scheduling.ErrValidation)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if r.To.Sub(r.From) > c.maxRange {
		return fmt.Errorf("%w: range %s to %s exceeds %d days", scheduling.ErrValidation,
			r.From.Format(time.DateOnly), r.To.Format(time.DateOnly), int(c.maxRange/(24*time.Hour)))
	}

	doc, err := c.doctors.DoctorProfile(ctx, doctorID)
	if err != nil {
		if errors.Is(err, scheduling.ErrDoctorNotFound) {
			return err
		}
		return fmt.Errorf("load doctor: %w", err)
	}

	windows, err := doc.Shift.Windows(r)
	if err != nil {
		return fmt.Errorf("doctor %s shift: %w", doctorID, err)
	}
	if err := c.store.Insert(ctx, doctorID, windows); err != nil {
		return fmt.Errorf("generate slots: %w", err)
	}
	c.logger.Debug("slots materialized", "doctor_id", doctorID, "from", r.From, "to", r.To, "windows", len(windows))
	return nil
}

// ListFree yields the doctor's free slots in r by ascending start. The
// sequence is lazy and can be ranged over again; every pass reads fresh state.
func (c *Calendar) ListFree(ctx context.Context, doctorID string, r scheduling.DateRange) iter.Seq2[scheduling.TimeSlot, error] {
	return func(yield func(scheduling.TimeSlot, error) bool) {
		if err := c.materialize(ctx, doctorID, r); err != nil {
			yield(scheduling.TimeSlot{}, err)
			return
		}
		c.beforeRead(ctx)

		var after time.Time
		for {
			if err := ctx.Err(); err != nil {
				yield(scheduling.TimeSlot{}, err)
				return
			}
			page, err := c.store.Page(ctx, doctorID, r, after, c.pageSize)
			if err != nil {
				yield(scheduling.TimeSlot{}, fmt.Errorf("read slots: %w", err))
				return
			}
			now := c.now()
			for _, s := range page {
				if s.EffectiveState(now) != scheduling.SlotFree {
					continue
				}
				if !yield(s.View(now), nil) {
					return
				}
			}
			if len(page) < c.pageSize {
				return
			}
			after = page[len(page)-1].Start
		}
	}
}

// NextFree returns the earliest free slot in r, or nil when there is none.
func (c *Calendar) NextFree(ctx context.Context, doctorID string, r scheduling.DateRange) (*scheduling.TimeSlot, error) {
	for slot, err := range c.ListFree(ctx, doctorID, r) {
		if err != nil {
			return nil, err
		}
		return &slot, nil
	}
	return nil, nil
}

func (c *Calendar) Get(ctx context.Context, id uuid.UUID) (*scheduling.TimeSlot, error) {
	c.beforeRead(ctx)
	slot, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, scheduling.ErrSlotNotFound) {
			return nil, fmt.Errorf("slot %s: %w", id, err)
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}
	view := slot.View(c.now())
	return &view, nil
}

// Transition is the atomic compare-and-set on one slot. It fails with
// ErrStateConflict when the slot is not in tr.From (or not owned by
// tr.ExpectOwner); callers must re-read rather than assume success.
func (c *Calendar) Transition(ctx context.Context, tr scheduling.Transition) (*scheduling.TimeSlot, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	slot, err := c.store.CompareAndSet(ctx, tr, c.now())
	switch {
	case err == nil:
		c.metrics.ObserveTransition(string(tr.From), string(tr.To), "ok")
		return slot, nil
	case errors.Is(err, scheduling.ErrStateConflict):
		c.metrics.ObserveTransition(string(tr.From), string(tr.To), "conflict")
		return nil, err
	case errors.Is(err, scheduling.ErrSlotNotFound):
		c.metrics.ObserveTransition(string(tr.From), string(tr.To), "not_found")
		return nil, err
	default:
		c.metrics.ObserveTransition(string(tr.From), string(tr.To), "error")
		return nil, fmt.Errorf("transition slot %s: %w", tr.SlotID, err)
	}
}
