package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

// Store persists slots. Implementations must make CompareAndSet atomic per
// slot; nothing else needs to be serialised.
type Store interface {
	// Insert adds the windows of doctorID that do not exist yet. Existing
	// slots are left untouched.
	Insert(ctx context.Context, doctorID string, windows []scheduling.SlotWindow) error

	Get(ctx context.Context, id uuid.UUID) (*scheduling.TimeSlot, error)

	// Page returns up to limit slots of doctorID starting in r strictly after
	// `after` (zero means from r.From), ordered by start.
	Page(ctx context.Context, doctorID string, r scheduling.DateRange, after time.Time, limit int) ([]scheduling.TimeSlot, error)

	// CompareAndSet checks tr against the stored slot at now and applies it.
	CompareAndSet(ctx context.Context, tr scheduling.Transition, now time.Time) (*scheduling.TimeSlot, error)
}
