package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling-core/internal/db"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

// PgStore keeps slots in the time_slots table. CompareAndSet takes a row
// lock on the one slot it changes.
type PgStore struct {
	db db.DBTX
}

func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

const slotColumns = `id, doctor_id, start_time, end_time, state, owner_id, held_until, version`

func scanSlot(row pgx.Row) (*scheduling.TimeSlot, error) {
	var s scheduling.TimeSlot
	var state string

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Start,
		&s.End,
		&state,
		&s.Owner,
		&s.HeldUntil,
		&s.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, scheduling.ErrSlotNotFound
		}
		return nil, err
	}

	s.State = scheduling.SlotState(state)
	return &s, nil
}

func (p *PgStore) Insert(ctx context.Context, doctorID string, windows []scheduling.SlotWindow) error {
	if len(windows) == 0 {
		return nil
	}

	ids := make([]string, len(windows))
	starts := make([]time.Time, len(windows))
	ends := make([]time.Time, len(windows))
	for i, w := range windows {
		ids[i] = scheduling.SlotID(doctorID, w.Start).String()
		starts[i] = w.Start
		ends[i] = w.End
	}

	_, err := p.db.Exec(ctx, `
		INSERT INTO time_slots (id, doctor_id, start_time, end_time, state, created_at, updated_at)
		SELECT w.id, $1, w.start_time, w.end_time, 'free', now(), now()
		FROM unnest($2::uuid[], $3::timestamptz[], $4::timestamptz[]) AS w(id, start_time, end_time)
		ON CONFLICT (doctor_id, start_time) DO NOTHING
	`, doctorID, ids, starts, ends)
	if err != nil {
		return fmt.Errorf("insert slots: %w", err)
	}
	return nil
}

func (p *PgStore) Get(ctx context.Context, id uuid.UUID) (*scheduling.TimeSlot, error) {
	row := p.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (p *PgStore) Page(ctx context.Context, doctorID string, r scheduling.DateRange, after time.Time, limit int) ([]scheduling.TimeSlot, error) {
	lower := r.From
	strict := false
	if !after.IsZero() && !after.Before(r.From) {
		lower = after
		strict = true
	}
	if limit <= 0 {
		limit = 1000
	}

	rows, err := p.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE doctor_id = $1
		  AND (start_time > $2 OR (NOT $3 AND start_time = $2))
		  AND start_time < $4
		ORDER BY start_time
		LIMIT $5
	`, doctorID, lower, strict, r.To, limit)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []scheduling.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PgStore) CompareAndSet(ctx context.Context, tr scheduling.Transition, now time.Time) (*scheduling.TimeSlot, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanSlot(tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE id = $1
		FOR UPDATE
	`, tr.SlotID))
	if err != nil {
		if errors.Is(err, scheduling.ErrSlotNotFound) {
			return nil, fmt.Errorf("slot %s: %w", tr.SlotID, err)
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}

	if err := tr.Check(*current, now); err != nil {
		return nil, err
	}
	next := tr.Apply(*current)

	_, err = tx.Exec(ctx, `
		UPDATE time_slots
		SET state = $2,
		    owner_id = $3,
		    held_until = $4,
		    version = $5,
		    updated_at = now()
		WHERE id = $1
	`, next.ID, string(next.State), next.Owner, next.HeldUntil, next.Version)
	if err != nil {
		return nil, fmt.Errorf("update slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return &next, nil
}
