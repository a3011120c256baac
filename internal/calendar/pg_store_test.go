package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

var slotCols = []string{"id", "doctor_id", "start_time", "end_time", "state", "owner_id", "held_until", "version"}

func TestPgStoreInsertUsesOnConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	start := monday.Add(9 * time.Hour)
	windows := []scheduling.SlotWindow{
		{Start: start, End: start.Add(30 * time.Minute)},
		{Start: start.Add(30 * time.Minute), End: start.Add(time.Hour)},
	}

	mock.ExpectExec("INSERT INTO time_slots").
		WithArgs("D1",
			[]string{scheduling.SlotID("D1", windows[0].Start).String(), scheduling.SlotID("D1", windows[1].Start).String()},
			[]time.Time{windows[0].Start, windows[1].Start},
			[]time.Time{windows[0].End, windows[1].End},
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	require.NoError(t, store.Insert(context.Background(), "D1", windows))
	require.NoError(t, store.Insert(context.Background(), "D1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM time_slots").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(slotCols))

	_, err = NewPgStore(mock).Get(context.Background(), id)
	assert.ErrorIs(t, err, scheduling.ErrSlotNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreCompareAndSetCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := scheduling.SlotID("D1", monday.Add(9*time.Hour))
	owner := uuid.New()
	start := monday.Add(9 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM time_slots (.+) FOR UPDATE").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(slotCols).
			AddRow(id, "D1", start, start.Add(30*time.Minute), "free", (*uuid.UUID)(nil), (*time.Time)(nil), int64(0)))
	mock.ExpectExec("UPDATE time_slots").
		WithArgs(id, "booked", &owner, (*time.Time)(nil), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	slot, err := NewPgStore(mock).CompareAndSet(context.Background(), scheduling.Transition{
		SlotID: id, From: scheduling.SlotFree, To: scheduling.SlotBooked, Owner: &owner,
	}, start.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, scheduling.SlotBooked, slot.State)
	assert.EqualValues(t, 1, slot.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreCompareAndSetConflictRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := scheduling.SlotID("D1", monday.Add(9*time.Hour))
	existing := uuid.New()
	owner := uuid.New()
	start := monday.Add(9 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM time_slots (.+) FOR UPDATE").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(slotCols).
			AddRow(id, "D1", start, start.Add(30*time.Minute), "booked", &existing, (*time.Time)(nil), int64(1)))
	mock.ExpectRollback()

	_, err = NewPgStore(mock).CompareAndSet(context.Background(), scheduling.Transition{
		SlotID: id, From: scheduling.SlotFree, To: scheduling.SlotBooked, Owner: &owner,
	}, start.Add(-time.Hour))
	assert.ErrorIs(t, err, scheduling.ErrStateConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStorePageScansRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	day := scheduling.Day(monday)
	start := monday.Add(9 * time.Hour)
	rows := pgxmock.NewRows(slotCols).
		AddRow(scheduling.SlotID("D1", start), "D1", start, start.Add(30*time.Minute), "free", (*uuid.UUID)(nil), (*time.Time)(nil), int64(0)).
		AddRow(scheduling.SlotID("D1", start.Add(30*time.Minute)), "D1", start.Add(30*time.Minute), start.Add(time.Hour), "free", (*uuid.UUID)(nil), (*time.Time)(nil), int64(0))

	mock.ExpectQuery("SELECT (.+) FROM time_slots (.+) ORDER BY start_time").
		WithArgs("D1", day.From, false, day.To, 10).
		WillReturnRows(rows)

	page, err := NewPgStore(mock).Page(context.Background(), "D1", day, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[1].Start.Equal(start.Add(30*time.Minute)))
	require.NoError(t, mock.ExpectationsWereMet())
}
