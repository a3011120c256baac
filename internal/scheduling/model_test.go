package scheduling

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clinicShift() ShiftTemplate {
	return ShiftTemplate{
		DayStart:    9 * time.Hour,
		DayEnd:      17 * time.Hour,
		Granularity: 30 * time.Minute,
		Breaks:      []BreakInterval{{Start: 12 * time.Hour, End: 14 * time.Hour}},
	}
}

func TestWindowsSkipBreaksAndStayContiguous(t *testing.T) {
	day := Day(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	windows, err := clinicShift().Windows(day)
	require.NoError(t, err)

	// 09:00-12:00 and 14:00-17:00 in 30 minute slots.
	require.Len(t, windows, 12)
	assert.Equal(t, 9, windows[0].Start.Hour())
	assert.Equal(t, 17, windows[len(windows)-1].End.Hour())

	for i := 1; i < len(windows); i++ {
		prev, cur := windows[i-1], windows[i]
		assert.False(t, cur.Start.Before(prev.End), "windows %d and %d overlap", i-1, i)
		if prev.End.Hour() != 12 {
			assert.True(t, cur.Start.Equal(prev.End), "gap between %s and %s", prev.End, cur.Start)
		}
	}
	for _, w := range windows {
		assert.False(t, w.Start.Hour() >= 12 && w.Start.Hour() < 14, "slot %s falls in the lunch break", w.Start)
	}
}

func TestWindowsUnalignedBreakRestartsAtBreakEnd(t *testing.T) {
	shift := ShiftTemplate{
		DayStart:    9 * time.Hour,
		DayEnd:      11 * time.Hour,
		Granularity: 30 * time.Minute,
		Breaks:      []BreakInterval{{Start: 9*time.Hour + 45*time.Minute, End: 10*time.Hour + 15*time.Minute}},
	}
	windows, err := shift.Windows(Day(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	var starts []string
	for _, w := range windows {
		starts = append(starts, w.Start.Format("15:04"))
	}
	assert.Equal(t, []string{"09:00", "10:15"}, starts)
}

func TestWindowsAcrossDSTNeverOverlap(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		day  time.Time
	}{
		{"spring forward", time.Date(2026, 3, 8, 0, 0, 0, 0, ny)},
		{"fall back", time.Date(2026, 11, 1, 0, 0, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shift := ShiftTemplate{
				DayStart:    0,
				DayEnd:      6 * time.Hour,
				Granularity: 30 * time.Minute,
				Location:    "America/New_York",
			}
			windows, err := shift.Windows(Day(tt.day))
			require.NoError(t, err)
			require.NotEmpty(t, windows)

			seen := make(map[uuid.UUID]bool)
			for i, w := range windows {
				assert.True(t, w.End.After(w.Start), "window %d %s-%s is inverted", i, w.Start, w.End)
				if i > 0 {
					assert.False(t, w.Start.Before(windows[i-1].End), "window %d overlaps the previous one", i)
				}
				id := SlotID("D1", w.Start)
				assert.False(t, seen[id], "window %d repeats a start", i)
				seen[id] = true
			}
		})
	}

	// a shift clear of the transition keeps its wall-clock slots
	windows, err := clinicShift().Windows(Day(time.Date(2026, 3, 8, 0, 0, 0, 0, ny)))
	require.NoError(t, err)
	require.Len(t, windows, 12)
	assert.Equal(t, 9, windows[0].Start.Hour())
	for _, w := range windows {
		assert.Equal(t, 30*time.Minute, w.End.Sub(w.Start))
	}
}

func TestWindowsRespectRangeAndWeekdays(t *testing.T) {
	shift := clinicShift()
	shift.Weekdays = []time.Weekday{time.Monday, time.Wednesday}

	// Mon 19th .. Thu 22nd (exclusive) covers Monday and Wednesday.
	r := DateRange{
		From: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
	}
	windows, err := shift.Windows(r)
	require.NoError(t, err)

	// Monday loses 09:00 and 09:30 because the range starts at 10:00.
	require.Len(t, windows, 10+12)
	assert.Equal(t, time.Monday, windows[0].Start.Weekday())
	assert.Equal(t, 10, windows[0].Start.Hour())
	assert.Equal(t, time.Wednesday, windows[len(windows)-1].Start.Weekday())
}

func TestWindowsRejectInvalidInput(t *testing.T) {
	day := Day(time.Now())

	_, err := ShiftTemplate{DayStart: 9 * time.Hour, DayEnd: 8 * time.Hour, Granularity: time.Hour}.Windows(day)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = clinicShift().Windows(DateRange{From: day.To, To: day.From})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ShiftTemplate{DayStart: 9 * time.Hour, DayEnd: 17 * time.Hour}.Windows(day)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSlotIDIsDeterministic(t *testing.T) {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, SlotID("D1", start), SlotID("D1", start.In(time.FixedZone("x", 3600))))
	assert.NotEqual(t, SlotID("D1", start), SlotID("D2", start))
	assert.NotEqual(t, SlotID("D1", start), SlotID("D1", start.Add(30*time.Minute)))
}

func TestTransitionCheck(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	holdID := uuid.New()
	other := uuid.New()
	later := now.Add(5 * time.Minute)
	earlier := now.Add(-time.Second)

	free := TimeSlot{ID: uuid.New(), State: SlotFree}
	held := TimeSlot{ID: uuid.New(), State: SlotHeld, Owner: &holdID, HeldUntil: &later}
	lapsed := TimeSlot{ID: uuid.New(), State: SlotHeld, Owner: &holdID, HeldUntil: &earlier}

	tests := []struct {
		name    string
		slot    TimeSlot
		tr      Transition
		wantErr bool
	}{
		{"free to held", free, Transition{From: SlotFree, To: SlotHeld}, false},
		{"free expected held", free, Transition{From: SlotHeld, To: SlotBooked}, true},
		{"held by owner to booked", held, Transition{From: SlotHeld, To: SlotBooked, ExpectOwner: &holdID}, false},
		{"held by other owner", held, Transition{From: SlotHeld, To: SlotBooked, ExpectOwner: &other}, true},
		{"held is not free", held, Transition{From: SlotFree, To: SlotBooked}, true},
		{"lapsed hold reads free", lapsed, Transition{From: SlotFree, To: SlotBooked}, false},
		{"lapsed hold cannot be booked", lapsed, Transition{From: SlotHeld, To: SlotBooked, ExpectOwner: &holdID}, true},
		{"lapsed hold cannot be extended", lapsed, Transition{From: SlotHeld, To: SlotHeld, ExpectOwner: &holdID}, true},
		{"lapsed hold released by owner", lapsed, Transition{From: SlotHeld, To: SlotFree, ExpectOwner: &holdID}, false},
		{"lapsed hold not released by stranger", lapsed, Transition{From: SlotHeld, To: SlotFree, ExpectOwner: &other}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tr.Check(tt.slot, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrStateConflict)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransitionValidate(t *testing.T) {
	id := uuid.New()
	until := time.Now()
	assert.NoError(t, Transition{SlotID: id, From: SlotFree, To: SlotHeld, Owner: &id, HeldUntil: &until}.Validate())
	assert.NoError(t, Transition{SlotID: id, From: SlotBooked, To: SlotFree}.Validate())
	assert.ErrorIs(t, Transition{SlotID: id, From: SlotBooked, To: SlotHeld, Owner: &id, HeldUntil: &until}.Validate(), ErrValidation)
	assert.ErrorIs(t, Transition{SlotID: id, From: SlotFree, To: SlotBooked}.Validate(), ErrValidation)
	assert.ErrorIs(t, Transition{SlotID: id, From: SlotFree, To: SlotHeld, Owner: &id}.Validate(), ErrValidation)
	assert.ErrorIs(t, Transition{From: SlotFree, To: SlotBooked, Owner: &id}.Validate(), ErrValidation)
}

func TestApplyBumpsVersionAndOwner(t *testing.T) {
	owner := uuid.New()
	s := TimeSlot{State: SlotFree, Version: 3}
	out := Transition{From: SlotFree, To: SlotBooked, Owner: &owner}.Apply(s)
	assert.Equal(t, SlotBooked, out.State)
	assert.Equal(t, owner, *out.Owner)
	assert.Nil(t, out.HeldUntil)
	assert.EqualValues(t, 4, out.Version)
}

func TestAppointmentStatusMachine(t *testing.T) {
	assert.True(t, StatusRequested.CanTransition(StatusConfirmed))
	assert.True(t, StatusRequested.CanTransition(StatusCancelled))
	assert.True(t, StatusConfirmed.CanTransition(StatusCancelled))
	assert.False(t, StatusConfirmed.CanTransition(StatusRequested))
	assert.False(t, StatusCancelled.CanTransition(StatusConfirmed))
	assert.False(t, StatusCancelled.CanTransition(StatusCancelled))
}

func TestParseAppointmentType(t *testing.T) {
	for raw, want := range map[string]AppointmentType{
		"Regular Checkup": TypeCheckup,
		"Follow-up":       TypeFollowUp,
		"lab_results":     TypeLabResults,
		" Surgery ":       TypeSurgery,
	} {
		got, err := ParseAppointmentType(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := ParseAppointmentType("massage")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestKindOf(t *testing.T) {
	booked := fmt.Errorf("%w: %w", ErrSlotAlreadyBooked, ErrStateConflict)
	assert.Equal(t, KindConflict, KindOf(booked))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("load slot: %w", ErrSlotNotFound)))
	assert.Equal(t, KindNotFound, KindOf(ErrHoldInvalid))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("%w: patient name is required", ErrValidation)))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
