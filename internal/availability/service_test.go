package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling-core/internal/calendar"
	"github.com/hackgods/clinic-scheduling-core/internal/records"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T, doctors ...records.Doctor) (*Service, *calendar.Calendar) {
	t.Helper()
	store := records.NewMemoryStore()
	for _, d := range doctors {
		require.NoError(t, store.SaveDoctor(context.Background(), d))
	}
	dir := records.NewDirectory(store, logging.Discard(), nil)
	now := monday.Add(7 * time.Hour)
	cal := calendar.New(calendar.NewMemoryStore(), dir, logging.Discard(), calendar.WithClock(func() time.Time { return now }))
	return NewService(dir, cal, nil, logging.Discard(), WithConcurrency(2)), cal
}

func doctor(id string, rating float64, specialties ...string) records.Doctor {
	return records.Doctor{
		ID:          id,
		Name:        "Dr. " + id,
		Specialties: specialties,
		Rating:      rating,
		Shift:       records.ClinicShift(),
	}
}

func ids(cs []Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.DoctorID)
	}
	return out
}

func TestQueryTieBreaksOnDoctorID(t *testing.T) {
	svc, _ := newService(t, doctor("D2", 4.9, "Cardiology"), doctor("D1", 4.9, "Cardiology"))

	page, err := svc.Query(context.Background(), Query{Need: "Cardiology", Range: scheduling.Day(monday), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "D2"}, ids(page.Results))
	assert.Equal(t, 2, page.Total)
	assert.Nil(t, page.NextOffset)
	for _, c := range page.Results {
		require.True(t, c.Available())
		assert.Equal(t, monday.Add(9*time.Hour), c.NextSlot.Start)
	}
}

func TestQueryRanking(t *testing.T) {
	svc, cal := newService(t,
		doctor("D1", 4.7, "Cardiology"),
		doctor("D2", 4.9, "Cardiology"),
		doctor("D3", 4.9, "Cardiology"),
		doctor("D4", 5.0, "Cardiology"),
		doctor("D5", 4.2, "Neurology"),
	)
	ctx := context.Background()
	day := scheduling.Day(monday)

	// D2 loses its 09:00 slot, so D3 ranks ahead at equal rating
	first, err := cal.NextFree(ctx, "D2", day)
	require.NoError(t, err)
	owner := uuid.New()
	_, err = cal.Transition(ctx, scheduling.Transition{SlotID: first.ID, From: scheduling.SlotFree, To: scheduling.SlotBooked, Owner: &owner})
	require.NoError(t, err)

	// D4 is fully booked and drops behind everyone despite its rating
	slots, err := cal.Generate(ctx, "D4", day)
	require.NoError(t, err)
	for _, s := range slots {
		o := uuid.New()
		_, err := cal.Transition(ctx, scheduling.Transition{SlotID: s.ID, From: scheduling.SlotFree, To: scheduling.SlotBooked, Owner: &o})
		require.NoError(t, err)
	}

	page, err := svc.Query(ctx, Query{Need: "cardiology", Range: day})
	require.NoError(t, err)
	assert.Equal(t, []string{"D3", "D2", "D1", "D4"}, ids(page.Results))
	assert.False(t, page.Results[3].Available())
	assert.Nil(t, page.Results[3].NextSlot)
	assert.Equal(t, monday.Add(9*time.Hour+30*time.Minute), page.Results[1].NextSlot.Start)
}

func TestQueryMapsConditions(t *testing.T) {
	svc, _ := newService(t,
		doctor("D1", 4.9, "Cardiology"),
		doctor("D2", 4.8, "Neurology"),
		doctor("D3", 4.5, "General Medicine"),
	)
	ctx := context.Background()
	day := scheduling.Day(monday)

	page, err := svc.Query(ctx, Query{Need: "Regular Checkup", Range: day})
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "D3"}, ids(page.Results))
	assert.Equal(t, []string{"cardiology", "general medicine"}, page.Specialties)

	page, err = svc.Query(ctx, Query{Need: "  MIGRAINE ", Range: day})
	require.NoError(t, err)
	assert.Equal(t, []string{"D2"}, ids(page.Results))

	// unknown terms are taken literally as a specialty
	page, err = svc.Query(ctx, Query{Need: "Dermatology", Range: day})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Zero(t, page.Total)
	assert.Equal(t, []string{"dermatology"}, page.Specialties)
}

func TestQueryPagination(t *testing.T) {
	svc, _ := newService(t,
		doctor("D1", 4.1, "Pediatrics"),
		doctor("D2", 4.2, "Pediatrics"),
		doctor("D3", 4.3, "Pediatrics"),
		doctor("D4", 4.4, "Pediatrics"),
		doctor("D5", 4.5, "Pediatrics"),
	)
	ctx := context.Background()
	q := Query{Need: "Pediatrics", Range: scheduling.Day(monday), Limit: 2}

	var all []string
	for {
		page, err := svc.Query(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		all = append(all, ids(page.Results)...)
		if page.NextOffset == nil {
			break
		}
		q.Offset = *page.NextOffset
	}
	assert.Equal(t, []string{"D5", "D4", "D3", "D2", "D1"}, all)

	page, err := svc.Query(ctx, Query{Need: "Pediatrics", Range: scheduling.Day(monday), Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Equal(t, 5, page.Total)
}

func TestQueryValidation(t *testing.T) {
	svc, _ := newService(t, doctor("D1", 4.9, "Cardiology"))
	ctx := context.Background()
	day := scheduling.Day(monday)

	_, err := svc.Query(ctx, Query{Need: " ", Range: day})
	assert.ErrorIs(t, err, scheduling.ErrValidation)

	_, err = svc.Query(ctx, Query{Need: "Cardiology", Range: scheduling.DateRange{From: day.To, To: day.From}})
	assert.ErrorIs(t, err, scheduling.ErrValidation)

	_, err = svc.Query(ctx, Query{Need: "Cardiology", Range: day, Offset: -1})
	assert.ErrorIs(t, err, scheduling.ErrValidation)
}

type staticProfiles []scheduling.DoctorProfile

func (s staticProfiles) ListProfiles(context.Context) ([]scheduling.DoctorProfile, error) {
	return s, nil
}

func (s staticProfiles) Specialties(context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, p := range s {
		for _, tag := range p.Specialties {
			out[scheduling.NormalizeTag(tag)] = struct{}{}
		}
	}
	return out, nil
}

type slotsFunc func(ctx context.Context, doctorID string, r scheduling.DateRange) (*scheduling.TimeSlot, error)

func (f slotsFunc) NextFree(ctx context.Context, doctorID string, r scheduling.DateRange) (*scheduling.TimeSlot, error) {
	return f(ctx, doctorID, r)
}

func TestQueryDropsVanishedDoctorsAndPropagatesFailures(t *testing.T) {
	profiles := staticProfiles{
		{ID: "D1", Specialties: []string{"Cardiology"}, Rating: 4},
		{ID: "D2", Specialties: []string{"Cardiology"}, Rating: 5},
	}
	day := scheduling.Day(monday)

	gone := slotsFunc(func(_ context.Context, id string, _ scheduling.DateRange) (*scheduling.TimeSlot, error) {
		if id == "D2" {
			return nil, scheduling.ErrDoctorNotFound
		}
		return &scheduling.TimeSlot{DoctorID: id, Start: monday.Add(9 * time.Hour)}, nil
	})
	page, err := NewService(profiles, gone, nil, logging.Discard()).Query(context.Background(), Query{Need: "Cardiology", Range: day})
	require.NoError(t, err)
	assert.Equal(t, []string{"D1"}, ids(page.Results))

	boom := errors.New("store offline")
	broken := slotsFunc(func(context.Context, string, scheduling.DateRange) (*scheduling.TimeSlot, error) {
		return nil, boom
	})
	_, err = NewService(profiles, broken, nil, logging.Discard()).Query(context.Background(), Query{Need: "Cardiology", Range: day})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, scheduling.KindInternal, scheduling.KindOf(err))
}

type brokenSpecialties struct {
	staticProfiles
	err error
}

func (b brokenSpecialties) Specialties(context.Context) (map[string]struct{}, error) {
	return nil, b.err
}

func TestQueryResolvesAgainstDirectorySpecialties(t *testing.T) {
	// a doctor tagged with a term the condition table also maps wins the
	// literal match
	svc, _ := newService(t,
		doctor("D1", 4.0, "Migraine"),
		doctor("D2", 4.9, "Neurology"),
	)
	ctx := context.Background()
	day := scheduling.Day(monday)

	page, err := svc.Query(ctx, Query{Need: "MIGRAINE", Range: day})
	require.NoError(t, err)
	assert.Equal(t, []string{"migraine"}, page.Specialties)
	assert.Equal(t, []string{"D1"}, ids(page.Results))

	boom := errors.New("directory offline")
	profiles := brokenSpecialties{staticProfiles: staticProfiles{{ID: "D1", Specialties: []string{"Cardiology"}}}, err: boom}
	never := slotsFunc(func(context.Context, string, scheduling.DateRange) (*scheduling.TimeSlot, error) {
		t.Error("slots looked up after specialty lookup failed")
		return nil, nil
	})
	_, err = NewService(profiles, never, nil, logging.Discard()).Query(ctx, Query{Need: "Cardiology", Range: day})
	assert.ErrorIs(t, err, boom)
}

func TestRankIsDeterministic(t *testing.T) {
	at := func(h int) *scheduling.TimeSlot {
		return &scheduling.TimeSlot{Start: monday.Add(time.Duration(h) * time.Hour)}
	}
	cs := []Candidate{
		{DoctorID: "B", Rating: 4.9, NextSlot: at(9)},
		{DoctorID: "Z", Rating: 5.0},
		{DoctorID: "A", Rating: 4.9, NextSlot: at(9)},
		{DoctorID: "C", Rating: 4.9, NextSlot: at(8)},
		{DoctorID: "Y", Rating: 4.0},
		{DoctorID: "D", Rating: 3.0, NextSlot: at(7)},
	}
	Rank(cs)
	assert.Equal(t, []string{"C", "A", "B", "D", "Z", "Y"}, ids(cs))
}

func TestConditionTable(t *testing.T) {
	table, err := ParseConditionTable([]byte(`{"Chest Pain": ["Cardiology"], "rash": ["Dermatology", "General Medicine"], "": ["x"]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	specs, ok := table.Lookup("chest   pain")
	require.True(t, ok)
	assert.Equal(t, []string{"Cardiology"}, specs)

	_, ok = table.Lookup("cough")
	assert.False(t, ok)

	known := map[string]struct{}{"rash": {}}
	assert.Equal(t, map[string]struct{}{"rash": {}}, table.Resolve("Rash", known))
	assert.Equal(t, map[string]struct{}{"dermatology": {}, "general medicine": {}}, table.Resolve("Rash", nil))

	_, err = ParseConditionTable([]byte(`[]`))
	assert.Error(t, err)
	_, err = ParseConditionTable([]byte(`{}`))
	assert.Error(t, err)

	specs, ok = DefaultConditionTable().Lookup("Regular Checkup")
	require.True(t, ok)
	assert.Equal(t, []string{"General Medicine", "Cardiology"}, specs)
}
