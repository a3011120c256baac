package records

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

var doctorCols = []string{
	"id", "name", "email", "specialties", "rating", "status", "shift_start_min", "shift_end_min",
	"granularity_min", "breaks", "weekdays", "timezone", "created_at", "updated_at",
}

func TestPgStoreGetDoctorDecodesShift(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	email := "sarah.johnson@hospital.com"
	mock.ExpectQuery("SELECT (.+) FROM doctors").
		WithArgs("D001").
		WillReturnRows(pgxmock.NewRows(doctorCols).AddRow(
			"D001", "Dr. Sarah Johnson", &email, []string{"Cardiology"}, 4.9, "Available",
			540, 1020, 30, []byte(`[{"start_min":720,"end_min":780}]`), []int16{1, 2, 3, 4, 5},
			"Europe/Berlin", now, now,
		))

	d, err := NewPgStore(mock).GetDoctor(context.Background(), "D001")
	require.NoError(t, err)
	assert.Equal(t, DoctorAvailable, d.Status)
	assert.Equal(t, 9*time.Hour, d.Shift.DayStart)
	assert.Equal(t, 17*time.Hour, d.Shift.DayEnd)
	assert.Equal(t, 30*time.Minute, d.Shift.Granularity)
	assert.Equal(t, []scheduling.BreakInterval{{Start: 12 * time.Hour, End: 13 * time.Hour}}, d.Shift.Breaks)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, d.Shift.Weekdays)
	assert.Equal(t, "Europe/Berlin", d.Shift.Location)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreGetDoctorNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM doctors").
		WithArgs("D404").
		WillReturnRows(pgxmock.NewRows(doctorCols))

	_, err = NewPgStore(mock).GetDoctor(context.Background(), "D404")
	assert.ErrorIs(t, err, scheduling.ErrDoctorNotFound)
}

func TestPgStorePatientExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("P001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewPgStore(mock).PatientExists(context.Background(), "P001")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreSavePatientUpserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO patients").
		WithArgs("P004", "Ann Lee", (*string)(nil), "Active").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPgStore(mock).SavePatient(context.Background(), Patient{ID: "P004", Name: "Ann Lee"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreSaveDoctorEncodesShift(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO doctors").
		WithArgs("D005", "Dr. Aisha Patel", (*string)(nil), []string{"General Medicine"}, 4.6, "Available",
			540, 1020, 30, `[{"start_min":720,"end_min":780}]`, []int16{}, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPgStore(mock).SaveDoctor(context.Background(), Doctor{
		ID:          "D005",
		Name:        "Dr. Aisha Patel",
		Specialties: []string{"General Medicine"},
		Rating:      4.6,
		Shift:       ClinicShift(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
