package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling-core/internal/db"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

type PgStore struct {
	db db.DBTX
}

func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

type breakRow struct {
	StartMin int `json:"start_min"`
	EndMin   int `json:"end_min"`
}

const doctorColumns = `id, name, email, specialties, rating, status, shift_start_min, shift_end_min,
	granularity_min, breaks, weekdays, timezone, created_at, updated_at`

const patientColumns = `id, name, email, status, created_at, updated_at`

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var status string
	var startMin, endMin, granMin int
	var breaks []byte
	var weekdays []int16

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.Specialties,
		&d.Rating,
		&status,
		&startMin,
		&endMin,
		&granMin,
		&breaks,
		&weekdays,
		&d.Shift.Location,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, scheduling.ErrDoctorNotFound
		}
		return nil, err
	}

	d.Status = DoctorStatus(status)
	d.Shift.DayStart = time.Duration(startMin) * time.Minute
	d.Shift.DayEnd = time.Duration(endMin) * time.Minute
	d.Shift.Granularity = time.Duration(granMin) * time.Minute

	if len(breaks) > 0 {
		var rows []breakRow
		if err := json.Unmarshal(breaks, &rows); err != nil {
			return nil, fmt.Errorf("decode breaks for doctor %s: %w", d.ID, err)
		}
		for _, b := range rows {
			d.Shift.Breaks = append(d.Shift.Breaks, scheduling.BreakInterval{
				Start: time.Duration(b.StartMin) * time.Minute,
				End:   time.Duration(b.EndMin) * time.Minute,
			})
		}
	}
	for _, w := range weekdays {
		d.Shift.Weekdays = append(d.Shift.Weekdays, time.Weekday(w))
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var status string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, scheduling.ErrPatientNotFound
		}
		return nil, err
	}

	p.Status = PatientStatus(status)
	return &p, nil
}

// Interface methods

func (s *PgStore) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (s *PgStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) GetPatient(ctx context.Context, id string) (*Patient, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) PatientExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return exists, nil
}

func (s *PgStore) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) SaveDoctor(ctx context.Context, d Doctor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	breaks := make([]breakRow, 0, len(d.Shift.Breaks))
	for _, b := range d.Shift.Breaks {
		breaks = append(breaks, breakRow{StartMin: int(b.Start / time.Minute), EndMin: int(b.End / time.Minute)})
	}
	breaksJSON, err := json.Marshal(breaks)
	if err != nil {
		return fmt.Errorf("encode breaks: %w", err)
	}
	weekdays := make([]int16, 0, len(d.Shift.Weekdays))
	for _, w := range d.Shift.Weekdays {
		weekdays = append(weekdays, int16(w))
	}
	status := d.Status
	if status == "" {
		status = DoctorAvailable
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO doctors (id, name, email, specialties, rating, status, shift_start_min, shift_end_min,
		                     granularity_min, breaks, weekdays, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    specialties = EXCLUDED.specialties,
		    rating = EXCLUDED.rating,
		    status = EXCLUDED.status,
		    shift_start_min = EXCLUDED.shift_start_min,
		    shift_end_min = EXCLUDED.shift_end_min,
		    granularity_min = EXCLUDED.granularity_min,
		    breaks = EXCLUDED.breaks,
		    weekdays = EXCLUDED.weekdays,
		    timezone = EXCLUDED.timezone,
		    updated_at = now()
	`,
		d.ID,
		d.Name,
		d.Email,
		d.Specialties,
		d.Rating,
		string(status),
		int(d.Shift.DayStart/time.Minute),
		int(d.Shift.DayEnd/time.Minute),
		int(d.Shift.Granularity/time.Minute),
		string(breaksJSON),
		weekdays,
		d.Shift.Location,
	)
	if err != nil {
		return fmt.Errorf("save doctor: %w", err)
	}
	return nil
}

func (s *PgStore) SavePatient(ctx context.Context, p Patient) error {
	if err := p.Validate(); err != nil {
		return err
	}
	status := p.Status
	if status == "" {
		status = PatientActive
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO patients (id, name, email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    status = EXCLUDED.status,
		    updated_at = now()
	`, p.ID, p.Name, p.Email, string(status))
	if err != nil {
		return fmt.Errorf("save patient: %w", err)
	}
	return nil
}
