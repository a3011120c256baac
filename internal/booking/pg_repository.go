package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/clinic-scheduling-core/internal/db"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

const uniqueViolation = "23505"

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

const appointmentColumns = `id, patient_id, patient_name, doctor_id, slot_id, start_time, end_time, type, notes,
	status, created_at, updated_at, cancelled_at, cancel_reason`

// Helpers

func scanAppointment(row pgx.Row) (*scheduling.Appointment, error) {
	var a scheduling.Appointment
	var apptType, status string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.DoctorID,
		&a.SlotID,
		&a.Start,
		&a.End,
		&apptType,
		&a.Notes,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CancelledAt,
		&a.CancelReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, scheduling.ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Type = scheduling.AppointmentType(apptType)
	a.Status = scheduling.AppointmentStatus(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]scheduling.Appointment, error) {
	defer rows.Close()

	var result []scheduling.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a scheduling.Appointment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, patient_name, doctor_id, slot_id, start_time, end_time,
		                          type, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`,
		a.ID,
		a.PatientID,
		a.PatientName,
		a.DoctorID,
		a.SlotID,
		a.Start,
		a.End,
		string(a.Type),
		a.Notes,
		string(a.Status),
		a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("slot %s: %w", a.SlotID, scheduling.ErrStateConflict)
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, ch StatusChange) (*scheduling.Appointment, error) {
	var cancelledAt *time.Time
	if ch.To == scheduling.StatusCancelled {
		cancelledAt = &ch.At
	}

	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $4,
		    cancelled_at = COALESCE($5, cancelled_at),
		    cancel_reason = CASE WHEN $5::timestamptz IS NULL THEN cancel_reason ELSE $6 END
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, string(ch.To), string(ch.From), ch.At, cancelledAt, ch.Reason)

	a, err := scanAppointment(row)
	if errors.Is(err, scheduling.ErrAppointmentNotFound) {
		return nil, fmt.Errorf("appointment %s no longer %s: %w", id, ch.From, scheduling.ErrStateConflict)
	}
	return a, err
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]scheduling.Appointment, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time, created_at
		LIMIT $2 OFFSET $3
	`, patientID, lim, max(offset, 0))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID string, rng scheduling.DateRange) ([]scheduling.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time, created_at
	`, doctorID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev scheduling.EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
