package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-scheduling-core/internal/calendar"
	"github.com/hackgods/clinic-scheduling-core/internal/hold"
	"github.com/hackgods/clinic-scheduling-core/internal/observability/metrics"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

var bookingTracer = otel.Tracer("clinic.internal.booking")

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// Patients answers whether a patient is on file.
type Patients interface {
	PatientExists(ctx context.Context, id string) (bool, error)
}

type BookingRequest struct {
	PatientID   string
	PatientName string
	DoctorID    string
	SlotID      uuid.UUID
	Type        scheduling.AppointmentType
	Notes       string
	// HoldID promotes an existing hold instead of booking a free slot.
	HoldID *uuid.UUID
	// RequireConfirmation creates the appointment as requested rather than
	// confirmed.
	RequireConfirmation bool
}

func (r BookingRequest) validate() (scheduling.AppointmentType, error) {
	var missing []string
	if strings.TrimSpace(r.PatientID) == "" {
		missing = append(missing, "patient_id")
	}
	if strings.TrimSpace(r.PatientName) == "" {
		missing = append(missing, "patient_name")
	}
	if strings.TrimSpace(r.DoctorID) == "" {
		missing = append(missing, "doctor_id")
	}
	if r.SlotID == uuid.Nil {
		missing = append(missing, "slot_id")
	}
	if r.Type == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", scheduling.ErrValidation, strings.Join(missing, ", "))
	}
	return scheduling.ParseAppointmentType(string(r.Type))
}

// Engine turns booking requests into appointments. The calendar's per-slot
// compare-and-set decides every race; the engine never retries a lost one.
type Engine struct {
	cal      *calendar.Calendar
	holds    *hold.Manager
	doctors  calendar.Doctors
	patients Patients
	repo     Repository
	logger   *logging.Logger
	metrics  *metrics.SchedulingMetrics
}

type EngineOption func(*Engine)

func WithEngineMetrics(m *metrics.SchedulingMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(cal *calendar.Calendar, holds *hold.Manager, doctors calendar.Doctors, patients Patients, repo Repository, logger *logging.Logger, opts ...EngineOption) *Engine {
	if cal == nil || holds == nil || doctors == nil || patients == nil || repo == nil {
		panic("booking: calendar, holds, doctors, patients and repository are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		cal:      cal,
		holds:    holds,
		doctors:  doctors,
		patients: patients,
		repo:     repo,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RequestBooking books req.SlotID for the patient. Losing the slot race
// yields ErrSlotAlreadyBooked; callers should re-query availability.
func (e *Engine) RequestBooking(ctx context.Context, req BookingRequest) (*scheduling.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.doctor_id", req.DoctorID),
		attribute.String("clinic.slot_id", req.SlotID.String()),
		attribute.Bool("clinic.with_hold", req.HoldID != nil),
	)

	appt, err := e.requestBooking(ctx, req)
	if err != nil {
		fail(span, err)
		e.metrics.ObserveBooking("request", string(scheduling.KindOf(err)))
		return nil, err
	}
	e.metrics.ObserveBooking("request", "ok")
	return appt, nil
}

func (e *Engine) requestBooking(ctx context.Context, req BookingRequest) (*scheduling.Appointment, error) {
	apptType, err := req.validate()
	if err != nil {
		return nil, err
	}

	exists, err := e.patients.PatientExists(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("patient %s: %w", req.PatientID, scheduling.ErrPatientNotFound)
	}

	if _, err := e.doctors.DoctorProfile(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	slot, err := e.cal.Get(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.DoctorID != req.DoctorID {
		return nil, fmt.Errorf("slot %s does not belong to doctor %s: %w", req.SlotID, req.DoctorID, scheduling.ErrSlotNotFound)
	}

	apptID := uuid.New()
	tr := scheduling.Transition{
		SlotID: req.SlotID,
		From:   scheduling.SlotFree,
		To:     scheduling.SlotBooked,
		Owner:  &apptID,
	}
	if req.HoldID != nil {
		if _, err := e.holds.Verify(ctx, *req.HoldID, req.PatientID, req.SlotID); err != nil {
			return nil, err
		}
		tr.From = scheduling.SlotHeld
		tr.ExpectOwner = req.HoldID
	}

	booked, err := e.cal.Transition(ctx, tr)
	if err != nil {
		if errors.Is(err, scheduling.ErrStateConflict) {
			return nil, fmt.Errorf("%w: %w", scheduling.ErrSlotAlreadyBooked, err)
		}
		return nil, err
	}

	now := e.cal.Now()
	status := scheduling.StatusConfirmed
	if req.RequireConfirmation {
		status = scheduling.StatusRequested
	}
	appt := scheduling.Appointment{
		ID:          apptID,
		PatientID:   req.PatientID,
		PatientName: strings.TrimSpace(req.PatientName),
		DoctorID:    req.DoctorID,
		SlotID:      req.SlotID,
		Start:       booked.Start,
		End:         booked.End,
		Type:        apptType,
		Notes:       req.Notes,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.repo.Create(ctx, appt); err != nil {
		e.freeSlot(ctx, appt)
		if req.HoldID != nil {
			if cerr := e.holds.Consume(ctx, *req.HoldID); cerr != nil {
				e.logger.Warn("failed to drop hold after persist failure", "hold_id", req.HoldID, "error", cerr)
			}
		}
		return nil, fmt.Errorf("persist appointment: %w", err)
	}

	if req.HoldID != nil {
		if err := e.holds.Consume(ctx, *req.HoldID); err != nil {
			e.logger.Warn("failed to drop consumed hold", "hold_id", req.HoldID, "error", err)
		}
	}

	e.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"slot_id":    appt.SlotID.String(),
		"doctor_id":  appt.DoctorID,
		"patient_id": appt.PatientID,
		"status":     appt.Status,
		"via_hold":   req.HoldID != nil,
	})
	e.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", appt.DoctorID,
		"slot_id", appt.SlotID,
		"status", appt.Status,
	)
	return &appt, nil
}

// freeSlot moves the appointment's slot back to free if it still owns it.
func (e *Engine) freeSlot(ctx context.Context, appt scheduling.Appointment) {
	_, err := e.cal.Transition(ctx, scheduling.Transition{
		SlotID:      appt.SlotID,
		From:        scheduling.SlotBooked,
		To:          scheduling.SlotFree,
		ExpectOwner: &appt.ID,
	})
	if err != nil && !errors.Is(err, scheduling.ErrStateConflict) && !errors.Is(err, scheduling.ErrSlotNotFound) {
		e.logger.Error("failed to free slot", "appointment_id", appt.ID, "slot_id", appt.SlotID, "error", err)
	}
}

// Confirm moves a requested appointment to confirmed.
func (e *Engine) Confirm(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.confirm")
	defer span.End()

	appt, err := e.repo.Get(ctx, id)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	if !appt.Status.CanTransition(scheduling.StatusConfirmed) {
		err := fmt.Errorf("%w: %s -> %s", scheduling.ErrInvalidStatusTransition, appt.Status, scheduling.StatusConfirmed)
		fail(span, err)
		e.metrics.ObserveBooking("confirm", string(scheduling.KindConflict))
		return nil, err
	}

	updated, err := e.repo.UpdateStatus(ctx, id, StatusChange{
		From: appt.Status,
		To:   scheduling.StatusConfirmed,
		At:   e.cal.Now(),
	})
	if err != nil {
		if errors.Is(err, scheduling.ErrStateConflict) {
			err = fmt.Errorf("%w: %w", scheduling.ErrInvalidStatusTransition, err)
		}
		fail(span, err)
		e.metrics.ObserveBooking("confirm", string(scheduling.KindOf(err)))
		return nil, err
	}

	e.logEvent(ctx, id, EventAppointmentConfirmed, map[string]any{})
	e.metrics.ObserveBooking("confirm", "ok")
	return updated, nil
}

// Cancel cancels the appointment and frees its slot. Cancelling an already
// cancelled appointment succeeds and still makes sure the slot is free.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID, reason string) (*scheduling.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()

	appt, err := e.repo.Get(ctx, id)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	changed := false
	if appt.Status != scheduling.StatusCancelled {
		updated, err := e.repo.UpdateStatus(ctx, id, StatusChange{
			From:   appt.Status,
			To:     scheduling.StatusCancelled,
			Reason: reason,
			At:     e.cal.Now(),
		})
		switch {
		case err == nil:
			appt = updated
			changed = true
		case errors.Is(err, scheduling.ErrStateConflict):
			// lost a race with another status change; only a concurrent
			// cancel counts as success
			appt, err = e.repo.Get(ctx, id)
			if err != nil {
				fail(span, err)
				return nil, err
			}
			if appt.Status != scheduling.StatusCancelled {
				err = fmt.Errorf("appointment %s changed concurrently: %w", id, scheduling.ErrStateConflict)
				fail(span, err)
				return nil, err
			}
		default:
			fail(span, err)
			e.metrics.ObserveBooking("cancel", string(scheduling.KindOf(err)))
			return nil, err
		}
	}

	e.freeSlot(ctx, *appt)

	if changed {
		e.logEvent(ctx, id, EventAppointmentCancelled, map[string]any{
			"slot_id": appt.SlotID.String(),
			"reason":  reason,
		})
		e.metrics.ObserveBooking("cancel", "ok")
	} else {
		e.metrics.ObserveBooking("cancel", "noop")
	}
	return appt, nil
}

func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	return e.repo.Get(ctx, id)
}

func (e *Engine) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]scheduling.Appointment, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, fmt.Errorf("%w: patient_id is required", scheduling.ErrValidation)
	}
	return e.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (e *Engine) ListByDoctor(ctx context.Context, doctorID string, r scheduling.DateRange) ([]scheduling.Appointment, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return e.repo.ListByDoctor(ctx, doctorID, r)
}

func (e *Engine) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID
	ev := scheduling.EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     e.cal.Now(),
	}

	if err := e.repo.InsertEvent(ctx, ev); err != nil {
		e.logger.Warn("failed to insert event log", "event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}
