package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/availability"
	"github.com/hackgods/clinic-scheduling-core/internal/records"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

type CreateAppointmentRequest struct {
	PatientID           string  `json:"patient_id"`
	PatientName         string  `json:"patient_name"`
	DoctorID            string  `json:"doctor_id"`
	SlotID              string  `json:"slot_id"`
	Type                string  `json:"type"`
	Notes               string  `json:"notes"`
	HoldID              *string `json:"hold_id,omitempty"`
	RequireConfirmation bool    `json:"require_confirmation"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type CreateHoldRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
}

type AppointmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    string     `json:"patient_id"`
	PatientName  string     `json:"patient_name"`
	DoctorID     string     `json:"doctor_id"`
	SlotID       uuid.UUID  `json:"slot_id"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	Type         string     `json:"type"`
	Notes        string     `json:"notes,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type HoldResponse struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	DoctorID  string    `json:"doctor_id"`
	PatientID string    `json:"patient_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SlotResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID string    `json:"doctor_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	State    string    `json:"state"`
}

type FreeSlotsResponse struct {
	DoctorID string         `json:"doctor_id"`
	From     time.Time      `json:"from"`
	To       time.Time      `json:"to"`
	Slots    []SlotResponse `json:"slots"`
}

type CandidateResponse struct {
	DoctorID    string        `json:"doctor_id"`
	Specialties []string      `json:"specialties"`
	Rating      float64       `json:"rating"`
	Available   bool          `json:"available"`
	NextSlot    *SlotResponse `json:"next_slot,omitempty"`
}

type AvailabilityResponse struct {
	Need        string              `json:"need"`
	Specialties []string            `json:"specialties"`
	Results     []CandidateResponse `json:"results"`
	Total       int                 `json:"total"`
	NextOffset  *int                `json:"next_offset,omitempty"`
}

type DoctorRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Specialties []string `json:"specialties"`
	Rating      float64  `json:"rating"`
	Status      string   `json:"status"`
}

type PatientRecord struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  *string `json:"email,omitempty"`
	Status string  `json:"status"`
}

type SearchResponse struct {
	Kind     string          `json:"kind"`
	Term     string          `json:"term"`
	Status   string          `json:"status"`
	Doctors  []DoctorRecord  `json:"doctors,omitempty"`
	Patients []PatientRecord `json:"patients,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		PatientName:  a.PatientName,
		DoctorID:     a.DoctorID,
		SlotID:       a.SlotID,
		Start:        a.Start,
		End:          a.End,
		Type:         string(a.Type),
		Notes:        a.Notes,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		CancelledAt:  a.CancelledAt,
		CancelReason: a.CancelReason,
	}
}

func toHoldResponse(h *scheduling.Hold) HoldResponse {
	return HoldResponse{
		ID:        h.ID,
		SlotID:    h.SlotID,
		DoctorID:  h.DoctorID,
		PatientID: h.PatientID,
		CreatedAt: h.CreatedAt,
		ExpiresAt: h.ExpiresAt,
	}
}

func toSlotResponse(s scheduling.TimeSlot) SlotResponse {
	return SlotResponse{
		ID:       s.ID,
		DoctorID: s.DoctorID,
		Start:    s.Start,
		End:      s.End,
		State:    string(s.State),
	}
}

func toCandidateResponse(c availability.Candidate) CandidateResponse {
	resp := CandidateResponse{
		DoctorID:    c.DoctorID,
		Specialties: c.Specialties,
		Rating:      c.Rating,
		Available:   c.Available(),
	}
	if c.NextSlot != nil {
		slot := toSlotResponse(*c.NextSlot)
		resp.NextSlot = &slot
	}
	return resp
}

func toDoctorRecord(d records.Doctor) DoctorRecord {
	return DoctorRecord{
		ID:          d.ID,
		Name:        d.Name,
		Specialties: d.Specialties,
		Rating:      d.Rating,
		Status:      string(d.Status),
	}
}

func toPatientRecord(p records.Patient) PatientRecord {
	return PatientRecord{
		ID:     p.ID,
		Name:   p.Name,
		Email:  p.Email,
		Status: string(p.Status),
	}
}
