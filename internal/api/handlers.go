package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/booking"
	"github.com/hackgods/clinic-scheduling-core/internal/hold"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

func parseID(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func createAppointmentHandler(engine *booking.Engine, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		breq := booking.BookingRequest{
			PatientID:           req.PatientID,
			PatientName:         req.PatientName,
			DoctorID:            req.DoctorID,
			SlotID:              slotID,
			Type:                scheduling.AppointmentType(req.Type),
			Notes:               req.Notes,
			RequireConfirmation: req.RequireConfirmation,
		}
		if req.HoldID != nil && *req.HoldID != "" {
			holdID, err := uuid.Parse(*req.HoldID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_hold_id", "hold_id must be a valid UUID")
				return
			}
			breq.HoldID = &holdID
		}

		appt, err := engine.RequestBooking(r.Context(), breq)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(engine *booking.Engine, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := engine.Get(r.Context(), id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// listAppointmentsHandler serves ?patient_id= (paged) or ?doctor_id= with an
// optional from/to range.
func listAppointmentsHandler(engine *booking.Engine, clock func() time.Time, windowDays int, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		patientID := strings.TrimSpace(q.Get("patient_id"))
		doctorID := strings.TrimSpace(q.Get("doctor_id"))

		var (
			list []scheduling.Appointment
			err  error
		)
		switch {
		case patientID != "":
			limit, lerr := queryInt(r, "limit", 0)
			offset, oerr := queryInt(r, "offset", 0)
			if err = errors.Join(lerr, oerr); err == nil {
				list, err = engine.ListByPatient(r.Context(), patientID, limit, offset)
			}
		case doctorID != "":
			var rng scheduling.DateRange
			if rng, err = parseRange(r, clock(), windowDays); err == nil {
				list, err = engine.ListByDoctor(r.Context(), doctorID, rng)
			}
		default:
			err = fmt.Errorf("%w: patient_id or doctor_id is required", scheduling.ErrValidation)
		}
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		resp := AppointmentListResponse{Appointments: make([]AppointmentResponse, 0, len(list))}
		for i := range list {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func confirmAppointmentHandler(engine *booking.Engine, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := engine.Confirm(r.Context(), id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(engine *booking.Engine, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		// the body is optional
		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := engine.Cancel(r.Context(), id, strings.TrimSpace(req.Reason))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func createHoldHandler(holds *hold.Manager, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateHoldRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		h, err := holds.Acquire(r.Context(), slotID, strings.TrimSpace(req.PatientID))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toHoldResponse(h))
	}
}

func getHoldHandler(holds *hold.Manager, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_hold_id")
		if !ok {
			return
		}

		h, err := holds.Get(r.Context(), id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toHoldResponse(h))
	}
}

func releaseHoldHandler(holds *hold.Manager, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_hold_id")
		if !ok {
			return
		}

		if err := holds.Release(r.Context(), id); err != nil {
			handleError(w, r, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func extendHoldHandler(holds *hold.Manager, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_hold_id")
		if !ok {
			return
		}

		h, err := holds.Extend(r.Context(), id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toHoldResponse(h))
	}
}
