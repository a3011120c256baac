package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// errorCodes is checked in order; wrapped conflict errors must come before
// ErrStateConflict.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{scheduling.ErrValidation, http.StatusBadRequest, "validation_error"},
	{scheduling.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
	{scheduling.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
	{scheduling.ErrSlotNotFound, http.StatusNotFound, "slot_not_found"},
	{scheduling.ErrHoldInvalid, http.StatusNotFound, "hold_invalid"},
	{scheduling.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{scheduling.ErrSlotAlreadyBooked, http.StatusConflict, "slot_already_booked"},
	{scheduling.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{scheduling.ErrHoldExpired, http.StatusConflict, "hold_expired"},
	{scheduling.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{scheduling.ErrStateConflict, http.StatusConflict, "state_conflict"},
}

func handleError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.code, err.Error())
			return
		}
	}
	logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", GetRequestID(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// parseTime accepts RFC 3339 timestamps or plain dates. A plain date used as
// an end bound covers that whole day.
func parseTime(raw string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date or RFC 3339 timestamp", scheduling.ErrValidation, raw)
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

// parseRange reads from/to query parameters. Missing bounds default to today
// and windowDays after from.
func parseRange(r *http.Request, now time.Time, windowDays int) (scheduling.DateRange, error) {
	q := r.URL.Query()
	rng := scheduling.DateRange{From: scheduling.Day(now).From}

	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := parseTime(raw, false)
		if err != nil {
			return rng, err
		}
		rng.From = from
	}
	rng.To = rng.From.AddDate(0, 0, max(windowDays, 1))
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, err := parseTime(raw, true)
		if err != nil {
			return rng, err
		}
		rng.To = to
	}
	return rng, rng.Validate()
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", scheduling.ErrValidation, key)
	}
	return n, nil
}
