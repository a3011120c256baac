package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling-core/internal/availability"
	"github.com/hackgods/clinic-scheduling-core/internal/calendar"
	"github.com/hackgods/clinic-scheduling-core/internal/records"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/internal/search"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

// freeSlotsHandler streams the doctor's free slots in range, stopping early
// once limit slots were collected.
func freeSlotsHandler(cal *calendar.Calendar, windowDays int, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "id")

		rng, err := parseRange(r, cal.Now(), windowDays)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		resp := FreeSlotsResponse{DoctorID: doctorID, From: rng.From, To: rng.To, Slots: []SlotResponse{}}
		for slot, err := range cal.ListFree(r.Context(), doctorID, rng) {
			if err != nil {
				handleError(w, r, logger, err)
				return
			}
			resp.Slots = append(resp.Slots, toSlotResponse(slot))
			if limit > 0 && len(resp.Slots) >= limit {
				break
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func availabilityHandler(svc *availability.Service, cal *calendar.Calendar, windowDays int, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		need := strings.TrimSpace(q.Get("need"))
		if need == "" {
			need = strings.TrimSpace(q.Get("specialty"))
		}

		rng, err := parseRange(r, cal.Now(), windowDays)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		page, err := svc.Query(r.Context(), availability.Query{Need: need, Range: rng, Limit: limit, Offset: offset})
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		resp := AvailabilityResponse{
			Need:        need,
			Specialties: page.Specialties,
			Results:     make([]CandidateResponse, 0, len(page.Results)),
			Total:       page.Total,
			NextOffset:  page.NextOffset,
		}
		for _, c := range page.Results {
			resp.Results = append(resp.Results, toCandidateResponse(c))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// searchHandler looks up ?kind=patients (default) or ?kind=doctors by ?q=,
// filtered by ?status= ("all" or a status name).
func searchHandler(dir *records.Directory, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		term := q.Get("q")
		filter := search.ParseStatusFilter(q.Get("status"))
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		resp := SearchResponse{Term: term, Status: filter.String()}
		switch kind := strings.ToLower(strings.TrimSpace(q.Get("kind"))); kind {
		case "", "patients", "patient":
			resp.Kind = "patients"
			resp.Patients = []PatientRecord{}
			for p := range dir.SearchPatients(term, filter) {
				resp.Patients = append(resp.Patients, toPatientRecord(p))
				if limit > 0 && len(resp.Patients) >= limit {
					break
				}
			}
		case "doctors", "doctor":
			resp.Kind = "doctors"
			resp.Doctors = []DoctorRecord{}
			for d := range dir.SearchDoctors(term, filter) {
				resp.Doctors = append(resp.Doctors, toDoctorRecord(d))
				if limit > 0 && len(resp.Doctors) >= limit {
					break
				}
			}
		default:
			handleError(w, r, logger, fmt.Errorf("%w: unknown search kind %q", scheduling.ErrValidation, kind))
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
