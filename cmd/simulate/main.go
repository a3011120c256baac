package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-scheduling-core/internal/api"
	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	HoldRatio    float64 // hold then book
	BookingRatio float64 // direct booking
	CancelRatio  float64
	ReadRatio    float64
	PatientLimit int
	SlotLimit    int
}

type slotRef struct {
	ID       uuid.UUID
	DoctorID string
}

// DataPool is the shared working set. Slots are deliberately few relative to
// workers so bookings contend for the same slots.
type DataPool struct {
	Patients     []string
	Slots        []slotRef
	Needs        []string
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type Metrics struct {
	HoldAndBook   OperationMetrics
	Booking       OperationMetrics
	Cancel        OperationMetrics
	Availability  OperationMetrics
	ListByPatient OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *logging.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger := logging.New(baseCfg.LogLevel).With("service", "simulate")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger.Info("simulator starting",
		"base_url", cfg.APIBaseURL,
		"duration", cfg.Duration,
		"workers", cfg.Workers,
		"hold", cfg.HoldRatio,
		"booking", cfg.BookingRatio,
		"cancel", cfg.CancelRatio,
		"read", cfg.ReadRatio,
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	sim.pool, err = sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	logger.Info("data pool loaded", "patients", len(sim.pool.Patients), "slots", len(sim.pool.Slots))

	if err := sim.Run(); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 16),
		HoldRatio:    getFloat("SIM_HOLD_RATIO", 0.3),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.3),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 500),
		SlotLimit:    getInt("SIM_SLOT_LIMIT", 8),
	}

	// Normalize ratios
	total := cfg.HoldRatio + cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.HoldRatio /= total
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if _, err := url.Parse(cfg.APIBaseURL); err != nil || cfg.APIBaseURL == "" {
		return fmt.Errorf("SIM_API_BASE_URL must be a valid URL")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.SlotLimit <= 0 {
		return fmt.Errorf("SIM_SLOT_LIMIT must be > 0")
	}
	return nil
}

// loadDataPool reads active patients and the first free slots of every
// available doctor through the API itself.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dp := &DataPool{Needs: []string{"regular checkup", "chest pain", "headache", "fracture", "rash"}}

	var patients api.SearchResponse
	q := url.Values{"kind": {"patients"}, "status": {"Active"}, "limit": {strconv.Itoa(s.config.PatientLimit)}}
	if err := s.getJSON(ctx, "/search?"+q.Encode(), &patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for _, p := range patients.Patients {
		dp.Patients = append(dp.Patients, p.ID)
	}

	var doctors api.SearchResponse
	q = url.Values{"kind": {"doctors"}, "status": {"Available"}}
	if err := s.getJSON(ctx, "/search?"+q.Encode(), &doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for _, d := range doctors.Doctors {
		if len(dp.Slots) >= s.config.SlotLimit {
			break
		}
		var free api.FreeSlotsResponse
		path := fmt.Sprintf("/doctors/%s/slots/free?limit=%d", url.PathEscape(d.ID), s.config.SlotLimit-len(dp.Slots))
		if err := s.getJSON(ctx, path, &free); err != nil {
			return nil, fmt.Errorf("load slots for %s: %w", d.ID, err)
		}
		for _, slot := range free.Slots {
			dp.Slots = append(dp.Slots, slotRef{ID: slot.ID, DoctorID: slot.DoctorID})
		}
	}

	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dp.Slots) == 0 {
		return nil, fmt.Errorf("no slots loaded")
	}
	return dp, nil
}

func (s *Simulator) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", "duration", s.config.Duration, "workers", s.config.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		g.Go(func() error {
			s.worker(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("simulation complete")
	return nil
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.HoldRatio:
			s.doHoldAndBook(ctx, rng)
		case r < s.config.HoldRatio+s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.HoldRatio+s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			if rng.Intn(2) == 0 {
				s.doAvailability(ctx, rng)
			} else {
				s.doListByPatient(ctx, rng)
			}
		}
	}
}

func (s *Simulator) pick(rng *rand.Rand) (slotRef, string) {
	return s.pool.Slots[rng.Intn(len(s.pool.Slots))], s.pool.Patients[rng.Intn(len(s.pool.Patients))]
}

func (s *Simulator) book(ctx context.Context, slot slotRef, patientID string, holdID *string) (int, error) {
	body := api.CreateAppointmentRequest{
		PatientID:   patientID,
		PatientName: "Simulated " + patientID,
		DoctorID:    slot.DoctorID,
		SlotID:      slot.ID.String(),
		Type:        "checkup",
		HoldID:      holdID,
	}
	var appt api.AppointmentResponse
	status, err := s.postJSON(ctx, "/appointments", body, &appt)
	if err == nil && status == http.StatusCreated {
		s.pool.AddAppointment(appt.ID)
	}
	return status, err
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot, patientID := s.pick(rng)

	start := time.Now()
	status, err := s.book(ctx, slot, patientID, nil)
	s.metrics.Booking.Record(time.Since(start), err == nil && status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doHoldAndBook(ctx context.Context, rng *rand.Rand) {
	slot, patientID := s.pick(rng)

	start := time.Now()
	var h api.HoldResponse
	status, err := s.postJSON(ctx, "/holds", api.CreateHoldRequest{SlotID: slot.ID.String(), PatientID: patientID}, &h)
	if err != nil || status != http.StatusCreated {
		s.metrics.HoldAndBook.Record(time.Since(start), false, status == http.StatusConflict)
		return
	}

	holdID := h.ID.String()
	status, err = s.book(ctx, slot, patientID, &holdID)
	s.metrics.HoldAndBook.Record(time.Since(start), err == nil && status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.postJSON(ctx, "/appointments/"+apptID.String()+"/cancel", api.CancelAppointmentRequest{Reason: "simulated"}, nil)
	s.metrics.Cancel.Record(time.Since(start), err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	need := s.pool.Needs[rng.Intn(len(s.pool.Needs))]

	start := time.Now()
	err := s.getJSON(ctx, "/availability?"+url.Values{"need": {need}, "limit": {"5"}}.Encode(), nil)
	s.metrics.Availability.Record(time.Since(start), err == nil, false)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	_, patientID := s.pick(rng)

	start := time.Now()
	err := s.getJSON(ctx, "/appointments?"+url.Values{"patient_id": {patientID}, "limit": {"20"}}.Encode(), nil)
	s.metrics.ListByPatient.Record(time.Since(start), err == nil, false)
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
