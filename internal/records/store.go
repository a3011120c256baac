package records

import (
	"context"
	"sync"
	"time"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

// Store is the doctor and patient record store. The scheduling core only
// reads from it; Save* exist for seeding and administration.
type Store interface {
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
	PatientExists(ctx context.Context, id string) (bool, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	SaveDoctor(ctx context.Context, d Doctor) error
	SavePatient(ctx context.Context, p Patient) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	doctors  map[string]Doctor
	patients map[string]Patient
	// insertion order, so listings are stable
	doctorOrder  []string
	patientOrder []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:  make(map[string]Doctor),
		patients: make(map[string]Patient),
	}
}

// NewSeededMemoryStore returns a store holding the clinic's demo roster.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, d := range seedDoctors() {
		_ = s.SaveDoctor(ctx, d)
	}
	for _, p := range seedPatients() {
		_ = s.SavePatient(ctx, p)
	}
	return s
}

func (s *MemoryStore) GetDoctor(_ context.Context, id string) (*Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.doctors[id]
	if !ok {
		return nil, scheduling.ErrDoctorNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListDoctors(_ context.Context) ([]Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Doctor, 0, len(s.doctorOrder))
	for _, id := range s.doctorOrder {
		out = append(out, s.doctors[id])
	}
	return out, nil
}

func (s *MemoryStore) GetPatient(_ context.Context, id string) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patients[id]
	if !ok {
		return nil, scheduling.ErrPatientNotFound
	}
	return &p, nil
}

func (s *MemoryStore) PatientExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.patients[id]
	return ok, nil
}

func (s *MemoryStore) ListPatients(_ context.Context) ([]Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Patient, 0, len(s.patientOrder))
	for _, id := range s.patientOrder {
		out = append(out, s.patients[id])
	}
	return out, nil
}

func (s *MemoryStore) SaveDoctor(_ context.Context, d Doctor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if prev, ok := s.doctors[d.ID]; ok {
		d.CreatedAt = prev.CreatedAt
	} else {
		d.CreatedAt = now
		s.doctorOrder = append(s.doctorOrder, d.ID)
	}
	d.UpdatedAt = now
	s.doctors[d.ID] = d
	return nil
}

func (s *MemoryStore) SavePatient(_ context.Context, p Patient) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if prev, ok := s.patients[p.ID]; ok {
		p.CreatedAt = prev.CreatedAt
	} else {
		p.CreatedAt = now
		s.patientOrder = append(s.patientOrder, p.ID)
	}
	p.UpdatedAt = now
	s.patients[p.ID] = p
	return nil
}

// RemoveDoctor drops a doctor. Slots already generated stay in the calendar
// but bookings against them fail with ErrDoctorNotFound.
func (s *MemoryStore) RemoveDoctor(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doctors[id]; !ok {
		return
	}
	delete(s.doctors, id)
	for i, v := range s.doctorOrder {
		if v == id {
			s.doctorOrder = append(s.doctorOrder[:i], s.doctorOrder[i+1:]...)
			break
		}
	}
}

func strPtr(s string) *string { return &s }

func seedDoctors() []Doctor {
	return []Doctor{
		{ID: "D001", Name: "Dr. Sarah Johnson", Email: strPtr("sarah.johnson@hospital.com"), Specialties: []string{"Cardiology"}, Rating: 4.9, Status: DoctorAvailable, Shift: ClinicShift()},
		{ID: "D002", Name: "Dr. Michael Chen", Email: strPtr("michael.chen@hospital.com"), Specialties: []string{"Neurology"}, Rating: 4.8, Status: DoctorBusy, Shift: ClinicShift()},
		{ID: "D003", Name: "Dr. Emily Rodriguez", Email: strPtr("emily.rodriguez@hospital.com"), Specialties: []string{"Pediatrics"}, Rating: 4.9, Status: DoctorAvailable, Shift: ClinicShift()},
		{ID: "D004", Name: "Dr. James Wilson", Specialties: []string{"Orthopedics"}, Rating: 4.7, Status: DoctorAvailable, Shift: ClinicShift()},
	}
}

func seedPatients() []Patient {
	return []Patient{
		{ID: "P001", Name: "John Smith", Email: strPtr("john.smith@email.com"), Status: PatientActive},
		{ID: "P002", Name: "Mary Johnson", Email: strPtr("mary.johnson@email.com"), Status: PatientActive},
		{ID: "P003", Name: "Robert Davis", Email: strPtr("robert.davis@email.com"), Status: PatientInactive},
	}
}
