package records

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/hackgods/clinic-scheduling-core/internal/observability/metrics"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/internal/search"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

// Directory fronts the record store for the scheduling core. Doctor lookups
// always go to the store; the search indexes are loaded by Reload and kept
// current by the Save methods.
type Directory struct {
	store   Store
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics

	doctors  *search.Index[Doctor]
	patients *search.Index[Patient]
}

func NewDirectory(store Store, logger *logging.Logger, m *metrics.SchedulingMetrics) *Directory {
	if store == nil {
		panic("records: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Directory{
		store:   store,
		logger:  logger,
		metrics: m,
		doctors: search.New(search.Accessors[Doctor]{
			Key: func(d Doctor) string { return d.ID },
			Fields: func(d Doctor) []string {
				return append([]string{d.ID, d.Name}, d.Specialties...)
			},
			Status: func(d Doctor) string { return string(d.Status) },
		}),
		patients: search.New(search.Accessors[Patient]{
			Key:    func(p Patient) string { return p.ID },
			Fields: func(p Patient) []string { return []string{p.ID, p.Name} },
			Status: func(p Patient) string { return string(p.Status) },
		}),
	}
}

// Reload rebuilds both search indexes from the store.
func (d *Directory) Reload(ctx context.Context) error {
	doctors, err := d.store.ListDoctors(ctx)
	if err != nil {
		return fmt.Errorf("list doctors: %w", err)
	}
	patients, err := d.store.ListPatients(ctx)
	if err != nil {
		return fmt.Errorf("list patients: %w", err)
	}
	d.doctors.Replace(doctors)
	d.patients.Replace(patients)
	d.logger.Info("record indexes loaded", "doctors", len(doctors), "patients", len(patients))
	return nil
}

func (d *Directory) DoctorProfile(ctx context.Context, id string) (*scheduling.DoctorProfile, error) {
	doc, err := d.store.GetDoctor(ctx, id)
	if err != nil {
		if errors.Is(err, scheduling.ErrDoctorNotFound) {
			return nil, fmt.Errorf("doctor %s: %w", id, err)
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	p := doc.Profile()
	return &p, nil
}

func (d *Directory) ListProfiles(ctx context.Context) ([]scheduling.DoctorProfile, error) {
	doctors, err := d.store.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	out := make([]scheduling.DoctorProfile, 0, len(doctors))
	for _, doc := range doctors {
		out = append(out, doc.Profile())
	}
	return out, nil
}

// Specialties returns every specialty tag on file, in normalised form.
func (d *Directory) Specialties(ctx context.Context) (map[string]struct{}, error) {
	doctors, err := d.store.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	out := make(map[string]struct{})
	for _, doc := range doctors {
		for _, s := range doc.Specialties {
			out[scheduling.NormalizeTag(s)] = struct{}{}
		}
	}
	return out, nil
}

func (d *Directory) PatientExists(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	return d.store.PatientExists(ctx, id)
}

func (d *Directory) SaveDoctor(ctx context.Context, doc Doctor) error {
	if err := d.store.SaveDoctor(ctx, doc); err != nil {
		return err
	}
	d.doctors.Upsert(doc)
	return nil
}

func (d *Directory) SavePatient(ctx context.Context, p Patient) error {
	if err := d.store.SavePatient(ctx, p); err != nil {
		return err
	}
	d.patients.Upsert(p)
	return nil
}

func (d *Directory) SearchDoctors(term string, filter search.StatusFilter) iter.Seq[Doctor] {
	d.metrics.ObserveSearch("doctors")
	return d.doctors.Search(term, filter)
}

func (d *Directory) SearchPatients(term string, filter search.StatusFilter) iter.Seq[Patient] {
	d.metrics.ObserveSearch("patients")
	return d.patients.Search(term, filter)
}
