package availability

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-scheduling-core/internal/observability/metrics"
	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
	"github.com/hackgods/clinic-scheduling-core/pkg/logging"
)

var availabilityTracer = otel.Tracer("clinic.internal.availability")

const defaultConcurrency = 8

// Profiles lists the doctors that can be ranked and the normalised
// specialty tags they cover. *records.Directory satisfies it.
type Profiles interface {
	ListProfiles(ctx context.Context) ([]scheduling.DoctorProfile, error)
	Specialties(ctx context.Context) (map[string]struct{}, error)
}

// Slots finds a doctor's earliest free slot. *calendar.Calendar satisfies it.
type Slots interface {
	NextFree(ctx context.Context, doctorID string, r scheduling.DateRange) (*scheduling.TimeSlot, error)
}

type Query struct {
	// Need is a condition ("chest pain") or a specialty ("Cardiology").
	Need  string
	Range scheduling.DateRange
	// Limit <= 0 returns every match.
	Limit  int
	Offset int
}

// Candidate is one ranked doctor. NextSlot is nil when the doctor has no
// free slot in range (NoAvailability).
type Candidate struct {
	DoctorID    string
	Specialties []string
	Rating      float64
	NextSlot    *scheduling.TimeSlot
}

func (c Candidate) Available() bool {
	return c.NextSlot != nil
}

type Page struct {
	Results []Candidate
	// Specialties is the tag set the need resolved to.
	Specialties []string
	Total       int
	// NextOffset is set when more results follow this page.
	NextOffset *int
}

type Service struct {
	profiles    Profiles
	slots       Slots
	table       *ConditionTable
	logger      *logging.Logger
	metrics     *metrics.SchedulingMetrics
	concurrency int
}

type Option func(*Service)

func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(profiles Profiles, slots Slots, table *ConditionTable, logger *logging.Logger, opts ...Option) *Service {
	if profiles == nil || slots == nil {
		panic("availability: profiles and slots required")
	}
	if table == nil {
		table = DefaultConditionTable()
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		profiles:    profiles,
		slots:       slots,
		table:       table,
		logger:      logger,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query ranks the doctors matching q.Need: doctors with a free slot first,
// then rating descending, earliest slot, and doctor id as the final
// tie-break.
func (s *Service) Query(ctx context.Context, q Query) (*Page, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.query")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.need", q.Need))

	started := time.Now()
	page, err := s.query(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveQueryLatency(string(scheduling.KindOf(err)), time.Since(started).Seconds())
		return nil, err
	}
	span.SetAttributes(attribute.Int("clinic.candidates", page.Total))
	s.metrics.ObserveQueryLatency("ok", time.Since(started).Seconds())
	return page, nil
}

func (s *Service) query(ctx context.Context, q Query) (*Page, error) {
	if strings.TrimSpace(q.Need) == "" {
		return nil, fmt.Errorf("%w: condition or specialty is required", scheduling.ErrValidation)
	}
	if err := q.Range.Validate(); err != nil {
		return nil, err
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", scheduling.ErrValidation)
	}

	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	known, err := s.profiles.Specialties(ctx)
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	wanted := s.table.Resolve(q.Need, known)

	var matched []scheduling.DoctorProfile
	for _, p := range profiles {
		if p.HasSpecialty(wanted) {
			matched = append(matched, p)
		}
	}

	candidates, err := s.earliestSlots(ctx, matched, q.Range)
	if err != nil {
		return nil, err
	}
	Rank(candidates)

	page := &Page{
		Specialties: sortedKeys(wanted),
		Total:       len(candidates),
	}
	start := min(q.Offset, len(candidates))
	end := len(candidates)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
		next := end
		page.NextOffset = &next
	}
	page.Results = candidates[start:end]

	s.logger.Debug("availability query",
		"need", q.Need,
		"specialties", page.Specialties,
		"matched", len(candidates),
		"returned", len(page.Results),
	)
	return page, nil
}

// earliestSlots looks up every doctor's next free slot with bounded
// parallelism. Doctors removed from the record store mid-query are dropped.
func (s *Service) earliestSlots(ctx context.Context, profiles []scheduling.DoctorProfile, r scheduling.DateRange) ([]Candidate, error) {
	results := make([]*Candidate, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range profiles {
		g.Go(func() error {
			slot, err := s.slots.NextFree(gctx, p.ID, r)
			if errors.Is(err, scheduling.ErrDoctorNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("next free slot for %s: %w", p.ID, err)
			}
			results[i] = &Candidate{
				DoctorID:    p.ID,
				Specialties: p.Specialties,
				Rating:      p.Rating,
				NextSlot:    slot,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

// Rank sorts candidates in place into their deterministic result order.
func Rank(candidates []Candidate) {
	slices.SortFunc(candidates, func(a, b Candidate) int {
		if a.Available() != b.Available() {
			if a.Available() {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
			return c
		}
		if a.Available() {
			if c := a.NextSlot.Start.Compare(b.NextSlot.Start); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.DoctorID, b.DoctorID)
	})
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
