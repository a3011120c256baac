package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

type DoctorStatus string

const (
	DoctorAvailable DoctorStatus = "Available"
	DoctorBusy      DoctorStatus = "Busy"
)

type PatientStatus string

const (
	PatientActive   PatientStatus = "Active"
	PatientInactive PatientStatus = "Inactive"
)

type Doctor struct {
	ID          string
	Name        string
	Email       *string
	Specialties []string
	Shift       scheduling.ShiftTemplate
	Rating      float64
	Status      DoctorStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (d Doctor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: doctor id is required", scheduling.ErrValidation)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: doctor name is required", scheduling.ErrValidation)
	}
	if d.Rating < 0 || d.Rating > 5 {
		return fmt.Errorf("%w: rating %.1f out of range 0-5", scheduling.ErrValidation, d.Rating)
	}
	return d.Shift.Validate()
}

// Profile is the read-only projection the scheduling core works with.
func (d Doctor) Profile() scheduling.DoctorProfile {
	return scheduling.DoctorProfile{
		ID:          d.ID,
		Specialties: append([]string(nil), d.Specialties...),
		Shift:       d.Shift,
		Rating:      d.Rating,
	}
}

type Patient struct {
	ID        string
	Name      string
	Email     *string
	Status    PatientStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Patient) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: patient id is required", scheduling.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: patient name is required", scheduling.ErrValidation)
	}
	return nil
}

// ClinicShift is the default working day: 09:00-17:00 in 30 minute slots with
// a lunch break at noon.
func ClinicShift() scheduling.ShiftTemplate {
	return scheduling.ShiftTemplate{
		DayStart:    9 * time.Hour,
		DayEnd:      17 * time.Hour,
		Granularity: 30 * time.Minute,
		Breaks:      []scheduling.BreakInterval{{Start: 12 * time.Hour, End: 13 * time.Hour}},
	}
}
