package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SlotState string

const (
	SlotFree   SlotState = "free"
	SlotHeld   SlotState = "held"
	SlotBooked SlotState = "booked"
)

func (s SlotState) Valid() bool {
	switch s {
	case SlotFree, SlotHeld, SlotBooked:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	StatusRequested AppointmentStatus = "requested"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// CanTransition reports whether an appointment may move from s to next.
// Cancelled is terminal.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	switch s {
	case StatusRequested:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	}
	return false
}

type AppointmentType string

const (
	TypeCheckup      AppointmentType = "checkup"
	TypeFollowUp     AppointmentType = "follow_up"
	TypeEmergency    AppointmentType = "emergency"
	TypeConsultation AppointmentType = "consultation"
	TypeSurgery      AppointmentType = "surgery"
	TypeLabResults   AppointmentType = "lab_results"
)

var appointmentTypes = map[string]AppointmentType{
	"checkup":         TypeCheckup,
	"regular checkup": TypeCheckup,
	"follow_up":       TypeFollowUp,
	"follow-up":       TypeFollowUp,
	"followup":        TypeFollowUp,
	"emergency":       TypeEmergency,
	"consultation":    TypeConsultation,
	"surgery":         TypeSurgery,
	"lab_results":     TypeLabResults,
	"lab results":     TypeLabResults,
}

// ParseAppointmentType accepts both the wire names and the labels shown on the
// booking form ("Regular Checkup", "Follow-up", "Lab Results").
func ParseAppointmentType(raw string) (AppointmentType, error) {
	t, ok := appointmentTypes[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: unknown appointment type %q", ErrValidation, raw)
	}
	return t, nil
}

// BreakInterval is a pause inside a shift, as offsets from local midnight.
type BreakInterval struct {
	Start time.Duration
	End   time.Duration
}

// ShiftTemplate describes a doctor's bookable day.
type ShiftTemplate struct {
	DayStart    time.Duration
	DayEnd      time.Duration
	Granularity time.Duration
	Breaks      []BreakInterval
	// Weekdays restricts generation to these days; empty means every day.
	Weekdays []time.Weekday
	// Location is an IANA zone name; empty uses the zone of the requested range.
	Location string
}

func (t ShiftTemplate) Validate() error {
	switch {
	case t.Granularity <= 0:
		return fmt.Errorf("%w: shift granularity must be positive", ErrValidation)
	case t.DayStart < 0 || t.DayEnd > 24*time.Hour || t.DayEnd <= t.DayStart:
		return fmt.Errorf("%w: shift window %s-%s is invalid", ErrValidation, t.DayStart, t.DayEnd)
	}
	for _, b := range t.Breaks {
		if b.End <= b.Start {
			return fmt.Errorf("%w: break %s-%s is invalid", ErrValidation, b.Start, b.End)
		}
	}
	return nil
}

func (t ShiftTemplate) worksOn(d time.Weekday) bool {
	if len(t.Weekdays) == 0 {
		return true
	}
	for _, w := range t.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// SlotWindow is one generated [Start, End) window.
type SlotWindow struct {
	Start time.Time
	End   time.Time
}

// Windows expands the template over every day touched by r and returns the
// windows that start inside r, ordered by start. Slots never straddle a break
// or the end of the shift; after a break the next slot starts at the break end.
func (t ShiftTemplate) Windows(r DateRange) ([]SlotWindow, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	loc := r.From.Location()
	if t.Location != "" {
		l, err := time.LoadLocation(t.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: shift location %q: %v", ErrValidation, t.Location, err)
		}
		loc = l
	}

	from := r.From.In(loc)
	to := r.To.In(loc)

	var out []SlotWindow
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	for day.Before(to) {
		if t.worksOn(day.Weekday()) {
			for _, w := range t.dayWindows(day) {
				if !w.Start.Before(from) && w.Start.Before(to) {
					out = append(out, w)
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

func (t ShiftTemplate) dayWindows(midnight time.Time) []SlotWindow {
	var out []SlotWindow
	cursor := t.DayStart
	for cursor+t.Granularity <= t.DayEnd {
		end := cursor + t.Granularity
		if b, hit := t.breakOverlapping(cursor, end); hit {
			cursor = b.End
			continue
		}
		w := SlotWindow{
			Start: wallClock(midnight, cursor),
			End:   wallClock(midnight, end),
		}
		cursor = end
		// clock offsets inside a DST gap collapse onto real instants; drop
		// windows that come out inverted or overlap the previous one
		if !w.End.After(w.Start) || (len(out) > 0 && w.Start.Before(out[len(out)-1].End)) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (t ShiftTemplate) breakOverlapping(start, end time.Duration) (BreakInterval, bool) {
	for _, b := range t.Breaks {
		if start < b.End && b.Start < end {
			return b, true
		}
	}
	return BreakInterval{}, false
}

// wallClock adds a clock offset to midnight without drifting across DST jumps.
func wallClock(midnight time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	s := int((offset % time.Minute) / time.Second)
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), h, m, s, 0, midnight.Location())
}

// DateRange is the half-open interval [From, To).
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: date range bounds are required", ErrValidation)
	}
	if !r.To.After(r.From) {
		return fmt.Errorf("%w: date range end must be after start", ErrValidation)
	}
	return nil
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Day returns the calendar day containing t in t's location.
func Day(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return DateRange{From: start, To: start.AddDate(0, 0, 1)}
}

// DoctorProfile is the read-only projection of a doctor the core works with.
type DoctorProfile struct {
	ID          string
	Specialties []string
	Shift       ShiftTemplate
	Rating      float64
}

func (d DoctorProfile) HasSpecialty(tags map[string]struct{}) bool {
	for _, s := range d.Specialties {
		if _, ok := tags[NormalizeTag(s)]; ok {
			return true
		}
	}
	return false
}

// NormalizeTag is the comparison form of a specialty or condition label.
func NormalizeTag(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

var slotNamespace = uuid.MustParse("5f1c6f0e-58d4-4f0b-9a53-3d1b5e3b2a10")

// SlotID derives the stable identifier of a doctor's slot starting at start.
// Generating the same window twice always yields the same id.
func SlotID(doctorID string, start time.Time) uuid.UUID {
	return uuid.NewSHA1(slotNamespace, []byte(fmt.Sprintf("%s|%d", doctorID, start.UTC().UnixNano())))
}

type TimeSlot struct {
	ID        uuid.UUID
	DoctorID  string
	Start     time.Time
	End       time.Time
	State     SlotState
	Owner     *uuid.UUID
	HeldUntil *time.Time
	Version   int64
}

// EffectiveState is the state callers should observe at now: a held slot
// whose hold has lapsed reads as free.
func (s TimeSlot) EffectiveState(now time.Time) SlotState {
	if s.State == SlotHeld && s.HeldUntil != nil && !now.Before(*s.HeldUntil) {
		return SlotFree
	}
	return s.State
}

// View returns a copy with the effective state applied.
func (s TimeSlot) View(now time.Time) TimeSlot {
	if s.EffectiveState(now) == SlotFree && s.State != SlotFree {
		s.State = SlotFree
		s.Owner = nil
		s.HeldUntil = nil
	}
	return s
}

// Transition is a compare-and-set request against one slot.
type Transition struct {
	SlotID uuid.UUID
	From   SlotState
	To     SlotState
	// ExpectOwner, when set, must equal the slot's current owner.
	ExpectOwner *uuid.UUID
	// Owner becomes the slot's owner; nil clears it.
	Owner     *uuid.UUID
	HeldUntil *time.Time
}

func (t Transition) Validate() error {
	if t.SlotID == uuid.Nil {
		return fmt.Errorf("%w: slot id is required", ErrValidation)
	}
	legal := map[SlotState][]SlotState{
		SlotFree:   {SlotHeld, SlotBooked},
		SlotHeld:   {SlotHeld, SlotBooked, SlotFree},
		SlotBooked: {SlotFree},
	}
	for _, to := range legal[t.From] {
		if to == t.To {
			if t.To != SlotFree && t.Owner == nil {
				return fmt.Errorf("%w: %s slot needs an owner", ErrValidation, t.To)
			}
			if t.To == SlotHeld && t.HeldUntil == nil {
				return fmt.Errorf("%w: held slot needs an expiry", ErrValidation)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: slot transition %s->%s is not allowed", ErrValidation, t.From, t.To)
}

// Check applies the compare half of the CAS to the stored slot at now.
// A held slot past its expiry matches From=free; its own hold may still
// release it (held->free with the matching owner) so sweeps can clean up.
func (t Transition) Check(s TimeSlot, now time.Time) error {
	if t.From == SlotHeld && t.To == SlotFree && s.State == SlotHeld && t.ExpectOwner != nil && ownerMatches(t.ExpectOwner, s.Owner) {
		return nil
	}
	if s.EffectiveState(now) != t.From {
		return fmt.Errorf("%w: slot %s is %s, expected %s", ErrStateConflict, s.ID, s.EffectiveState(now), t.From)
	}
	if t.ExpectOwner != nil && !ownerMatches(t.ExpectOwner, s.Owner) {
		return fmt.Errorf("%w: slot %s is owned by another reservation", ErrStateConflict, s.ID)
	}
	return nil
}

// Apply returns s after the transition.
func (t Transition) Apply(s TimeSlot) TimeSlot {
	s.State = t.To
	s.Owner = copyUUID(t.Owner)
	s.HeldUntil = nil
	if t.To == SlotHeld && t.HeldUntil != nil {
		until := *t.HeldUntil
		s.HeldUntil = &until
	}
	s.Version++
	return s
}

func ownerMatches(expect, actual *uuid.UUID) bool {
	if expect == nil {
		return true
	}
	return actual != nil && *expect == *actual
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

type Hold struct {
	ID        uuid.UUID
	SlotID    uuid.UUID
	DoctorID  string
	PatientID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (h Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

type Appointment struct {
	ID           uuid.UUID
	PatientID    string
	PatientName  string
	DoctorID     string
	SlotID       uuid.UUID
	Start        time.Time
	End          time.Time
	Type         AppointmentType
	Notes        string
	Status       AppointmentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CancelledAt  *time.Time
	CancelReason string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
