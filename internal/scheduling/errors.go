package scheduling

import "errors"

var (
	ErrValidation = errors.New("validation failed")

	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrHoldInvalid         = errors.New("hold is invalid")
	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrStateConflict           = errors.New("slot state conflict")
	ErrSlotAlreadyBooked       = errors.New("slot already booked")
	ErrSlotUnavailable         = errors.New("slot is not available")
	ErrHoldExpired             = errors.New("hold has expired")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// Kind groups errors by what the caller has to do about them.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

var kinds = []struct {
	kind Kind
	errs []error
}{
	// conflict first: ErrSlotAlreadyBooked wraps ErrStateConflict, nothing in
	// the conflict family wraps a not-found.
	{KindConflict, []error{ErrStateConflict, ErrSlotAlreadyBooked, ErrSlotUnavailable, ErrHoldExpired, ErrInvalidStatusTransition}},
	{KindNotFound, []error{ErrDoctorNotFound, ErrPatientNotFound, ErrSlotNotFound, ErrHoldInvalid, ErrAppointmentNotFound}},
	{KindValidation, []error{ErrValidation}},
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindInternal
}
