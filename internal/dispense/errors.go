package dispense

import "errors"

// Sentinel errors for dispense operations.
var (
	// ErrNoLines indicates a request with an empty drug list.
	ErrNoLines = errors.New("dispense: request has no drug lines")

	// ErrPatientRequired indicates a request without a patient name.
	ErrPatientRequired = errors.New("dispense: patient name is required")

	// ErrInvalidVolume indicates a line with a zero or negative volume.
	ErrInvalidVolume = errors.New("dispense: volume must be positive")
)

// Per-line failure reasons recorded in results and history. These are
// strings, not errors: a failed line is an outcome, not a failure of
// the request operation itself.
const (
	ReasonNoDevice  = "no connected dispenser for drug code"
	ReasonOverLimit = "volume exceeds dispenser limit"
	ReasonExhausted = "all attempts failed"
)
