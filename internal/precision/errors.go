package precision

import "errors"

// Tracker errors.
var (
	// ErrUnknownElement is returned when a handle is not (or no longer) tracked.
	ErrUnknownElement = errors.New("element is not tracked")

	// ErrInvalidMode is returned for a differential mode the tracker does not know.
	ErrInvalidMode = errors.New("differential mode must be linear_combination or values")

	// ErrPrimeMismatch is returned when a coefficient is tagged with another prime.
	ErrPrimeMismatch = errors.New("coefficient prime does not match tracker prime")
)
