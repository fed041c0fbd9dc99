package precision

import (
	"fmt"

	"padiclattice/internal/exact"
)

// Handle identifies an element tracked by a Tracker. Handles are never reused
// within a tracker.
type Handle uint64

// Mode selects how a Differential is interpreted.
type Mode int

const (
	// LinearCombination: the new element's differential is the sum of the
	// terms' coefficients times the differentials of the referenced elements.
	LinearCombination Mode = iota
	// Values: each term gives directly the entry of the new column on the
	// generator owned by the referenced element.
	Values
)

func (m Mode) String() string {
	switch m {
	case LinearCombination:
		return "linear_combination"
	case Values:
		return "values"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Term is one (element, coefficient) pair of a differential.
type Term struct {
	Of    Handle
	Coeff exact.Value
}

// Differential describes, to first order, how a new value depends on
// elements already declared to the tracker.
type Differential struct {
	Mode  Mode
	Terms []Term
}

// Combination returns a LinearCombination differential over terms.
func Combination(terms ...Term) Differential {
	return Differential{Mode: LinearCombination, Terms: terms}
}

// IsEmpty reports whether the differential has no terms, i.e. the new element
// is independent of everything tracked so far.
func (d Differential) IsEmpty() bool {
	return len(d.Terms) == 0
}
