package padic

import (
	"fmt"

	"padiclattice/internal/exact"
	"padiclattice/internal/precision"
)

// Policy decides how a new element is declared to its tracker and where its
// stored value may be truncated.
type Policy interface {
	// Name is the short policy name used in domain descriptions ("cap", "float").
	Name() string

	// Declare registers a value with differential dx and explicit precision
	// prec (exact.Infinity when none was requested) and returns its handle and
	// the precision at which the value can be truncated safely.
	Declare(d *Domain, value exact.Value, dx precision.Differential, prec int) (precision.Handle, int, error)

	// IsExactZero reports whether e is known to be exactly zero.
	IsExactZero(e *Element) bool

	// Kind is the shape of precision object the policy needs.
	Kind() precision.Kind
}

var (
	// Capped bounds every element by the domain's absolute and relative caps.
	Capped Policy = cappedPolicy{}
	// Floating bounds elements by the tracker's internal working precision.
	Floating Policy = floatingPolicy{}
)

// ParsePolicy maps a configuration name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "capped", "cap":
		return Capped, nil
	case "floating", "float":
		return Floating, nil
	}
	return nil, fmt.Errorf("unknown precision policy %q", name)
}

type cappedPolicy struct{}

func (cappedPolicy) Name() string { return "cap" }

func (cappedPolicy) Kind() precision.Kind { return precision.Lattice }

func (cappedPolicy) Declare(d *Domain, value exact.Value, dx precision.Differential, prec int) (precision.Handle, int, error) {
	limit := min(d.AbsoluteCap(), exact.AddPrec(d.RelativeCap(), value.Valuation()))
	capped := false
	if prec > limit {
		prec = limit
		capped = true
	}
	h, err := d.Tracker().Register(dx, prec, capped)
	if err != nil {
		return 0, 0, err
	}
	return h, prec, nil
}

// Zeros are never exact in a capped lattice: every element owns a generator.
func (cappedPolicy) IsExactZero(*Element) bool { return false }

type floatingPolicy struct{}

func (floatingPolicy) Name() string { return "float" }

func (floatingPolicy) Kind() precision.Kind { return precision.Module }

func (floatingPolicy) Declare(d *Domain, value exact.Value, dx precision.Differential, prec int) (precision.Handle, int, error) {
	h, err := d.Tracker().Register(dx, prec, false)
	if err != nil {
		return 0, 0, err
	}
	trunc := exact.AddPrec(d.Tracker().InternalPrecision(), value.Valuation())
	return h, min(trunc, prec), nil
}

func (floatingPolicy) IsExactZero(e *Element) bool {
	return e.value.IsZero() && e.dom.tracker.AbsolutePrecision(e.handle) == exact.Infinity
}
