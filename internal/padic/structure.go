package padic

import (
	"fmt"

	"padiclattice/internal/exact"
	"padiclattice/internal/precision"
)

// ShiftLeft multiplies e by p^n. In a ring a negative n drops the digits that
// would get a negative exponent; if the whole precision is shifted out the
// result is zero at precision 0. Fields never truncate.
func (e *Element) ShiftLeft(n int) (*Element, error) {
	defer keepAlive(e)
	d := e.dom
	if !d.field && exact.AddPrec(e.AbsolutePrecision(), n) < 0 {
		return newElement(d, d.zero(), 0, precision.Differential{}, true)
	}
	x := e.value.Shift(n)
	if !d.field {
		x = x.Sub(x.Reduce(0))
	}
	dx := precision.Combination(term(e, exact.PowerOf(d.prime, n)))
	return newElement(d, x, exact.Infinity, dx, true)
}

// ShiftRight divides e by p^n; see ShiftLeft.
func (e *Element) ShiftRight(n int) (*Element, error) {
	return e.ShiftLeft(-n)
}

// AddBigOh returns e with absolute precision lowered to prec. Precision never
// increases: a prec above the current one leaves it unchanged.
func (e *Element) AddBigOh(prec int) (*Element, error) {
	defer keepAlive(e)
	dx := precision.Combination(term(e, e.one()))
	return newElement(e.dom, e.value, prec, dx, true)
}

// LiftToPrecision returns an element congruent to e with absolute precision
// prec (exact.Infinity lifts to the domain cap). The result is independent:
// diffused digits e shared with other elements are not carried over.
func (e *Element) LiftToPrecision(prec int) (*Element, error) {
	return newElement(e.dom, e.value, prec, precision.Differential{}, true)
}

// LiftToPrecisionInferred lifts a copy of e to prec by shrinking the
// precision lattice itself, keeping its correlations. This is a global side
// effect: the certified precision of other elements sharing the tracker may
// increase, e.g. lifting u = x + y also sharpens y.
func (e *Element) LiftToPrecisionInferred(prec int) (*Element, error) {
	d := e.dom
	limit := min(d.absCap, exact.AddPrec(d.relCap, e.value.Valuation()))
	prec = min(prec, limit)
	lift, err := e.Copy()
	if err != nil {
		return nil, err
	}
	if prec == exact.Infinity {
		return lift, nil
	}
	if err := d.tracker.LiftToPrecision(lift.handle, prec); err != nil {
		lift.Release()
		return nil, fmt.Errorf("lift to precision %d: %w", prec, err)
	}
	return lift, nil
}

// UnitPart returns u where e = p^v u and u is a unit.
func (e *Element) UnitPart() (*Element, error) {
	v, err := e.SecureValuation()
	if err != nil {
		return nil, err
	}
	return e.ShiftRight(v)
}

// ValUnit returns (v, u) where e = p^v u and u is a unit.
func (e *Element) ValUnit() (int, *Element, error) {
	v, err := e.SecureValuation()
	if err != nil {
		return 0, nil, err
	}
	u, err := e.ShiftRight(v)
	if err != nil {
		return 0, nil, err
	}
	return v, u, nil
}

// Copy returns an alias of e: the tracker knows the two are equal, so
// their difference is zero at full precision.
func (e *Element) Copy() (*Element, error) {
	return e.CopyTo(e.dom)
}

// CopyTo converts e into d, which must share e's tracker (for instance the
// fraction field of e's ring). Precision stays sharp.
func (e *Element) CopyTo(d *Domain) (*Element, error) {
	defer keepAlive(e)
	if d.tracker != e.dom.tracker {
		return nil, fmt.Errorf("%w: %s", ErrIncompatibleDomain, d)
	}
	if !d.field && e.Valuation() < 0 {
		return nil, ErrNegativeValuationCoercion
	}
	dx := precision.Combination(term(e, e.one()))
	return newElement(d, e.value, exact.Infinity, dx, true)
}
