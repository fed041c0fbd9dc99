package padic

import (
	"fmt"
	"math"

	"padiclattice/internal/exact"
	"padiclattice/internal/precision"
)

// commonDomain returns the domain a binary operation on a and b lives in.
// Mixing a ring with its own fraction field yields the field.
func commonDomain(a, b *Element) (*Domain, error) {
	switch {
	case a.dom == b.dom:
		return a.dom, nil
	case a.dom.sibling == b.dom:
		return a.dom.FractionField(), nil
	}
	return nil, fmt.Errorf("%w: %s and %s", ErrDomainMismatch, a.dom, b.dom)
}

func term(e *Element, c exact.Value) precision.Term {
	return precision.Term{Of: e.handle, Coeff: c}
}

func (e *Element) one() exact.Value {
	return exact.FromInt(e.dom.prime, 1)
}

// Equal reports whether e - o is indistinguishable from zero.
func (e *Element) Equal(o *Element) (bool, error) {
	diff, err := e.Sub(o)
	if err != nil {
		return false, err
	}
	defer diff.Release()
	return diff.IsZero(), nil
}

// Cmp returns 0 when e and o are equal at the available precision and
// otherwise compares their lifts as rationals.
func (e *Element) Cmp(o *Element) (int, error) {
	eq, err := e.Equal(o)
	if err != nil {
		return 0, err
	}
	if eq {
		return 0, nil
	}
	return e.value.Cmp(o.value), nil
}

// Add returns e + o.
func (e *Element) Add(o *Element) (*Element, error) {
	return e.addSub(o, false)
}

// Sub returns e - o.
func (e *Element) Sub(o *Element) (*Element, error) {
	return e.addSub(o, true)
}

func (e *Element) addSub(o *Element, sub bool) (*Element, error) {
	defer keepAlive(e, o)
	d, err := commonDomain(e, o)
	if err != nil {
		return nil, err
	}
	sign := e.one()
	x := e.value.Add(o.value)
	if sub {
		sign = sign.Neg()
		x = e.value.Sub(o.value)
	}
	x = d.collapse(x, e.value, o.value)
	dx := precision.Combination(term(e, e.one()), term(o, sign))
	return newElement(d, x, exact.Infinity, dx, true)
}

// Neg returns -e.
func (e *Element) Neg() (*Element, error) {
	defer keepAlive(e)
	dx := precision.Combination(term(e, e.one().Neg()))
	return newElement(e.dom, e.value.Neg(), exact.Infinity, dx, true)
}

// Mul returns e * o. The differential follows the product rule.
func (e *Element) Mul(o *Element) (*Element, error) {
	defer keepAlive(e, o)
	d, err := commonDomain(e, o)
	if err != nil {
		return nil, err
	}
	dx := precision.Combination(term(e, o.value), term(o, e.value))
	return newElement(d, e.value.Mul(o.value), exact.Infinity, dx, true)
}

// Div returns e / o in the fraction field, even when o is a unit.
func (e *Element) Div(o *Element) (*Element, error) {
	defer keepAlive(e, o)
	d, err := commonDomain(e, o)
	if err != nil {
		return nil, err
	}
	if o.IsZero() {
		return nil, ErrDivisionByIndistinguishableZero
	}
	a, b := e.value, o.value
	// d(a/b) = da/b - a db/b^2
	dx := precision.Combination(
		term(e, e.one().Quo(b)),
		term(o, a.Neg().Quo(b.Mul(b))),
	)
	return newElement(d.FractionField(), a.Quo(b), exact.Infinity, dx, true)
}

// Invert returns 1/e in the fraction field.
func (e *Element) Invert() (*Element, error) {
	defer keepAlive(e)
	if e.IsZero() {
		return nil, ErrInversionOfIndistinguishableZero
	}
	a := e.value
	dx := precision.Combination(term(e, e.one().Neg().Quo(a.Mul(a))))
	return newElement(e.dom.FractionField(), e.one().Quo(a), exact.Infinity, dx, true)
}

// Pow returns e^n. Negative exponents go through Invert.
func (e *Element) Pow(n int) (*Element, error) {
	if n == math.MinInt {
		return nil, fmt.Errorf("%w: %d", ErrExponentOutOfRange, n)
	}
	if n < 0 {
		inv, err := e.Invert()
		if err != nil {
			return nil, err
		}
		defer inv.Release()
		return inv.Pow(-n)
	}
	if n == 0 {
		return e.dom.Int(1)
	}
	var acc *Element
	base := e
	for {
		if n&1 == 1 {
			if acc == nil {
				acc = base
			} else {
				next, err := acc.Mul(base)
				if err != nil {
					return nil, err
				}
				acc = next
			}
		}
		n >>= 1
		if n == 0 {
			break
		}
		sq, err := base.Mul(base)
		if err != nil {
			return nil, err
		}
		base = sq
	}
	if acc == e {
		return e.Copy()
	}
	return acc, nil
}
