package padic

import (
	"fmt"

	"padiclattice/internal/exact"
	"padiclattice/internal/precision"
)

// Tracker is the precision object elements declare themselves to.
// *precision.Tracker is the implementation used by Context.
type Tracker interface {
	Register(dx precision.Differential, bigoh int, capped bool) (precision.Handle, error)
	AbsolutePrecision(h precision.Handle) int
	IsPrecisionCapped(h precision.Handle) bool
	InternalPrecision() int
	LiftToPrecision(h precision.Handle, prec int) error
	Release(h precision.Handle)
	DeleteElements() int
	TrackedElements() []precision.Handle
}

// Domain is a p-adic ring or field with lattice precision. A ring and its
// fraction field are created together and share one tracker.
type Domain struct {
	prime   int64
	field   bool
	policy  Policy
	relCap  int
	absCap  int
	zeroCap int
	label   string
	tracker Tracker

	// sibling is the fraction field of a ring, or the integer ring of a field.
	sibling *Domain
}

// Prime returns p.
func (d *Domain) Prime() int64 { return d.prime }

// IsField reports whether d is a field (Q_p) rather than a ring (Z_p).
func (d *Domain) IsField() bool { return d.field }

// Policy returns the declaration policy of d.
func (d *Domain) Policy() Policy { return d.policy }

// RelativeCap returns the maximal relative precision of elements of d.
func (d *Domain) RelativeCap() int { return d.relCap }

// AbsoluteCap returns the maximal absolute precision (exact.Infinity for
// floating domains).
func (d *Domain) AbsoluteCap() int { return d.absCap }

// ZeroCap returns the zero-collapse threshold, exact.Infinity when disabled.
func (d *Domain) ZeroCap() int { return d.zeroCap }

// Label returns the label of the tracker the domain was created with.
func (d *Domain) Label() string { return d.label }

// Tracker returns the shared precision tracker.
func (d *Domain) Tracker() Tracker { return d.tracker }

// FractionField returns the field of d (d itself if it is a field).
func (d *Domain) FractionField() *Domain {
	if d.field {
		return d
	}
	return d.sibling
}

// IntegerRing returns the ring of d (d itself if it is a ring).
func (d *Domain) IntegerRing() *Domain {
	if !d.field {
		return d
	}
	return d.sibling
}

func (d *Domain) String() string {
	kind := "Ring"
	if d.field {
		kind = "Field"
	}
	return fmt.Sprintf("%d-adic %s with lattice-%s precision", d.prime, kind, d.policy.Name())
}

func (d *Domain) zero() exact.Value {
	return exact.FromInt(d.prime, 0)
}

// collapse forces x to zero when it lost at least zeroCap digits to
// cancellation against the operands a and b.
func (d *Domain) collapse(x, a, b exact.Value) exact.Value {
	if d.zeroCap == exact.Infinity || x.IsZero() {
		return x
	}
	if x.Valuation() >= exact.AddPrec(min(a.Valuation(), b.Valuation()), d.zeroCap) {
		return d.zero()
	}
	return x
}

// ElementOption configures Domain.Element.
type ElementOption func(*elementSettings)

type elementSettings struct {
	prec     int
	dx       precision.Differential
	reduce   bool
	validate bool
}

// WithPrecision requests an explicit absolute precision.
func WithPrecision(prec int) ElementOption {
	return func(s *elementSettings) { s.prec = prec }
}

// WithDifferential declares the new element as depending on tracked elements.
func WithDifferential(dx precision.Differential) ElementOption {
	return func(s *elementSettings) { s.dx = dx }
}

// Unreduced stores the value as given instead of truncating it.
func Unreduced() ElementOption {
	return func(s *elementSettings) { s.reduce = false }
}

// NoValidation skips the prime and valuation checks.
func NoValidation() ElementOption {
	return func(s *elementSettings) { s.validate = false }
}

// Element creates an element of d with value x.
func (d *Domain) Element(x exact.Value, opts ...ElementOption) (*Element, error) {
	s := elementSettings{prec: exact.Infinity, reduce: true, validate: true}
	for _, opt := range opts {
		opt(&s)
	}
	if s.validate {
		if x.Prime() != d.prime {
			return nil, fmt.Errorf("%w: %d-adic value into %s", ErrDomainMismatch, x.Prime(), d)
		}
		if !d.field && x.Valuation() < 0 {
			return nil, fmt.Errorf("%s: %w", x, ErrNegativeValuationCoercion)
		}
	}
	return newElement(d, x, s.prec, s.dx, s.reduce)
}

// Int creates the integer n as an element of d.
func (d *Domain) Int(n int64, opts ...ElementOption) (*Element, error) {
	return d.Element(exact.FromInt(d.prime, n), opts...)
}

// Zero returns 0 at the domain's default precision.
func (d *Domain) Zero() (*Element, error) { return d.Int(0) }

// One returns 1 at the domain's default precision.
func (d *Domain) One() (*Element, error) { return d.Int(1) }

// Rat creates num/den as an element of d.
func (d *Domain) Rat(num, den int64, opts ...ElementOption) (*Element, error) {
	if den == 0 {
		return nil, fmt.Errorf("rational %d/0: zero denominator", num)
	}
	return d.Element(exact.FromFrac(d.prime, num, den), opts...)
}

// Convert creates an independent element of d approximating e to at most
// prec digits (exact.Infinity keeps e's precision). Unlike CopyTo, the result
// is not correlated with e and d may use another tracker.
func (d *Domain) Convert(e *Element, prec int) (*Element, error) {
	if e.dom.prime != d.prime {
		return nil, fmt.Errorf("%w: %s into %s", ErrDomainMismatch, e.dom, d)
	}
	prec = min(prec, e.AbsolutePrecision())
	return d.Element(e.value, WithPrecision(prec))
}
