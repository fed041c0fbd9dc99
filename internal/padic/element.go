// Package padic implements p-adic elements with lattice precision.
//
// An Element pairs an exact value with a handle into its domain's precision
// tracker. Every operation computes an exact result, describes how it depends
// on its operands to first order (a precision.Differential), declares it to
// the tracker and stores the result truncated to the precision the tracker
// certifies. Precision is therefore never a field of the element: it is
// re-read from the tracker on each query, and correlated elements may gain
// precision when combined.
//
// Elements are not safe for concurrent use in the sense that a computation
// is expected to run on one goroutine; the tracker itself serializes access.
package padic

import (
	"fmt"
	"math/big"
	"runtime"

	"padiclattice/internal/exact"
	"padiclattice/internal/precision"
)

// Element is a p-adic number with lattice precision.
type Element struct {
	dom     *Domain
	value   exact.Value
	handle  precision.Handle
	cleanup runtime.Cleanup
}

// newElement declares x to d's tracker and returns it truncated to the
// certified precision. The element is fully declared before it is returned.
func newElement(d *Domain, x exact.Value, prec int, dx precision.Differential, reduce bool) (*Element, error) {
	h, trunc, err := d.policy.Declare(d, x, dx, prec)
	if err != nil {
		return nil, fmt.Errorf("declare element of %s: %w", d, err)
	}
	e := &Element{dom: d, value: x, handle: h}
	if reduce {
		e.value = x.Reduce(trunc)
	}
	e.cleanup = runtime.AddCleanup(e, d.tracker.Release, h)
	return e, nil
}

// keepAlive holds operands until their handles have been used in a
// declaration; otherwise a cleanup could release them mid-operation.
func keepAlive(es ...*Element) {
	for _, e := range es {
		runtime.KeepAlive(e)
	}
}

// Domain returns the domain of e.
func (e *Element) Domain() *Domain { return e.dom }

// Handle returns the tracker handle of e.
func (e *Element) Handle() precision.Handle { return e.handle }

// Release tells the tracker e will not be used again. Using e afterwards
// panics. Unreleased elements are reclaimed after they become unreachable.
func (e *Element) Release() {
	e.cleanup.Stop()
	e.dom.tracker.Release(e.handle)
}

// Value returns the exact value stored in memory. Because of diffused digits
// it may carry more digits than AbsolutePrecision certifies; those digits are
// only meaningful in combination with correlated elements.
func (e *Element) Value() exact.Value { return e.value }

// Lift returns the stored value as a rational.
func (e *Element) Lift() *big.Rat { return e.value.Rat() }

// Approximation returns the stored value reduced to the absolute precision.
func (e *Element) Approximation() exact.Value {
	return e.value.Reduce(e.AbsolutePrecision())
}

// AbsolutePrecision projects the precision lattice on e, capped by the
// domain's relative cap.
func (e *Element) AbsolutePrecision() int {
	prec := e.dom.tracker.AbsolutePrecision(e.handle)
	return min(prec, exact.AddPrec(e.value.Valuation(), e.dom.relCap))
}

// IsPrecisionCapped reports whether e's precision comes from a domain cap
// rather than an explicitly requested precision.
func (e *Element) IsPrecisionCapped() bool {
	return e.dom.tracker.IsPrecisionCapped(e.handle)
}

// Valuation returns the valuation of e. When e is indistinguishable from
// zero it returns the absolute precision, the smallest valuation e may have.
func (e *Element) Valuation() int {
	val := e.value.Valuation()
	prec := e.AbsolutePrecision()
	if val < prec {
		return val
	}
	return prec
}

// SecureValuation returns the valuation of e, or ErrPrecisionInsufficient
// when the precision does not determine it.
func (e *Element) SecureValuation() (int, error) {
	val := e.value.Valuation()
	if val < e.AbsolutePrecision() {
		return val, nil
	}
	return 0, ErrPrecisionInsufficient
}

// RelativePrecision returns AbsolutePrecision() - Valuation().
func (e *Element) RelativePrecision() int {
	return e.AbsolutePrecision() - e.Valuation()
}

// SecureRelativePrecision is RelativePrecision with a secure valuation.
func (e *Element) SecureRelativePrecision() (int, error) {
	val, err := e.SecureValuation()
	if err != nil {
		return 0, err
	}
	return e.AbsolutePrecision() - val, nil
}

// IsZero reports whether e is indistinguishable from zero.
func (e *Element) IsZero() bool {
	return e.value.Valuation() >= e.AbsolutePrecision()
}

// IsZeroAt reports whether e is indistinguishable from zero modulo p^prec.
func (e *Element) IsZeroAt(prec int) bool {
	return e.value.Valuation() >= min(e.AbsolutePrecision(), prec)
}

// IsExactZero reports whether e is known to be exactly zero. This never
// happens in capped domains.
func (e *Element) IsExactZero() bool {
	return e.dom.policy.IsExactZero(e)
}

// Expansion returns the p-adic digits of e from its valuation up to its
// absolute precision; its length is RelativePrecision().
func (e *Element) Expansion() []int64 {
	return e.value.Expand(e.AbsolutePrecision())
}

func (e *Element) String() string {
	return e.value.FormatSeries(e.AbsolutePrecision())
}
