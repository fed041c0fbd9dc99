// Package exact provides prime-tagged exact rationals.
//
// A Value is a rational number together with the prime p it is read against.
// Valuations, reductions and digit expansions are all taken p-adically, so
// 1/3 tagged with 2 is a unit whose 2-adic digits are 1, 1, 0, 1, 0, 1, ...
// Values never carry a precision of their own: how many digits of a Value
// are meaningful is decided by whoever stores it.
package exact

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Infinity is the valuation of zero and the precision of an exact quantity.
const Infinity = math.MaxInt

// AddPrec adds two valuations or precisions, saturating at Infinity.
func AddPrec(a, b int) int {
	if a == Infinity || b == Infinity {
		return Infinity
	}
	return a + b
}

// Value is an immutable exact rational tagged with a prime.
// Every operation returns a new Value; the receiver is never modified.
type Value struct {
	p *big.Int
	x *big.Rat
}

// New returns x tagged with the prime p. x is copied.
func New(p int64, x *big.Rat) Value {
	return Value{p: big.NewInt(p), x: new(big.Rat).Set(x)}
}

// FromInt returns the integer n tagged with p.
func FromInt(p, n int64) Value {
	return Value{p: big.NewInt(p), x: new(big.Rat).SetInt64(n)}
}

// FromFrac returns num/den tagged with p. It panics if den is zero.
func FromFrac(p, num, den int64) Value {
	return Value{p: big.NewInt(p), x: big.NewRat(num, den)}
}

// PowerOf returns p^n. n may be negative.
func PowerOf(p int64, n int) Value {
	return FromInt(p, 1).Shift(n)
}

// Prime returns the prime the value is tagged with.
func (v Value) Prime() int64 {
	return v.p.Int64()
}

// SamePrime reports whether v and w are tagged with the same prime.
func (v Value) SamePrime(w Value) bool {
	return v.p.Cmp(w.p) == 0
}

func (v Value) with(x *big.Rat) Value {
	return Value{p: v.p, x: x}
}

func (v Value) mustMatch(w Value) {
	if !v.SamePrime(w) {
		panic(fmt.Sprintf("exact: mixing %d-adic and %d-adic values", v.Prime(), w.Prime()))
	}
}

// Add returns v + w.
func (v Value) Add(w Value) Value {
	v.mustMatch(w)
	return v.with(new(big.Rat).Add(v.x, w.x))
}

// Sub returns v - w.
func (v Value) Sub(w Value) Value {
	v.mustMatch(w)
	return v.with(new(big.Rat).Sub(v.x, w.x))
}

// Mul returns v * w.
func (v Value) Mul(w Value) Value {
	v.mustMatch(w)
	return v.with(new(big.Rat).Mul(v.x, w.x))
}

// Quo returns v / w. It panics if w is zero.
func (v Value) Quo(w Value) Value {
	v.mustMatch(w)
	return v.with(new(big.Rat).Quo(v.x, w.x))
}

// Neg returns -v.
func (v Value) Neg() Value {
	return v.with(new(big.Rat).Neg(v.x))
}

// Shift returns v * p^n.
func (v Value) Shift(n int) Value {
	if n == 0 || v.x.Sign() == 0 {
		return v
	}
	k := n
	if k < 0 {
		k = -k
	}
	pk := new(big.Rat).SetInt(pow(v.p, k))
	if n > 0 {
		return v.with(new(big.Rat).Mul(v.x, pk))
	}
	return v.with(new(big.Rat).Quo(v.x, pk))
}

// IsZero reports whether v is exactly zero.
func (v Value) IsZero() bool {
	return v.x.Sign() == 0
}

// Equal reports whether v and w are the same rational.
func (v Value) Equal(w Value) bool {
	return v.x.Cmp(w.x) == 0
}

// Cmp compares v and w as rationals.
func (v Value) Cmp(w Value) int {
	return v.x.Cmp(w.x)
}

// Rat returns a copy of the underlying rational.
func (v Value) Rat() *big.Rat {
	return new(big.Rat).Set(v.x)
}

// Valuation returns the exponent of p exactly dividing v, or Infinity for zero.
func (v Value) Valuation() int {
	if v.x.Sign() == 0 {
		return Infinity
	}
	return valuation(v.x.Num(), v.p) - valuation(v.x.Denom(), v.p)
}

// Reduce returns the canonical representative of v modulo p^prec Z_p.
//
// Writing v = p^val * u with u a p-adic unit, the result is
// p^val * (u mod p^(prec-val)) with the residue taken in [0, p^(prec-val)).
// Values of negative valuation keep their negative powers, so Reduce(0)
// is the part of v that does not lie in Z_p.
func (v Value) Reduce(prec int) Value {
	if prec == Infinity || v.IsZero() {
		return v
	}
	val := v.Valuation()
	if val >= prec {
		return v.with(new(big.Rat))
	}
	unit := v.Shift(-val).x
	mod := pow(v.p, prec-val)
	inv := new(big.Int).ModInverse(unit.Denom(), mod)
	r := new(big.Int).Mul(unit.Num(), inv)
	r.Mod(r, mod)
	return v.with(new(big.Rat).SetInt(r)).Shift(val)
}

// Expand returns the p-adic digits of v from its valuation up to prec-1.
// The result is empty when v is zero or its valuation is at least prec.
func (v Value) Expand(prec int) []int64 {
	val := v.Valuation()
	if val >= prec || prec == Infinity {
		return nil
	}
	n := v.Reduce(prec).Shift(-val).x.Num()
	n = new(big.Int).Set(n)
	digits := make([]int64, prec-val)
	r := new(big.Int)
	for i := range digits {
		n.QuoRem(n, v.p, r)
		digits[i] = r.Int64()
	}
	return digits
}

// String returns the rational in lowest terms, e.g. "8/7".
func (v Value) String() string {
	return v.x.RatString()
}

// FormatSeries renders v as a truncated p-adic series, e.g.
// "1 + 2*5 + 5^3 + O(5^10)". Only digits below prec are shown. An
// infinite prec prints the exact rational.
func (v Value) FormatSeries(prec int) string {
	if prec == Infinity {
		return v.String()
	}
	p := v.p.String()
	var terms []string
	val := v.Valuation()
	for i, d := range v.Expand(prec) {
		if d == 0 {
			continue
		}
		terms = append(terms, term(d, p, val+i))
	}
	terms = append(terms, fmt.Sprintf("O(%s)", power(p, prec)))
	return strings.Join(terms, " + ")
}

func term(d int64, p string, e int) string {
	switch {
	case e == 0:
		return fmt.Sprintf("%d", d)
	case d == 1:
		return power(p, e)
	default:
		return fmt.Sprintf("%d*%s", d, power(p, e))
	}
}

func power(p string, e int) string {
	if e == 1 {
		return p
	}
	return fmt.Sprintf("%s^%d", p, e)
}

func pow(p *big.Int, k int) *big.Int {
	return new(big.Int).Exp(p, big.NewInt(int64(k)), nil)
}

// valuation counts the factors of p in the non-zero integer n.
func valuation(n, p *big.Int) int {
	q := new(big.Int).Abs(n)
	r := new(big.Int)
	k := 0
	for {
		next, rem := new(big.Int).QuoRem(q, p, r)
		if rem.Sign() != 0 {
			return k
		}
		q = next
		k++
	}
}
