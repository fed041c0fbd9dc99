package padic

import (
	"testing"

	"padiclattice/internal/exact"
	"padiclattice/internal/precision"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("runtime.runfinq"),
		goleak.IgnoreAnyFunction("runtime.runCleanups"))
}

// mustFn unwraps (element, error) pairs in tests.
func mustFn(t *testing.T) func(*Element, error) *Element {
	return func(e *Element, err error) *Element {
		t.Helper()
		require.NoError(t, err)
		require.NotNil(t, e)
		return e
	}
}

func newRing(t *testing.T, prime int64, opts ...DomainOption) *Domain {
	t.Helper()
	ctx := NewContext(zaptest.NewLogger(t))
	d, err := ctx.Ring(prime, opts...)
	require.NoError(t, err)
	return d
}

func TestElement_Construction(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)

	x := must(R.Int(210, WithPrecision(10)))
	assert.Equal(t, 10, x.AbsolutePrecision())
	assert.False(t, x.IsPrecisionCapped())
	assert.Equal(t, "210", x.Value().String())
	assert.Equal(t, "210", x.Approximation().String())

	capped := must(R.Int(0))
	assert.Equal(t, 40, capped.AbsolutePrecision())
	assert.True(t, capped.IsPrecisionCapped())

	big := must(R.Int(1<<35, WithPrecision(50)))
	assert.Equal(t, 40, big.AbsolutePrecision())
	assert.True(t, big.IsPrecisionCapped())

	// the relative cap truncates the stored value
	long := must(R.Int(1<<30 + 1))
	assert.Equal(t, 20, long.AbsolutePrecision())
	assert.Equal(t, "1", long.Value().String())

	kept := must(R.Int(1<<30+1, WithPrecision(5), Unreduced()))
	assert.Equal(t, "1073741825", kept.Value().String())
	assert.Equal(t, "1", kept.Approximation().String())
}

func TestElement_ConstructionErrors(t *testing.T) {
	R := newRing(t, 2)

	_, err := R.Element(exact.FromInt(3, 1))
	assert.ErrorIs(t, err, ErrDomainMismatch)

	_, err = R.Rat(1, 2)
	assert.ErrorIs(t, err, ErrNegativeValuationCoercion)

	_, err = R.Rat(1, 0)
	assert.Error(t, err)

	half, err := R.FractionField().Rat(1, 2)
	require.NoError(t, err)
	assert.Equal(t, -1, half.Valuation())

	third, err := R.Rat(1, 3, WithPrecision(6))
	require.NoError(t, err)
	assert.Equal(t, "43", third.Value().String())
}

func TestElement_Valuation(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)

	x := must(R.Int(12, WithPrecision(10)))
	assert.Equal(t, 2, x.Valuation())
	v, err := x.SecureValuation()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 8, x.RelativePrecision())

	z := must(R.Int(0, WithPrecision(40)))
	assert.Equal(t, 40, z.Valuation())
	assert.Equal(t, 0, z.RelativePrecision())
	_, err = z.SecureValuation()
	assert.ErrorIs(t, err, ErrPrecisionInsufficient)
	assert.True(t, IsPrecisionError(err))
	_, err = z.SecureRelativePrecision()
	assert.ErrorIs(t, err, ErrPrecisionInsufficient)

	r, err := x.SecureRelativePrecision()
	require.NoError(t, err)
	assert.Equal(t, 8, r)
}

func TestElement_IsZero(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)

	x := must(R.Int(1+1<<3+1<<4+1<<7+1<<8, WithPrecision(10)))
	assert.False(t, x.IsZero())

	y := must(R.Int(1<<7, WithPrecision(10)))
	assert.False(t, y.IsZero())
	assert.True(t, y.IsZeroAt(7))
	assert.True(t, y.IsZeroAt(5))
	assert.False(t, y.IsZeroAt(8))

	assert.True(t, must(R.Int(1<<12, WithPrecision(10))).IsZero())
	assert.False(t, must(R.Int(0)).IsExactZero())

	zero := must(R.Zero())
	assert.True(t, zero.IsZero())
	assert.Equal(t, 40, zero.AbsolutePrecision())
	one := must(R.One())
	assert.Equal(t, 20, one.AbsolutePrecision())
	assertEqualElements(t, one, must(one.Add(zero)))
}

func TestElement_Expansion(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 5)

	// 4 + 2*5 + 5^2 + 4*5^3 + 5^5 + 5^6 + 5^8 + 3*5^9
	x := must(R.Int(4+2*5+25+4*125+3125+15625+390625+3*1953125, WithPrecision(10)))
	if diff := cmp.Diff([]int64{4, 2, 1, 4, 0, 1, 1, 0, 1, 3}, x.Expansion()); diff != "" {
		t.Errorf("Expansion mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, x.Expansion(), x.RelativePrecision())

	// trailing zero digits are part of the expansion
	y := must(R.Int(4+5+4*25+4*125+625, WithPrecision(10)))
	if diff := cmp.Diff([]int64{4, 1, 4, 4, 1, 0, 0, 0, 0, 0}, y.Expansion()); diff != "" {
		t.Errorf("Expansion mismatch (-want +got):\n%s", diff)
	}

	z := must(R.Int(0, WithPrecision(3)))
	assert.Empty(t, z.Expansion())
	assert.Equal(t, 0, z.RelativePrecision())
}

func TestElement_String(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)
	assert.Equal(t, "1 + 2^3 + O(2^10)", must(R.Int(9, WithPrecision(10))).String())
	assert.Equal(t, "O(2^40)", must(R.Int(0)).String())

	F := R.FractionField()
	assert.Equal(t, "2^-1 + O(2^5)", must(F.Rat(1, 2, WithPrecision(5))).String())
	assert.Equal(t, "2-adic Ring with lattice-cap precision", R.String())
	assert.Equal(t, "2-adic Field with lattice-cap precision", F.String())
}

func TestElement_Release(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 3)
	x := must(R.Int(1, WithPrecision(4)))
	y := must(R.Int(2, WithPrecision(4)))
	require.Len(t, R.Tracker().TrackedElements(), 2)

	x.Release()
	assert.Equal(t, 1, R.Tracker().DeleteElements())
	assert.Equal(t, []precision.Handle{y.Handle()}, R.Tracker().TrackedElements())
	assert.Panics(t, func() { x.AbsolutePrecision() })
}
