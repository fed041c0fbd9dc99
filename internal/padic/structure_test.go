package padic

import (
	"runtime"
	"testing"
	"time"

	"padiclattice/internal/exact"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestShift_DropsLowDigits(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 7, WithAbsoluteCap(7))

	x := must(R.Int(123456878908))
	assert.Equal(t, 7, x.AbsolutePrecision())
	if diff := cmp.Diff([]int64{6, 6, 3, 4, 0, 1, 3}, x.Expansion()); diff != "" {
		t.Errorf("Expansion mismatch (-want +got):\n%s", diff)
	}

	y := must(x.ShiftRight(3))
	assert.Equal(t, 4, y.AbsolutePrecision())
	assert.Equal(t, "1082", y.Value().String())
	if diff := cmp.Diff(x.Expansion()[3:], y.Expansion()); diff != "" {
		t.Errorf("Expansion mismatch (-want +got):\n%s", diff)
	}
}

func TestShift_RoundTrip(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)
	F := R.FractionField()

	x := must(F.Int(13, WithPrecision(10)))
	back := must(must(x.ShiftRight(2)).ShiftLeft(2))
	assertEqualElements(t, x, back)
	assert.Equal(t, 10, back.AbsolutePrecision())

	// in a ring the dropped digits are gone
	r := must(R.Int(13, WithPrecision(10)))
	lost := must(must(r.ShiftRight(2)).ShiftLeft(2))
	eq, err := r.Equal(lost)
	require.NoError(t, err)
	assert.False(t, eq)
	assert.Equal(t, "12", lost.Value().String())

	twelve := must(R.Int(12, WithPrecision(10)))
	assertEqualElements(t, twelve, must(must(twelve.ShiftRight(2)).ShiftLeft(2)))

	gone := must(must(R.Int(3, WithPrecision(2))).ShiftRight(5))
	assert.Equal(t, 0, gone.AbsolutePrecision())
	assert.True(t, gone.IsZero())
}

func TestValUnit(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)

	v, u, err := must(R.Int(12, WithPrecision(10))).ValUnit()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, "3", u.Value().String())
	assert.Equal(t, 8, u.AbsolutePrecision())

	u, err = must(R.Int(40, WithPrecision(10))).UnitPart()
	require.NoError(t, err)
	assert.Equal(t, 0, u.Valuation())

	zero := must(R.Int(0, WithPrecision(6)))
	_, _, err = zero.ValUnit()
	assert.ErrorIs(t, err, ErrPrecisionInsufficient)
	_, err = zero.UnitPart()
	assert.ErrorIs(t, err, ErrPrecisionInsufficient)
}

func TestAddBigOh_NeverIncreasesPrecision(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 3)
	x := must(R.Int(5, WithPrecision(10)))

	for _, tc := range []struct {
		prec, want int
	}{
		{prec: 4, want: 4},
		{prec: 10, want: 10},
		{prec: 15, want: 10},
		{prec: exact.Infinity, want: 10},
	} {
		assert.Equal(t, tc.want, must(x.AddBigOh(tc.prec)).AbsolutePrecision(), "AddBigOh(%d)", tc.prec)
	}
}

func TestLiftToPrecision(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)
	x := must(R.Int(3, WithPrecision(5)))

	assert.Equal(t, 12, must(x.LiftToPrecision(12)).AbsolutePrecision())
	lifted := must(x.LiftToPrecision(30))
	assert.Equal(t, 20, lifted.AbsolutePrecision())
	assert.True(t, lifted.IsPrecisionCapped())
	assert.Equal(t, 20, must(x.LiftToPrecision(exact.Infinity)).AbsolutePrecision())
}

func TestLiftToPrecisionInferred_SharpensCorrelatedElements(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)
	x := must(R.Int(1, WithPrecision(10)))
	y := must(R.Int(1, WithPrecision(5)))
	z := must(R.Int(1, WithPrecision(7)))
	u := must(x.Add(y))

	lu := must(u.LiftToPrecisionInferred(20))
	assert.Equal(t, 20, lu.AbsolutePrecision())
	assert.Equal(t, 20, u.AbsolutePrecision())
	assert.Equal(t, 10, x.AbsolutePrecision())
	// y = u - x
	assert.Equal(t, 10, y.AbsolutePrecision())
	assert.Equal(t, 7, z.AbsolutePrecision())

	// the lift is clamped to the domain cap
	w := must(must(R.Int(5, WithPrecision(3))).LiftToPrecisionInferred(100))
	assert.Equal(t, 20, w.AbsolutePrecision())
}

func TestCopy(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)
	x := must(R.Int(5, WithPrecision(10)))
	y := must(x.Copy())

	d := must(y.Sub(x))
	assert.True(t, d.IsZero())
	assert.GreaterOrEqual(t, d.AbsolutePrecision(), 20)
}

func TestCopyTo(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 2)
	F := R.FractionField()

	x := must(R.Int(6, WithPrecision(10)))
	fx := must(x.CopyTo(F))
	assert.Same(t, F, fx.Domain())
	assert.Equal(t, 10, fx.AbsolutePrecision())

	back := must(must(F.Int(4, WithPrecision(8))).CopyTo(R))
	assert.Same(t, R, back.Domain())

	_, err := must(F.Rat(1, 2)).CopyTo(R)
	assert.ErrorIs(t, err, ErrNegativeValuationCoercion)

	_, err = x.CopyTo(newRing(t, 2))
	assert.ErrorIs(t, err, ErrIncompatibleDomain)
}

func TestConvert(t *testing.T) {
	must := mustFn(t)
	R := newRing(t, 5)
	x := must(R.Int(7, WithPrecision(6)))

	S := newRing(t, 5)
	y := must(S.Convert(x, exact.Infinity))
	assert.Equal(t, 6, y.AbsolutePrecision())
	assert.Equal(t, 4, must(S.Convert(x, 4)).AbsolutePrecision())

	_, err := newRing(t, 3).Convert(x, exact.Infinity)
	assert.ErrorIs(t, err, ErrDomainMismatch)
}

func TestUnreachableElementsAreReclaimed(t *testing.T) {
	R := newRing(t, 3, WithLabel("reclaim"))
	func() {
		for i := range 8 {
			_, err := R.Int(int64(i), WithPrecision(5))
			require.NoError(t, err)
		}
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		R.Tracker().DeleteElements()
		return len(R.Tracker().TrackedElements()) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestContext_SharesTrackersByLabel(t *testing.T) {
	ctx := NewContext(zap.NewNop())
	a, err := ctx.Ring(2, WithLabel("shared"))
	require.NoError(t, err)
	b, err := ctx.Ring(2, WithLabel("shared"))
	require.NoError(t, err)
	c, err := ctx.Ring(2, WithLabel("other"))
	require.NoError(t, err)
	f, err := ctx.Field(2, WithLabel("shared"), WithPolicy(Floating))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Same(t, a.Tracker(), b.Tracker())
	assert.NotSame(t, a.Tracker(), c.Tracker())
	assert.NotSame(t, a.Tracker(), f.Tracker())
	assert.Equal(t, "shared", a.Label())

	x, err := a.Int(9, WithPrecision(6))
	require.NoError(t, err)
	y, err := x.CopyTo(b)
	require.NoError(t, err)
	assert.Same(t, b, y.Domain())

	anon, err := ctx.Ring(2)
	require.NoError(t, err)
	assert.NotEmpty(t, anon.Label())
	assert.NotSame(t, a.Tracker(), anon.Tracker())

	// other caps give another domain on the same tracker
	wide, err := ctx.Ring(2, WithLabel("shared"), WithRelativeCap(30))
	require.NoError(t, err)
	assert.NotSame(t, a, wide)
	assert.Same(t, a.Tracker(), wide.Tracker())
}

func TestContext_IdenticalRequestsCombine(t *testing.T) {
	must := mustFn(t)
	ctx := NewContext(zap.NewNop())
	a, err := ctx.Ring(2, WithLabel("L"))
	require.NoError(t, err)
	b, err := ctx.Ring(2, WithLabel("L"))
	require.NoError(t, err)
	f, err := ctx.Field(2, WithLabel("L"))
	require.NoError(t, err)
	assert.Same(t, a.FractionField(), f)

	x := must(a.Int(3, WithPrecision(10)))
	y := must(b.Int(5, WithPrecision(8)))
	s := must(x.Add(y))
	assert.Same(t, a, s.Domain())
	assertEqualElements(t, must(a.Int(8)), s)
	assert.Equal(t, 8, s.AbsolutePrecision())

	q := must(f.Rat(1, 2, WithPrecision(6)))
	assert.Same(t, f, must(q.Mul(x)).Domain())
}

func TestContext_TrackerLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := NewContext(zap.NewNop(), WithTrackerLogger(zap.New(core)))
	R, err := ctx.Ring(3)
	require.NoError(t, err)
	_, err = R.Int(1, WithPrecision(4))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("registered element").Len())
}

func TestContext_Validation(t *testing.T) {
	ctx := NewContext(nil)
	for _, tc := range []struct {
		name  string
		prime int64
		opts  []DomainOption
		want  error
	}{
		{name: "composite", prime: 4, want: ErrInvalidPrime},
		{name: "one", prime: 1, want: ErrInvalidPrime},
		{name: "relative cap", prime: 2, opts: []DomainOption{WithRelativeCap(0)}, want: ErrInvalidCap},
		{name: "zero cap", prime: 2, opts: []DomainOption{WithZeroCap(0)}, want: ErrInvalidCap},
		{name: "infinite absolute cap", prime: 2, opts: []DomainOption{WithAbsoluteCap(exact.Infinity)}, want: ErrInvalidCap},
		{
			name:  "internal precision below relative cap",
			prime: 2,
			opts:  []DomainOption{WithPolicy(Floating), WithInternalPrecision(5)},
			want:  ErrInvalidCap,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ctx.Ring(tc.prime, tc.opts...)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	d, err := ctx.Field(11, WithRelativeCap(8))
	require.NoError(t, err)
	assert.True(t, d.IsField())
	assert.Equal(t, 16, d.AbsoluteCap())
	assert.Equal(t, exact.Infinity, d.ZeroCap())
	assert.Same(t, d, d.IntegerRing().FractionField())
}

func TestContext_FloatingInternalPrecision(t *testing.T) {
	must := mustFn(t)
	ctx := NewContext(nil)
	R, err := ctx.Ring(2, WithPolicy(Floating), WithInternalPrecision(20))
	require.NoError(t, err)

	// the stored value must hold every certified digit
	x := must(R.Rat(1, 3))
	prec := x.AbsolutePrecision()
	assert.Equal(t, 20, prec)
	three := exact.FromInt(2, 3)
	assert.GreaterOrEqual(t, x.Approximation().Mul(three).Sub(exact.FromInt(2, 1)).Valuation(), prec)
}
