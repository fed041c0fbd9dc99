// Package precision implements the shared precision tracker behind p-adic
// elements with lattice precision.
//
// A Tracker keeps one coordinate per live element and a family of generators
// (the precision lattice, or module in the floating case) describing every
// error vector compatible with what has been declared so far. The absolute
// precision of an element is the smallest valuation its coordinate takes on
// the generators. Correlated elements share generators, which is how digits
// of precision that no single element owns ("diffused digits") are recovered
// when the elements are combined.
//
// The tracker never points at elements. It hands out Handles, stores them in
// an arena indexed by coordinate, and forgets a handle once it has been
// released and DeleteElements (or the next registration) runs.
package precision

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"padiclattice/internal/exact"

	"go.uber.org/zap"
)

// Kind selects the shape of the precision object.
type Kind int

const (
	// Lattice: every element carries a generator p^bigoh on its own
	// coordinate, so the precision object is a full-rank lattice. Used by
	// capped domains.
	Lattice Kind = iota
	// Module: elements declared without an explicit bigoh add no generator;
	// their coordinates are truncated at the internal working precision.
	// Used by floating domains.
	Module
)

func (k Kind) String() string {
	if k == Module {
		return "module"
	}
	return "lattice"
}

// DefaultAdditionalPrecision is added to the relative cap of a floating domain
// to obtain the tracker's internal working precision.
const DefaultAdditionalPrecision = 5

// Tracker is a precision lattice shared by every element of a domain/label.
// It is safe for concurrent use; all mutations are serialized.
type Tracker struct {
	mu       sync.Mutex
	prime    int64
	kind     Kind
	label    string
	internal int
	log      *zap.Logger

	next     Handle
	elements []Handle
	index    map[Handle]int
	capped   map[Handle]bool
	rows     basis

	// collected is filled by Release, possibly from runtime cleanup goroutines.
	collectedMu sync.Mutex
	collected   []Handle
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLabel names the tracker.
func WithLabel(label string) Option {
	return func(t *Tracker) { t.label = label }
}

// WithInternalPrecision sets the working precision of a Module tracker.
func WithInternalPrecision(prec int) Option {
	return func(t *Tracker) { t.internal = prec }
}

// WithLogger sets the logger used for tracker events.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// New creates an empty tracker for the given prime.
func New(prime int64, kind Kind, opts ...Option) *Tracker {
	t := &Tracker{
		prime:    prime,
		kind:     kind,
		internal: exact.Infinity,
		log:      zap.NewNop(),
		index:    make(map[Handle]int),
		capped:   make(map[Handle]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(zap.String("label", t.label), zap.Int64("prime", prime), zap.Stringer("kind", kind))
	return t
}

// Prime returns the prime of the tracker.
func (t *Tracker) Prime() int64 { return t.prime }

// Label returns the tracker label.
func (t *Tracker) Label() string { return t.label }

// Kind returns whether the tracker is a lattice or a module.
func (t *Tracker) Kind() Kind { return t.kind }

// InternalPrecision returns the working precision of a Module tracker
// (Infinity for a Lattice).
func (t *Tracker) InternalPrecision() int {
	return t.internal
}

// Register declares a new element whose differential is dx. bigoh is the
// absolute precision requested for it (Infinity for none); capped records
// whether that bound comes from the domain rather than the caller.
func (t *Tracker) Register(dx Differential, bigoh int, capped bool) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.deleteCollected()

	n := len(t.elements)
	col := make([]exact.Value, n)
	zero := exact.FromInt(t.prime, 0)
	for i := range col {
		col[i] = zero
	}

	switch dx.Mode {
	case LinearCombination:
		for _, term := range dx.Terms {
			j, ok := t.index[term.Of]
			if !ok {
				return 0, fmt.Errorf("%w: handle %d", ErrUnknownElement, term.Of)
			}
			if term.Coeff.Prime() != t.prime {
				return 0, fmt.Errorf("%w: %d-adic coefficient", ErrPrimeMismatch, term.Coeff.Prime())
			}
			if term.Coeff.IsZero() {
				continue
			}
			for i := 0; i <= j; i++ {
				if r := t.rows[i]; r != nil && !r[j].IsZero() {
					col[i] = col[i].Add(term.Coeff.Mul(r[j]))
				}
			}
		}
	case Values:
		for _, term := range dx.Terms {
			i, ok := t.index[term.Of]
			if !ok {
				return 0, fmt.Errorf("%w: handle %d", ErrUnknownElement, term.Of)
			}
			if term.Coeff.Prime() != t.prime {
				return 0, fmt.Errorf("%w: %d-adic coefficient", ErrPrimeMismatch, term.Coeff.Prime())
			}
			col[i] = term.Coeff
		}
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidMode, dx.Mode)
	}

	trunc := bigoh
	if trunc == exact.Infinity && t.internal != exact.Infinity {
		trunc = exact.AddPrec(minValuation(col), t.internal)
	}
	for i := range col {
		if t.rows[i] != nil {
			col[i] = col[i].Reduce(trunc)
		}
	}

	for i, r := range t.rows {
		if r != nil {
			t.rows[i] = append(r, col[i])
		}
	}

	h := t.next
	t.next++
	t.index[h] = n
	t.elements = append(t.elements, h)
	t.capped[h] = capped

	var gen row
	if bigoh != exact.Infinity {
		gen = make(row, n+1)
		for i := 0; i < n; i++ {
			gen[i] = zero
		}
		gen[n] = exact.PowerOf(t.prime, bigoh)
	}
	t.rows = append(t.rows, gen)

	t.log.Debug("registered element",
		zap.Uint64("handle", uint64(h)),
		zap.Stringer("mode", dx.Mode),
		zap.Int("terms", len(dx.Terms)),
		zap.Bool("capped", capped),
		zap.Int("dimension", n+1))
	return h, nil
}

func minValuation(col []exact.Value) int {
	prec := exact.Infinity
	for _, v := range col {
		if w := v.Valuation(); w < prec {
			prec = w
		}
	}
	return prec
}

// AbsolutePrecision projects the lattice onto the coordinate of h.
// It panics if h is not tracked: asking for the precision of a released
// element is a programming error.
func (t *Tracker) AbsolutePrecision(h Handle) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows.minValuation(t.mustIndex(h))
}

// IsPrecisionCapped reports whether the precision of h was bounded by the
// domain cap rather than requested explicitly.
func (t *Tracker) IsPrecisionCapped(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mustIndex(h)
	return t.capped[h]
}

func (t *Tracker) mustIndex(h Handle) int {
	j, ok := t.index[h]
	if !ok {
		panic(fmt.Sprintf("precision: %v: handle %d", ErrUnknownElement, h))
	}
	return j
}

// LiftToPrecision raises the absolute precision of h to prec by shrinking
// the lattice. This is a global operation: the precision of every element
// correlated with h may increase as well.
func (t *Tracker) LiftToPrecision(h Handle, prec int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.index[h]
	if !ok {
		return fmt.Errorf("%w: handle %d", ErrUnknownElement, h)
	}
	if prec == exact.Infinity {
		return fmt.Errorf("cannot lift handle %d to infinite precision", h)
	}
	n := len(t.elements)

	byVal := make(map[int][]int)
	for i := 0; i <= j; i++ {
		r := t.rows[i]
		if r == nil {
			continue
		}
		v := r[j].Valuation()
		if v >= prec {
			continue
		}
		byVal[v] = append(byVal[v], i)
	}
	vals := make([]int, 0, len(byVal)+1)
	for v := range byVal {
		vals = append(vals, v)
	}
	sort.Ints(vals)
	vals = append(vals, prec)

	for k := 0; k < len(vals)-1; k++ {
		v, w := vals[k], vals[k+1]
		rows := byVal[v]
		piv := slices.Max(rows)
		pr := t.rows[piv]
		for _, i := range rows {
			if i == piv {
				continue
			}
			r := t.rows[i]
			scalar := r[j].Quo(pr[j]).Reduce(prec - v)
			for c := piv; c < n; c++ {
				r[c] = r[c].Sub(scalar.Mul(pr[c]))
			}
		}
		for c := piv; c < n; c++ {
			pr[c] = pr[c].Shift(w - v)
		}
		if w < prec {
			byVal[w] = append(byVal[w], piv)
		}
	}
	t.rows.reduce(t.internal)

	t.log.Debug("lifted element", zap.Uint64("handle", uint64(h)), zap.Int("precision", prec))
	return nil
}

// Release marks h for deletion. It may be called from any goroutine,
// including runtime cleanups; bookkeeping is reclaimed on the next
// registration or DeleteElements call. Releasing an unknown handle is a no-op.
func (t *Tracker) Release(h Handle) {
	t.collectedMu.Lock()
	t.collected = append(t.collected, h)
	t.collectedMu.Unlock()
}

// DeleteElements evicts every released handle and returns how many
// coordinates were removed.
func (t *Tracker) DeleteElements() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleteCollected()
}

func (t *Tracker) deleteCollected() int {
	t.collectedMu.Lock()
	pending := t.collected
	t.collected = nil
	t.collectedMu.Unlock()
	if len(pending) == 0 {
		return 0
	}

	coords := make([]int, 0, len(pending))
	seen := make(map[Handle]bool, len(pending))
	for _, h := range pending {
		if j, ok := t.index[h]; ok && !seen[h] {
			seen[h] = true
			coords = append(coords, j)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(coords)))
	for _, j := range coords {
		t.removeCoordinate(j)
	}
	if len(coords) > 0 {
		t.rows.reduce(t.internal)
		t.log.Debug("deleted elements", zap.Int("count", len(coords)), zap.Int("dimension", len(t.elements)))
	}
	return len(coords)
}

// removeCoordinate drops coordinate j and re-inserts the generator that had
// its pivot there, so the remaining lattice is the projection of the old one.
func (t *Tracker) removeCoordinate(j int) {
	h := t.elements[j]
	orphan := t.rows[j]

	t.elements = slices.Delete(t.elements, j, j+1)
	t.rows = slices.Delete(t.rows, j, j+1)
	for i, r := range t.rows {
		if r != nil {
			t.rows[i] = slices.Delete(r, j, j+1)
		}
	}
	delete(t.index, h)
	delete(t.capped, h)
	for k := j; k < len(t.elements); k++ {
		t.index[t.elements[k]] = k
	}

	if orphan != nil {
		t.rows.insert(slices.Delete(orphan, j, j+1))
	}
}

// TrackedElements returns the live handles in coordinate order.
func (t *Tracker) TrackedElements() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.elements)
}

// Dimension returns the number of tracked elements.
func (t *Tracker) Dimension() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.elements)
}

// DiffusedDigits returns the number of digits of precision shared by hs that
// none of them certifies individually: the p-adic log-index of the lattice
// projected on hs minus the sum of their absolute precisions. It returns
// Infinity when the projection is not full rank.
func (t *Tracker) DiffusedDigits(hs []Handle) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	coords := make([]int, len(hs))
	for k, h := range hs {
		j, ok := t.index[h]
		if !ok {
			return 0, fmt.Errorf("%w: handle %d", ErrUnknownElement, h)
		}
		coords[k] = j
	}

	proj := make(basis, len(coords))
	for _, r := range t.rows {
		if r == nil {
			continue
		}
		pr := make(row, len(coords))
		for k, j := range coords {
			pr[k] = r[j]
		}
		proj.insert(pr)
	}

	index, individual := 0, 0
	for k, j := range coords {
		if proj[k] == nil {
			return exact.Infinity, nil
		}
		index += proj[k][k].Valuation()
		individual += t.rows.minValuation(j)
	}
	return index - individual, nil
}

// String summarizes the tracker for debugging.
func (t *Tracker) String() string {
	return fmt.Sprintf("Precision %s on %d objects (label: %s)", t.kind, t.Dimension(), t.label)
}
