package precision

import "padiclattice/internal/exact"

// row is a generator of the precision lattice written in the coordinates of
// the tracked elements. A row stored at index i of a basis has its first
// non-zero entry (its pivot) at coordinate i.
type row []exact.Value

// pivot returns the first non-zero coordinate of r, or -1.
func (r row) pivot() int {
	for i, v := range r {
		if !v.IsZero() {
			return i
		}
	}
	return -1
}

// basis is an echelon family of generators indexed by pivot; basis[i] is nil
// when no generator has its pivot at coordinate i.
type basis []row

// insert merges r into the basis using unimodular row operations over Z_p.
// r is consumed.
func (b basis) insert(r row) {
	for {
		c := r.pivot()
		if c < 0 {
			return
		}
		if b[c] == nil {
			b[c] = r
			return
		}
		if r[c].Valuation() < b[c][c].Valuation() {
			b[c], r = r, b[c]
		}
		q := r[c].Quo(b[c][c])
		for k := c; k < len(r); k++ {
			r[k] = r[k].Sub(q.Mul(b[c][k]))
		}
	}
}

// minValuation returns the smallest valuation in column j, i.e. the absolute
// precision the basis certifies on coordinate j.
func (b basis) minValuation(j int) int {
	prec := exact.Infinity
	for i := 0; i <= j && i < len(b); i++ {
		if b[i] == nil {
			continue
		}
		if v := b[i][j].Valuation(); v < prec {
			prec = v
		}
	}
	return prec
}

// reduce rewrites every entry above a pivot as its canonical residue modulo
// that pivot. Columns without a pivot are truncated relative to their
// smallest valuation when float is finite.
func (b basis) reduce(float int) {
	n := len(b)
	for k := 0; k < n; k++ {
		pr := b[k]
		if pr == nil {
			if float == exact.Infinity {
				continue
			}
			t := exact.AddPrec(b.minValuation(k), float)
			for i := 0; i < k; i++ {
				if b[i] != nil {
					b[i][k] = b[i][k].Reduce(t)
				}
			}
			continue
		}
		dv := pr[k].Valuation()
		for i := 0; i < k; i++ {
			r := b[i]
			if r == nil || r[k].IsZero() {
				continue
			}
			rem := r[k].Reduce(dv)
			if rem.Equal(r[k]) {
				continue
			}
			q := r[k].Sub(rem).Quo(pr[k])
			r[k] = rem
			for c := k + 1; c < n; c++ {
				r[c] = r[c].Sub(q.Mul(pr[c]))
			}
		}
	}
}
