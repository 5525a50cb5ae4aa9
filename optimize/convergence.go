package optimize

import "math"

// Tracker accumulates the per-iteration aggregate score vector and the
// successive max-norm deltas used for the termination test.
type Tracker struct {
	Series [][]float64
	Deltas []float64
}

// Record appends an aggregate score vector and returns the max-norm change
// against the previous iteration. The first record returns +Inf so that a
// single sample can never satisfy a convergence test.
func (tr *Tracker) Record(agg []float64) (delta float64) {
	delta = math.Inf(1)
	if n := len(tr.Series); n > 0 {
		prev := tr.Series[n-1]
		delta = 0
		for i := range agg {
			if d := math.Abs(agg[i] - prev[i]); d > delta {
				delta = d
			}
		}
	}
	cp := make([]float64, len(agg))
	copy(cp, agg)
	tr.Series = append(tr.Series, cp)
	tr.Deltas = append(tr.Deltas, delta)
	return
}

func (tr *Tracker) Iterations() int { return len(tr.Series) - 1 }

// QualityDelta returns the per-metric improvement from the first to the last
// recorded aggregate, positive entries meaning the mesh got better.
func (tr *Tracker) QualityDelta() []float64 {
	if len(tr.Series) == 0 {
		return nil
	}
	var (
		first = tr.Series[0]
		last  = tr.Series[len(tr.Series)-1]
		out   = make([]float64, len(first))
	)
	for i := range out {
		out[i] = last[i] - first[i]
	}
	return out
}
