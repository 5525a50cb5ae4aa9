package quality

import (
	"math"

	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/utils"
	"gonum.org/v1/gonum/mat"
)

// Runner is the slice of the parallel executor the engine needs: run fn
// over [0,n) from worker goroutines. Satisfied by executor implementations.
type Runner interface {
	RunElements(n int, fn func(i int))
}

// Engine evaluates and caches per-element quality for one GeometryState
type Engine struct {
	GS        *geometry.GeometryState
	NumScores int
	Cache     *Cache

	// Target-Matrix variant: per-element inverse target Jacobians, one per
	// corner sample. Elements without an entry use the ideal weights.
	Targets map[int][]*mat.Dense

	dirty map[int]bool
}

// NewEngine builds an engine for the state with a cache bounded to
// capBytes. All elements start dirty.
func NewEngine(gs *geometry.GeometryState, nScores int, capBytes uint64) *Engine {
	e := &Engine{
		GS:        gs,
		NumScores: nScores,
		Cache:     NewCache(capBytes),
		dirty:     make(map[int]bool, gs.NumElements()),
	}
	for k := 0; k < gs.NumElements(); k++ {
		e.dirty[k] = true
	}
	return e
}

// Evaluate computes element k's metrics directly, bypassing the cache
func (e *Engine) Evaluate(k int) Metrics {
	el := e.GS.Elements[k]
	return Evaluate(el.Type, e.GS.ElementCoords(k), e.NumScores, e.Targets[k])
}

// Metrics returns element k's record, recomputing on miss
func (e *Engine) Metrics(k int) Metrics {
	if m, ok := e.Cache.Get(k); ok {
		return m
	}
	m := e.Evaluate(k)
	e.Cache.Put(k, m)
	return m
}

// InvalidateNode dirties every element touching the moved node
func (e *Engine) InvalidateNode(n int) {
	for _, k := range e.GS.NodeToElems[n] {
		e.Cache.Invalidate(k)
		e.dirty[k] = true
	}
}

// Refresh recomputes all dirty elements, in parallel through the runner,
// and returns their ids. Each worker writes only its own result slot; the
// cache fill is sequential. When the runner can batch condition numbers
// (a device executor), the 3D kappa slice goes through one KappaBatch call
// and only the remaining scores are computed host-side.
func (e *Engine) Refresh(run Runner) []int {
	if len(e.dirty) == 0 {
		return nil
	}
	ids := make([]int, 0, len(e.dirty))
	for k := range e.dirty {
		ids = append(ids, k)
	}
	var kappas map[int][]float64
	if b, ok := run.(KappaBatcher); ok {
		kappas = e.batchKappas(b, ids)
	}
	results := make([]Metrics, len(ids))
	run.RunElements(len(ids), func(i int) {
		k := ids[i]
		if kp, ok := kappas[k]; ok {
			el := e.GS.Elements[k]
			results[i] = EvaluateWithKappas(el.Type, e.GS.ElementCoords(k), e.NumScores, e.Targets[k], kp)
		} else {
			results[i] = e.Evaluate(k)
		}
	})
	for i, k := range ids {
		utils.IsNanPanic(results[i].Scores)
		e.Cache.Put(k, results[i])
		delete(e.dirty, k)
	}
	return ids
}

// batchKappas flattens the weighted corner matrices of every dirty 3D
// element into one row-major buffer, runs it through the batcher, and
// returns the per-element kappa slices. Planar elements stay on the host
// path. A batch error drops the whole batch back to the host path.
func (e *Engine) batchKappas(b KappaBatcher, ids []int) map[int][]float64 {
	var (
		flat    []float64
		offsets = make(map[int]int, len(ids))
	)
	for _, k := range ids {
		el := e.GS.Elements[k]
		if el.Type.Dimension() != 3 {
			continue
		}
		offsets[k] = len(flat) / 9
		for _, A := range SampleMatrices(el.Type, e.GS.ElementCoords(k), e.Targets[k]) {
			flat = append(flat, A.RawMatrix().Data...)
		}
	}
	if len(flat) == 0 {
		return nil
	}
	all, err := b.KappaBatch(flat)
	if err != nil {
		return nil
	}
	kappas := make(map[int][]float64, len(offsets))
	for k, off := range offsets {
		n := NumSamples(e.GS.Elements[k].Type)
		kappas[k] = all[off : off+n]
	}
	return kappas
}

// AggregateEQI averages the normalized score vector over the zone (nil
// means all elements). Degenerate elements contribute zero scores, pulling
// the aggregate down rather than poisoning it with NaN.
func (e *Engine) AggregateEQI(zone []int) []float64 {
	agg := make([]float64, e.NumScores)
	n := 0
	addElem := func(k int) {
		m := e.Metrics(k)
		if m.Scores == nil {
			return
		}
		for i := range agg {
			agg[i] += m.Scores[i]
		}
		n++
	}
	if zone == nil {
		for k := 0; k < e.GS.NumElements(); k++ {
			addElem(k)
		}
	} else {
		for _, k := range zone {
			addElem(k)
		}
	}
	if n == 0 {
		return agg
	}
	for i := range agg {
		agg[i] /= float64(n)
	}
	return agg
}

// CountDegenerate reports elements with an infinite condition number,
// used to flag degeneracy already present in the input mesh
func (e *Engine) CountDegenerate() (ids []int) {
	for k := 0; k < e.GS.NumElements(); k++ {
		if math.IsInf(e.Metrics(k).Kappa, 1) {
			ids = append(ids, k)
		}
	}
	return
}
