package optimize

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/params"
	"github.com/threadmesh/meshopt/quality"
	"github.com/threadmesh/meshopt/utils"
)

const (
	armijoBeta = 0.5
	armijoC1   = 1e-4
	armijoMin  = 1.0 / 1024.0
	// stepCap limits the Newton step to half the local element size so a
	// single iteration cannot tunnel through a neighboring element
	stepCap = 0.5
	// fdStep scales the finite-difference stencil by the local size
	fdStep = 1e-4
)

// subspaceBasis returns the orthonormal movement directions admitted by the
// node's classification. Corner nodes get none and never move.
func subspaceBasis(nd *geometry.Node) [][3]float64 {
	switch nd.Class {
	case geometry.Corner:
		return nil
	case geometry.Edge:
		return [][3]float64{nd.Tangent}
	case geometry.Surface, geometry.Interface:
		return [][3]float64{nd.TangentU, nd.TangentV}
	default:
		return [][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
}

// objective is the local merit function at a trial position for node n:
// summed condition number or summed EQI complement over the adjacent
// elements. Any degenerate adjacent element makes the objective infinite.
func (o *Optimizer) objective(n int, pos [3]float64) float64 {
	var sum float64
	o.withPosition(n, pos, func() {
		for _, k := range o.GS.NodeToElems[n] {
			el := o.GS.Elements[k]
			m := quality.Evaluate(el.Type, o.GS.ElementCoords(k), o.Engine.NumScores, o.Engine.Targets[k])
			if math.IsInf(m.Kappa, 1) {
				sum = math.Inf(1)
				return
			}
			if o.Params.DriverMode == params.ConditionNumber {
				sum += m.Kappa
			} else {
				sum += 1 - quality.EQI(m.Scores, o.Params.MetricWeights)
			}
		}
	})
	return sum
}

// recovery is the substitute merit used while the local patch contains an
// inverted or collapsed element: the negated minimum corner determinant.
// Descending on it grows the smallest determinant back through zero, after
// which the regular objective takes over.
func (o *Optimizer) recovery(n int, pos [3]float64) float64 {
	minDet := math.Inf(1)
	o.withPosition(n, pos, func() {
		for _, k := range o.GS.NodeToElems[n] {
			el := o.GS.Elements[k]
			for _, J := range quality.CornerJacobians(el.Type, o.GS.ElementCoords(k)) {
				if d := mat.Det(J); d < minDet {
					minDet = d
				}
			}
		}
	})
	return -minDet
}

// withPosition evaluates f with node n temporarily relocated. Safe under
// color-parallel execution: nodes of one color share no element, so no other
// goroutine reads this node's position.
func (o *Optimizer) withPosition(n int, pos [3]float64, f func()) {
	nd := &o.GS.Nodes[n]
	saved := nd.Position
	nd.Position = pos
	f()
	nd.Position = saved
}

// nodeStep computes one optimization step for node n: a finite-difference
// Newton direction in the node's admissible subspace with Armijo
// backtracking, then conformance projection and, for interface nodes,
// correspondence enforcement. Returns the accepted position and whether the
// node actually moved.
func (o *Optimizer) nodeStep(n int) (pos [3]float64, moved bool) {
	nd := &o.GS.Nodes[n]
	pos = nd.Position
	basis := subspaceBasis(nd)
	if len(basis) == 0 {
		return
	}
	L := nd.LocalSize
	if L <= 0 {
		L = 1
	}

	f := o.objective
	f0 := f(n, pos)
	if math.IsInf(f0, 1) {
		f = o.recovery
		f0 = f(n, pos)
	}

	dir, slope, ok := o.descentDirection(n, pos, basis, f, L)
	if !ok {
		return pos, false
	}

	// Armijo backtracking with a minimum step: a node that cannot find a
	// sufficient-decrease step sits out the iteration.
	var (
		alpha = 1.0
		cand  [3]float64
		found bool
	)
	for alpha >= armijoMin {
		cand = utils.Add3(pos, utils.Scale3(dir, alpha))
		if fc := f(n, cand); fc <= f0+armijoC1*alpha*slope {
			found = true
			break
		}
		alpha *= armijoBeta
	}
	if !found {
		return pos, false
	}

	// Pull the accepted point back onto the geometric subspace and check
	// the deviation tolerance.
	proj, _, devOK := o.Proj.Apply(nd, utils.Sub3(cand, nd.Position))
	if !devOK {
		o.devFlags[n] = true
	}
	if o.Corr != nil && nd.Class == geometry.Interface {
		var corrOK bool
		proj, _, corrOK = o.Corr.Check(o.GS, n, proj)
		if !corrOK {
			o.corrFlags[n] = true
		}
	}
	if utils.Norm3(utils.Sub3(proj, nd.Position)) == 0 {
		return nd.Position, false
	}
	// Never trade a finite local objective for a worse or infinite one
	// after projection.
	if fp := f(n, proj); fp > f0 {
		return nd.Position, false
	}
	return proj, true
}

// descentDirection builds the Newton direction from finite-difference
// gradient and Hessian samples in the subspace, falling back to steepest
// descent when the Hessian is unusable. The returned slope is the
// directional derivative along dir.
func (o *Optimizer) descentDirection(n int, p0 [3]float64, basis [][3]float64, f func(int, [3]float64) float64, L float64) (dir [3]float64, slope float64, ok bool) {
	var (
		m  = len(basis)
		h  = fdStep * L
		f0 = f(n, p0)
		at = func(c []float64) float64 {
			p := p0
			for i := range c {
				p = utils.Add3(p, utils.Scale3(basis[i], c[i]))
			}
			return f(n, p)
		}
		g      = make([]float64, m)
		c      = make([]float64, m)
		hessOK = true
	)
	H := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		c[i] = h
		fp := at(c)
		c[i] = -h
		fm := at(c)
		c[i] = 0
		if math.IsInf(fp, 1) || math.IsInf(fm, 1) {
			// one-sided stencils near the barrier
			switch {
			case !math.IsInf(fm, 1):
				g[i] = (f0 - fm) / h
			case !math.IsInf(fp, 1):
				g[i] = (fp - f0) / h
			default:
				return dir, 0, false
			}
			hessOK = false
			continue
		}
		g[i] = (fp - fm) / (2 * h)
		H.SetSym(i, i, (fp-2*f0+fm)/(h*h))
	}
	var gnorm float64
	for _, v := range g {
		gnorm += v * v
	}
	if gnorm == 0 || math.IsNaN(gnorm) {
		return dir, 0, false
	}
	if hessOK {
		for i := 0; i < m; i++ {
			for j := i + 1; j < m; j++ {
				c[i], c[j] = h, h
				fpp := at(c)
				c[j] = -h
				fpm := at(c)
				c[i] = -h
				fmm := at(c)
				c[j] = h
				fmp := at(c)
				c[i], c[j] = 0, 0
				if math.IsInf(fpp, 1) || math.IsInf(fpm, 1) || math.IsInf(fmp, 1) || math.IsInf(fmm, 1) {
					hessOK = false
					break
				}
				H.SetSym(i, j, (fpp-fpm-fmp+fmm)/(4*h*h))
			}
			if !hessOK {
				break
			}
		}
	}

	d := make([]float64, m)
	solved := false
	if hessOK {
		var chol mat.Cholesky
		if chol.Factorize(H) {
			x := mat.NewVecDense(m, nil)
			if err := chol.SolveVecTo(x, mat.NewVecDense(m, g)); err == nil {
				for i := range d {
					d[i] = -x.AtVec(i)
				}
				solved = true
			}
		}
	}
	if !solved {
		// steepest descent when the patch is non-convex or near the barrier
		for i := range d {
			d[i] = -g[i]
		}
	}
	for i := range d {
		slope += d[i] * g[i]
	}
	if slope >= 0 {
		for i := range d {
			d[i] = -g[i]
		}
		slope = -gnorm
	}
	// basis is orthonormal, so the subspace norm is the world-space norm
	var dnorm float64
	for _, v := range d {
		dnorm += v * v
	}
	dnorm = math.Sqrt(dnorm)
	if dnorm == 0 || math.IsNaN(dnorm) {
		return dir, 0, false
	}
	if limit := stepCap * L; dnorm > limit {
		scale := limit / dnorm
		for i := range d {
			d[i] *= scale
		}
		slope *= scale
	}
	for i := range d {
		dir = utils.Add3(dir, utils.Scale3(basis[i], d[i]))
	}
	return dir, slope, true
}
