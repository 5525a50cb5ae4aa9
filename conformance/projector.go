package conformance

import (
	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/utils"
)

// Workbench deviation thresholds. Edge nodes use threshold/10.
const (
	DeviationThresholdStructural = 0.01  // 1.0%
	DeviationThresholdCFD        = 0.001 // 0.1%
	DeviationEdgeFactor          = 0.1
)

// Projector corrects raw Newton displacements to each node's DOF subspace
// and enforces the geometry deviation tolerance.
type Projector struct {
	// Deviation threshold for Surface/Interface nodes; Edge nodes use
	// Threshold * DeviationEdgeFactor
	Threshold float64
}

// Project returns the component of d inside the node's movement subspace
func (p *Projector) Project(nd *geometry.Node, d [3]float64) [3]float64 {
	switch nd.Class {
	case geometry.Corner:
		return [3]float64{}
	case geometry.Edge:
		return utils.Scale3(nd.Tangent, utils.Dot3(d, nd.Tangent))
	case geometry.Surface, geometry.Interface:
		// Discard the normal component
		return utils.Sub3(d, utils.Scale3(nd.Normal, utils.Dot3(d, nd.Normal)))
	default: // Interior
		return d
	}
}

// Deviation is the normalized distance from the node's surface/curve
// anchor: |pos - anchor| / L_local. The reference per-axis quotient is
// dimensionally ill-posed for vectors; the local characteristic element
// length is the denominator here, falling back to the anchor's distance
// from the internal frame origin for isolated nodes.
func (p *Projector) Deviation(nd *geometry.Node, pos [3]float64) float64 {
	l := nd.LocalSize
	if l == 0 {
		l = utils.Norm3(nd.Anchor)
	}
	if l == 0 {
		l = 1
	}
	return utils.Norm3(utils.Sub3(pos, nd.Anchor)) / l
}

// ThresholdFor returns the active deviation bound for the node's class
func (p *Projector) ThresholdFor(nd *geometry.Node) float64 {
	if nd.Class == geometry.Edge {
		return p.Threshold * DeviationEdgeFactor
	}
	return p.Threshold
}

// Apply corrects a raw displacement and enforces the deviation tolerance:
// project into the subspace, check the normalized anchor deviation, on
// violation retry once with the move pulled back toward the anchor, and
// otherwise accept the best feasible position with ok=false so the caller
// can flag the node. Never fatal.
func (p *Projector) Apply(nd *geometry.Node, d [3]float64) (pos [3]float64, dev float64, ok bool) {
	d = p.Project(nd, d)
	pos = utils.Add3(nd.Position, d)
	if nd.Class == geometry.Interior || nd.Class == geometry.Corner {
		return pos, 0, true
	}
	var (
		tol = p.ThresholdFor(nd)
	)
	dev = p.Deviation(nd, pos)
	if dev <= tol {
		return pos, dev, true
	}

	// Retry: pull the candidate toward the anchor onto the tolerance
	// sphere, then re-project the implied displacement into the subspace
	toAnchor := utils.Sub3(pos, nd.Anchor)
	u, l := utils.Normalize3(toAnchor)
	if l > 0 {
		lim := utils.Add3(nd.Anchor, utils.Scale3(u, tol*p.localLength(nd)))
		d2 := p.Project(nd, utils.Sub3(lim, nd.Position))
		cand := utils.Add3(nd.Position, d2)
		if cd := p.Deviation(nd, cand); cd <= tol {
			return cand, cd, true
		} else if cd < dev {
			pos, dev = cand, cd
		}
	}

	// Keep whichever position deviates least, flagged
	if stay := p.Deviation(nd, nd.Position); stay < dev {
		return nd.Position, stay, false
	}
	return pos, dev, false
}

func (p *Projector) localLength(nd *geometry.Node) float64 {
	l := nd.LocalSize
	if l == 0 {
		l = utils.Norm3(nd.Anchor)
	}
	if l == 0 {
		l = 1
	}
	return l
}
