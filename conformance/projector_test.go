package conformance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/utils"
)

func TestProjectByClass(t *testing.T) {
	p := &Projector{Threshold: DeviationThresholdStructural}
	d := [3]float64{0.3, -0.2, 0.5}

	corner := &geometry.Node{Class: geometry.Corner}
	assert.Equal(t, [3]float64{}, p.Project(corner, d))

	edge := &geometry.Node{Class: geometry.Edge, Tangent: [3]float64{1, 0, 0}}
	pd := p.Project(edge, d)
	assert.Equal(t, [3]float64{0.3, 0, 0}, pd)
	assert.InDelta(t, 0., utils.Norm3(utils.Cross3(pd, edge.Tangent)), 1e-14)

	surf := &geometry.Node{Class: geometry.Surface, Normal: [3]float64{0, 0, 1}}
	pd = p.Project(surf, d)
	assert.InDelta(t, 0., utils.Dot3(pd, surf.Normal), 1e-14)
	assert.Equal(t, [3]float64{0.3, -0.2, 0}, pd)

	interior := &geometry.Node{Class: geometry.Interior}
	assert.Equal(t, d, p.Project(interior, d))
}

func TestApplyWithinTolerance(t *testing.T) {
	p := &Projector{Threshold: DeviationThresholdStructural}
	nd := &geometry.Node{
		Class:     geometry.Surface,
		Position:  [3]float64{0, 0, 0},
		Anchor:    [3]float64{0, 0, 0},
		Normal:    [3]float64{0, 0, 1},
		LocalSize: 1.0,
	}
	pos, dev, ok := p.Apply(nd, [3]float64{0.005, 0, 0.7})
	assert.True(t, ok)
	assert.InDelta(t, 0.005, dev, 1e-14)
	assert.Equal(t, [3]float64{0.005, 0, 0}, pos)
}

func TestApplyRetryClampsToTolerance(t *testing.T) {
	p := &Projector{Threshold: DeviationThresholdStructural}
	nd := &geometry.Node{
		Class:     geometry.Surface,
		Position:  [3]float64{0, 0, 0},
		Anchor:    [3]float64{0, 0, 0},
		Normal:    [3]float64{0, 0, 1},
		LocalSize: 1.0,
	}
	// Raw in-plane move of 0.05 against a 0.01 bound: the retry pulls the
	// position back onto the tolerance sphere
	pos, dev, ok := p.Apply(nd, [3]float64{0.05, 0, 0})
	assert.True(t, ok)
	assert.InDelta(t, DeviationThresholdStructural, dev, 1e-12)
	assert.InDelta(t, 0.01, utils.Norm3(pos), 1e-12)
}

func TestApplyEdgeUsesTighterBound(t *testing.T) {
	p := &Projector{Threshold: DeviationThresholdStructural}
	nd := &geometry.Node{
		Class:     geometry.Edge,
		Position:  [3]float64{0, 0, 0},
		Anchor:    [3]float64{0, 0, 0},
		Tangent:   [3]float64{1, 0, 0},
		LocalSize: 1.0,
	}
	pos, dev, ok := p.Apply(nd, [3]float64{0.005, 0, 0})
	assert.True(t, ok)
	// Edge bound is threshold/10 = 0.001, so 0.005 gets clamped
	assert.InDelta(t, 0.001, dev, 1e-12)
	assert.InDelta(t, 0.001, pos[0], 1e-12)
}

func TestApplyFlagsWhenAnchorUnreachable(t *testing.T) {
	p := &Projector{Threshold: DeviationThresholdStructural}
	// The node's tangent plane passes 0.05 above its anchor, so no
	// in-plane position can reach the 0.01 tolerance sphere: the retry
	// fails and the best feasible position is kept, flagged
	nd := &geometry.Node{
		Class:     geometry.Surface,
		Position:  [3]float64{0, 0, 0.05},
		Anchor:    [3]float64{0, 0, 0},
		Normal:    [3]float64{0, 0, 1},
		LocalSize: 1.0,
	}
	pos, dev, ok := p.Apply(nd, [3]float64{0.05, 0, 0})
	assert.False(t, ok)
	assert.InDelta(t, 0.05, dev, 1e-12)
	assert.Equal(t, nd.Position, pos)
}

func TestCornerNeverMoves(t *testing.T) {
	p := &Projector{Threshold: DeviationThresholdCFD}
	nd := &geometry.Node{Class: geometry.Corner, Position: [3]float64{1, 2, 3}}
	pos, _, ok := p.Apply(nd, [3]float64{9, 9, 9})
	assert.True(t, ok)
	assert.Equal(t, nd.Position, pos)
}
