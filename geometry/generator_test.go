package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadmesh/meshopt/utils"
)

func TestUnitCubeHexMesh(t *testing.T) {
	n := 3
	gs := UnitCubeHexMesh(n)
	assert.Equal(t, (n+1)*(n+1)*(n+1), gs.NumNodes())
	assert.Equal(t, n*n*n, gs.NumElements())

	counts := map[NodeClass]int{}
	for _, nd := range gs.Nodes {
		counts[nd.Class]++
	}
	assert.Equal(t, 8, counts[Corner])
	assert.Equal(t, 12*(n-1), counts[Edge])
	assert.Equal(t, 6*(n-1)*(n-1), counts[Surface])
	assert.Equal(t, (n-1)*(n-1)*(n-1), counts[Interior])

	// Adjacency: a strict interior node of the 3-block touches 8 hexes
	for i, nd := range gs.Nodes {
		if nd.Class == Interior {
			assert.Equal(t, 8, len(gs.NodeToElems[i]))
		}
	}
	// Unit cells give unit characteristic length
	for _, nd := range gs.Nodes {
		assert.InDelta(t, 1.0, nd.LocalSize, 1e-12)
	}
}

func TestTetBlockOrientation(t *testing.T) {
	gs := TetBlockMesh(2)
	assert.Equal(t, 6*8, gs.NumElements())
	for k := range gs.Elements {
		X := gs.ElementCoords(k)
		e1 := utils.Sub3(X[1], X[0])
		e2 := utils.Sub3(X[2], X[0])
		e3 := utils.Sub3(X[3], X[0])
		vol := utils.Dot3(utils.Cross3(e1, e2), e3)
		assert.True(t, vol > 0, "tet %d has non-positive volume %g", k, vol)
	}
}

func TestSingleTetMesh(t *testing.T) {
	gs := SingleTetMesh(false)
	assert.Equal(t, Interior, gs.Nodes[3].Class)
	for i := 0; i < 3; i++ {
		assert.Equal(t, Corner, gs.Nodes[i].Class)
	}
	inv := SingleTetMesh(true)
	assert.True(t, inv.Nodes[3].Position[2] < 0)
}

func TestContactPlates(t *testing.T) {
	n, h, gap := 4, 0.25, 0.01
	gs, pairs := ContactPlates(n, h, gap)
	require.Equal(t, 2*n*n, gs.NumNodes())
	require.Equal(t, (n-2)*(n-2), len(pairs))

	for _, p := range pairs {
		a, b := gs.Nodes[p[0]], gs.Nodes[p[1]]
		assert.Equal(t, Interface, a.Class)
		assert.Equal(t, Interface, b.Class)
		// Partners sit directly across the gap
		d := utils.Sub3(b.Position, a.Position)
		assert.InDelta(t, 0., d[0], 1e-12)
		assert.InDelta(t, 0., d[1], 1e-12)
		assert.InDelta(t, gap, d[2], 1e-12)
		assert.InDelta(t, h, a.LocalSize, h*0.5)
	}
	// Plate borders stay constrained to curves and corners
	var corners int
	for _, nd := range gs.Nodes {
		if nd.Class == Corner {
			corners++
		}
	}
	assert.Equal(t, 8, corners)
}

func TestPerturbRespectsSubspace(t *testing.T) {
	gs := UnitCubeHexMesh(3)
	before := make([][3]float64, gs.NumNodes())
	for i, nd := range gs.Nodes {
		before[i] = nd.Position
	}
	Perturb(gs, 0.2, 42)
	for i, nd := range gs.Nodes {
		d := utils.Sub3(nd.Position, before[i])
		switch nd.Class {
		case Corner:
			assert.Equal(t, 0., utils.Norm3(d))
		case Edge:
			// Displacement parallel to the tangent
			assert.InDelta(t, 0., utils.Norm3(utils.Cross3(d, nd.Tangent)), 1e-12)
		case Surface:
			assert.InDelta(t, 0., utils.Dot3(d, nd.Normal), 1e-12)
		}
	}
}

func TestCoordinateFrames(t *testing.T) {
	gs := UnitCubeHexMesh(2)
	gs.CenterAtOrigin()
	assert.InDelta(t, 1.0, gs.OriginOffset[0], 1e-12)
	p := gs.ToUserCoords(gs.Nodes[0].Position)
	assert.InDelta(t, 0., p[0], 1e-12)
	back := gs.ToInternalCoords(p)
	assert.Equal(t, gs.Nodes[0].Position, back)
}
