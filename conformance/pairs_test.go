package conformance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadmesh/meshopt/geometry"
)

func twinPlates(t *testing.T) (*geometry.GeometryState, *PairTable) {
	t.Helper()
	gs, pairs := geometry.ContactPlates(4, 0.25, 0.01)
	pt, err := BuildPairTable(gs, pairs)
	require.NoError(t, err)
	require.NoError(t, pt.Validate(gs))
	return gs, pt
}

func TestPairTableValidate(t *testing.T) {
	gs, pairs := geometry.ContactPlates(4, 0.25, 0.01)

	// Complete table passes
	pt, err := BuildPairTable(gs, pairs)
	require.NoError(t, err)
	assert.NoError(t, pt.Validate(gs))

	// Partner references are symmetric
	for _, p := range pairs {
		assert.Equal(t, p[1], pt.Partner(p[0]))
		assert.Equal(t, p[0], pt.Partner(p[1]))
	}

	// A hole in the table is a fatal precondition
	gs2, pairs2 := geometry.ContactPlates(4, 0.25, 0.01)
	pt2, err := BuildPairTable(gs2, pairs2[1:])
	require.NoError(t, err)
	assert.Error(t, pt2.Validate(gs2))
}

func TestPairTableRejectsDuplicates(t *testing.T) {
	gs, pairs := geometry.ContactPlates(4, 0.25, 0.01)
	bad := append(pairs, pairs[0])
	_, err := BuildPairTable(gs, bad)
	assert.Error(t, err)
}

func TestCorrespondenceScenario(t *testing.T) {
	// Two planar plates 0.01 apart, 4x4 grids, element size 0.25,
	// threshold 3.5%: a relative offset of 0.008 is inside 0.00875 and a
	// relative offset of 0.012 is outside.
	gs, pt := twinPlates(t)
	c := &Correspondence{Table: pt, Threshold: CorrespondenceThresholdDefault}

	var n int
	for i := range gs.Nodes {
		if gs.Nodes[i].Class == geometry.Interface {
			n = i
			break
		}
	}
	nd := gs.Nodes[n]
	// LocalSize on the triangulated grid is not exactly the spacing; pin
	// it for the scenario numbers
	gs.Nodes[n].LocalSize = 0.25

	accept := nd.Position
	accept[0] += 0.008
	assert.True(t, c.Drift(gs, n, accept) <= c.Threshold)
	pos, drift, ok := c.Check(gs, n, accept)
	assert.True(t, ok)
	assert.Equal(t, accept, pos)
	assert.InDelta(t, 0.008/0.25, drift, 1e-12)

	reject := nd.Position
	reject[0] += 0.012
	assert.True(t, c.Drift(gs, n, reject) > c.Threshold)
}

func TestCorrespondenceRetry(t *testing.T) {
	gs, pt := twinPlates(t)
	c := &Correspondence{Table: pt, Threshold: CorrespondenceThresholdDefault}

	var n int
	for i := range gs.Nodes {
		if gs.Nodes[i].Class == geometry.Interface {
			n = i
			break
		}
	}
	gs.Nodes[n].LocalSize = 0.25

	// 0.012 drift fails, the halfway retry at 0.006 passes
	prop := gs.Nodes[n].Position
	prop[0] += 0.012
	pos, drift, ok := c.Check(gs, n, prop)
	assert.True(t, ok)
	assert.InDelta(t, 0.006/0.25, drift, 1e-12)
	assert.InDelta(t, gs.Nodes[n].Position[0]+0.006, pos[0], 1e-12)

	// Far beyond reach even after the retry: the previous position wins,
	// flagged
	prop = gs.Nodes[n].Position
	prop[0] += 0.5
	pos, _, ok = c.Check(gs, n, prop)
	assert.False(t, ok)
	assert.Equal(t, gs.Nodes[n].Position, pos)
}
