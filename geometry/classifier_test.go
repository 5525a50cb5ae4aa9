package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadmesh/meshopt/utils"
)

func TestClassifyPrecedence(t *testing.T) {
	gs := &GeometryState{Nodes: []Node{
		{ID: 0, Position: [3]float64{0, 0, 0}},
		{ID: 1, Position: [3]float64{1, 0, 0}},
		{ID: 2, Position: [3]float64{2, 0, 0}},
		{ID: 3, Position: [3]float64{3, 0, 0}},
	}}
	in := ClassifierInput{Frames: [][]EntityFrame{
		// Node touched by surface and vertex entities: vertex wins
		{{Dim: 2, Normal: [3]float64{0, 0, 1}}, {Dim: 0}},
		// Volume and curve: curve wins
		{{Dim: 3}, {Dim: 1, Tangent: [3]float64{2, 0, 0}}},
		// Surface only
		{{Dim: 2, Normal: [3]float64{0, 0, 2}}},
		// Volume only
		{{Dim: 3}},
	}}
	require.NoError(t, Classify(gs, in))
	assert.Equal(t, Corner, gs.Nodes[0].Class)
	assert.Equal(t, Edge, gs.Nodes[1].Class)
	assert.Equal(t, Surface, gs.Nodes[2].Class)
	assert.Equal(t, Interior, gs.Nodes[3].Class)

	// Tangent and normal come back unit length
	assert.InDelta(t, 1., utils.Norm3(gs.Nodes[1].Tangent), 1e-14)
	assert.InDelta(t, 1., utils.Norm3(gs.Nodes[2].Normal), 1e-14)

	// The tangent pair spans the plane orthogonal to the normal
	nd := gs.Nodes[2]
	assert.InDelta(t, 0., utils.Dot3(nd.TangentU, nd.Normal), 1e-14)
	assert.InDelta(t, 0., utils.Dot3(nd.TangentV, nd.Normal), 1e-14)
	assert.InDelta(t, 0., utils.Dot3(nd.TangentU, nd.TangentV), 1e-14)

	// Anchor captured at classification time
	assert.Equal(t, gs.Nodes[2].Position, gs.Nodes[2].Anchor)
}

func TestClassifyInterfaceOverride(t *testing.T) {
	gs := &GeometryState{Nodes: []Node{
		{ID: 0}, {ID: 1},
	}}
	in := ClassifierInput{
		Frames: [][]EntityFrame{
			{{Dim: 2, Normal: [3]float64{0, 0, 1}}},
			{{Dim: 2, Normal: [3]float64{0, 0, 1}}},
		},
		InterfaceZone: []int{1},
	}
	require.NoError(t, Classify(gs, in))
	assert.Equal(t, Surface, gs.Nodes[0].Class)
	assert.Equal(t, Interface, gs.Nodes[1].Class)
}

func TestClassifyMissingEntityFatal(t *testing.T) {
	gs := &GeometryState{Nodes: []Node{{ID: 7}}}
	err := Classify(gs, ClassifierInput{Frames: [][]EntityFrame{{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no originating entity")
}

func TestClassifyDegenerateFrame(t *testing.T) {
	gs := &GeometryState{Nodes: []Node{{ID: 0}}}
	err := Classify(gs, ClassifierInput{Frames: [][]EntityFrame{
		{{Dim: 2, Normal: [3]float64{0, 0, 0}}},
	}})
	require.Error(t, err)
}
