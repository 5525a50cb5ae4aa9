package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadmesh/meshopt/conformance"
	"github.com/threadmesh/meshopt/geometry"
)

func TestColoringIsProper(t *testing.T) {
	gs := geometry.UnitCubeHexMesh(3)
	colors := ColorNodes(gs)

	seen := make(map[int]bool)
	for _, color := range colors {
		inColor := make(map[int]bool, len(color))
		for _, n := range color {
			assert.False(t, seen[n], "node %d colored twice", n)
			seen[n] = true
			inColor[n] = true
		}
		for _, el := range gs.Elements {
			hits := 0
			for _, n := range el.Nodes {
				if inColor[n] {
					hits++
				}
			}
			assert.LessOrEqual(t, hits, 1, "two nodes of one element share a color")
		}
	}
	assert.Equal(t, gs.NumNodes(), len(seen), "every node must be colored")
	// A structured hex mesh needs at least as many colors as an element has
	// nodes, since all eight corners of a hex are mutually adjacent.
	assert.GreaterOrEqual(t, len(colors), 8)
}

func TestColoringSeparatesInterfacePairs(t *testing.T) {
	gs, pairs := geometry.ContactPlates(4, 0.25, 0.01)
	_, err := conformance.BuildPairTable(gs, pairs)
	require.NoError(t, err)

	colors := ColorNodes(gs)
	colorOf := make(map[int]int)
	for c, color := range colors {
		for _, n := range color {
			colorOf[n] = c
		}
	}
	for _, p := range pairs {
		assert.NotEqual(t, colorOf[p[0]], colorOf[p[1]],
			"paired nodes %d and %d share a color", p[0], p[1])
	}
}
