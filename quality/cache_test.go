package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadmesh/meshopt/geometry"
)

func TestCacheDirtyFlag(t *testing.T) {
	c := NewCache(1 << 20)
	c.Put(3, Metrics{Kappa: 2})
	m, ok := c.Get(3)
	require.True(t, ok)
	assert.Equal(t, 2.0, m.Kappa)

	c.Invalidate(3)
	_, ok = c.Get(3)
	assert.False(t, ok, "dirty entry must read as a miss")

	c.Put(3, Metrics{Kappa: 1.5})
	m, ok = c.Get(3)
	require.True(t, ok)
	assert.Equal(t, 1.5, m.Kappa)
}

func TestCacheLRUEviction(t *testing.T) {
	// Budget for exactly four entries
	c := NewCache(4 * entryBytes)
	for k := 0; k < 4; k++ {
		c.Put(k, Metrics{Kappa: float64(k)})
	}
	// Touch 0 so 1 becomes the eviction candidate
	_, ok := c.Get(0)
	require.True(t, ok)
	c.Put(4, Metrics{Kappa: 4})
	assert.Equal(t, 4, c.Len())
	_, ok = c.Get(1)
	assert.False(t, ok, "LRU entry should have been evicted")
	_, ok = c.Get(0)
	assert.True(t, ok)
}

func TestEngineRecomputesEvicted(t *testing.T) {
	gs := geometry.UnitCubeHexMesh(2)
	// Tiny budget: the cache can never hold the whole mesh
	e := NewEngine(gs, NumMetricsStructural, 2*entryBytes)
	for k := 0; k < gs.NumElements(); k++ {
		m := e.Metrics(k)
		assert.InDelta(t, 1.0, m.Kappa, 1e-12)
	}
	// Evicted entries recompute to the same values on next access
	m := e.Metrics(0)
	assert.InDelta(t, 1.0, m.Kappa, 1e-12)
}

func TestEngineInvalidation(t *testing.T) {
	gs := geometry.UnitCubeHexMesh(2)
	e := NewEngine(gs, NumMetricsStructural, 1<<20)
	e.Refresh(serialRunner{})

	// Move an interior node: its 8 adjacent hexes go dirty
	var interior int
	for i, nd := range gs.Nodes {
		if nd.Class == geometry.Interior {
			interior = i
			break
		}
	}
	gs.Nodes[interior].Position[0] += 0.3
	e.InvalidateNode(interior)
	ids := e.Refresh(serialRunner{})
	assert.Equal(t, len(gs.NodeToElems[interior]), len(ids))

	agg := e.AggregateEQI(nil)
	assert.True(t, agg[MCondition] < 1.0)
}

type serialRunner struct{}

func (serialRunner) RunElements(n int, fn func(int)) {
	for i := 0; i < n; i++ {
		fn(i)
	}
}
