package optimize

import (
	"github.com/james-bowman/sparse"

	"github.com/threadmesh/meshopt/geometry"
)

// ColorNodes partitions the mesh nodes into independent sets: two nodes
// receive the same color only if no element contains both. Nodes within one
// color can be relocated concurrently because their element stencils are
// disjoint in the moving node.
func ColorNodes(gs *geometry.GeometryState) (colors [][]int) {
	var (
		nn = len(gs.Nodes)
		ne = len(gs.Elements)
	)
	if nn == 0 {
		return nil
	}
	// Node to element incidence, then incidence times its transpose yields
	// the node adjacency structure, same construction as face connectivity
	// in a DG startup.
	inc := sparse.NewDOK(nn, ne)
	for k, el := range gs.Elements {
		for _, n := range el.Nodes {
			inc.Set(n, k, 1)
		}
	}
	adj := sparse.NewCSR(nn, nn, nil, nil, nil)
	incCSR := inc.ToCSR()
	adj.Mul(incCSR, incCSR.T())

	var (
		colorOf = make([]int, nn)
		nColors int
	)
	for i := range colorOf {
		colorOf[i] = -1
	}
	used := make([]bool, 0)
	for i := 0; i < nn; i++ {
		used = used[:0]
		for len(used) < nColors {
			used = append(used, false)
		}
		adj.DoRowNonZero(i, func(_, j int, _ float64) {
			if j != i && colorOf[j] >= 0 {
				used[colorOf[j]] = true
			}
		})
		// interface partners read each other's positions during the
		// correspondence check, so they may not share a color
		if p := gs.Nodes[i].Pair; p >= 0 && colorOf[p] >= 0 {
			used[colorOf[p]] = true
		}
		c := 0
		for c < len(used) && used[c] {
			c++
		}
		if c == nColors {
			nColors++
		}
		colorOf[i] = c
	}
	colors = make([][]int, nColors)
	for i, c := range colorOf {
		colors[c] = append(colors[c], i)
	}
	return
}
