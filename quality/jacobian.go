package quality

import (
	"sync"

	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/utils"
	"gonum.org/v1/gonum/mat"
)

// Corner-sampled Jacobians of the map from the ideal reference element to
// the physical element. At corner c the Jacobian is the matrix of edge
// vectors to the corner's neighbors, measured against the same matrix on
// the ideal element (the weight W_c), so an ideally shaped element yields
// A_c = J_c W_c^-1 = I at every sample point.

// cornerNeighbors lists, per element type, the neighbor vertices forming
// the edge matrix at each sampled corner. Orderings are right-handed: the
// ideal element produces a positive determinant at every sample.
// The pyramid is sampled at its four base corners only; the apex has four
// incident edges and no square Jacobian.
var cornerNeighbors = map[geometry.ElementType][][]int{
	geometry.Tri:     {{1, 2}, {2, 0}, {0, 1}},
	geometry.Quad:    {{1, 3}, {2, 0}, {3, 1}, {0, 2}},
	geometry.Tet:     {{1, 2, 3}, {3, 2, 0}, {1, 3, 0}, {2, 1, 0}},
	geometry.Hex:     {{1, 3, 4}, {2, 0, 5}, {3, 1, 6}, {0, 2, 7}, {7, 5, 0}, {4, 6, 1}, {5, 7, 2}, {6, 4, 3}},
	geometry.Prism:   {{1, 2, 3}, {2, 0, 4}, {0, 1, 5}, {5, 4, 0}, {3, 5, 1}, {4, 3, 2}},
	geometry.Pyramid: {{1, 3, 4}, {2, 0, 4}, {3, 1, 4}, {0, 2, 4}},
}

const sqrt3over2 = 0.8660254037844386
const invSqrt2 = 0.7071067811865476

// idealCoords returns the vertex coordinates of the ideally shaped element
// with unit edge length
func idealCoords(et geometry.ElementType) [][3]float64 {
	switch et {
	case geometry.Tri:
		return [][3]float64{{0, 0, 0}, {1, 0, 0}, {0.5, sqrt3over2, 0}}
	case geometry.Quad:
		return [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	case geometry.Tet:
		return [][3]float64{
			{0, 0, 0}, {1, 0, 0}, {0.5, sqrt3over2, 0},
			{0.5, sqrt3over2 / 3, 0.8164965809277260}, // sqrt(6)/3
		}
	case geometry.Hex:
		return [][3]float64{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
			{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
		}
	case geometry.Prism:
		return [][3]float64{
			{0, 0, 0}, {1, 0, 0}, {0.5, sqrt3over2, 0},
			{0, 0, 1}, {1, 0, 1}, {0.5, sqrt3over2, 1},
		}
	case geometry.Pyramid:
		return [][3]float64{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
			{0.5, 0.5, invSqrt2},
		}
	}
	panic("unknown element type")
}

var (
	weightMu    sync.Mutex
	weightCache = map[geometry.ElementType][]*mat.Dense{}
)

// IdealWeightInverses returns W_c^-1 per corner sample for the element
// type, computed once from the ideal element and cached.
func IdealWeightInverses(et geometry.ElementType) []*mat.Dense {
	weightMu.Lock()
	defer weightMu.Unlock()
	if w, ok := weightCache[et]; ok {
		return w
	}
	Ws := CornerJacobians(et, idealCoords(et))
	inv := make([]*mat.Dense, len(Ws))
	for i, W := range Ws {
		r, c := W.Dims()
		inv[i] = mat.NewDense(r, c, nil)
		if err := inv[i].Inverse(W); err != nil {
			panic("ideal weight matrix is singular") // construction error
		}
	}
	weightCache[et] = inv
	return inv
}

// CornerJacobians computes the per-corner edge matrices of the element.
// 3D types yield 3x3 matrices; surface types (Tri, Quad) yield 2x2
// matrices in the element's own right-handed plane basis, so in-plane
// inversion shows as a negative determinant.
func CornerJacobians(et geometry.ElementType, X [][3]float64) []*mat.Dense {
	nbrs := cornerNeighbors[et]
	if et.Dimension() == 3 {
		Js := make([]*mat.Dense, len(nbrs))
		for c, nb := range nbrs {
			J := mat.NewDense(3, 3, nil)
			for col, v := range nb {
				e := utils.Sub3(X[v], X[c])
				J.SetCol(col, e[:])
			}
			Js[c] = J
		}
		return Js
	}
	// Surface element: project edges onto the element plane
	var n [3]float64
	if et == geometry.Tri {
		n = utils.Cross3(utils.Sub3(X[1], X[0]), utils.Sub3(X[2], X[0]))
	} else {
		n = utils.Cross3(utils.Sub3(X[1], X[0]), utils.Sub3(X[3], X[0]))
	}
	n, l := utils.Normalize3(n)
	if l == 0 {
		// Collapsed element: report zero Jacobians, metrics treat them
		// as degenerate
		Js := make([]*mat.Dense, len(nbrs))
		for c := range nbrs {
			Js[c] = mat.NewDense(2, 2, nil)
		}
		return Js
	}
	u, v := utils.OrthonormalBasis3(n)
	Js := make([]*mat.Dense, len(nbrs))
	for c, nb := range nbrs {
		J := mat.NewDense(2, 2, nil)
		for col, w := range nb {
			e := utils.Sub3(X[w], X[c])
			J.SetCol(col, []float64{utils.Dot3(e, u), utils.Dot3(e, v)})
		}
		Js[c] = J
	}
	return Js
}

// NumSamples returns the corner sample count for an element type
func NumSamples(et geometry.ElementType) int {
	return len(cornerNeighbors[et])
}
