package geometry

import (
	"math/rand"

	"github.com/pradeep-pyro/triangle"
	"github.com/threadmesh/meshopt/utils"
)

// Benchmark mesh factory. These meshes feed the CLI cases and the test
// suite; real meshes arrive classified from the import collaborator.

// UnitCubeHexMesh builds an n x n x n block of unit-sized hexahedra on
// [0,n]^3, fully classified from the analytic cube topology: block corners
// are Corner, block edges Edge, faces Surface, the rest Interior.
func UnitCubeHexMesh(n int) *GeometryState {
	if n < 1 {
		panic("UnitCubeHexMesh requires n >= 1")
	}
	var (
		gs  = &GeometryState{}
		np  = n + 1
		idx = func(i, j, k int) int { return i + np*(j+np*k) }
	)
	gs.Nodes = make([]Node, np*np*np)
	frames := make([][]EntityFrame, len(gs.Nodes))
	for k := 0; k < np; k++ {
		for j := 0; j < np; j++ {
			for i := 0; i < np; i++ {
				id := idx(i, j, k)
				gs.Nodes[id] = Node{
					ID:       id,
					Position: [3]float64{float64(i), float64(j), float64(k)},
				}
				frames[id] = cubeFrames(i, j, k, n)
			}
		}
	}
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				gs.Elements = append(gs.Elements, Element{Type: Hex, Nodes: []int{
					idx(i, j, k), idx(i+1, j, k), idx(i+1, j+1, k), idx(i, j+1, k),
					idx(i, j, k+1), idx(i+1, j, k+1), idx(i+1, j+1, k+1), idx(i, j+1, k+1),
				}})
			}
		}
	}
	finishMesh(gs, ClassifierInput{Frames: frames})
	return gs
}

// cubeFrames derives the entity annotation of a block grid node from how
// many of its indices sit on the block boundary.
func cubeFrames(i, j, k, n int) []EntityFrame {
	var (
		onBound  [3]bool
		normals  [][3]float64
		boundCnt int
	)
	for a, v := range [3]int{i, j, k} {
		if v == 0 || v == n {
			onBound[a] = true
			boundCnt++
			sign := -1.0
			if v == n {
				sign = 1.0
			}
			var nrm [3]float64
			nrm[a] = sign
			normals = append(normals, nrm)
		}
	}
	switch boundCnt {
	case 3:
		return []EntityFrame{{Dim: 0}}
	case 2:
		// Feature curve along the one free axis
		var t [3]float64
		for a := 0; a < 3; a++ {
			if !onBound[a] {
				t[a] = 1
			}
		}
		return []EntityFrame{{Dim: 1, Tangent: t}}
	case 1:
		return []EntityFrame{{Dim: 2, Normal: normals[0]}}
	default:
		return []EntityFrame{{Dim: 3}}
	}
}

// TetBlockMesh builds the same block subdivided into 6 tetrahedra per cell
// (Kuhn subdivision along the 0-6 cell diagonal, all positively oriented).
func TetBlockMesh(n int) *GeometryState {
	gs := UnitCubeHexMesh(n)
	hexes := gs.Elements
	gs.Elements = nil
	splits := [6][4]int{
		{0, 1, 2, 6}, {0, 2, 3, 6}, {0, 3, 7, 6},
		{0, 7, 4, 6}, {0, 4, 5, 6}, {0, 5, 1, 6},
	}
	for _, h := range hexes {
		for _, s := range splits {
			gs.Elements = append(gs.Elements, Element{Type: Tet, Nodes: []int{
				h.Nodes[s[0]], h.Nodes[s[1]], h.Nodes[s[2]], h.Nodes[s[3]],
			}})
		}
	}
	gs.BuildAdjacency()
	gs.ComputeLocalSizes()
	return gs
}

// SingleTetMesh builds one tetrahedron with the base fixed and the apex
// free. With inverted set, the apex is reflected through the base plane so
// the element starts with negative volume.
func SingleTetMesh(inverted bool) *GeometryState {
	apex := [3]float64{0.3, 0.3, 1}
	if inverted {
		apex[2] = -1
	}
	gs := &GeometryState{
		Nodes: []Node{
			{ID: 0, Position: [3]float64{0, 0, 0}},
			{ID: 1, Position: [3]float64{1, 0, 0}},
			{ID: 2, Position: [3]float64{0, 1, 0}},
			{ID: 3, Position: apex},
		},
		Elements: []Element{{Type: Tet, Nodes: []int{0, 1, 2, 3}}},
	}
	frames := [][]EntityFrame{
		{{Dim: 0}}, {{Dim: 0}}, {{Dim: 0}}, {{Dim: 3}},
	}
	finishMesh(gs, ClassifierInput{Frames: frames})
	return gs
}

// ContactPlates builds two parallel square plates gap apart, each an
// n x n node grid with spacing h, Delaunay triangulated. Interior grid
// nodes form the contact zone and are paired across the gap; the returned
// pair list feeds the interface correspondence table.
func ContactPlates(n int, h, gap float64) (gs *GeometryState, pairs [][2]int) {
	if n < 3 {
		panic("ContactPlates requires n >= 3")
	}
	gs = &GeometryState{}
	var (
		pts    = make([][2]float64, 0, n*n)
		frames [][]EntityFrame
		zone   []int
	)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			pts = append(pts, [2]float64{float64(i) * h, float64(j) * h})
		}
	}
	tris := triangle.Delaunay(pts)

	addPlate := func(z, nz float64) (base int) {
		base = len(gs.Nodes)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				p := pts[i+n*j]
				id := len(gs.Nodes)
				gs.Nodes = append(gs.Nodes, Node{
					ID:       id,
					Position: [3]float64{p[0], p[1], z},
				})
				frames = append(frames, plateFrames(i, j, n, nz))
				if i > 0 && i < n-1 && j > 0 && j < n-1 {
					zone = append(zone, id)
				}
			}
		}
		for _, t := range tris {
			gs.Elements = append(gs.Elements, Element{Type: Tri, Nodes: []int{
				base + int(t[0]), base + int(t[1]), base + int(t[2]),
			}})
		}
		return
	}
	baseA := addPlate(0, 1)
	baseB := addPlate(gap, -1)
	for j := 1; j < n-1; j++ {
		for i := 1; i < n-1; i++ {
			pairs = append(pairs, [2]int{baseA + i + n*j, baseB + i + n*j})
		}
	}
	finishMesh(gs, ClassifierInput{Frames: frames, InterfaceZone: zone})
	return
}

func plateFrames(i, j, n int, nz float64) []EntityFrame {
	var (
		onI = i == 0 || i == n-1
		onJ = j == 0 || j == n-1
	)
	switch {
	case onI && onJ:
		return []EntityFrame{{Dim: 0}}
	case onI:
		return []EntityFrame{{Dim: 1, Tangent: [3]float64{0, 1, 0}}}
	case onJ:
		return []EntityFrame{{Dim: 1, Tangent: [3]float64{1, 0, 0}}}
	default:
		return []EntityFrame{{Dim: 2, Normal: [3]float64{0, 0, nz}}}
	}
}

func finishMesh(gs *GeometryState, in ClassifierInput) {
	if err := Classify(gs, in); err != nil {
		panic(err) // generator meshes are well formed
	}
	gs.BuildAdjacency()
	gs.ComputeLocalSizes()
}

// Perturb displaces every movable node within its declared subspace by a
// uniform random amount up to amp per degree of freedom. Used to produce a
// suboptimal starting mesh for benchmarks.
func Perturb(gs *GeometryState, amp float64, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	u := func() float64 { return amp * (2*rng.Float64() - 1) }
	for i := range gs.Nodes {
		nd := &gs.Nodes[i]
		switch nd.Class {
		case Corner:
		case Edge:
			nd.Position = utils.Add3(nd.Position, utils.Scale3(nd.Tangent, u()))
		case Surface, Interface:
			d := utils.Add3(utils.Scale3(nd.TangentU, u()), utils.Scale3(nd.TangentV, u()))
			nd.Position = utils.Add3(nd.Position, d)
		case Interior:
			nd.Position = utils.Add3(nd.Position, [3]float64{u(), u(), u()})
		}
	}
}
