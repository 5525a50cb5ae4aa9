package geometry

import (
	"fmt"

	"github.com/threadmesh/meshopt/utils"
)

// ElementType represents different element types
type ElementType int

const (
	Tri ElementType = iota
	Quad
	Tet
	Hex
	Prism
	Pyramid
)

func (e ElementType) String() string {
	return [...]string{"Tri", "Quad", "Tet", "Hex", "Prism", "Pyramid"}[e]
}

// NumNodes returns the vertex count for the linear element
func (e ElementType) NumNodes() int {
	return [...]int{3, 4, 4, 8, 6, 5}[e]
}

// Dimension is the topological dimension of the reference element
func (e ElementType) Dimension() int {
	if e == Tri || e == Quad {
		return 2
	}
	return 3
}

// NodeClass is the degrees-of-freedom classification for mesh nodes,
// assigned once after import from the topological dimension of the
// originating geometric entity. Lower-dimensional entity wins when a node
// appears in multiple.
//
//	Corner    (0 DOF): fixed geometry vertex point
//	Edge      (1 DOF): constrained to feature curve tangent
//	Surface   (2 DOF): constrained to surface tangent plane
//	Interior  (3 DOF): free to move in 3D
//	Interface (2 DOF): assembly contact zone, dual-surface constraint
type NodeClass uint8

const (
	Corner NodeClass = iota
	Edge
	Surface
	Interior
	Interface
)

func (nc NodeClass) String() string {
	return [...]string{"Corner", "Edge", "Surface", "Interior", "Interface"}[nc]
}

// Node carries position and the constraint metadata its class needs.
// Position is in the internal coordinate frame (centroid translated to the
// origin on import); class and constraint fields are immutable after
// classification, only Position mutates during a run.
type Node struct {
	ID       int
	Position [3]float64
	Class    NodeClass

	// Surface and Interface nodes
	Normal   [3]float64 // unit surface normal at the parametric location
	TangentU [3]float64 // orthonormal tangent pair spanning the move plane
	TangentV [3]float64
	Anchor   [3]float64 // original position on the surface/curve

	// Edge nodes
	Tangent [3]float64 // unit tangent along the feature curve

	// Interface nodes
	Pair int // partner node index on the opposing surface, -1 otherwise

	// Local characteristic element length, used to normalize the deviation
	// and correspondence measures
	LocalSize float64
}

// Element is an ordered tuple of node indices into the owning state's arena
type Element struct {
	Type  ElementType
	Nodes []int
}

// GeometryState owns all node and element data for one optimization
// session. It is exclusively owned by the caller, passed by reference to
// the optimizer, and mutated in place; only node positions and cache
// fields change during a run.
type GeometryState struct {
	OriginOffset [3]float64 // add to internal coords to recover user coords

	Nodes    []Node
	Elements []Element

	// Node to element adjacency, rebuilt once after classification
	NodeToElems [][]int
}

func (gs *GeometryState) NumNodes() int    { return len(gs.Nodes) }
func (gs *GeometryState) NumElements() int { return len(gs.Elements) }

// ToUserCoords converts internal to the caller's original coordinate system
func (gs *GeometryState) ToUserCoords(p [3]float64) [3]float64 {
	return utils.Add3(p, gs.OriginOffset)
}

// ToInternalCoords converts the caller's coordinates to the internal frame
func (gs *GeometryState) ToInternalCoords(p [3]float64) [3]float64 {
	return utils.Sub3(p, gs.OriginOffset)
}

// CenterAtOrigin translates all node positions so the mesh centroid sits at
// the origin and records the offset. Import-time convention: all
// optimization math runs in the translated frame.
func (gs *GeometryState) CenterAtOrigin() {
	if len(gs.Nodes) == 0 {
		return
	}
	var c [3]float64
	for i := range gs.Nodes {
		c = utils.Add3(c, gs.Nodes[i].Position)
	}
	c = utils.Scale3(c, 1./float64(len(gs.Nodes)))
	gs.OriginOffset = c
	for i := range gs.Nodes {
		gs.Nodes[i].Position = utils.Sub3(gs.Nodes[i].Position, c)
		gs.Nodes[i].Anchor = utils.Sub3(gs.Nodes[i].Anchor, c)
	}
}

// BuildAdjacency rebuilds the node to element lists from connectivity
func (gs *GeometryState) BuildAdjacency() {
	gs.NodeToElems = make([][]int, len(gs.Nodes))
	for k, el := range gs.Elements {
		for _, n := range el.Nodes {
			gs.NodeToElems[n] = append(gs.NodeToElems[n], k)
		}
	}
}

// ElementCoords gathers the vertex positions of element k
func (gs *GeometryState) ElementCoords(k int) [][3]float64 {
	el := gs.Elements[k]
	X := make([][3]float64, len(el.Nodes))
	for i, n := range el.Nodes {
		X[i] = gs.Nodes[n].Position
	}
	return X
}

// ComputeLocalSizes sets each node's characteristic length to the mean
// length of its incident element edges. Requires adjacency.
func (gs *GeometryState) ComputeLocalSizes() {
	if gs.NodeToElems == nil {
		panic("ComputeLocalSizes called before BuildAdjacency")
	}
	for i := range gs.Nodes {
		var (
			sum   float64
			count int
		)
		for _, k := range gs.NodeToElems[i] {
			for _, pair := range elementEdges(gs.Elements[k].Type) {
				a, b := gs.Elements[k].Nodes[pair[0]], gs.Elements[k].Nodes[pair[1]]
				if a != i && b != i {
					continue
				}
				sum += utils.Norm3(utils.Sub3(gs.Nodes[a].Position, gs.Nodes[b].Position))
				count++
			}
		}
		if count > 0 {
			gs.Nodes[i].LocalSize = sum / float64(count)
		} else {
			// Isolated node: fall back to distance from the frame origin
			gs.Nodes[i].LocalSize = utils.Norm3(gs.Nodes[i].Position)
		}
	}
}

// elementEdges returns the local vertex index pairs forming element edges
func elementEdges(et ElementType) [][2]int {
	switch et {
	case Tri:
		return [][2]int{{0, 1}, {1, 2}, {2, 0}}
	case Quad:
		return [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}
	case Tet:
		return [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}}
	case Hex:
		return [][2]int{
			{0, 1}, {1, 2}, {2, 3}, {3, 0},
			{4, 5}, {5, 6}, {6, 7}, {7, 4},
			{0, 4}, {1, 5}, {2, 6}, {3, 7},
		}
	case Prism:
		return [][2]int{
			{0, 1}, {1, 2}, {2, 0},
			{3, 4}, {4, 5}, {5, 3},
			{0, 3}, {1, 4}, {2, 5},
		}
	case Pyramid:
		return [][2]int{
			{0, 1}, {1, 2}, {2, 3}, {3, 0},
			{0, 4}, {1, 4}, {2, 4}, {3, 4},
		}
	}
	panic(fmt.Sprintf("unknown element type %d", et))
}
