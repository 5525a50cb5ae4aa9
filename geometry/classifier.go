package geometry

import (
	"fmt"

	"github.com/threadmesh/meshopt/utils"
)

// EntityFrame is the local differential geometry of one originating
// geometric entity touching a node, supplied by the import collaborator
// from its parametric evaluation.
type EntityFrame struct {
	Dim     int        // topological dimension of the entity (0-3)
	Normal  [3]float64 // surface normal, dim 2 entities
	Tangent [3]float64 // curve tangent, dim 1 entities
}

// ClassifierInput annotates every node with the entities that touch it.
// InterfaceZone lists the nodes of an externally selected contact zone;
// Interface classification overrides Surface for those nodes.
type ClassifierInput struct {
	Frames        [][]EntityFrame
	InterfaceZone []int
}

// Classify assigns each node its DOF class and movement subspace basis.
// A node touched by entities of multiple dimensions takes the lowest
// dimension. Returns an error when any node has no originating entity
// (malformed input, fatal for the node set).
func Classify(gs *GeometryState, in ClassifierInput) error {
	if len(in.Frames) != len(gs.Nodes) {
		return fmt.Errorf("classifier: %d frame sets for %d nodes",
			len(in.Frames), len(gs.Nodes))
	}
	zone := make(map[int]bool, len(in.InterfaceZone))
	for _, n := range in.InterfaceZone {
		if n < 0 || n >= len(gs.Nodes) {
			return fmt.Errorf("classifier: interface zone node %d out of range", n)
		}
		zone[n] = true
	}

	for i := range gs.Nodes {
		frames := in.Frames[i]
		if len(frames) == 0 {
			return fmt.Errorf("classifier: node %d has no originating entity", gs.Nodes[i].ID)
		}
		// Lowest entity dimension wins
		best := frames[0]
		for _, f := range frames[1:] {
			if f.Dim < best.Dim {
				best = f
			}
		}

		nd := &gs.Nodes[i]
		nd.Pair = -1
		nd.Anchor = nd.Position
		switch best.Dim {
		case 0:
			nd.Class = Corner
		case 1:
			nd.Class = Edge
			t, l := utils.Normalize3(best.Tangent)
			if l == 0 {
				return fmt.Errorf("classifier: node %d has a degenerate curve tangent", nd.ID)
			}
			nd.Tangent = t
		case 2:
			nd.Class = Surface
			if zone[i] {
				nd.Class = Interface
			}
			n, l := utils.Normalize3(best.Normal)
			if l == 0 {
				return fmt.Errorf("classifier: node %d has a degenerate surface normal", nd.ID)
			}
			nd.Normal = n
			nd.TangentU, nd.TangentV = utils.OrthonormalBasis3(n)
		case 3:
			nd.Class = Interior
		default:
			return fmt.Errorf("classifier: node %d has entity dimension %d", nd.ID, best.Dim)
		}
	}
	return nil
}
