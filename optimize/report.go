package optimize

import (
	"fmt"

	"github.com/threadmesh/meshopt/conformance"
	"github.com/threadmesh/meshopt/geometry"
)

// FlaggedNode records a node that finished the run outside its geometric
// tolerance, with the deviation it actually achieved.
type FlaggedNode struct {
	Node      int
	Class     geometry.NodeClass
	Deviation float64
	Threshold float64
}

// FlaggedPair records an interface pair whose relative drift exceeded the
// correspondence threshold at the end of the run.
type FlaggedPair struct {
	NodeA, NodeB int
	Drift        float64
	Threshold    float64
}

// ValidationReport is the post-run summary: geometric conformance failures,
// correspondence failures and the degeneracy census.
type ValidationReport struct {
	FlaggedNodes      []FlaggedNode
	FlaggedPairs      []FlaggedPair
	InitialDegenerate int
	FinalDegenerate   int
	StalledNodes      int
	RelocatedNodes    int

	// ClampedNodes counts nodes whose trial step was at least once pulled
	// back by the deviation or correspondence tolerance during the run
	ClampedNodes int
}

// Clean reports whether the run finished with no tolerance violations and no
// degenerate elements.
func (vr *ValidationReport) Clean() bool {
	return len(vr.FlaggedNodes) == 0 && len(vr.FlaggedPairs) == 0 && vr.FinalDegenerate == 0
}

func (vr *ValidationReport) Print() {
	fmt.Printf("Validation: relocated %d nodes, %d stalled, %d clamped\n",
		vr.RelocatedNodes, vr.StalledNodes, vr.ClampedNodes)
	fmt.Printf("Degenerate elements: %d initial, %d final\n", vr.InitialDegenerate, vr.FinalDegenerate)
	for _, fn := range vr.FlaggedNodes {
		fmt.Printf("  node %d (%s): deviation %.4g exceeds %.4g\n",
			fn.Node, fn.Class.String(), fn.Deviation, fn.Threshold)
	}
	for _, fp := range vr.FlaggedPairs {
		fmt.Printf("  pair %d<->%d: drift %.4g exceeds %.4g\n",
			fp.NodeA, fp.NodeB, fp.Drift, fp.Threshold)
	}
}

// validate sweeps the final node positions against the conformance and
// correspondence tolerances, independent of any per-iteration flags.
func validate(gs *geometry.GeometryState, proj *conformance.Projector, corr *conformance.Correspondence) (flagged []FlaggedNode, pairs []FlaggedPair) {
	for i := range gs.Nodes {
		nd := &gs.Nodes[i]
		switch nd.Class {
		case geometry.Edge, geometry.Surface, geometry.Interface:
			dev := proj.Deviation(nd, nd.Position)
			thr := proj.ThresholdFor(nd)
			if dev > thr {
				flagged = append(flagged, FlaggedNode{
					Node: i, Class: nd.Class, Deviation: dev, Threshold: thr,
				})
			}
		}
	}
	if corr != nil {
		for i := range gs.Nodes {
			nd := &gs.Nodes[i]
			if nd.Class != geometry.Interface || nd.Pair < i {
				continue
			}
			drift := corr.Drift(gs, i, nd.Position)
			if drift > corr.Threshold {
				pairs = append(pairs, FlaggedPair{
					NodeA: i, NodeB: nd.Pair, Drift: drift, Threshold: corr.Threshold,
				})
			}
		}
	}
	return
}
