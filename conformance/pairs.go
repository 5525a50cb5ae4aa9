package conformance

import (
	"fmt"

	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/utils"
)

// CorrespondenceThresholdDefault bounds the normalized drift between
// interface partners, 3.5% of the local element size.
const CorrespondenceThresholdDefault = 0.035

// PairTable is the bidirectional Interface_A <-> Interface_B node mapping,
// built once before optimization from the contact-zone selection and
// immutable during the run.
type PairTable struct {
	partner map[int]int
}

// BuildPairTable constructs the table and wires the Pair references into
// the nodes. Fails when a node is paired twice or paired with itself.
func BuildPairTable(gs *geometry.GeometryState, pairs [][2]int) (*PairTable, error) {
	pt := &PairTable{partner: make(map[int]int, 2*len(pairs))}
	for _, p := range pairs {
		a, b := p[0], p[1]
		if a == b {
			return nil, fmt.Errorf("pair table: node %d paired with itself", a)
		}
		if a < 0 || a >= gs.NumNodes() || b < 0 || b >= gs.NumNodes() {
			return nil, fmt.Errorf("pair table: pair (%d,%d) out of range", a, b)
		}
		if _, dup := pt.partner[a]; dup {
			return nil, fmt.Errorf("pair table: node %d appears in more than one pair", a)
		}
		if _, dup := pt.partner[b]; dup {
			return nil, fmt.Errorf("pair table: node %d appears in more than one pair", b)
		}
		pt.partner[a] = b
		pt.partner[b] = a
		gs.Nodes[a].Pair = b
		gs.Nodes[b].Pair = a
	}
	return pt, nil
}

// Partner returns the paired node, or -1
func (pt *PairTable) Partner(n int) int {
	if p, ok := pt.partner[n]; ok {
		return p
	}
	return -1
}

// Validate checks that every Interface-classified node has exactly one
// partner. This is a run precondition: a hole here is fatal before the
// first iteration, not a per-iteration concern.
func (pt *PairTable) Validate(gs *geometry.GeometryState) error {
	for i := range gs.Nodes {
		if gs.Nodes[i].Class != geometry.Interface {
			continue
		}
		p, ok := pt.partner[i]
		if !ok {
			return fmt.Errorf("interface node %d has no partner in the pair table", gs.Nodes[i].ID)
		}
		if gs.Nodes[p].Class != geometry.Interface {
			return fmt.Errorf("interface node %d is paired with non-interface node %d",
				gs.Nodes[i].ID, gs.Nodes[p].ID)
		}
	}
	return nil
}

// Correspondence enforces the cross-surface matching constraint during
// co-optimization.
type Correspondence struct {
	Table     *PairTable
	Threshold float64 // normalized drift bound, default 3.5%
}

// Drift measures how far the pair's relative vector has moved from its
// anchored rest vector, normalized by the local element size:
// |(P_a - P_b) - (A_a - A_b)| / L.
func (c *Correspondence) Drift(gs *geometry.GeometryState, n int, pos [3]float64) float64 {
	var (
		nd      = &gs.Nodes[n]
		partner = &gs.Nodes[nd.Pair]
		rel     = utils.Sub3(pos, partner.Position)
		rest    = utils.Sub3(nd.Anchor, partner.Anchor)
		l       = nd.LocalSize
	)
	if l == 0 {
		l = 1
	}
	return utils.Norm3(utils.Sub3(rel, rest)) / l
}

// Check accepts or corrects a proposed position for an Interface node
// whose displacement already passed the projector. On violation the move
// is projected back toward the previous accepted position (one retry);
// if still violated the best feasible position is kept and ok=false flags
// the pair.
func (c *Correspondence) Check(gs *geometry.GeometryState, n int, pos [3]float64) (out [3]float64, drift float64, ok bool) {
	nd := &gs.Nodes[n]
	if nd.Pair < 0 {
		return pos, 0, true
	}
	drift = c.Drift(gs, n, pos)
	if drift <= c.Threshold {
		return pos, drift, true
	}

	// Retry halfway back toward the previous accepted position
	prev := nd.Position
	cand := utils.Add3(prev, utils.Scale3(utils.Sub3(pos, prev), 0.5))
	if cd := c.Drift(gs, n, cand); cd <= c.Threshold {
		return cand, cd, true
	} else if cd < drift {
		pos, drift = cand, cd
	}
	if stay := c.Drift(gs, n, prev); stay < drift {
		return prev, stay, false
	}
	return pos, drift, false
}
