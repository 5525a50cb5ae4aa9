package executor

import (
	"fmt"
	"sync"

	metis "github.com/notargets/go-metis"
	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/utils"
)

// CPUReserveCores is always left free for the host process
const CPUReserveCores = 1

// HostExecutor fans work out over a bounded goroutine pool, one worker per
// available core.
type HostExecutor struct {
	NP int

	// Optional element evaluation order, grouped by metis partition so
	// each worker walks a connected neighborhood
	elemOrder []int
}

func NewHostExecutor() *HostExecutor {
	return &HostExecutor{NP: utils.ReservedWorkerCount(CPUReserveCores)}
}

func (h *HostExecutor) Name() string { return fmt.Sprintf("cpu(%d)", h.NP) }
func (h *HostExecutor) Close()       {}

func (h *HostExecutor) RunElements(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	var (
		pm = utils.NewPartitionMap(h.NP, n)
		wg sync.WaitGroup
		// The metis order only applies when the caller iterates the full
		// element range it was built for
		order []int
	)
	if len(h.elemOrder) == n {
		order = h.elemOrder
	}
	for b := 0; b < pm.ParallelDegree; b++ {
		kMin, kMax := pm.GetBucketRange(b)
		wg.Add(1)
		go func(kMin, kMax int) {
			defer wg.Done()
			for k := kMin; k < kMax; k++ {
				if order != nil {
					fn(order[k])
				} else {
					fn(k)
				}
			}
		}(kMin, kMax)
	}
	wg.Wait()
}

func (h *HostExecutor) RunNodes(ids []int, fn func(id int)) {
	if len(ids) == 0 {
		return
	}
	var (
		pm = utils.NewPartitionMap(h.NP, len(ids))
		wg sync.WaitGroup
	)
	for b := 0; b < pm.ParallelDegree; b++ {
		kMin, kMax := pm.GetBucketRange(b)
		wg.Add(1)
		go func(kMin, kMax int) {
			defer wg.Done()
			for k := kMin; k < kMax; k++ {
				fn(ids[k])
			}
		}(kMin, kMax)
	}
	wg.Wait()
}

// PartitionElements reorders element traversal by a metis k-way partition
// of the element adjacency graph (elements sharing a node are adjacent),
// so each worker's range is a spatially coherent block. Falls back to the
// natural order when metis cannot partition the graph.
func (h *HostExecutor) PartitionElements(gs *geometry.GeometryState) error {
	ne := gs.NumElements()
	if ne < 2*h.NP {
		return nil
	}
	xadj, adjncy := buildElementGraph(gs)
	opts := make([]int32, metis.NoOptions)
	if err := metis.SetDefaultOptions(opts); err != nil {
		return fmt.Errorf("metis options: %w", err)
	}
	part, _, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, nil, nil, int32(h.NP), nil, nil, opts)
	if err != nil {
		return fmt.Errorf("metis partitioning: %w", err)
	}
	order := make([]int, 0, ne)
	for p := 0; p < h.NP; p++ {
		for k := 0; k < ne; k++ {
			if int(part[k]) == p {
				order = append(order, k)
			}
		}
	}
	h.elemOrder = order
	return nil
}

// buildElementGraph converts node-sharing adjacency to CSR for metis
func buildElementGraph(gs *geometry.GeometryState) (xadj, adjncy []int32) {
	var (
		ne   = gs.NumElements()
		seen = make(map[int]bool)
	)
	xadj = make([]int32, ne+1)
	for k := 0; k < ne; k++ {
		for key := range seen {
			delete(seen, key)
		}
		for _, n := range gs.Elements[k].Nodes {
			for _, nb := range gs.NodeToElems[n] {
				if nb != k && !seen[nb] {
					seen[nb] = true
					adjncy = append(adjncy, int32(nb))
				}
			}
		}
		xadj[k+1] = int32(len(adjncy))
	}
	return
}
