package optimize

import (
	"context"
	"fmt"

	"github.com/threadmesh/meshopt/conformance"
	"github.com/threadmesh/meshopt/executor"
	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/params"
	"github.com/threadmesh/meshopt/quality"
	"github.com/threadmesh/meshopt/utils"
)

// RunState is the optimizer lifecycle
type RunState int

const (
	Initialized RunState = iota
	Iterating
	Converged
	MaxIterationsReached
	Aborted
)

func (s RunState) String() string {
	return [...]string{"Initialized", "Iterating", "Converged", "MaxIterationsReached", "Aborted"}[s]
}

// PreconditionError reports a fatal setup failure detected before the first
// iteration: bad parameters, unclassified geometry, interface pairing holes.
type PreconditionError struct {
	Stage  string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed at %s: %s", e.Stage, e.Reason)
}

// Result is what a finished run hands back to the caller
type Result struct {
	State      RunState
	Iterations int
	Tracker    *Tracker
	Report     *ValidationReport
}

// Optimizer drives the node-relocation loop: per iteration, every movable
// node takes one Newton-Armijo step inside its admissible subspace, colors
// of independent nodes running in parallel on the selected executor.
type Optimizer struct {
	GS     *geometry.GeometryState
	Params params.RunParameters
	Engine *quality.Engine
	Proj   *conformance.Projector
	Corr   *conformance.Correspondence
	Exec   executor.Executor

	colors [][]int
	zone   []int // eligible node ids, nil means every non-corner node
	state  RunState

	// per-node scratch, indexed by node id, each goroutine touching only
	// its own slot
	movedNow  []bool
	nextPos   [][3]float64
	stalls    []int
	devFlags  []bool
	corrFlags []bool

	startPos [][3]float64
}

// New wires an optimizer over a classified geometry. pairs lists the
// interface correspondences; pass nil for meshes without contact zones.
func New(gs *geometry.GeometryState, rp params.RunParameters, pairs [][2]int, exec executor.Executor) (*Optimizer, error) {
	if err := rp.Validate(); err != nil {
		return nil, &PreconditionError{Stage: "parameters", Reason: err.Error()}
	}
	if gs == nil || gs.NumNodes() == 0 || gs.NumElements() == 0 {
		return nil, &PreconditionError{Stage: "geometry", Reason: "empty mesh"}
	}
	if gs.NodeToElems == nil {
		gs.BuildAdjacency()
	}
	for i := range gs.Nodes {
		if gs.Nodes[i].LocalSize <= 0 {
			gs.ComputeLocalSizes()
			break
		}
	}
	pt, err := conformance.BuildPairTable(gs, pairs)
	if err != nil {
		return nil, &PreconditionError{Stage: "pair table", Reason: err.Error()}
	}
	if err = pt.Validate(gs); err != nil {
		return nil, &PreconditionError{Stage: "pair table", Reason: err.Error()}
	}
	var corr *conformance.Correspondence
	if len(pairs) > 0 {
		thr := rp.CorrespondenceThreshold
		if thr <= 0 {
			thr = conformance.CorrespondenceThresholdDefault
		}
		corr = &conformance.Correspondence{Table: pt, Threshold: thr}
	}
	nn := gs.NumNodes()
	o := &Optimizer{
		GS:     gs,
		Params: rp,
		Engine: quality.NewEngine(gs, rp.NumScores(), utils.MemoryCapBytes(rp.MemoryFraction)),
		Proj:   &conformance.Projector{Threshold: rp.DeviationThreshold},
		Corr:   corr,
		Exec:   exec,
		colors: ColorNodes(gs),
		state:  Initialized,

		movedNow:  make([]bool, nn),
		nextPos:   make([][3]float64, nn),
		stalls:    make([]int, nn),
		devFlags:  make([]bool, nn),
		corrFlags: make([]bool, nn),
		startPos:  make([][3]float64, nn),
	}
	for i := range gs.Nodes {
		o.startPos[i] = gs.Nodes[i].Position
	}
	if p, ok := exec.(elementPartitioner); ok {
		if err = p.PartitionElements(gs); err != nil {
			fmt.Printf("element partitioning unavailable: %s\n", err)
		}
	}
	return o, nil
}

// elementPartitioner is the optional executor capability for reordering
// elements into cache-friendly partitions before the run.
type elementPartitioner interface {
	PartitionElements(gs *geometry.GeometryState) error
}

// SetZone restricts optimization to the given node ids. Corner nodes in the
// zone are still pinned.
func (o *Optimizer) SetZone(nodes []int) { o.zone = nodes }

func (o *Optimizer) State() RunState { return o.state }

// eligible returns the movable node set for one pass, honoring the zone
func (o *Optimizer) eligible() map[int]bool {
	el := make(map[int]bool, o.GS.NumNodes())
	mark := func(n int) {
		if o.GS.Nodes[n].Class != geometry.Corner {
			el[n] = true
		}
	}
	if o.zone == nil {
		for n := range o.GS.Nodes {
			mark(n)
		}
	} else {
		for _, n := range o.zone {
			mark(n)
		}
	}
	return el
}

// zoneElements returns the elements whose quality the run aggregates: all of
// them for a whole-mesh run, the stencil union of the zone otherwise.
func (o *Optimizer) zoneElements() []int {
	if o.zone == nil {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, n := range o.zone {
		for _, k := range o.GS.NodeToElems[n] {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// Run executes the optimization loop until convergence, the iteration cap,
// or context cancellation. Cancellation is checked once per iteration so the
// mesh is always left in a consistent state.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	if o.state != Initialized {
		return nil, fmt.Errorf("optimizer already ran (state %s)", o.state)
	}
	o.state = Iterating

	var (
		rp       = o.Params
		tracker  = &Tracker{}
		report   = &ValidationReport{}
		eligible = o.eligible()
		zoneEls  = o.zoneElements()
	)
	report.InitialDegenerate = len(o.Engine.CountDegenerate())

	o.Engine.Refresh(o.Exec)
	agg := o.Engine.AggregateEQI(zoneEls)
	tracker.Record(agg)
	fmt.Printf("Optimizing %d elements, %d movable nodes, %d colors on %s\n",
		o.GS.NumElements(), len(eligible), len(o.colors), o.Exec.Name())

	iters := 0
	for it := 1; it <= rp.MaxIterations; it++ {
		if ctx.Err() != nil {
			o.state = Aborted
			break
		}
		o.sweep(eligible)
		o.Engine.Refresh(o.Exec)
		agg = o.Engine.AggregateEQI(zoneEls)
		delta := tracker.Record(agg)
		iters = it
		fmt.Printf("iteration %4d  EQI % .6f  delta %.3e\n", it, quality.EQI(agg, rp.MetricWeights), delta)
		if it >= rp.MinIterations && delta <= rp.ConvergenceThreshold {
			o.state = Converged
			break
		}
	}
	if o.state == Iterating {
		o.state = MaxIterationsReached
	}

	o.finishReport(report, eligible)
	report.FinalDegenerate = len(o.Engine.CountDegenerate())
	fmt.Println(utils.GetMemUsage())
	return &Result{
		State:      o.state,
		Iterations: iters,
		Tracker:    tracker,
		Report:     report,
	}, nil
}

// sweep runs one full pass: every color in sequence, nodes within a color in
// parallel. Trial steps are computed against the frozen positions of the
// color, then committed and invalidated sequentially.
func (o *Optimizer) sweep(eligible map[int]bool) {
	for _, color := range o.colors {
		ids := color[:0:0]
		for _, n := range color {
			if eligible[n] {
				ids = append(ids, n)
			}
		}
		if len(ids) == 0 {
			continue
		}
		o.Exec.RunNodes(ids, func(n int) {
			pos, moved := o.nodeStep(n)
			o.nextPos[n] = pos
			o.movedNow[n] = moved
		})
		for _, n := range ids {
			if !o.movedNow[n] {
				o.stalls[n]++
				continue
			}
			o.GS.Nodes[n].Position = o.nextPos[n]
			o.Engine.InvalidateNode(n)
		}
	}
}

// finishReport fills the validation summary from the final mesh state.
// Displacement is measured from the positions captured at setup, not the
// anchors, so a pre-perturbed node that never moved is not counted.
func (o *Optimizer) finishReport(report *ValidationReport, eligible map[int]bool) {
	report.FlaggedNodes, report.FlaggedPairs = validate(o.GS, o.Proj, o.Corr)
	for n := range eligible {
		if o.stalls[n] > 0 {
			report.StalledNodes++
		}
		if o.devFlags[n] || o.corrFlags[n] {
			report.ClampedNodes++
		}
		if utils.Norm3(utils.Sub3(o.GS.Nodes[n].Position, o.startPos[n])) > 0 {
			report.RelocatedNodes++
		}
	}
}
