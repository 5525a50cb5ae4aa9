package params

import (
	"fmt"

	"github.com/ghodss/yaml"
)

type Workbench string

const (
	Structural Workbench = "structural"
	CFD        Workbench = "cfd"
)

type DriverMode string

const (
	// EQI drives the optimizer with the weighted composite of all
	// normalized metrics
	EQI DriverMode = "EQI"
	// ConditionNumber drives with the pure Knupp barrier objective
	ConditionNumber DriverMode = "ConditionNumber"
)

// Parameters obtained from the YAML input file
type RunParameters struct {
	Title                   string     `yaml:"Title"`
	Workbench               Workbench  `yaml:"Workbench"`
	DriverMode              DriverMode `yaml:"DriverMode"`
	MetricWeights           []float64  `yaml:"MetricWeights"` // 7 or 9 values in [0,1]
	DeviationThreshold      float64    `yaml:"DeviationThreshold"`
	CorrespondenceThreshold float64    `yaml:"CorrespondenceThreshold"`
	MinIterations           int        `yaml:"MinIterations"`
	MaxIterations           int        `yaml:"MaxIterations"`
	ConvergenceThreshold    float64    `yaml:"ConvergenceThreshold"`
	MemoryFraction          float64    `yaml:"MemoryFraction"` // cache cap as a fraction of system RAM
	Backend                 string     `yaml:"Backend"`        // auto | cpu | gpu
}

// Workbench deviation defaults: Structural 1.0%, CFD 0.1%
const (
	deviationStructural = 0.01
	deviationCFD        = 0.001
)

// Defaults returns the parameter set for a workbench
func Defaults(wb Workbench) RunParameters {
	rp := RunParameters{
		Title:                   "meshopt run",
		Workbench:               wb,
		DriverMode:              EQI,
		DeviationThreshold:      deviationStructural,
		CorrespondenceThreshold: 0.035,
		MinIterations:           5,
		MaxIterations:           100,
		ConvergenceThreshold:    1e-4,
		MemoryFraction:          0.40,
		Backend:                 "auto",
	}
	n := 7
	if wb == CFD {
		rp.DeviationThreshold = deviationCFD
		n = 9
	}
	rp.MetricWeights = make([]float64, n)
	for i := range rp.MetricWeights {
		rp.MetricWeights[i] = 1
	}
	return rp
}

func (rp *RunParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, rp)
}

func (rp *RunParameters) Validate() error {
	if rp.Workbench != Structural && rp.Workbench != CFD {
		return fmt.Errorf("unknown workbench %q", rp.Workbench)
	}
	if rp.DriverMode != EQI && rp.DriverMode != ConditionNumber {
		return fmt.Errorf("unknown driver mode %q", rp.DriverMode)
	}
	want := 7
	if rp.Workbench == CFD {
		want = 9
	}
	if len(rp.MetricWeights) != want {
		return fmt.Errorf("%s workbench needs %d metric weights, got %d",
			rp.Workbench, want, len(rp.MetricWeights))
	}
	for i, w := range rp.MetricWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("metric weight %d = %g outside [0,1]", i, w)
		}
	}
	if rp.DeviationThreshold <= 0 {
		return fmt.Errorf("deviation threshold must be positive")
	}
	if rp.CorrespondenceThreshold <= 0 {
		return fmt.Errorf("correspondence threshold must be positive")
	}
	if rp.MinIterations < 1 || rp.MaxIterations < rp.MinIterations {
		return fmt.Errorf("iteration bounds (%d,%d) are inconsistent",
			rp.MinIterations, rp.MaxIterations)
	}
	if rp.ConvergenceThreshold <= 0 {
		return fmt.Errorf("convergence threshold must be positive")
	}
	if rp.MemoryFraction <= 0 || rp.MemoryFraction > 1 {
		return fmt.Errorf("memory fraction %g outside (0,1]", rp.MemoryFraction)
	}
	return nil
}

// NumScores is the metric vector length for the workbench
func (rp *RunParameters) NumScores() int {
	if rp.Workbench == CFD {
		return 9
	}
	return 7
}

func (rp *RunParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", rp.Title)
	fmt.Printf("[%s]\t\t= Workbench\n", rp.Workbench)
	fmt.Printf("[%s]\t\t= Driver Mode\n", rp.DriverMode)
	fmt.Printf("%v\t= Metric Weights\n", rp.MetricWeights)
	fmt.Printf("%8.5f\t\t= Deviation Threshold\n", rp.DeviationThreshold)
	fmt.Printf("%8.5f\t\t= Correspondence Threshold\n", rp.CorrespondenceThreshold)
	fmt.Printf("[%d,%d]\t\t\t= Iteration Bounds\n", rp.MinIterations, rp.MaxIterations)
	fmt.Printf("%8.1e\t\t= Convergence Threshold\n", rp.ConvergenceThreshold)
	fmt.Printf("%8.2f\t\t= Memory Fraction\n", rp.MemoryFraction)
	fmt.Printf("[%s]\t\t\t= Backend\n", rp.Backend)
}
