package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	rp := Defaults(Structural)
	require.NoError(t, rp.Validate())
	assert.Equal(t, 0.01, rp.DeviationThreshold)
	assert.Equal(t, 7, len(rp.MetricWeights))
	assert.Equal(t, 5, rp.MinIterations)
	assert.Equal(t, 100, rp.MaxIterations)
	assert.Equal(t, 1e-4, rp.ConvergenceThreshold)
	assert.Equal(t, 0.40, rp.MemoryFraction)

	cfd := Defaults(CFD)
	require.NoError(t, cfd.Validate())
	assert.Equal(t, 0.001, cfd.DeviationThreshold)
	assert.Equal(t, 9, len(cfd.MetricWeights))
	assert.Equal(t, 9, cfd.NumScores())
}

func TestParseYAML(t *testing.T) {
	input := `
Title: transition zone pass
Workbench: cfd
DriverMode: ConditionNumber
MetricWeights: [1, 0.5, 0.5, 1, 1, 0.2, 1, 1, 0.8]
DeviationThreshold: 0.001
CorrespondenceThreshold: 0.02
MinIterations: 10
MaxIterations: 50
ConvergenceThreshold: 1.0e-5
MemoryFraction: 0.25
Backend: cpu
`
	rp := Defaults(CFD)
	require.NoError(t, rp.Parse([]byte(input)))
	require.NoError(t, rp.Validate())
	assert.Equal(t, ConditionNumber, rp.DriverMode)
	assert.Equal(t, 0.02, rp.CorrespondenceThreshold)
	assert.Equal(t, 10, rp.MinIterations)
	assert.Equal(t, 0.5, rp.MetricWeights[1])
}

func TestValidateRejects(t *testing.T) {
	rp := Defaults(Structural)
	rp.MetricWeights = rp.MetricWeights[:5]
	assert.Error(t, rp.Validate())

	rp = Defaults(Structural)
	rp.MetricWeights[0] = 1.5
	assert.Error(t, rp.Validate())

	rp = Defaults(Structural)
	rp.MinIterations = 20
	rp.MaxIterations = 10
	assert.Error(t, rp.Validate())

	rp = Defaults(Structural)
	rp.Workbench = "thermal"
	assert.Error(t, rp.Validate())

	rp = Defaults(CFD)
	rp.MemoryFraction = 0
	assert.Error(t, rp.Validate())
}
