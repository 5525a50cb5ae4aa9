package quality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadmesh/meshopt/geometry"
	"gonum.org/v1/gonum/mat"
)

func unitHexCoords() [][3]float64 {
	return [][3]float64{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}
}

func regularTetCoords() [][3]float64 {
	return idealCoords(geometry.Tet)
}

func TestIdealElementsScoreOne(t *testing.T) {
	cases := []struct {
		et geometry.ElementType
		X  [][3]float64
	}{
		{geometry.Hex, unitHexCoords()},
		{geometry.Tet, regularTetCoords()},
		{geometry.Tri, idealCoords(geometry.Tri)},
		{geometry.Quad, idealCoords(geometry.Quad)},
		{geometry.Prism, idealCoords(geometry.Prism)},
		{geometry.Pyramid, idealCoords(geometry.Pyramid)},
	}
	for _, tc := range cases {
		m := Evaluate(tc.et, tc.X, NumMetricsStructural, nil)
		assert.InDelta(t, 1.0, m.Kappa, 1e-12, "%s kappa", tc.et)
		for i, s := range m.Scores {
			assert.InDelta(t, 1.0, s, 1e-12, "%s score %d", tc.et, i)
		}
	}
}

func TestConditionNumberBarrier(t *testing.T) {
	// Tet with the apex reflected through the base: negative volume
	X := [][3]float64{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0.3, 0.3, -1},
	}
	m := Evaluate(geometry.Tet, X, NumMetricsStructural, nil)
	assert.True(t, math.IsInf(m.Kappa, 1), "inverted element must report +Inf")
	for i, s := range m.Scores {
		assert.Equal(t, 0.0, s, "score %d of an inverted element", i)
		assert.False(t, math.IsNaN(s))
	}

	// Collapsed tet: all vertices coplanar
	X[3] = [3]float64{0.5, 0.5, 0}
	m = Evaluate(geometry.Tet, X, NumMetricsStructural, nil)
	assert.True(t, math.IsInf(m.Kappa, 1))
}

func TestKappaIncreasesWithDistortion(t *testing.T) {
	X := unitHexCoords()
	base := Kappa(geometry.Hex, X, nil)
	// Shear the top face progressively
	var prev = base
	for _, shear := range []float64{0.2, 0.5, 0.9} {
		Xs := unitHexCoords()
		for i := 4; i < 8; i++ {
			Xs[i][0] += shear
		}
		k := Kappa(geometry.Hex, Xs, nil)
		assert.True(t, k > prev, "shear %g: kappa %g not above %g", shear, k, prev)
		prev = k
	}
}

func TestAspectAndVolumeRatio(t *testing.T) {
	// 4:1 stretched hex
	X := unitHexCoords()
	for i := range X {
		X[i][0] *= 4
	}
	m := Evaluate(geometry.Hex, X, NumMetricsStructural, nil)
	assert.InDelta(t, 0.25, m.Scores[MAspect], 1e-12)
	// Stretch is uniform, so corner volumes still agree
	assert.InDelta(t, 1.0, m.Scores[MVolumeRatio], 1e-12)
	assert.True(t, m.Kappa > 1)
}

func TestCFDScores(t *testing.T) {
	m := Evaluate(geometry.Hex, unitHexCoords(), NumMetricsCFD, nil)
	require.Equal(t, NumMetricsCFD, len(m.Scores))
	assert.InDelta(t, 1.0, m.Scores[MNonOrtho], 1e-12)
	assert.InDelta(t, 1.0, m.Scores[MFaceAreaRatio], 1e-12)
}

func TestTargetMatrixVariant(t *testing.T) {
	// Target a 2:1 stretched hex: the stretched element becomes ideal
	// under its own target and the unit cube does not
	stretched := unitHexCoords()
	for i := range stretched {
		stretched[i][0] *= 2
	}
	Ws := CornerJacobians(geometry.Hex, stretched)
	targets := make([]*mat.Dense, len(Ws))
	for i, W := range Ws {
		inv := mat.NewDense(3, 3, nil)
		require.NoError(t, inv.Inverse(W))
		targets[i] = inv
	}
	assert.InDelta(t, 1.0, Kappa(geometry.Hex, stretched, targets), 1e-12)
	assert.True(t, Kappa(geometry.Hex, unitHexCoords(), targets) > 1.01)
}

func TestEQIWeighting(t *testing.T) {
	scores := []float64{1, 0, 1, 0, 1, 0, 1}
	assert.InDelta(t, 4./7., EQI(scores, nil), 1e-12)
	w := []float64{1, 0, 0, 0, 0, 0, 0}
	assert.InDelta(t, 1.0, EQI(scores, w), 1e-12)
}

func TestQuadInPlaneDegeneracy(t *testing.T) {
	// Bowtie quad: opposite orientation at two corners
	X := [][3]float64{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
	}
	m := Evaluate(geometry.Quad, X, NumMetricsStructural, nil)
	assert.True(t, math.IsInf(m.Kappa, 1))
}
