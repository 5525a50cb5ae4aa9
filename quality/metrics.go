package quality

import (
	"math"

	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/utils"
	"gonum.org/v1/gonum/mat"
)

// Metric vector layout. Every score is normalized to [0,1] with 1 ideal so
// the entries can be linearly combined into the EQI composite. The CFD
// workbench appends two entries to the structural seven.
const (
	MCondition      = iota // 1/kappa
	MAspect                // min/max edge length ratio
	MSkewness              // 1 - equiangular skew
	MScaledJacobian        // min/max corner scaled-Jacobian ratio
	MOrthoQuality          // worst corner scaled Jacobian
	MWarpage               // cos of the worst quad-face warp angle
	MVolumeRatio           // min/max corner determinant ratio
	MNonOrtho              // CFD: non-orthogonality angle vs 40/70 deg band
	MFaceAreaRatio         // CFD: min/max face area ratio

	NumMetricsStructural = 7
	NumMetricsCFD        = 9
)

// OpenFOAM band for the non-orthogonality angle, degrees
const (
	nonOrthoIdeal = 40.0
	nonOrthoLimit = 70.0
)

// Metrics is the cached per-element quality record
type Metrics struct {
	Kappa  float64   // Knupp condition number, +Inf for degenerate/inverted
	Scores []float64 // normalized metric vector, length 7 or 9
}

// elementFaces lists the vertex loops of each element face, outward oriented
var elementFaces = map[geometry.ElementType][][]int{
	geometry.Tri:  {{0, 1, 2}},
	geometry.Quad: {{0, 1, 2, 3}},
	geometry.Tet:  {{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}},
	geometry.Hex: {
		{0, 3, 2, 1}, {4, 5, 6, 7},
		{0, 1, 5, 4}, {1, 2, 6, 5}, {2, 3, 7, 6}, {3, 0, 4, 7},
	},
	geometry.Prism: {
		{0, 2, 1}, {3, 4, 5},
		{0, 1, 4, 3}, {1, 2, 5, 4}, {2, 0, 3, 5},
	},
	geometry.Pyramid: {
		{0, 3, 2, 1},
		{0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4},
	},
}

// ConditionNumber computes the Knupp condition number of one sample:
// kappa = |A|_F * |A^-1|_F / d for A = J W^-1, with d the element
// dimension so the ideal sample scores exactly 1. Returns +Inf when A is
// singular or orientation reversing, never NaN.
func ConditionNumber(J, Winv *mat.Dense) float64 {
	var (
		d, _ = J.Dims()
		A    = mat.NewDense(d, d, nil)
		Ainv = mat.NewDense(d, d, nil)
	)
	A.Mul(J, Winv)
	if det := mat.Det(A); det <= 0 || math.IsNaN(det) {
		return math.Inf(1)
	}
	if err := Ainv.Inverse(A); err != nil {
		return math.Inf(1)
	}
	k := mat.Norm(A, 2) * mat.Norm(Ainv, 2) / float64(d)
	if math.IsNaN(k) {
		return math.Inf(1)
	}
	return k
}

// Kappa evaluates the element's condition number as the worst corner
// sample. targets, when non-nil, supplies Target-Matrix inverse Jacobians
// per sample point in place of the ideal weights.
func Kappa(et geometry.ElementType, X [][3]float64, targets []*mat.Dense) float64 {
	var (
		Js    = CornerJacobians(et, X)
		Winvs = targets
		worst float64
	)
	if Winvs == nil {
		Winvs = IdealWeightInverses(et)
	}
	for c, J := range Js {
		k := ConditionNumber(J, Winvs[c])
		if k > worst {
			worst = k
		}
	}
	return worst
}

// KappaBatcher is the optional executor capability for evaluating sample
// condition numbers in one device batch: row-major 3x3 matrices in, one
// kappa per sample out, +Inf marking degenerate samples.
type KappaBatcher interface {
	KappaBatch(A []float64) ([]float64, error)
}

// SampleMatrices builds the weighted corner matrices A = J W^-1 for one
// element, the matrices whose condition numbers define its kappa.
func SampleMatrices(et geometry.ElementType, X [][3]float64, targets []*mat.Dense) []*mat.Dense {
	var (
		Js    = CornerJacobians(et, X)
		Winvs = targets
		d     = et.Dimension()
	)
	if Winvs == nil {
		Winvs = IdealWeightInverses(et)
	}
	As := make([]*mat.Dense, len(Js))
	for c, J := range Js {
		As[c] = mat.NewDense(d, d, nil)
		As[c].Mul(J, Winvs[c])
	}
	return As
}

// Evaluate computes the full metric record for one element. nScores is 7
// (structural) or 9 (CFD). Degenerate or inverted elements report
// Kappa = +Inf and every dependent score 0.
func Evaluate(et geometry.ElementType, X [][3]float64, nScores int, targets []*mat.Dense) Metrics {
	return evaluateSamples(et, X, nScores, SampleMatrices(et, X, targets), nil)
}

// EvaluateWithKappas assembles the record when the per-sample condition
// numbers were computed externally (device batch). kappas carries one entry
// per corner sample, +Inf for degenerate.
func EvaluateWithKappas(et geometry.ElementType, X [][3]float64, nScores int, targets []*mat.Dense, kappas []float64) Metrics {
	return evaluateSamples(et, X, nScores, SampleMatrices(et, X, targets), kappas)
}

func evaluateSamples(et geometry.ElementType, X [][3]float64, nScores int, As []*mat.Dense, kappas []float64) (m Metrics) {
	m.Scores = make([]float64, nScores)

	var (
		worstKappa               float64
		minSJ, maxSJ             = math.Inf(1), math.Inf(-1)
		minDet, maxDet           = math.Inf(1), math.Inf(-1)
		degenerate               bool
		d                        = et.Dimension()
		Ainv                     = mat.NewDense(d, d, nil)
		colNormProd, detA, kappa float64
	)
	for c, A := range As {
		detA = mat.Det(A)
		if detA <= 0 || math.IsNaN(detA) {
			degenerate = true
			break
		}
		if kappas != nil {
			kappa = kappas[c]
			if math.IsInf(kappa, 1) {
				degenerate = true
				break
			}
		} else {
			if err := Ainv.Inverse(A); err != nil {
				degenerate = true
				break
			}
			kappa = mat.Norm(A, 2) * mat.Norm(Ainv, 2) / float64(d)
		}
		if kappa > worstKappa {
			worstKappa = kappa
		}
		colNormProd = 1
		for col := 0; col < d; col++ {
			var s float64
			for row := 0; row < d; row++ {
				v := A.At(row, col)
				s += v * v
			}
			colNormProd *= math.Sqrt(s)
		}
		sj := detA / colNormProd
		minSJ = math.Min(minSJ, sj)
		maxSJ = math.Max(maxSJ, sj)
		minDet = math.Min(minDet, detA)
		maxDet = math.Max(maxDet, detA)
	}
	if degenerate {
		m.Kappa = math.Inf(1)
		return
	}

	m.Kappa = worstKappa
	m.Scores[MCondition] = 1 / worstKappa
	m.Scores[MAspect] = aspectScore(et, X)
	m.Scores[MSkewness] = skewnessScore(et, X)
	m.Scores[MScaledJacobian] = clamp01(minSJ / maxSJ)
	m.Scores[MOrthoQuality] = clamp01(minSJ)
	m.Scores[MWarpage] = warpageScore(et, X)
	m.Scores[MVolumeRatio] = clamp01(minDet / maxDet)
	if nScores >= NumMetricsCFD {
		m.Scores[MNonOrtho] = nonOrthoScore(et, X)
		m.Scores[MFaceAreaRatio] = faceAreaScore(et, X)
	}
	return
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// aspectScore maps the max/min edge length ratio r >= 1 to 1/r
func aspectScore(et geometry.ElementType, X [][3]float64) float64 {
	var (
		minL = math.Inf(1)
		maxL float64
	)
	for _, f := range elementFaces[et] {
		n := len(f)
		for i := 0; i < n; i++ {
			l := utils.Norm3(utils.Sub3(X[f[(i+1)%n]], X[f[i]]))
			minL = math.Min(minL, l)
			maxL = math.Max(maxL, l)
		}
	}
	if maxL == 0 {
		return 0
	}
	return clamp01(minL / maxL)
}

// skewnessScore is 1 minus the equiangular skew: the worst deviation of a
// face corner angle from the ideal angle (60 deg triangular faces, 90 deg
// quadrilateral faces), normalized by the attainable deviation.
func skewnessScore(et geometry.ElementType, X [][3]float64) float64 {
	var worst float64
	for _, f := range elementFaces[et] {
		var (
			n     = len(f)
			ideal = 90.0
		)
		if n == 3 {
			ideal = 60.0
		}
		for i := 0; i < n; i++ {
			var (
				p  = X[f[i]]
				a  = utils.Sub3(X[f[(i+1)%n]], p)
				b  = utils.Sub3(X[f[(i+n-1)%n]], p)
				la = utils.Norm3(a)
				lb = utils.Norm3(b)
			)
			if la == 0 || lb == 0 {
				return 0
			}
			cosT := utils.Dot3(a, b) / (la * lb)
			theta := math.Acos(math.Max(-1, math.Min(1, cosT))) * 180 / math.Pi
			s := math.Max((theta-ideal)/(180-ideal), (ideal-theta)/ideal)
			worst = math.Max(worst, s)
		}
	}
	return clamp01(1 - worst)
}

// warpageScore is the cosine of the worst angle between the two triangle
// normals of each quadrilateral face. Elements with only triangular faces
// are planar per face and score 1.
func warpageScore(et geometry.ElementType, X [][3]float64) float64 {
	score := 1.0
	for _, f := range elementFaces[et] {
		if len(f) != 4 {
			continue
		}
		n1 := utils.Cross3(utils.Sub3(X[f[1]], X[f[0]]), utils.Sub3(X[f[3]], X[f[0]]))
		n2 := utils.Cross3(utils.Sub3(X[f[3]], X[f[2]]), utils.Sub3(X[f[1]], X[f[2]]))
		u1, l1 := utils.Normalize3(n1)
		u2, l2 := utils.Normalize3(n2)
		if l1 == 0 || l2 == 0 {
			return 0
		}
		score = math.Min(score, utils.Dot3(u1, u2))
	}
	return clamp01(score)
}

// nonOrthoScore maps the worst angle between a face normal and the
// centroid-to-face vector onto the OpenFOAM 40/70 degree band: angles at
// or under the ideal score 1, the hard limit and beyond score 0.
func nonOrthoScore(et geometry.ElementType, X [][3]float64) float64 {
	var (
		centroid [3]float64
		worst    float64
	)
	for _, p := range X {
		centroid = utils.Add3(centroid, p)
	}
	centroid = utils.Scale3(centroid, 1./float64(len(X)))
	for _, f := range elementFaces[et] {
		var fc [3]float64
		for _, v := range f {
			fc = utils.Add3(fc, X[v])
		}
		fc = utils.Scale3(fc, 1./float64(len(f)))
		nrm := faceNormal(X, f)
		u, l1 := utils.Normalize3(nrm)
		v, l2 := utils.Normalize3(utils.Sub3(fc, centroid))
		if l1 == 0 || l2 == 0 {
			return 0
		}
		cosT := math.Abs(utils.Dot3(u, v))
		theta := math.Acos(math.Min(1, cosT)) * 180 / math.Pi
		worst = math.Max(worst, theta)
	}
	if worst <= nonOrthoIdeal {
		return 1
	}
	return clamp01((nonOrthoLimit - worst) / (nonOrthoLimit - nonOrthoIdeal))
}

// faceAreaScore is the min/max face area ratio
func faceAreaScore(et geometry.ElementType, X [][3]float64) float64 {
	var (
		minA = math.Inf(1)
		maxA float64
	)
	for _, f := range elementFaces[et] {
		a := utils.Norm3(faceNormal(X, f)) / 2
		minA = math.Min(minA, a)
		maxA = math.Max(maxA, a)
	}
	if maxA == 0 {
		return 0
	}
	return clamp01(minA / maxA)
}

// faceNormal returns the area-weighted normal of a face loop (twice the
// area for triangles, fan sum for quads)
func faceNormal(X [][3]float64, f []int) (n [3]float64) {
	for i := 1; i < len(f)-1; i++ {
		n = utils.Add3(n, utils.Cross3(
			utils.Sub3(X[f[i]], X[f[0]]),
			utils.Sub3(X[f[i+1]], X[f[0]]),
		))
	}
	return
}

// EQI combines a normalized score vector with per-metric weights into the
// composite quality index
func EQI(scores, weights []float64) float64 {
	var num, den float64
	for i, s := range scores {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		num += w * s
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}
