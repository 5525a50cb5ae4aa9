package utils

import "math"

// Vec3 helpers for the per-node geometry hot paths. Element Jacobians and
// anything matrix-shaped use gonum; these cover the scalar 3-vector work
// that does not justify an allocation.

type Vec3 = [3]float64

func Add3(a, b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func Sub3(a, b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func Scale3(a Vec3, s float64) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}

func Dot3(a, b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func Cross3(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func Norm3(a Vec3) float64 {
	return math.Sqrt(Dot3(a, a))
}

// Normalize3 returns the unit vector and its original length. A zero
// vector comes back unchanged with length 0.
func Normalize3(a Vec3) (u Vec3, length float64) {
	length = Norm3(a)
	if length == 0 {
		return a, 0
	}
	return Scale3(a, 1./length), length
}

// OrthonormalBasis3 builds two unit tangents completing n to a right-handed
// orthonormal triad. n must be unit length.
func OrthonormalBasis3(n Vec3) (t1, t2 Vec3) {
	// Seed with the coordinate axis least aligned with n
	seed := Vec3{1, 0, 0}
	if math.Abs(n[0]) > math.Abs(n[1]) {
		seed = Vec3{0, 1, 0}
		if math.Abs(n[1]) > math.Abs(n[2]) {
			seed = Vec3{0, 0, 1}
		}
	}
	t1, _ = Normalize3(Cross3(n, seed))
	t2 = Cross3(n, t1)
	return
}
