package executor

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Backend preference, from the run parameters
const (
	BackendAuto = "auto"
	BackendCPU  = "cpu"
	BackendGPU  = "gpu"
)

// Select picks the executor once at run start. Auto benchmarks both
// backends on a synthetic Jacobian workload and keeps the faster one; a
// missing or slower device always falls back to the host pool, never an
// error.
func Select(pref string) Executor {
	switch pref {
	case BackendCPU:
		return NewHostExecutor()
	case BackendGPU, BackendAuto:
		dev, err := NewDeviceExecutor()
		if err != nil {
			if pref == BackendGPU {
				fmt.Printf("Device backend unavailable (%v), using host pool\n", err)
			}
			return NewHostExecutor()
		}
		if pref == BackendGPU {
			return dev
		}
		if benchmarkDevice(dev) < benchmarkHost() {
			fmt.Printf("Selected %s backend\n", dev.Name())
			return dev
		}
		dev.Close()
		return NewHostExecutor()
	default:
		return NewHostExecutor()
	}
}

const benchSamples = 200000

func syntheticJacobians(n int) []float64 {
	rng := rand.New(rand.NewSource(1))
	A := make([]float64, 9*n)
	for i := range A {
		A[i] = rng.Float64()
	}
	// Bias the diagonal so most samples are well conditioned
	for i := 0; i < n; i++ {
		A[9*i] += 2
		A[9*i+4] += 2
		A[9*i+8] += 2
	}
	return A
}

func benchmarkDevice(dev *DeviceExecutor) time.Duration {
	A := syntheticJacobians(benchSamples)
	// Warm the kernel before timing
	if _, err := dev.KappaBatch(A[:9*64]); err != nil {
		return time.Duration(1<<62 - 1)
	}
	t0 := time.Now()
	if _, err := dev.KappaBatch(A); err != nil {
		return time.Duration(1<<62 - 1)
	}
	return time.Since(t0)
}

func benchmarkHost() time.Duration {
	var (
		h   = NewHostExecutor()
		A   = syntheticJacobians(benchSamples)
		out = make([]float64, benchSamples)
		t0  = time.Now()
	)
	h.RunElements(benchSamples, func(i int) {
		out[i] = kappa3x3(A[9*i : 9*i+9])
	})
	return time.Since(t0)
}

// kappa3x3 is the host mirror of the device kernel, used for the
// selection benchmark and for verifying device results in tests
func kappa3x3(a []float64) float64 {
	var (
		c00 = a[4]*a[8] - a[5]*a[7]
		c01 = a[5]*a[6] - a[3]*a[8]
		c02 = a[3]*a[7] - a[4]*a[6]
		det = a[0]*c00 + a[1]*c01 + a[2]*c02
	)
	if det <= 0 {
		return -1
	}
	var (
		c10 = a[2]*a[7] - a[1]*a[8]
		c11 = a[0]*a[8] - a[2]*a[6]
		c12 = a[1]*a[6] - a[0]*a[7]
		c20 = a[1]*a[5] - a[2]*a[4]
		c21 = a[2]*a[3] - a[0]*a[5]
		c22 = a[0]*a[4] - a[1]*a[3]
		nf, ni float64
	)
	for _, v := range a {
		nf += v * v
	}
	for _, v := range []float64{c00, c01, c02, c10, c11, c12, c20, c21, c22} {
		ni += v * v
	}
	ni /= det * det
	return math.Sqrt(nf) * math.Sqrt(ni) / 3
}
