package utils

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

func GetMemUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	// For info on each, see: https://golang.org/pkg/runtime/#MemStats
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}
	return fmt.Sprintf("Alloc = %v MiB TotalAlloc = %v MiB Sys = %v MiB NumGC = %v",
		bToMb(m.Alloc), bToMb(m.TotalAlloc), bToMb(m.Sys), m.NumGC)
}

// SystemMemoryBytes reports total physical memory. Falls back to 8 GiB when
// /proc/meminfo is unavailable (non-linux hosts).
func SystemMemoryBytes() (total uint64) {
	total = 8 << 30
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				total = kb * 1024
			}
			return
		}
	}
	return
}

// MemoryCapBytes converts a fraction of system memory into a byte budget.
func MemoryCapBytes(fraction float64) uint64 {
	if fraction <= 0 || fraction > 1 {
		fraction = 0.40
	}
	return uint64(float64(SystemMemoryBytes()) * fraction)
}

// ReservedWorkerCount returns the worker count for the host pool, always
// leaving reserve cores free for the host process.
func ReservedWorkerCount(reserve int) int {
	np := runtime.NumCPU() - reserve
	if np < 1 {
		np = 1
	}
	return np
}

func IsNanPanic(A any) {
	if IsNan(A) {
		panic("NAN found")
	}
}

func IsNan(A any) bool {
	switch v := A.(type) {
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	case [3]float64:
		for _, f := range v {
			if math.IsNaN(f) {
				return true
			}
		}
	case []float64:
		for _, f := range v {
			if math.IsNaN(f) {
				return true
			}
		}
	}
	return false
}
