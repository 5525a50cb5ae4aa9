/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/threadmesh/meshopt/executor"
	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/quality"
)

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time the quality evaluation sweep on each available backend",
	Long:  `Time the quality evaluation sweep on each available backend`,
	Run: func(cmd *cobra.Command, args []string) {
		size, _ := cmd.Flags().GetInt("size")
		reps, _ := cmd.Flags().GetInt("reps")
		RunBench(size, reps)
	},
}

func RunBench(size, reps int) {
	gs := geometry.UnitCubeHexMesh(size)
	geometry.Perturb(gs, 0.1, 1)
	fmt.Printf("Benchmark mesh: %d hex elements, %d nodes, %d sweeps\n",
		gs.NumElements(), gs.NumNodes(), reps)

	host := executor.NewHostExecutor()
	benchSweep("cpu", host, gs, reps)

	if dev, err := executor.NewDeviceExecutor(); err == nil {
		defer dev.Close()
		benchKappaBatch(dev, gs, reps)
	} else {
		fmt.Printf("gpu: unavailable (%s)\n", err.Error())
	}
}

func benchSweep(name string, exec executor.Executor, gs *geometry.GeometryState, reps int) {
	start := time.Now()
	for r := 0; r < reps; r++ {
		exec.RunElements(gs.NumElements(), func(k int) {
			el := gs.Elements[k]
			quality.Evaluate(el.Type, gs.ElementCoords(k), quality.NumMetricsStructural, nil)
		})
	}
	elapsed := time.Since(start)
	fmt.Printf("%s (%s): %v total, %.1f elements/ms\n", name, exec.Name(), elapsed,
		float64(reps*gs.NumElements())/float64(elapsed.Milliseconds()+1))
}

// benchKappaBatch times the device condition-number kernel over the corner
// Jacobians of the whole mesh, the slice of the sweep the device accelerates
func benchKappaBatch(dev *executor.DeviceExecutor, gs *geometry.GeometryState, reps int) {
	var flat []float64
	for k := 0; k < gs.NumElements(); k++ {
		el := gs.Elements[k]
		for _, J := range quality.CornerJacobians(el.Type, gs.ElementCoords(k)) {
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					flat = append(flat, J.At(i, j))
				}
			}
		}
	}
	start := time.Now()
	for r := 0; r < reps; r++ {
		if _, err := dev.KappaBatch(flat); err != nil {
			fmt.Printf("gpu: kernel failed (%s)\n", err.Error())
			return
		}
	}
	elapsed := time.Since(start)
	n := len(flat) / 9
	fmt.Printf("gpu (%s): %v total, %.1f jacobians/ms\n", dev.Name(), elapsed,
		float64(reps*n)/float64(elapsed.Milliseconds()+1))
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntP("size", "n", 16, "benchmark mesh resolution")
	benchCmd.Flags().IntP("reps", "r", 10, "number of evaluation sweeps")
}
