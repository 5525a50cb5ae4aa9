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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/threadmesh/meshopt/executor"
	"github.com/threadmesh/meshopt/geometry"
	"github.com/threadmesh/meshopt/optimize"
	"github.com/threadmesh/meshopt/params"
)

type ModelOpt struct {
	Case       string
	ParamsFile string
	Size       int
	PerturbAmp float64
	Seed       int64
	Backend    string
	Profile    bool
}

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a built-in test mesh, reporting per-iteration quality",
	Long:  `Optimize a built-in test mesh, reporting per-iteration quality`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			mo  = &ModelOpt{}
		)
		if mo.Case, err = cmd.Flags().GetString("case"); err != nil {
			panic(err)
		}
		if mo.ParamsFile, err = cmd.Flags().GetString("paramsFile"); err != nil {
			panic(err)
		}
		mo.Size, _ = cmd.Flags().GetInt("size")
		mo.PerturbAmp, _ = cmd.Flags().GetFloat64("perturb")
		mo.Seed, _ = cmd.Flags().GetInt64("seed")
		mo.Backend, _ = cmd.Flags().GetString("backend")
		mo.Profile, _ = cmd.Flags().GetBool("profile")
		rp := processParams(mo)
		RunOptimize(mo, rp)
	},
}

func processParams(mo *ModelOpt) (rp params.RunParameters) {
	rp = params.Defaults(params.Structural)
	if len(mo.ParamsFile) == 0 {
		return
	}
	data, err := os.ReadFile(mo.ParamsFile)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Contact Patch"
Workbench: structural
DriverMode: EQI
MinIterations: 5
MaxIterations: 100
ConvergenceThreshold: 1.e-4
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	if err = rp.Parse(data); err != nil {
		panic(err)
	}
	if len(mo.Backend) != 0 {
		rp.Backend = mo.Backend
	}
	return
}

// buildCase constructs one of the built-in meshes by name
func buildCase(mo *ModelOpt) (gs *geometry.GeometryState, pairs [][2]int) {
	switch mo.Case {
	case "cube":
		gs = geometry.UnitCubeHexMesh(mo.Size)
	case "tets":
		gs = geometry.TetBlockMesh(mo.Size)
	case "inverted":
		gs = geometry.SingleTetMesh(true)
	case "plates":
		gs, pairs = geometry.ContactPlates(mo.Size, 1.0/float64(mo.Size), 0.05)
	default:
		fmt.Printf("error: unknown case %q, want cube|tets|inverted|plates\n", mo.Case)
		os.Exit(1)
	}
	if mo.PerturbAmp > 0 {
		geometry.Perturb(gs, mo.PerturbAmp, mo.Seed)
	}
	return
}

func RunOptimize(mo *ModelOpt, rp params.RunParameters) {
	if mo.Profile {
		defer profile.Start().Stop()
	}
	rp.Print()
	gs, pairs := buildCase(mo)
	exec := executor.Select(rp.Backend)
	defer exec.Close()

	opt, err := optimize.New(gs, rp, pairs, exec)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := opt.Run(ctx)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	fmt.Printf("Finished: %s after %d iterations\n", res.State.String(), res.Iterations)
	res.Report.Print()
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
	optimizeCmd.Flags().StringP("case", "c", "cube", "mesh case to optimize: cube|tets|inverted|plates")
	optimizeCmd.Flags().StringP("paramsFile", "I", "", "YAML file for run parameters like:\n\t- DriverMode\n\t- ConvergenceThreshold")
	optimizeCmd.Flags().IntP("size", "n", 8, "mesh resolution for the built-in cases")
	optimizeCmd.Flags().Float64P("perturb", "p", 0.1, "node perturbation amplitude applied before optimizing")
	optimizeCmd.Flags().Int64("seed", 1, "perturbation random seed")
	optimizeCmd.Flags().StringP("backend", "b", "", "execution backend: auto|cpu|gpu (overrides params file)")
	optimizeCmd.Flags().Bool("profile", false, "write a CPU profile for this run")
}
