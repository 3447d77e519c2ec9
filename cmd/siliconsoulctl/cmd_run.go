package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"siliconsoul/internal/evo"
	"siliconsoul/internal/report"
	"siliconsoul/internal/scape"
	"siliconsoul/pkg/siliconsoul"
)

type runOptions struct {
	configPath       string
	runID            string
	basePath         string
	policy           string
	generationSize   int
	generations      int
	mutationRate     float64
	driftProfile     string
	drift            int64
	driftFloor       int64
	testInputs       []int64
	targetMultiplier int64
	cycles           int
	feedback         int64
	noise            int
	snapshotInterval int
	snapshotDir      string
	retainChampion   bool
	eliteCount       int
	selection        string
	workers          int
	seed             int64
	metricsAddr      string
	quiet            bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve a base genome under a fitness policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, g, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "YAML or JSON run configuration; explicit flags win")
	f.StringVar(&o.runID, "run-id", "", "run id (default: random uuid)")
	f.StringVar(&o.basePath, "base", "", "base genome file")
	f.StringVar(&o.policy, "policy", scape.PolicyTargetSeeking, "fitness policy: target-seeking|logic-integrity")
	f.IntVar(&o.generationSize, "generation-size", siliconsoul.DefaultGenerationSize, "mutants per generation")
	f.IntVar(&o.generations, "generations", siliconsoul.DefaultGenerations, "number of generations")
	f.Float64Var(&o.mutationRate, "mutation-rate", evo.DefaultMutationRate, "per-line mutation probability")
	f.StringVar(&o.driftProfile, "drift-profile", "", "literal drift preset: bitstream|natural-selection|target-seeking (default: by policy)")
	f.Int64Var(&o.drift, "drift", 0, "max literal drift, overrides the profile")
	f.Int64Var(&o.driftFloor, "drift-floor", 0, "minimum literal value, overrides the profile")
	f.Int64SliceVar(&o.testInputs, "test-inputs", []int64{10, 5, 20}, "target-seeking test inputs")
	f.Int64Var(&o.targetMultiplier, "target-multiplier", 2000, "target-seeking output multiplier")
	f.IntVar(&o.cycles, "cycles", siliconsoul.DefaultCycles, "simulation cycles per test input")
	f.Int64Var(&o.feedback, "feedback", 1, "feedback signal during simulation")
	f.IntVar(&o.noise, "noise", siliconsoul.DefaultNoise, "logic-integrity score noise amplitude")
	f.IntVar(&o.snapshotInterval, "snapshot-interval", siliconsoul.DefaultSnapshotInterval, "save the champion every N generations (0 disables)")
	f.StringVar(&o.snapshotDir, "snapshot-dir", "", "also write snapshot champions as genome files here")
	f.BoolVar(&o.retainChampion, "retain-champion", true, "keep the incumbent unless a mutant scores at least as well")
	f.IntVar(&o.eliteCount, "elite-count", 1, "top-ranked genomes eligible to become champion")
	f.StringVar(&o.selection, "selection", "elite", "champion selection strategy")
	f.IntVar(&o.workers, "workers", 1, "concurrent evaluations")
	f.Int64Var(&o.seed, "seed", 0, "random seed")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")
	f.BoolVar(&o.quiet, "quiet", false, "suppress per-generation progress")
	return cmd
}

func runRun(cmd *cobra.Command, g *globalOptions, o *runOptions) error {
	if o.configPath != "" {
		if err := applyRunConfig(cmd, o.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if o.basePath == "" {
		return fmt.Errorf("run requires --base or base_path in --config")
	}

	client, err := openClient(cmd, g, func(opts *siliconsoul.Options) {
		opts.MetricsAddr = o.metricsAddr
		if !o.quiet {
			opts.Progress = cmd.OutOrStdout()
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(cmd.Context(), runRequest(cmd, o))
	if err != nil {
		return err
	}
	return report.WriteSummary(cmd.OutOrStdout(), report.RunSummary{
		RunID:                summary.RunID,
		Policy:               summary.Policy,
		CompletedGenerations: summary.CompletedGenerations,
		BestFitness:          summary.FinalBestFitness,
		Extinct:              summary.Extinct,
		ExtinctAt:            summary.ExtinctAt,
		Phenotype:            summary.Phenotype,
		ArtifactsDir:         summary.ArtifactsDir,
	})
}

func runRequest(cmd *cobra.Command, o *runOptions) siliconsoul.RunRequest {
	noise := o.noise
	rate := o.mutationRate
	interval := o.snapshotInterval
	retain := o.retainChampion
	req := siliconsoul.RunRequest{
		RunID:            o.runID,
		BasePath:         o.basePath,
		Policy:           o.policy,
		GenerationSize:   o.generationSize,
		Generations:      o.generations,
		MutationRate:     &rate,
		DriftProfile:     o.driftProfile,
		TestInputs:       o.testInputs,
		TargetMultiplier: o.targetMultiplier,
		Cycles:           o.cycles,
		Feedback:         o.feedback,
		Noise:            &noise,
		SnapshotInterval: &interval,
		SnapshotDir:      o.snapshotDir,
		RetainChampion:   &retain,
		EliteCount:       o.eliteCount,
		Selection:        o.selection,
		Workers:          o.workers,
		Seed:             o.seed,
	}
	if cmd.Flags().Changed("drift") {
		drift := o.drift
		req.Drift = &drift
	}
	if cmd.Flags().Changed("drift-floor") {
		floor := o.driftFloor
		req.DriftFloor = &floor
	}
	return req
}
