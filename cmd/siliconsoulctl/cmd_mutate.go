package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"siliconsoul/internal/evo"
	"siliconsoul/internal/report"
	"siliconsoul/pkg/siliconsoul"
)

type mutateOptions struct {
	in           string
	out          string
	rate         float64
	driftProfile string
	drift        int64
	driftFloor   int64
	seed         int64
}

func newMutateCmd(g *globalOptions) *cobra.Command {
	o := &mutateOptions{}
	cmd := &cobra.Command{
		Use:   "mutate",
		Short: "Apply one mutation pass to a genome file",
		Long: "mutate rewrites arithmetic operators, comparators and sized literals on\n" +
			"randomly selected lines. Each rewrite is logged at debug level.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMutate(cmd, g, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.in, "in", "", "genome file to mutate (required)")
	f.StringVar(&o.out, "out", "", "output file (default: <stem>_gen1<ext> next to --in)")
	f.Float64Var(&o.rate, "rate", 0.1, "per-line mutation probability")
	f.StringVar(&o.driftProfile, "drift-profile", evo.DriftProfileBitstream, "literal drift preset: bitstream|natural-selection|target-seeking")
	f.Int64Var(&o.drift, "drift", 0, "max literal drift, overrides the profile")
	f.Int64Var(&o.driftFloor, "drift-floor", 0, "minimum literal value, overrides the profile")
	f.Int64Var(&o.seed, "seed", 0, "random seed")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func runMutate(cmd *cobra.Command, g *globalOptions, o *mutateOptions) error {
	client, err := openClient(cmd, g, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := siliconsoul.MutateRequest{
		InPath:       o.in,
		OutPath:      o.out,
		Rate:         o.rate,
		DriftProfile: o.driftProfile,
		Seed:         o.seed,
	}
	if cmd.Flags().Changed("drift") {
		req.Drift = &o.drift
	}
	if cmd.Flags().Changed("drift-floor") {
		req.DriftFloor = &o.driftFloor
	}

	summary, err := client.Mutate(cmd.Context(), req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, event := range summary.Events {
		fmt.Fprintf(out, "line %d [%s]: %s -> %s\n", event.Line, event.Kind, event.Before, event.After)
	}
	fmt.Fprintf(out, "%d rewrites, written to %s\n", len(summary.Events), summary.OutPath)
	return nil
}

type inspectOptions struct {
	in       string
	input    int64
	feedback int64
	cycles   int
}

func newInspectCmd(g *globalOptions) *cobra.Command {
	o := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the phenotype of a genome file and simulate it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, g, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.in, "in", "", "genome file (required)")
	f.Int64Var(&o.input, "input", 10, "input signal")
	f.Int64Var(&o.feedback, "feedback", 1, "feedback signal")
	f.IntVar(&o.cycles, "cycles", siliconsoul.DefaultCycles, "simulation cycles")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func runInspect(cmd *cobra.Command, g *globalOptions, o *inspectOptions) error {
	client, err := openClient(cmd, g, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Inspect(cmd.Context(), siliconsoul.InspectRequest{
		Path:     o.in,
		Input:    o.input,
		Feedback: o.feedback,
		Cycles:   o.cycles,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "phenotype: %s\n", report.FormatPhenotype(summary.Phenotype))
	fmt.Fprintf(out, "fingerprint: %s\n", summary.Fingerprint)
	for i, v := range summary.Outputs {
		fmt.Fprintf(out, "cycle %d: output=%d\n", i+1, v)
	}
	fmt.Fprintf(out, "final weight: %d\n", summary.FinalWeight)
	return nil
}
