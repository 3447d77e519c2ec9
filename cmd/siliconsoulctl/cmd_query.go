package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"siliconsoul/internal/report"
	"siliconsoul/internal/scape"
	"siliconsoul/pkg/siliconsoul"
)

type selectOptions struct {
	runID   string
	latest  bool
	limit   int
	jsonOut bool
}

func (s *selectOptions) bind(cmd *cobra.Command, limitDefault int) {
	f := cmd.Flags()
	f.StringVar(&s.runID, "run-id", "", "run id")
	f.BoolVar(&s.latest, "latest", false, "use the most recent run from the run index")
	if limitDefault >= 0 {
		f.IntVar(&s.limit, "limit", limitDefault, "max rows to print (0 for all)")
	}
	f.BoolVar(&s.jsonOut, "json", false, "emit JSON")
}

func (s *selectOptions) validate(what string) error {
	if s.runID != "" && s.latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if s.runID == "" && !s.latest {
		return fmt.Errorf("%s requires --run-id or --latest", what)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunsCmd(g *globalOptions) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, err := openClient(cmd, g, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			runs, err := client.Runs(cmd.Context(), siliconsoul.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, r := range runs {
				status := "completed"
				if r.Extinct {
					status = "extinct"
				}
				fmt.Fprintf(out, "%s policy=%s seed=%d generations=%d/%d best=%s %s created=%s\n",
					r.RunID, r.Policy, r.Seed, r.CompletedGenerations, r.Generations,
					report.FormatFitness(r.FinalBestFitness), status, r.CreatedAtUTC)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit JSON")
	return cmd
}

func newFitnessCmd(g *globalOptions) *cobra.Command {
	s := &selectOptions{}
	cmd := &cobra.Command{
		Use:   "fitness",
		Short: "Show the best fitness of each generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.validate("fitness"); err != nil {
				return err
			}
			client, err := openClient(cmd, g, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			history, err := client.FitnessHistory(cmd.Context(), siliconsoul.FitnessHistoryRequest{
				RunID:  s.runID,
				Latest: s.latest,
				Limit:  s.limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s.jsonOut {
				return writeJSON(out, history)
			}
			if len(history) == 0 {
				fmt.Fprintln(out, "no completed generations")
				return nil
			}
			for i, v := range history {
				fmt.Fprintf(out, "gen=%d best=%s\n", i+1, report.FormatFitness(v))
			}
			return nil
		},
	}
	s.bind(cmd, 0)
	return cmd
}

func newLineageCmd(g *globalOptions) *cobra.Command {
	s := &selectOptions{}
	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Show the champion lineage of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.validate("lineage"); err != nil {
				return err
			}
			client, err := openClient(cmd, g, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			lineage, err := client.Lineage(cmd.Context(), siliconsoul.LineageRequest{
				RunID:  s.runID,
				Latest: s.latest,
				Limit:  s.limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s.jsonOut {
				return writeJSON(out, lineage)
			}
			for _, rec := range lineage {
				fmt.Fprintf(out, "gen=%d genome_id=%s parent_id=%s op=%s fingerprint=%s\n",
					rec.Generation, rec.GenomeID, rec.ParentID, rec.Operation, rec.Fingerprint)
			}
			return nil
		},
	}
	s.bind(cmd, 50)
	return cmd
}

func newDiagnosticsCmd(g *globalOptions) *cobra.Command {
	s := &selectOptions{}
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show per-generation diagnostics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.validate("diagnostics"); err != nil {
				return err
			}
			client, err := openClient(cmd, g, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			diagnostics, err := client.Diagnostics(cmd.Context(), siliconsoul.DiagnosticsRequest{
				RunID:  s.runID,
				Latest: s.latest,
				Limit:  s.limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s.jsonOut {
				return writeJSON(out, diagnostics)
			}
			for _, d := range diagnostics {
				fmt.Fprintf(out, "gen=%d best=%s mean=%s min=%s evaluated=%d diversity=%d champion=%s retained=%t\n",
					d.Generation,
					report.FormatFitness(d.BestFitness),
					report.FormatFitness(d.MeanFitness),
					report.FormatFitness(d.MinFitness),
					d.Evaluated,
					d.Diversity,
					d.ChampionID,
					d.ChampionRetained)
			}
			return nil
		},
	}
	s.bind(cmd, 0)
	return cmd
}

func newSnapshotsCmd(g *globalOptions) *cobra.Command {
	s := &selectOptions{}
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List the champion snapshots stored for a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.validate("snapshots"); err != nil {
				return err
			}
			client, err := openClient(cmd, g, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			snapshots, err := client.Snapshots(cmd.Context(), siliconsoul.SnapshotsRequest{
				RunID:  s.runID,
				Latest: s.latest,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s.jsonOut {
				return writeJSON(out, snapshots)
			}
			if len(snapshots) == 0 {
				fmt.Fprintln(out, "no snapshots")
				return nil
			}
			for _, snap := range snapshots {
				fmt.Fprintf(out, "gen=%d genome_id=%s fitness=%s %s\n",
					snap.Generation, snap.GenomeID, report.FormatFitness(snap.Fitness), report.FormatPhenotype(snap.Phenotype))
			}
			return nil
		},
	}
	s.bind(cmd, -1)
	return cmd
}

func newExportCmd(g *globalOptions) *cobra.Command {
	s := &selectOptions{}
	var outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to the exports directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.validate("export"); err != nil {
				return err
			}
			client, err := openClient(cmd, g, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			exported, err := client.Export(cmd.Context(), siliconsoul.ExportRequest{
				RunID:  s.runID,
				Latest: s.latest,
				OutDir: outDir,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s.jsonOut {
				return writeJSON(out, exported)
			}
			fmt.Fprintf(out, "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	s.bind(cmd, -1)
	cmd.Flags().StringVar(&outDir, "out", "", "destination directory (default: --exports-dir)")
	return cmd
}

func newPoliciesCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List fitness policies and their run totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := openClient(cmd, g, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			out := cmd.OutOrStdout()
			for _, name := range scape.Policies() {
				summary, ok, err := client.PolicySummary(cmd.Context(), name)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "%s runs=0\n", name)
					continue
				}
				fmt.Fprintf(out, "%s runs=%d extinctions=%d best=%s\n",
					name, summary.Runs, summary.Extinctions, report.FormatFitness(summary.BestFitness))
			}
			return nil
		},
	}
}
