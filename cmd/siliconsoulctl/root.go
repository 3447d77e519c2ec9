package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"siliconsoul/internal/storage"
	"siliconsoul/pkg/siliconsoul"
)

// version is set at build time via -ldflags.
var version = "dev"

const (
	defaultDBPath       = "siliconsoul.db"
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
)

type globalOptions struct {
	store        string
	dbPath       string
	artifactsDir string
	exportsDir   string
	logLevel     string
	logFormat    string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "siliconsoulctl",
		Short: "Evolve plastic-neuron genomes",
		Long: "siliconsoulctl mutates a hardware-description genome, scores the mutants\n" +
			"under a fitness policy and keeps the best lineage across generations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}

	f := root.PersistentFlags()
	f.StringVar(&g.store, "store", storage.KindSQLite, "store backend: memory|sqlite|badger")
	f.StringVar(&g.dbPath, "db-path", defaultDBPath, "sqlite database file or badger directory")
	f.StringVar(&g.artifactsDir, "artifacts-dir", defaultArtifactsDir, "directory for run artifacts and the run index")
	f.StringVar(&g.exportsDir, "exports-dir", defaultExportsDir, "directory for exported runs")
	f.StringVar(&g.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	f.StringVar(&g.logFormat, "log-format", "text", "log format: text|json")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newMutateCmd(g))
	root.AddCommand(newInspectCmd(g))
	root.AddCommand(newRunsCmd(g))
	root.AddCommand(newFitnessCmd(g))
	root.AddCommand(newLineageCmd(g))
	root.AddCommand(newDiagnosticsCmd(g))
	root.AddCommand(newSnapshotsCmd(g))
	root.AddCommand(newExportCmd(g))
	root.AddCommand(newPoliciesCmd(g))
	return root
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// openClient builds a client from the global flags. Logs go to stderr so
// stdout stays parseable.
func openClient(cmd *cobra.Command, g *globalOptions, extra func(*siliconsoul.Options)) (*siliconsoul.Client, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
	if err != nil {
		return nil, err
	}
	opts := siliconsoul.Options{
		StoreKind:    g.store,
		DBPath:       g.dbPath,
		ArtifactsDir: g.artifactsDir,
		ExportsDir:   g.exportsDir,
		Logger:       logger,
	}
	if extra != nil {
		extra(&opts)
	}
	return siliconsoul.New(opts)
}
