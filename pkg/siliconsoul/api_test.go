package siliconsoul

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siliconsoul/internal/evo"
	"siliconsoul/internal/genome"
	"siliconsoul/internal/scape"
	"siliconsoul/internal/stats"
)

const plasticNeuron = `// Plastic neuron: Hebbian weight update
module plastic_neuron (
    input wire clk,
    input wire rst,
    input wire [15:0] input_signal,
    input wire feedback,
    output reg [31:0] output_signal
);
    parameter LEARNING_RATE = 16'd7;
    reg [15:0] weight;

    always @(posedge clk) begin
        if (rst) begin
            weight <= 16'd500;
        end else begin
            output_signal <= input_signal * weight;
            if (input_signal > 0 && feedback) begin
                weight <= weight + LEARNING_RATE;
            end
        end
    end
endmodule
`

func writeBase(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "plastic_neuron.v")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func newTestClient(t *testing.T, opts Options) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	if opts.StoreKind == "" {
		opts.StoreKind = "memory"
	}
	opts.ArtifactsDir = filepath.Join(base, "runs")
	opts.ExportsDir = filepath.Join(base, "exports")
	client, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestClientRunAndQueries(t *testing.T) {
	client, dir := newTestClient(t, Options{})
	ctx := context.Background()
	basePath := writeBase(t, dir, plasticNeuron)

	summary, err := client.Run(ctx, RunRequest{
		BasePath:         basePath,
		Policy:           scape.PolicyTargetSeeking,
		GenerationSize:   4,
		Generations:      3,
		MutationRate:     floatPtr(0.5),
		SnapshotInterval: intPtr(1),
		Seed:             7,
		Workers:          2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.Len(t, summary.BestByGeneration, 3)
	assert.Equal(t, 3, summary.CompletedGenerations)
	assert.False(t, summary.Extinct)
	assert.Equal(t, genome.Extract(summary.Champion), summary.Phenotype)
	for i := 1; i < len(summary.BestByGeneration); i++ {
		assert.GreaterOrEqual(t, summary.BestByGeneration[i], summary.BestByGeneration[i-1])
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, scape.PolicyTargetSeeking, runs[0].Policy)

	history, err := client.FitnessHistory(ctx, FitnessHistoryRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.BestByGeneration, history)

	lineage, err := client.Lineage(ctx, LineageRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.Len(t, lineage, 4)
	assert.Equal(t, evo.OperationSeed, lineage[0].Operation)
	assert.Equal(t, genome.Text(plasticNeuron).Fingerprint(), lineage[0].Fingerprint)

	limited, err := client.Lineage(ctx, LineageRequest{RunID: summary.RunID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{Latest: true})
	require.NoError(t, err)
	require.Len(t, diagnostics, 3)
	assert.Equal(t, 5, diagnostics[0].Evaluated)

	snapshots, err := client.Snapshots(ctx, SnapshotsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, 1, snapshots[0].Generation)

	record, err := client.RunRecord(ctx, "", true)
	require.NoError(t, err)
	assert.Equal(t, summary.FinalBestFitness, record.BestFitness)
	assert.Equal(t, summary.Champion.String(), record.ChampionText)

	policy, ok, err := client.PolicySummary(ctx, scape.PolicyTargetSeeking)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, policy.Runs)
	assert.Equal(t, 0, policy.Extinctions)

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, exported.RunID)
	for _, name := range []string{"config.json", "fitness_history.json", "champion.json", "champion.v", "lineage.json"} {
		_, err := os.Stat(filepath.Join(exported.Directory, name))
		assert.NoError(t, err, name)
	}
}

func TestClientRunIsDeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	run := func() RunSummary {
		client, dir := newTestClient(t, Options{})
		summary, err := client.Run(ctx, RunRequest{
			BasePath:       writeBase(t, dir, plasticNeuron),
			GenerationSize: 6,
			Generations:    4,
			MutationRate:   floatPtr(0.4),
			Seed:           99,
			RunID:          "fixed",
		})
		require.NoError(t, err)
		summary.ArtifactsDir = ""
		return summary
	}
	assert.Equal(t, run(), run())
}

func TestClientRunExtinction(t *testing.T) {
	client, dir := newTestClient(t, Options{})
	ctx := context.Background()
	var progress bytes.Buffer
	client.progress = &progress

	summary, err := client.Run(ctx, RunRequest{
		BasePath:       writeBase(t, dir, "// syntax error\n"+plasticNeuron),
		Policy:         scape.PolicyLogicIntegrity,
		GenerationSize: 5,
		Generations:    10,
		MutationRate:   floatPtr(0.2),
		Seed:           3,
	})
	require.NoError(t, err)
	assert.True(t, summary.Extinct)
	assert.Equal(t, 1, summary.ExtinctAt)
	assert.Equal(t, 0, summary.CompletedGenerations)
	assert.Empty(t, summary.BestByGeneration)
	assert.Contains(t, progress.String(), "EXTINCTION EVENT at generation 1")

	policy, ok, err := client.PolicySummary(ctx, scape.PolicyLogicIntegrity)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, policy.Extinctions)

	_, ok, err = client.PolicySummary(ctx, scape.PolicyTargetSeeking)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientRunWritesSnapshotFilesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, dir := newTestClient(t, Options{Registerer: reg})
	snapshotDir := filepath.Join(dir, "snapshots")

	_, err := client.Run(context.Background(), RunRequest{
		BasePath:         writeBase(t, dir, plasticNeuron),
		GenerationSize:   3,
		Generations:      4,
		MutationRate:     floatPtr(0.3),
		SnapshotInterval: intPtr(2),
		SnapshotDir:      snapshotDir,
		Seed:             11,
	})
	require.NoError(t, err)

	for _, name := range []string{"plastic_neuron_gen2.v", "plastic_neuron_gen4.v"} {
		_, err := genome.Load(filepath.Join(snapshotDir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(snapshotDir, "plastic_neuron_gen1.v"))
	assert.True(t, os.IsNotExist(err))

	got := testutil.ToFloat64(client.recorder.GenerationsTotal.WithLabelValues(scape.PolicyTargetSeeking))
	assert.Equal(t, 4.0, got)
}

func TestClientRunDefaultsAndInlineBase(t *testing.T) {
	client, dir := newTestClient(t, Options{})
	snapshotDir := filepath.Join(dir, "snapshots")

	summary, err := client.Run(context.Background(), RunRequest{
		Base:             genome.Text(plasticNeuron),
		GenerationSize:   3,
		Generations:      2,
		SnapshotInterval: intPtr(1),
		SnapshotDir:      snapshotDir,
		Seed:             8,
	})
	require.NoError(t, err)

	cfg, ok, err := stats.ReadRunConfig(client.artifactsDir, summary.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, evo.DefaultMutationRate, cfg.MutationRate)
	assert.Equal(t, DefaultNoise, cfg.Noise)
	assert.True(t, cfg.RetainChampion)

	for _, name := range []string{"genome_gen1.v", "genome_gen2.v"} {
		_, err := genome.Load(filepath.Join(snapshotDir, name))
		assert.NoError(t, err, name)
	}
}

func TestClientRunRejectsBadInput(t *testing.T) {
	client, dir := newTestClient(t, Options{})
	ctx := context.Background()
	basePath := writeBase(t, dir, plasticNeuron)

	_, err := client.Run(ctx, RunRequest{BasePath: filepath.Join(dir, "missing.v")})
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.v")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	_, err = client.Run(ctx, RunRequest{BasePath: empty})
	require.ErrorIs(t, err, genome.ErrEmptyGenome)

	_, err = client.Run(ctx, RunRequest{BasePath: basePath, Policy: "vibes"})
	require.ErrorIs(t, err, scape.ErrUnknownPolicy)

	_, err = client.Run(ctx, RunRequest{BasePath: basePath, MutationRate: floatPtr(1.5)})
	require.Error(t, err)

	_, err = client.Run(ctx, RunRequest{BasePath: basePath, DriftProfile: "chaotic"})
	require.Error(t, err)
}

func TestClientMutate(t *testing.T) {
	client, dir := newTestClient(t, Options{})
	in := writeBase(t, dir, plasticNeuron)

	summary, err := client.Mutate(context.Background(), MutateRequest{InPath: in, Rate: 1, Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plastic_neuron_gen1.v"), summary.OutPath)
	assert.True(t, summary.Changed)
	assert.NotEmpty(t, summary.Events)

	mutated, err := genome.Load(summary.OutPath)
	require.NoError(t, err)
	assert.Equal(t, len(genome.Text(plasticNeuron).Lines()), len(mutated.Lines()))
	assert.True(t, strings.HasPrefix(mutated.String(), "// Plastic neuron"))

	out := filepath.Join(dir, "out", "copy.v")
	summary, err = client.Mutate(context.Background(), MutateRequest{InPath: in, OutPath: out, Rate: 0})
	require.NoError(t, err)
	assert.False(t, summary.Changed)
	assert.Empty(t, summary.Events)
	copied, err := genome.Load(out)
	require.NoError(t, err)
	assert.Equal(t, genome.Text(plasticNeuron), copied)
}

func TestClientInspect(t *testing.T) {
	client, dir := newTestClient(t, Options{})
	path := writeBase(t, dir, plasticNeuron)

	summary, err := client.Inspect(context.Background(), InspectRequest{Path: path, Input: 10, Feedback: 1, Cycles: 3})
	require.NoError(t, err)
	assert.Equal(t, genome.Phenotype{Weight: 500, LearningRate: 7, Inference: genome.InferenceMultiply, Learning: genome.LearningIncrement}, summary.Phenotype)
	assert.Equal(t, []int64{5000, 5070, 5140}, summary.Outputs)
	assert.Equal(t, int64(521), summary.FinalWeight)
	assert.Equal(t, genome.Text(plasticNeuron).Fingerprint(), summary.Fingerprint)
}

func TestClientRunSelectionErrors(t *testing.T) {
	client, _ := newTestClient(t, Options{})
	ctx := context.Background()

	_, err := client.Lineage(ctx, LineageRequest{RunID: "x", Latest: true})
	require.EqualError(t, err, "use either run id or latest")

	_, err = client.FitnessHistory(ctx, FitnessHistoryRequest{})
	require.EqualError(t, err, "fitness history requires run id or latest")

	_, err = client.Diagnostics(ctx, DiagnosticsRequest{RunID: "x", Limit: -1})
	require.EqualError(t, err, "limit must be >= 0")

	_, err = client.Export(ctx, ExportRequest{})
	require.EqualError(t, err, "export requires run id or latest")

	_, err = client.Snapshots(ctx, SnapshotsRequest{Latest: true})
	require.EqualError(t, err, "no runs available")

	_, err = client.Lineage(ctx, LineageRequest{RunID: "unknown"})
	require.EqualError(t, err, "lineage not found for run id: unknown")
}

func TestClientPersistsAcrossSQLiteReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "siliconsoul.db")
	opts := Options{
		StoreKind:    "sqlite",
		DBPath:       dbPath,
		ArtifactsDir: filepath.Join(dir, "runs"),
	}
	ctx := context.Background()

	first, err := New(opts)
	require.NoError(t, err)
	summary, err := first.Run(ctx, RunRequest{
		BasePath:       writeBase(t, dir, plasticNeuron),
		GenerationSize: 3,
		Generations:    2,
		MutationRate:   floatPtr(0.2),
		Seed:           1,
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = second.Close()
	})
	history, err := second.FitnessHistory(ctx, FitnessHistoryRequest{RunID: summary.RunID})
	require.NoError(t, err)
	assert.Equal(t, summary.BestByGeneration, history)
}
