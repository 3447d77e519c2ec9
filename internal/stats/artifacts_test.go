package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siliconsoul/internal/genome"
	"siliconsoul/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			Policy:         "target-seeking",
			GenerationSize: 10,
			Generations:    3,
			MutationRate:   0.05,
			Drift:          50,
			DriftFloor:     1,
			Seed:           7,
		},
		BestByGeneration: []float64{10, 12.5, 20},
		GenerationDiagnostics: []model.GenerationDiagnostics{
			{Generation: 1, BestFitness: 10, Evaluated: 11},
		},
		FinalBestFitness: 20,
		Champion: Champion{
			ID:        "g3-m1",
			Fitness:   20,
			Phenotype: genome.DefaultPhenotype(),
			Text:      "module m;\nendmodule\n",
		},
		Lineage: LineageEntries([]model.LineageRecord{
			{GenomeID: "g0-base", Operation: "seed"},
			{GenomeID: "g1-m0", ParentID: "g0-base", Generation: 1, Operation: "line_mutation"},
		}),
	}
}

func TestWriteRunArtifacts(t *testing.T) {
	base := t.TempDir()
	artifacts := sampleArtifacts("run-1")
	runDir, err := WriteRunArtifacts(base, artifacts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1"), runDir)

	cfg, ok, err := ReadRunConfig(base, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(artifacts.Config, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	champion, ok, err := ReadChampion(base, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Champion, champion)

	text, err := genome.Load(filepath.Join(runDir, "champion.v"))
	require.NoError(t, err)
	assert.Equal(t, genome.Text(artifacts.Champion.Text), text)

	series, ok, err := ReadFitnessSeries(base, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.BestByGeneration, series)

	_, err = WriteRunArtifacts(base, RunArtifacts{})
	assert.Error(t, err)
}

func TestReadMissingArtifacts(t *testing.T) {
	base := t.TempDir()
	_, ok, err := ReadRunConfig(base, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = ReadFitnessSeries(base, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunIndexOrdersNewestFirstAndReplaces(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, AppendRunIndex(base, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(base, RunIndexEntry{RunID: "b", CreatedAtUTC: "2026-02-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(base, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-03-01T00:00:00Z", FinalBestFitness: 3}))

	entries, err := ListRunIndex(base)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].RunID)
	assert.Equal(t, 3.0, entries[0].FinalBestFitness)
	assert.Equal(t, "b", entries[1].RunID)

	assert.Error(t, AppendRunIndex(base, RunIndexEntry{}))
}

func TestListRunIndexEmpty(t *testing.T) {
	entries, err := ListRunIndex(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportRunArtifacts(t *testing.T) {
	base := t.TempDir()
	out := t.TempDir()
	_, err := WriteRunArtifacts(base, sampleArtifacts("run-2"))
	require.NoError(t, err)

	dst, err := ExportRunArtifacts(base, "run-2", out)
	require.NoError(t, err)
	for _, file := range exportFiles {
		_, err := os.Stat(filepath.Join(dst, file))
		assert.NoError(t, err, file)
	}

	_, err = ExportRunArtifacts(base, "missing", out)
	assert.Error(t, err)
	_, err = ExportRunArtifacts(base, "", out)
	assert.Error(t, err)
}
