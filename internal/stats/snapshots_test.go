package stats

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siliconsoul/internal/evo"
	"siliconsoul/internal/genome"
)

func TestFileSnapshotSinkWritesGenerationFile(t *testing.T) {
	dir := t.TempDir()
	sink := FileSnapshotSink{Dir: dir, BasePath: "designs/plastic_neuron.v"}

	err := sink.SaveSnapshot(context.Background(), 5, evo.ScoredGenome{Genome: "module m;\nendmodule"})
	require.NoError(t, err)

	path := filepath.Join(dir, "plastic_neuron_gen5.v")
	assert.Equal(t, path, sink.Path(5))
	text, err := genome.Load(path)
	require.NoError(t, err)
	assert.Equal(t, genome.Text("module m;\nendmodule"), text)
}

func TestFileSnapshotSinkRequiresDir(t *testing.T) {
	err := FileSnapshotSink{}.SaveSnapshot(context.Background(), 1, evo.ScoredGenome{Genome: "x"})
	assert.Error(t, err)
}
