package stats

import (
	"context"
	"fmt"
	"path/filepath"

	"siliconsoul/internal/evo"
	"siliconsoul/internal/genome"
)

// FileSnapshotSink writes snapshot champions as genome files named after the
// base genome, e.g. plastic_neuron_gen5.v.
type FileSnapshotSink struct {
	Dir      string
	BasePath string
}

func (s FileSnapshotSink) SaveSnapshot(ctx context.Context, generation int, champion evo.ScoredGenome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Dir == "" {
		return fmt.Errorf("snapshot directory is required")
	}
	return genome.Write(s.Path(generation), champion.Genome)
}

func (s FileSnapshotSink) Path(generation int) string {
	return filepath.Join(s.Dir, genome.GenerationFileName(s.BasePath, generation))
}
