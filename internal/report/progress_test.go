package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siliconsoul/internal/evo"
	"siliconsoul/internal/genome"
)

func TestProgressWritesGenerationLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 20)
	p.OnGeneration(context.Background(), evo.GenerationReport{
		Generation: 3,
		Champion:   evo.ScoredGenome{Fitness: 12345.5},
		Phenotype: genome.Phenotype{
			Weight:       1050,
			LearningRate: 10,
			Inference:    genome.InferenceAdd,
			Learning:     genome.LearningDecrement,
		},
	})
	assert.Equal(t, "Gen 3/20 | Best Fitness: 12,345.5 | Champion W:1,050 LR:10 Op:+ Learn:-\n", buf.String())
}

func TestProgressWritesExtinctionWithoutColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 0)
	assert.False(t, IsTerminal(&buf))
	p.OnExtinction(context.Background(), 4)
	assert.Equal(t, "EXTINCTION EVENT at generation 4: all mutants failed\n", buf.String())
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummary(&buf, RunSummary{
		RunID:                "r1",
		Policy:               "logic-integrity",
		CompletedGenerations: 2,
		BestFitness:          95,
		Extinct:              true,
		ExtinctAt:            3,
		Phenotype:            genome.DefaultPhenotype(),
	})
	require.NoError(t, err)
	assert.Equal(t, "run_id=r1 policy=logic-integrity generations=2\n"+
		"extinct at generation 3\n"+
		"best fitness: 95\n"+
		"champion: W:1,000 LR:10 Op:* Learn:+\n", buf.String())
}
