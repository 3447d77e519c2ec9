package unit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siliconsoul/internal/genome"
)

func TestRunDeterministic(t *testing.T) {
	p := genome.Phenotype{Weight: 3, LearningRate: 2, Inference: genome.InferenceMultiply}
	first := Run(p, 4, 1, 6)
	second := Run(p, 4, 1, 6)
	require.Len(t, first, 6)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated runs diverged (-first +second):\n%s", diff)
	}
	assert.Equal(t, []int64{12, 20, 28, 36, 44, 52}, first)
}

func TestRunPlasticityIncrementsByLearningRate(t *testing.T) {
	const rate = 7
	p := genome.Phenotype{Weight: 100, LearningRate: rate, Inference: genome.InferenceAdd, Learning: genome.LearningIncrement}
	out := Run(p, 1, 1, 10)
	for k := 1; k < len(out); k++ {
		// out = 1 + weight, so the weight delta equals the output delta.
		assert.Equal(t, int64(rate), out[k]-out[k-1], "cycle %d", k)
	}
}

func TestRunDecrement(t *testing.T) {
	p := genome.Phenotype{Weight: 10, LearningRate: 4, Inference: genome.InferenceSubtract, Learning: genome.LearningDecrement}
	assert.Equal(t, []int64{-8, -4, 0}, Run(p, 2, 1, 3))
}

func TestRunNoAdaptationWithoutBothSignals(t *testing.T) {
	p := genome.Phenotype{Weight: 5, LearningRate: 3, Inference: genome.InferenceMultiply}
	assert.Equal(t, []int64{10, 10, 10}, Run(p, 2, 0, 3))
	assert.Equal(t, []int64{-10, -10, -10}, Run(p, -2, 1, 3))
	assert.Equal(t, []int64{0, 0}, Run(p, 0, 1, 2))
}

func TestRunUnknownOperatorYieldsZero(t *testing.T) {
	p := genome.Phenotype{Weight: 5, LearningRate: 3, Inference: genome.InferenceUnknown}
	assert.Equal(t, []int64{0, 0, 0}, Run(p, 2, 1, 3))
}

func TestRunNonPositiveCycles(t *testing.T) {
	assert.Empty(t, Run(genome.DefaultPhenotype(), 1, 1, 0))
	assert.Empty(t, Run(genome.DefaultPhenotype(), 1, 1, -3))
}

func TestUnitWeightDoesNotLeakAcrossRuns(t *testing.T) {
	p := genome.DefaultPhenotype()
	u := New(p)
	u.Step(1, 1)
	assert.Equal(t, p.Weight+p.LearningRate, u.Weight())
	assert.Equal(t, Run(p, 1, 1, 1)[0], p.Weight)
}
