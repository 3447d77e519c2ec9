package evo

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siliconsoul/internal/genome"
)

const testNeuron = `// neuron under test
module neuron (
    input wire [15:0] input_signal,
    output reg [31:0] output_signal
);
    parameter LEARNING_RATE = 16'd10;
    reg [15:0] weight;
    always @(posedge clk) begin
        weight <= 16'd1000;
        output_signal <= input_signal * weight;
        if (input_signal > 0 && feedback) begin
            weight <= weight + LEARNING_RATE;
        end
    end
endmodule`

func TestMutateRateZeroIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	out, events, err := Mutate(rng, testNeuron, MutationParams{Rate: 0, Drift: 50, Floor: 1})
	require.NoError(t, err)
	assert.Equal(t, genome.Text(testNeuron), out)
	assert.Empty(t, events)
}

func TestMutatePreservesLineCountAndProtectedLines(t *testing.T) {
	base := genome.Text(testNeuron)
	baseLines := base.Lines()
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out, _, err := Mutate(rng, base, MutationParams{Rate: 1, Drift: 5})
		require.NoError(t, err)

		lines := out.Lines()
		require.Len(t, lines, len(baseLines), "seed %d", seed)
		for i, line := range baseLines {
			if genome.Protected(line) {
				assert.Equal(t, line, lines[i], "seed %d line %d", seed, i+1)
			}
		}
	}
}

func TestMutateArithmeticSwapUsesOneReplacement(t *testing.T) {
	seen := map[string]bool{}
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out, _, err := Mutate(rng, "a = b + c + d;", MutationParams{Rate: 1})
		require.NoError(t, err)
		seen[string(out)] = true
	}
	assert.Equal(t, map[string]bool{
		"a = b - c - d;": true,
		"a = b * c * d;": true,
		"a = b + c + d;": true,
	}, seen)
}

func TestMutateMinusSwapOnlyWithoutPlus(t *testing.T) {
	seen := map[string]bool{}
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out, _, err := Mutate(rng, "a = b - c;", MutationParams{Rate: 1})
		require.NoError(t, err)
		seen[string(out)] = true
	}
	assert.Equal(t, map[string]bool{
		"a = b + c;": true,
		"a = b * c;": true,
		"a = b - c;": true,
	}, seen)
}

func TestMutateComparatorFlip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	out, events, err := Mutate(rng, "if (a > b)\nif (a < b)", MutationParams{Rate: 1})
	require.NoError(t, err)
	assert.Equal(t, genome.Text("if (a < b)\nif (a > b)"), out)
	require.Len(t, events, 2)
	assert.Equal(t, MutationComparator, events[0].Kind)
	assert.Equal(t, 1, events[0].Line)
	assert.Equal(t, 2, events[1].Line)
}

func TestMutateDriftRespectsFloorAndWidth(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out, _, err := Mutate(rng, "x = 16'd0; y = 8'd3;", MutationParams{Rate: 1, Drift: 50, Floor: 1})
		require.NoError(t, err)

		literals := genome.FindSizedLiterals(string(out))
		require.Len(t, literals, 2, "seed %d: %s", seed, out)
		assert.Equal(t, "16", literals[0].Width)
		assert.Equal(t, "8", literals[1].Width)
		for _, lit := range literals {
			assert.NotEqual(t, "0", lit.Value, "seed %d: %s", seed, out)
			assert.False(t, strings.HasPrefix(lit.Value, "-"))
		}
	}
}

func TestMutateDriftStaysWithinBounds(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out, _, err := Mutate(rng, "x = 16'd100;", MutationParams{Rate: 1, Drift: 2})
		require.NoError(t, err)
		literals := genome.FindSizedLiterals(string(out))
		require.Len(t, literals, 1)
		assert.Contains(t, []string{"98", "99", "100", "101", "102"}, literals[0].Value)
	}
}

func TestMutateRejectsInvalidParams(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, params := range []MutationParams{
		{Rate: -0.1},
		{Rate: 1.5},
		{Rate: 0.5, Drift: -1},
		{Rate: 0.5, Floor: -1},
	} {
		_, _, err := Mutate(rng, testNeuron, params)
		assert.Error(t, err, "%+v", params)
	}

	_, _, err := Mutate(nil, testNeuron, MutationParams{Rate: 0.5})
	assert.ErrorIs(t, err, ErrRandomSourceRequired)
}

func TestLineMutationReportsEvents(t *testing.T) {
	var events []MutationEvent
	op := &LineMutation{
		Rand:    rand.New(rand.NewSource(9)),
		Params:  MutationParams{Rate: 1, Drift: 2},
		OnEvent: func(e MutationEvent) { events = append(events, e) },
	}
	out, err := op.Apply(context.Background(), "weight <= 16'd500;")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "weight >= 16'd"))
	require.Len(t, events, 2)
	assert.Equal(t, MutationComparator, events[0].Kind)
	assert.Equal(t, MutationParameter, events[1].Kind)
	assert.Equal(t, "line_mutation", op.Name())
}

func TestLineMutationRequiresRandomSource(t *testing.T) {
	op := &LineMutation{Params: MutationParams{Rate: 1}}
	_, err := op.Apply(context.Background(), testNeuron)
	assert.ErrorIs(t, err, ErrRandomSourceRequired)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op.Rand = rand.New(rand.NewSource(1))
	_, err = op.Apply(ctx, testNeuron)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookupDriftProfile(t *testing.T) {
	profile, err := LookupDriftProfile(" Target-Seeking ")
	require.NoError(t, err)
	assert.Equal(t, int64(50), profile.Drift)
	assert.Equal(t, int64(1), profile.Floor)

	_, err = LookupDriftProfile("wild")
	assert.Error(t, err)
	assert.Equal(t, []string{"bitstream", "natural-selection", "target-seeking"}, DriftProfiles())
}
