package genome

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestExtractEmptyGenomeYieldsDefaults(t *testing.T) {
	require.Equal(t, DefaultPhenotype(), Extract(""))
	require.Equal(t, Phenotype{Weight: 1000, LearningRate: 10, Inference: InferenceMultiply, Learning: LearningIncrement}, Extract("garbage ### text"))
}

func TestExtractRoundTrip(t *testing.T) {
	got := Extract(plasticNeuron)
	require.Equal(t, Phenotype{Weight: 500, LearningRate: 7, Inference: InferenceMultiply, Learning: LearningIncrement}, got)
}

func TestExtractRulesAreIndependent(t *testing.T) {
	got := Extract("parameter LEARNING_RATE = 8'd3;\noutput_signal <= input_signal + weight;")
	assert.Equal(t, DefaultWeight, got.Weight)
	assert.Equal(t, int64(3), got.LearningRate)
	assert.Equal(t, InferenceAdd, got.Inference)
	assert.Equal(t, LearningIncrement, got.Learning)
}

func TestExtractInferenceOperators(t *testing.T) {
	cases := map[string]InferenceOp{
		"output_signal <= input_signal * weight;": InferenceMultiply,
		"output_signal <= input_signal + weight;": InferenceAdd,
		"output_signal <= input_signal - weight;": InferenceSubtract,
		"output_signal <= input_signal / weight;": InferenceMultiply,
	}
	for text, want := range cases {
		assert.Equal(t, want, Extract(Text(text)).Inference, text)
	}
}

func TestExtractLearningDirection(t *testing.T) {
	assert.Equal(t, LearningDecrement, Extract("weight <= weight - LEARNING_RATE;").Learning)
	assert.Equal(t, LearningIncrement, Extract("weight <= weight - LEARNING_RATE;\nweight <= weight + LEARNING_RATE;").Learning)
	assert.Equal(t, LearningIncrement, Extract("weight <= weight * LEARNING_RATE;").Learning)
}

func TestExtractMalformedLiteralFallsBack(t *testing.T) {
	got := Extract("weight <= 16'd99999999999999999999999;\nparameter LEARNING_RATE = 16'h10;")
	assert.Equal(t, DefaultWeight, got.Weight)
	assert.Equal(t, DefaultLearningRate, got.LearningRate)
}

func TestExtractIgnoresLearningAssignmentAsInitialWeight(t *testing.T) {
	got := Extract("weight <= weight + LEARNING_RATE;\nweight <= 16'd42;")
	assert.Equal(t, int64(42), got.Weight)
}

func TestPhenotypeString(t *testing.T) {
	p := Phenotype{Weight: 2000, LearningRate: 0, Inference: InferenceSubtract, Learning: LearningDecrement}
	assert.Equal(t, "W:2000 LR:0 Op:- Learn:-", p.String())
	assert.Equal(t, "?", InferenceUnknown.String())
}

func TestPhenotypeJSONUsesOperatorNames(t *testing.T) {
	p := Phenotype{Weight: 1, LearningRate: 2, Inference: InferenceSubtract, Learning: LearningDecrement}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"weight":1,"learning_rate":2,"inference":"subtract","learning":"decrement"}`, string(data))

	var decoded Phenotype
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p, decoded)
}
