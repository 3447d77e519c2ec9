// Package unit executes a Phenotype as a single adaptive numeric unit: an
// inference step followed by a Hebbian-style weight update gated on input and
// feedback.
package unit

import "siliconsoul/internal/genome"

// Unit carries the mutable weight of one simulation. It is not safe for
// concurrent use; Run builds a fresh Unit per call.
type Unit struct {
	phenotype genome.Phenotype
	weight    int64
}

func New(p genome.Phenotype) *Unit {
	return &Unit{phenotype: p, weight: p.Weight}
}

func (u *Unit) Weight() int64 {
	return u.weight
}

// Infer computes input OP weight without touching state. An unknown operator
// yields 0.
func (u *Unit) Infer(input int64) int64 {
	switch u.phenotype.Inference {
	case genome.InferenceMultiply:
		return input * u.weight
	case genome.InferenceAdd:
		return input + u.weight
	case genome.InferenceSubtract:
		return input - u.weight
	default:
		return 0
	}
}

// Adapt applies the plasticity rule: the weight moves by the learning rate
// only when input and feedback are both positive.
func (u *Unit) Adapt(input, feedback int64) {
	if input <= 0 || feedback <= 0 {
		return
	}
	if u.phenotype.Learning == genome.LearningDecrement {
		u.weight -= u.phenotype.LearningRate
		return
	}
	u.weight += u.phenotype.LearningRate
}

// Step runs one inference+adaptation cycle and returns the inference output.
func (u *Unit) Step(input, feedback int64) int64 {
	out := u.Infer(input)
	u.Adapt(input, feedback)
	return out
}

// Run simulates cycles steps from the phenotype's initial weight and returns
// the output of every cycle.
func Run(p genome.Phenotype, input, feedback int64, cycles int) []int64 {
	if cycles <= 0 {
		return []int64{}
	}
	u := New(p)
	out := make([]int64, 0, cycles)
	for i := 0; i < cycles; i++ {
		out = append(out, u.Step(input, feedback))
	}
	return out
}
