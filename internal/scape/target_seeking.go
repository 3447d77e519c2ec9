package scape

import (
	"context"
	"fmt"
	"math/rand"

	"siliconsoul/internal/genome"
	"siliconsoul/internal/unit"
)

const (
	defaultTargetMultiplier = 2000
	defaultCycles           = 10
	defaultFeedback         = 1
	defaultErrorNumerator   = 100000
	defaultMaxScore         = 1000
)

// TargetSeeking is the behavioral policy: the unit must map each test input
// to input*Multiplier after Cycles steps of adaptation. It forces a
// multiplier to evolve, since 10+2000 != 20000 while 10*2000 == 20000.
type TargetSeeking struct {
	Inputs     []int64
	Multiplier int64
	Cycles     int
	Feedback   int64
	// Numerator scales 1/(error+1); MaxScore replaces it at zero error.
	Numerator float64
	MaxScore  float64
}

func DefaultTargetSeeking() *TargetSeeking {
	return &TargetSeeking{
		Inputs:     []int64{10, 5, 20},
		Multiplier: defaultTargetMultiplier,
		Cycles:     defaultCycles,
		Feedback:   defaultFeedback,
		Numerator:  defaultErrorNumerator,
		MaxScore:   defaultMaxScore,
	}
}

func (s *TargetSeeking) Name() string {
	return PolicyTargetSeeking
}

func (s *TargetSeeking) Evaluate(ctx context.Context, g genome.Text, _ *rand.Rand) (Fitness, Trace, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if len(s.Inputs) == 0 {
		return 0, nil, fmt.Errorf("target seeking requires at least one test input")
	}
	if s.Cycles <= 0 {
		return 0, nil, fmt.Errorf("target seeking cycles must be > 0")
	}

	phenotype := genome.Extract(g)
	finals := make([]int64, 0, len(s.Inputs))
	var totalError float64
	for _, input := range s.Inputs {
		outputs := unit.Run(phenotype, input, s.Feedback, s.Cycles)
		final := outputs[len(outputs)-1]
		finals = append(finals, final)
		totalError += absDiff(input*s.Multiplier, final)
	}

	trace := Trace{
		"phenotype":     phenotype,
		"final_outputs": finals,
		"total_error":   totalError,
	}
	if totalError == 0 {
		return Fitness(s.MaxScore), trace, nil
	}
	return Fitness(s.Numerator / (totalError + 1)), trace, nil
}

func absDiff(a, b int64) float64 {
	d := float64(a) - float64(b)
	if d < 0 {
		return -d
	}
	return d
}
