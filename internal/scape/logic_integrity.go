package scape

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"siliconsoul/internal/genome"
)

const (
	defaultIntegrityBase     = 100
	defaultInferencePenalty  = 90
	defaultPlasticityPenalty = 50
	defaultIntegrityNoise    = 10

	phraseSyntaxError       = "syntax error"
	phraseInferenceAssign   = "output_signal <="
	phraseLearningIncrement = "weight <= weight + LEARNING_RATE"
	phraseLearningDecrement = "weight <= weight - LEARNING_RATE"
)

var errNoiseSource = errors.New("random source is required for noisy evaluation")

// LogicIntegrity is the structural policy. It checks that the inference
// assignment and a learning rule survived mutation and adds evaluation noise.
type LogicIntegrity struct {
	Base              int
	InferencePenalty  int
	PlasticityPenalty int
	// Noise is the half-width of the uniform integer noise added to the score.
	Noise int
}

func DefaultLogicIntegrity() *LogicIntegrity {
	return &LogicIntegrity{
		Base:              defaultIntegrityBase,
		InferencePenalty:  defaultInferencePenalty,
		PlasticityPenalty: defaultPlasticityPenalty,
		Noise:             defaultIntegrityNoise,
	}
}

func (s *LogicIntegrity) Name() string {
	return PolicyLogicIntegrity
}

func (s *LogicIntegrity) Extinguishable() bool {
	return true
}

func (s *LogicIntegrity) Evaluate(ctx context.Context, g genome.Text, rng *rand.Rand) (Fitness, Trace, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if strings.Contains(strings.ToLower(string(g)), phraseSyntaxError) {
		return 0, Trace{"syntax_error": true}, nil
	}
	if s.Noise > 0 && rng == nil {
		return 0, nil, errNoiseSource
	}

	score := s.Base
	inference := g.Contains(phraseInferenceAssign)
	plastic := g.Contains(phraseLearningIncrement) || g.Contains(phraseLearningDecrement)
	if !plastic {
		score -= s.PlasticityPenalty
	}
	if !inference {
		score -= s.InferencePenalty
	}

	noise := 0
	if s.Noise > 0 {
		noise = rng.Intn(2*s.Noise+1) - s.Noise
	}
	score += noise
	if score < 0 {
		score = 0
	}
	return Fitness(score), Trace{
		"inference_intact":  inference,
		"plasticity_intact": plastic,
		"noise":             noise,
	}, nil
}
