// Package scape provides the fitness policies a genome is scored against.
package scape

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"siliconsoul/internal/genome"
)

type Fitness float64

type Trace map[string]any

// Scape scores genome text. Implementations must not mutate shared state;
// the random source is owned by the caller and may be nil for noise-free
// policies.
type Scape interface {
	Name() string
	Evaluate(ctx context.Context, g genome.Text, rng *rand.Rand) (Fitness, Trace, error)
}

// ExtinguishableScape marks policies whose zero score means a non-viable
// genome. The engine stops a run when the best member of a generation scores
// exactly zero under such a policy.
type ExtinguishableScape interface {
	Scape
	Extinguishable() bool
}

// IsExtinguishable reports whether s opts into extinction handling.
func IsExtinguishable(s Scape) bool {
	e, ok := s.(ExtinguishableScape)
	return ok && e.Extinguishable()
}

var ErrUnknownPolicy = errors.New("unknown fitness policy")

const (
	PolicyTargetSeeking  = "target-seeking"
	PolicyLogicIntegrity = "logic-integrity"
)

// Options configures the policies built by Resolve. Zero values, and a nil
// Noise, select each policy's defaults.
type Options struct {
	TestInputs       []int64
	TargetMultiplier int64
	Cycles           int
	Feedback         int64
	// Noise set to 0 disables logic-integrity noise.
	Noise *int
}

// Resolve builds the named policy.
func Resolve(name string, opts Options) (Scape, error) {
	switch name {
	case "", PolicyTargetSeeking:
		s := DefaultTargetSeeking()
		if len(opts.TestInputs) > 0 {
			s.Inputs = append([]int64(nil), opts.TestInputs...)
		}
		if opts.TargetMultiplier != 0 {
			s.Multiplier = opts.TargetMultiplier
		}
		if opts.Cycles > 0 {
			s.Cycles = opts.Cycles
		}
		if opts.Feedback != 0 {
			s.Feedback = opts.Feedback
		}
		return s, nil
	case PolicyLogicIntegrity:
		s := DefaultLogicIntegrity()
		if opts.Noise != nil {
			if *opts.Noise < 0 {
				return nil, fmt.Errorf("noise must be >= 0")
			}
			s.Noise = *opts.Noise
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
}

// Policies lists the names Resolve accepts.
func Policies() []string {
	names := []string{PolicyTargetSeeking, PolicyLogicIntegrity}
	sort.Strings(names)
	return names
}
