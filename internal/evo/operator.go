package evo

import (
	"context"

	"siliconsoul/internal/genome"
)

// Operator produces a new genome from a parent. Implementations must return
// a fresh value and leave the parent untouched.
type Operator interface {
	Name() string
	Apply(ctx context.Context, g genome.Text) (genome.Text, error)
}
