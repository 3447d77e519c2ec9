package evo

import (
	"fmt"
	"math/rand"
	"sort"
)

// Selector chooses the next champion from a ranked generation.
type Selector interface {
	Name() string
	PickChampion(rng *rand.Rand, ranked []ScoredGenome, eliteCount int) (ScoredGenome, error)
}

// EliteSelector picks uniformly from the top elite set. With an elite count
// of one it always returns the best-ranked member.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickChampion(rng *rand.Rand, ranked []ScoredGenome, eliteCount int) (ScoredGenome, error) {
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return ScoredGenome{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}
	if eliteCount == 1 {
		return ranked[0], nil
	}
	if rng == nil {
		return ScoredGenome{}, ErrRandomSourceRequired
	}
	return ranked[rng.Intn(eliteCount)], nil
}

func SelectorFromName(name string) (Selector, error) {
	switch name {
	case "", "elite":
		return EliteSelector{}, nil
	default:
		return nil, fmt.Errorf("unsupported selection: %s", name)
	}
}

// Rank sorts a copy of scored by descending fitness. Ties keep input order.
func Rank(scored []ScoredGenome) []ScoredGenome {
	ranked := make([]ScoredGenome, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked
}
