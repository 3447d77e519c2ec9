package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"siliconsoul/internal/genome"
)

var ErrRandomSourceRequired = errors.New("random source is required")

// MutationParams bounds a single mutation pass. Rate is the per-line
// probability; sized literals drift uniformly in [-Drift, +Drift] and never
// fall below Floor.
type MutationParams struct {
	Rate  float64
	Drift int64
	Floor int64
}

func (p MutationParams) Validate() error {
	if p.Rate < 0 || p.Rate > 1 {
		return fmt.Errorf("mutation rate must be in [0, 1]: %v", p.Rate)
	}
	if p.Drift < 0 {
		return fmt.Errorf("drift must be >= 0: %d", p.Drift)
	}
	if p.Floor < 0 {
		return fmt.Errorf("drift floor must be >= 0: %d", p.Floor)
	}
	return nil
}

const DefaultMutationRate = 0.05

const (
	DriftProfileBitstream        = "bitstream"
	DriftProfileNaturalSelection = "natural-selection"
	DriftProfileTargetSeeking    = "target-seeking"
)

// DriftProfile is a named literal-drift preset.
type DriftProfile struct {
	Name  string
	Drift int64
	Floor int64
}

var driftProfiles = map[string]DriftProfile{
	DriftProfileBitstream:        {Name: DriftProfileBitstream, Drift: 2, Floor: 0},
	DriftProfileNaturalSelection: {Name: DriftProfileNaturalSelection, Drift: 5, Floor: 0},
	DriftProfileTargetSeeking:    {Name: DriftProfileTargetSeeking, Drift: 50, Floor: 1},
}

func LookupDriftProfile(name string) (DriftProfile, error) {
	profile, ok := driftProfiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return DriftProfile{}, fmt.Errorf("unknown drift profile: %s", name)
	}
	return profile, nil
}

func DriftProfiles() []string {
	names := make([]string, 0, len(driftProfiles))
	for name := range driftProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type MutationKind string

const (
	MutationArithmetic MutationKind = "arithmetic"
	MutationComparator MutationKind = "comparator"
	MutationParameter  MutationKind = "parameter"
)

// MutationEvent describes one rewrite of one line.
type MutationEvent struct {
	Line   int
	Kind   MutationKind
	Before string
	After  string
}

var (
	plusSwaps  = [...]string{"-", "*", "+"}
	minusSwaps = [...]string{"+", "*", "-"}
)

// Mutate rewrites the non-protected lines of t. Each line is selected with
// probability params.Rate; a selected line gets, in order, an arithmetic
// swap, a comparator flip and drift on every sized literal. Swaps draw from
// a set that includes the original token, so some selected lines come out
// unchanged.
func Mutate(rng *rand.Rand, t genome.Text, params MutationParams) (genome.Text, []MutationEvent, error) {
	if rng == nil {
		return "", nil, ErrRandomSourceRequired
	}
	if err := params.Validate(); err != nil {
		return "", nil, err
	}

	lines := t.Lines()
	var events []MutationEvent
	for i, line := range lines {
		if genome.Protected(line) {
			continue
		}
		if rng.Float64() >= params.Rate {
			continue
		}
		var lineEvents []MutationEvent
		lines[i], lineEvents = mutateLine(rng, i+1, line, params)
		events = append(events, lineEvents...)
	}
	return genome.Join(lines), events, nil
}

func mutateLine(rng *rand.Rand, lineNo int, line string, params MutationParams) (string, []MutationEvent) {
	var events []MutationEvent
	record := func(kind MutationKind, before, after string) {
		events = append(events, MutationEvent{Line: lineNo, Kind: kind, Before: before, After: after})
	}

	before := line
	switch {
	case strings.Contains(line, "+"):
		line = strings.ReplaceAll(line, "+", plusSwaps[rng.Intn(len(plusSwaps))])
		record(MutationArithmetic, before, line)
	case strings.Contains(line, "-"):
		line = strings.ReplaceAll(line, "-", minusSwaps[rng.Intn(len(minusSwaps))])
		record(MutationArithmetic, before, line)
	}

	before = line
	switch {
	case strings.Contains(line, ">"):
		line = strings.ReplaceAll(line, ">", "<")
		record(MutationComparator, before, line)
	case strings.Contains(line, "<"):
		line = strings.ReplaceAll(line, "<", ">")
		record(MutationComparator, before, line)
	}

	if genome.HasSizedLiteral(line) {
		before = line
		line = driftLiterals(rng, line, params)
		record(MutationParameter, before, line)
	}
	return line, events
}

// driftLiterals perturbs the decimal value of every sized literal in line,
// keeping each literal's width.
func driftLiterals(rng *rand.Rand, line string, params MutationParams) string {
	literals := genome.FindSizedLiterals(line)
	var b strings.Builder
	b.Grow(len(line) + 4*len(literals))
	last := 0
	for _, lit := range literals {
		b.WriteString(line[last:lit.Start])
		last = lit.End

		value, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			b.WriteString(line[lit.Start:lit.End])
			continue
		}
		if params.Drift > 0 {
			value += rng.Int63n(2*params.Drift+1) - params.Drift
		}
		if value < params.Floor {
			value = params.Floor
		}
		b.WriteString(lit.Width)
		b.WriteString("'d")
		b.WriteString(strconv.FormatInt(value, 10))
	}
	b.WriteString(line[last:])
	return b.String()
}

// LineMutation is the Operator form of Mutate. OnEvent, when set, receives
// every line rewrite.
type LineMutation struct {
	Rand    *rand.Rand
	Params  MutationParams
	OnEvent func(MutationEvent)
}

func (o *LineMutation) Name() string {
	return "line_mutation"
}

func (o *LineMutation) Apply(ctx context.Context, g genome.Text) (genome.Text, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if o == nil || o.Rand == nil {
		return "", ErrRandomSourceRequired
	}
	mutated, events, err := Mutate(o.Rand, g, o.Params)
	if err != nil {
		return "", err
	}
	if o.OnEvent != nil {
		for _, event := range events {
			o.OnEvent(event)
		}
	}
	return mutated, nil
}
