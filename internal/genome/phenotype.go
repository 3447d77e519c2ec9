package genome

import (
	"fmt"
	"regexp"
	"strconv"
)

type InferenceOp int

const (
	InferenceMultiply InferenceOp = iota
	InferenceAdd
	InferenceSubtract
	InferenceUnknown
)

var inferenceNames = map[InferenceOp]string{
	InferenceMultiply: "multiply",
	InferenceAdd:      "add",
	InferenceSubtract: "subtract",
	InferenceUnknown:  "unknown",
}

func (op InferenceOp) String() string {
	switch op {
	case InferenceMultiply:
		return "*"
	case InferenceAdd:
		return "+"
	case InferenceSubtract:
		return "-"
	default:
		return "?"
	}
}

func (op InferenceOp) MarshalText() ([]byte, error) {
	name, ok := inferenceNames[op]
	if !ok {
		name = inferenceNames[InferenceUnknown]
	}
	return []byte(name), nil
}

func (op *InferenceOp) UnmarshalText(data []byte) error {
	for candidate, name := range inferenceNames {
		if name == string(data) {
			*op = candidate
			return nil
		}
	}
	*op = InferenceUnknown
	return nil
}

type LearningOp int

const (
	LearningIncrement LearningOp = iota
	LearningDecrement
)

func (op LearningOp) String() string {
	if op == LearningDecrement {
		return "-"
	}
	return "+"
}

func (op LearningOp) MarshalText() ([]byte, error) {
	if op == LearningDecrement {
		return []byte("decrement"), nil
	}
	return []byte("increment"), nil
}

func (op *LearningOp) UnmarshalText(data []byte) error {
	if string(data) == "decrement" {
		*op = LearningDecrement
	} else {
		*op = LearningIncrement
	}
	return nil
}

const (
	DefaultWeight       int64 = 1000
	DefaultLearningRate int64 = 10
)

// Phenotype is the set of operational parameters recovered from a genome.
type Phenotype struct {
	Weight       int64       `json:"weight"`
	LearningRate int64       `json:"learning_rate"`
	Inference    InferenceOp `json:"inference"`
	Learning     LearningOp  `json:"learning"`
}

func DefaultPhenotype() Phenotype {
	return Phenotype{
		Weight:       DefaultWeight,
		LearningRate: DefaultLearningRate,
		Inference:    InferenceMultiply,
		Learning:     LearningIncrement,
	}
}

func (p Phenotype) String() string {
	return fmt.Sprintf("W:%d LR:%d Op:%s Learn:%s", p.Weight, p.LearningRate, p.Inference, p.Learning)
}

const (
	phraseInferenceAdd      = "input_signal + weight"
	phraseInferenceSubtract = "input_signal - weight"
	phraseLearnIncrement    = "weight + LEARNING_RATE"
	phraseLearnDecrement    = "weight - LEARNING_RATE"
)

var (
	weightAssignment       = regexp.MustCompile(`\bweight\s*<=\s*\d+'d(\d+)\s*;`)
	learningRateAssignment = regexp.MustCompile(`\bparameter\s+LEARNING_RATE\s*=\s*\d+'d(\d+)\s*;`)
)

// extractionRule fills one Phenotype field when its pattern is found. Rules
// are independent and all of them run against the full text.
type extractionRule struct {
	name  string
	apply func(t Text, p *Phenotype)
}

var extractionRules = []extractionRule{
	{name: "weight", apply: func(t Text, p *Phenotype) {
		if v, ok := matchSizedValue(weightAssignment, t); ok {
			p.Weight = v
		}
	}},
	{name: "learning_rate", apply: func(t Text, p *Phenotype) {
		if v, ok := matchSizedValue(learningRateAssignment, t); ok {
			p.LearningRate = v
		}
	}},
	{name: "inference", apply: func(t Text, p *Phenotype) {
		switch {
		case t.Contains(phraseInferenceAdd):
			p.Inference = InferenceAdd
		case t.Contains(phraseInferenceSubtract):
			p.Inference = InferenceSubtract
		default:
			p.Inference = InferenceMultiply
		}
	}},
	{name: "learning", apply: func(t Text, p *Phenotype) {
		// Co-occurrence keeps the unit learning.
		if t.Contains(phraseLearnDecrement) && !t.Contains(phraseLearnIncrement) {
			p.Learning = LearningDecrement
		}
	}},
}

// Extract derives a Phenotype from genome text. It never fails: fields whose
// pattern is missing or malformed keep their defaults.
func Extract(t Text) Phenotype {
	p := DefaultPhenotype()
	for _, rule := range extractionRules {
		rule.apply(t, &p)
	}
	return p
}

func matchSizedValue(re *regexp.Regexp, t Text) (int64, bool) {
	m := re.FindStringSubmatch(string(t))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
