package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"siliconsoul/internal/genome"
	"siliconsoul/internal/scape"
)

type State int

const (
	StateInitialized State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	OperationSeed   = "seed"
	OperationRetain = "retain"
)

var ErrEngineUsed = errors.New("engine has already run")

type ScoredGenome struct {
	ID       string
	ParentID string
	Genome   genome.Text
	Fitness  float64
	Trace    scape.Trace
}

type GenerationDiagnostics struct {
	Generation       int     `json:"generation"`
	BestFitness      float64 `json:"best_fitness"`
	MeanFitness      float64 `json:"mean_fitness"`
	MinFitness       float64 `json:"min_fitness"`
	Evaluated        int     `json:"evaluated"`
	Diversity        int     `json:"diversity"`
	ChampionID       string  `json:"champion_id"`
	ChampionRetained bool    `json:"champion_retained"`
}

type LineageRecord struct {
	GenomeID    string `json:"genome_id"`
	ParentID    string `json:"parent_id"`
	Generation  int    `json:"generation"`
	Operation   string `json:"operation"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// GenerationReport is handed to observers after a champion is chosen.
type GenerationReport struct {
	Generation  int
	Champion    ScoredGenome
	Phenotype   genome.Phenotype
	Diagnostics GenerationDiagnostics
}

type Observer interface {
	OnGeneration(ctx context.Context, report GenerationReport)
	OnExtinction(ctx context.Context, generation int)
}

// SnapshotSink persists the champion of a snapshot generation.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, generation int, champion ScoredGenome) error
}

type EngineConfig struct {
	Scape          scape.Scape
	Mutation       Operator
	Selector       Selector
	EliteCount     int
	GenerationSize int
	Generations    int
	Workers        int
	Seed           int64
	// RetainChampion re-scores the incumbent each generation and keeps it
	// unless a mutant scores at least as well.
	RetainChampion   bool
	SnapshotInterval int
	Snapshots        []SnapshotSink
	Observers        []Observer
	Logger           *slog.Logger
}

type RunResult struct {
	Champion             ScoredGenome
	BestFitness          float64
	BestByGeneration     []float64
	Diagnostics          []GenerationDiagnostics
	Lineage              []LineageRecord
	CompletedGenerations int
	Extinct              bool
	ExtinctAt            int
}

// Engine drives a single-parent lineage through mutate, evaluate and select
// cycles. An Engine runs once.
type Engine struct {
	cfg   EngineConfig
	rng   *rand.Rand
	log   *slog.Logger
	state State
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if cfg.Mutation == nil {
		return nil, fmt.Errorf("mutation operator is required")
	}
	if cfg.GenerationSize <= 0 {
		return nil, fmt.Errorf("generation size must be > 0")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.SnapshotInterval < 0 {
		return nil, fmt.Errorf("snapshot interval must be >= 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Selector == nil {
		cfg.Selector = EliteSelector{}
	}
	if cfg.EliteCount <= 0 {
		cfg.EliteCount = 1
	}
	if cfg.EliteCount > cfg.GenerationSize {
		return nil, fmt.Errorf("elite count must be in [1, generation size]")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		log:   logger,
		state: StateInitialized,
	}, nil
}

func (e *Engine) State() State {
	return e.state
}

// Run evolves base for the configured number of generations. Under an
// extinguishable scape a generation whose best mutant scores exactly zero ends
// the run early, even when the incumbent still scores; the previous champion
// is kept.
func (e *Engine) Run(ctx context.Context, base genome.Text) (RunResult, error) {
	if e.state != StateInitialized {
		return RunResult{}, ErrEngineUsed
	}
	e.state = StateRunning
	defer func() {
		e.state = StateTerminated
	}()

	champion := ScoredGenome{ID: "g0-base", Genome: base}
	result := RunResult{
		Champion:         champion,
		BestByGeneration: make([]float64, 0, e.cfg.Generations),
		Diagnostics:      make([]GenerationDiagnostics, 0, e.cfg.Generations),
		Lineage:          make([]LineageRecord, 0, e.cfg.Generations+1),
	}
	result.Lineage = append(result.Lineage, LineageRecord{
		GenomeID:    champion.ID,
		Generation:  0,
		Operation:   OperationSeed,
		Fingerprint: base.Fingerprint(),
	})
	extinguishable := scape.IsExtinguishable(e.cfg.Scape)

	for gen := 1; gen <= e.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		contenders, err := e.spawn(ctx, champion, gen)
		if err != nil {
			return RunResult{}, err
		}
		if e.cfg.RetainChampion {
			contenders = append(contenders, champion)
		}
		scored, err := e.evaluate(ctx, contenders)
		if err != nil {
			return RunResult{}, err
		}
		ranked := Rank(scored)

		// Extinction is judged on the mutants alone; a surviving incumbent
		// does not keep the lineage alive.
		if extinguishable && bestFitness(scored[:e.cfg.GenerationSize]) == 0 {
			result.Extinct = true
			result.ExtinctAt = gen
			e.log.Warn("extinction event: all mutants failed", slog.Int("generation", gen))
			for _, o := range e.cfg.Observers {
				o.OnExtinction(ctx, gen)
			}
			break
		}

		next, err := e.cfg.Selector.PickChampion(e.rng, ranked, e.cfg.EliteCount)
		if err != nil {
			return RunResult{}, err
		}
		retained := next.ID == champion.ID
		champion = next

		diagnostics := summarizeGeneration(ranked, gen, champion, retained)
		result.BestByGeneration = append(result.BestByGeneration, ranked[0].Fitness)
		result.Diagnostics = append(result.Diagnostics, diagnostics)
		result.Lineage = append(result.Lineage, lineageFor(champion, gen, retained, e.cfg.Mutation.Name()))
		result.Champion = champion
		result.BestFitness = champion.Fitness
		result.CompletedGenerations = gen

		if e.cfg.SnapshotInterval > 0 && gen%e.cfg.SnapshotInterval == 0 {
			for _, sink := range e.cfg.Snapshots {
				if err := sink.SaveSnapshot(ctx, gen, champion); err != nil {
					return RunResult{}, fmt.Errorf("save snapshot for generation %d: %w", gen, err)
				}
			}
		}

		report := GenerationReport{
			Generation:  gen,
			Champion:    champion,
			Phenotype:   genome.Extract(champion.Genome),
			Diagnostics: diagnostics,
		}
		for _, o := range e.cfg.Observers {
			o.OnGeneration(ctx, report)
		}
		e.log.Debug("generation complete",
			slog.Int("generation", gen),
			slog.Float64("best_fitness", ranked[0].Fitness),
			slog.String("champion", champion.ID),
			slog.Bool("retained", retained))
	}

	return result, nil
}

// spawn mutates the champion once per slot. Mutations run sequentially so the
// operator's random source sees a fixed call order.
func (e *Engine) spawn(ctx context.Context, champion ScoredGenome, generation int) ([]ScoredGenome, error) {
	population := make([]ScoredGenome, 0, e.cfg.GenerationSize+1)
	for slot := 0; slot < e.cfg.GenerationSize; slot++ {
		mutant, err := e.cfg.Mutation.Apply(ctx, champion.Genome)
		if err != nil {
			return nil, fmt.Errorf("mutate %s: %w", champion.ID, err)
		}
		population = append(population, ScoredGenome{
			ID:       fmt.Sprintf("g%d-m%d", generation, slot),
			ParentID: champion.ID,
			Genome:   mutant,
		})
	}
	return population, nil
}

// evaluate scores contenders with up to Workers goroutines. Each contender
// gets its own random source seeded from the engine in slot order, so the
// outcome does not depend on the worker count.
func (e *Engine) evaluate(ctx context.Context, contenders []ScoredGenome) ([]ScoredGenome, error) {
	seeds := make([]int64, len(contenders))
	for i := range seeds {
		seeds[i] = e.rng.Int63()
	}

	scored := make([]ScoredGenome, len(contenders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range contenders {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seeds[i]))
			fitness, trace, err := e.cfg.Scape.Evaluate(gctx, contenders[i].Genome, rng)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", contenders[i].ID, err)
			}
			scored[i] = contenders[i]
			scored[i].Fitness = float64(fitness)
			scored[i].Trace = trace
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

func bestFitness(scored []ScoredGenome) float64 {
	best := scored[0].Fitness
	for _, item := range scored[1:] {
		if item.Fitness > best {
			best = item.Fitness
		}
	}
	return best
}

func summarizeGeneration(ranked []ScoredGenome, generation int, champion ScoredGenome, retained bool) GenerationDiagnostics {
	total := 0.0
	minFitness := ranked[0].Fitness
	fingerprints := make(map[string]struct{}, len(ranked))
	for _, item := range ranked {
		total += item.Fitness
		if item.Fitness < minFitness {
			minFitness = item.Fitness
		}
		fingerprints[item.Genome.Fingerprint()] = struct{}{}
	}
	return GenerationDiagnostics{
		Generation:       generation,
		BestFitness:      ranked[0].Fitness,
		MeanFitness:      total / float64(len(ranked)),
		MinFitness:       minFitness,
		Evaluated:        len(ranked),
		Diversity:        len(fingerprints),
		ChampionID:       champion.ID,
		ChampionRetained: retained,
	}
}

func lineageFor(champion ScoredGenome, generation int, retained bool, operation string) LineageRecord {
	record := LineageRecord{
		GenomeID:    champion.ID,
		ParentID:    champion.ParentID,
		Generation:  generation,
		Operation:   operation,
		Fingerprint: champion.Genome.Fingerprint(),
	}
	if retained {
		record.ParentID = champion.ID
		record.Operation = OperationRetain
	}
	return record
}
