package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"siliconsoul/internal/evo"
	"siliconsoul/internal/genome"
	"siliconsoul/internal/model"
	"siliconsoul/internal/scape"
	"siliconsoul/internal/storage"
)

type Config struct {
	Store          storage.Store
	SupportModules []SupportModule
	Logger         *slog.Logger
	// Now stamps run and snapshot records. Defaults to time.Now.
	Now func() time.Time
}

// SupportModule is a long-lived collaborator started with the polis, such as
// a metrics endpoint.
type SupportModule interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

type EvolutionConfig struct {
	RunID            string
	Policy           string
	Base             genome.Text
	GenerationSize   int
	Generations      int
	EliteCount       int
	Workers          int
	Seed             int64
	RetainChampion   bool
	SnapshotInterval int
	Mutation         evo.Operator
	Selector         evo.Selector
	// Snapshots receive champions alongside the store.
	Snapshots []evo.SnapshotSink
	Observers []evo.Observer
}

type EvolutionResult struct {
	RunID                string
	Champion             evo.ScoredGenome
	Phenotype            genome.Phenotype
	BestFitness          float64
	BestByGeneration     []float64
	Diagnostics          []model.GenerationDiagnostics
	Lineage              []model.LineageRecord
	CompletedGenerations int
	Extinct              bool
	ExtinctAt            int
	Run                  model.RunRecord
}

// Polis owns the store, the registered fitness policies and any support
// modules, and runs evolutions against them.
type Polis struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time

	mu sync.RWMutex

	scapes         map[string]scape.Scape
	supportModules map[string]SupportModule
	started        bool
	lastStopReason StopReason
	runs           map[string]context.CancelFunc

	config Config
}

func NewPolis(cfg Config) *Polis {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Polis{
		store:          cfg.Store,
		log:            logger,
		now:            now,
		scapes:         make(map[string]scape.Scape),
		supportModules: make(map[string]SupportModule),
		runs:           make(map[string]context.CancelFunc),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}

	started := make([]SupportModule, 0, len(p.config.SupportModules))
	fail := func(err error) error {
		stopSupportModules(ctx, started)
		p.supportModules = make(map[string]SupportModule)
		return err
	}
	for i, module := range p.config.SupportModules {
		if module == nil {
			return fail(fmt.Errorf("support module is nil at index %d", i))
		}
		name := module.Name()
		if name == "" {
			return fail(fmt.Errorf("support module name is required at index %d", i))
		}
		if _, exists := p.supportModules[name]; exists {
			return fail(fmt.Errorf("duplicate support module: %s", name))
		}
		if err := module.Start(ctx); err != nil {
			return fail(fmt.Errorf("start support module %s: %w", name, err))
		}
		p.supportModules[name] = module
		started = append(started, module)
	}

	p.started = true
	return nil
}

// Reset stops the polis, drops persisted state when the store supports it
// and starts again with no registered policies.
func (p *Polis) Reset(ctx context.Context) error {
	_ = p.StopWithReason(StopReasonShutdown)
	if resetter, ok := p.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	return p.Init(ctx)
}

func (p *Polis) RegisterScape(s scape.Scape) error {
	if s == nil {
		return fmt.Errorf("scape is nil")
	}

	name := s.Name()
	if name == "" {
		return fmt.Errorf("scape name is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("polis is not initialized")
	}
	p.scapes[name] = s
	return nil
}

func (p *Polis) GetScape(name string) (scape.Scape, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.scapes[name]
	return s, ok
}

func (p *Polis) Store() storage.Store {
	return p.store
}

func (p *Polis) Stop() {
	_ = p.StopWithReason(StopReasonNormal)
}

func (p *Polis) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if !isValidStopReason(reason) {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.runs {
		cancel()
	}
	modules := make([]SupportModule, 0, len(p.supportModules))
	for _, module := range p.supportModules {
		modules = append(modules, module)
	}
	stopSupportModules(context.Background(), modules)

	p.started = false
	p.lastStopReason = reason
	p.scapes = make(map[string]scape.Scape)
	p.supportModules = make(map[string]SupportModule)
	p.runs = make(map[string]context.CancelFunc)
	return nil
}

// RunEvolution runs one engine to completion or extinction and persists the
// run record, fitness history, diagnostics, lineage and policy summary.
// Snapshot generations are written to the store as the run progresses.
func (p *Polis) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.Mutation == nil {
		return EvolutionResult{}, fmt.Errorf("mutation operator is required")
	}
	if cfg.Policy == "" {
		return EvolutionResult{}, fmt.Errorf("policy name is required")
	}

	p.mu.RLock()
	target, ok := p.scapes[cfg.Policy]
	started := p.started
	p.mu.RUnlock()

	if !started {
		return EvolutionResult{}, fmt.Errorf("polis is not initialized")
	}
	if !ok {
		return EvolutionResult{}, fmt.Errorf("policy not registered: %s", cfg.Policy)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = fmt.Sprintf("evo:%s:%d", cfg.Policy, cfg.Seed)
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.registerRun(runID, cancel); err != nil {
		return EvolutionResult{}, err
	}
	defer p.unregisterRun(runID)

	sinks := append([]evo.SnapshotSink{&storeSnapshotSink{store: p.store, runID: runID, now: p.now}}, cfg.Snapshots...)
	engine, err := evo.NewEngine(evo.EngineConfig{
		Scape:            target,
		Mutation:         cfg.Mutation,
		Selector:         cfg.Selector,
		EliteCount:       cfg.EliteCount,
		GenerationSize:   cfg.GenerationSize,
		Generations:      cfg.Generations,
		Workers:          cfg.Workers,
		Seed:             cfg.Seed,
		RetainChampion:   cfg.RetainChampion,
		SnapshotInterval: cfg.SnapshotInterval,
		Snapshots:        sinks,
		Observers:        cfg.Observers,
		Logger:           p.log.With(slog.String("run_id", runID)),
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	startedAt := p.now()
	p.log.Info("evolution started",
		slog.String("run_id", runID),
		slog.String("policy", cfg.Policy),
		slog.Int("generations", cfg.Generations),
		slog.Int("generation_size", cfg.GenerationSize),
		slog.Int64("seed", cfg.Seed))

	result, err := engine.Run(runCtx, cfg.Base)
	if err != nil {
		return EvolutionResult{}, err
	}

	phenotype := genome.Extract(result.Champion.Genome)
	run := model.RunRecord{
		VersionedRecord:      storage.CurrentVersion(),
		ID:                   runID,
		Policy:               cfg.Policy,
		Seed:                 cfg.Seed,
		Generations:          cfg.Generations,
		GenerationSize:       cfg.GenerationSize,
		CompletedGenerations: result.CompletedGenerations,
		BestFitness:          result.BestFitness,
		Extinct:              result.Extinct,
		ExtinctAt:            result.ExtinctAt,
		ChampionID:           result.Champion.ID,
		ChampionText:         result.Champion.Genome.String(),
		ChampionPhenotype:    phenotype,
		StartedAt:            startedAt,
		FinishedAt:           p.now(),
	}
	diagnostics := toModelDiagnostics(result.Diagnostics)
	lineage := toModelLineage(result.Lineage)

	if err := p.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, runID, diagnostics); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveLineage(ctx, runID, lineage); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.updatePolicySummary(ctx, cfg.Policy, result); err != nil {
		return EvolutionResult{}, err
	}

	p.log.Info("evolution finished",
		slog.String("run_id", runID),
		slog.Int("completed_generations", result.CompletedGenerations),
		slog.Float64("best_fitness", result.BestFitness),
		slog.Bool("extinct", result.Extinct))

	return EvolutionResult{
		RunID:                runID,
		Champion:             result.Champion,
		Phenotype:            phenotype,
		BestFitness:          result.BestFitness,
		BestByGeneration:     result.BestByGeneration,
		Diagnostics:          diagnostics,
		Lineage:              lineage,
		CompletedGenerations: result.CompletedGenerations,
		Extinct:              result.Extinct,
		ExtinctAt:            result.ExtinctAt,
		Run:                  run,
	}, nil
}

// StopRun cancels an in-flight run. The run returns the cancellation error
// and persists nothing further.
func (p *Polis) StopRun(runID string) error {
	p.mu.RLock()
	cancel, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	cancel()
	return nil
}

func (p *Polis) registerRun(runID string, cancel context.CancelFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	p.runs[runID] = cancel
	return nil
}

func (p *Polis) unregisterRun(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, runID)
}

func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func toModelLineage(lineage []evo.LineageRecord) []model.LineageRecord {
	out := make([]model.LineageRecord, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, model.LineageRecord{
			VersionedRecord: storage.CurrentVersion(),
			GenomeID:        rec.GenomeID,
			ParentID:        rec.ParentID,
			Generation:      rec.Generation,
			Operation:       rec.Operation,
			Fingerprint:     rec.Fingerprint,
		})
	}
	return out
}

func toModelDiagnostics(diags []evo.GenerationDiagnostics) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, 0, len(diags))
	for _, d := range diags {
		out = append(out, model.GenerationDiagnostics{
			Generation:       d.Generation,
			BestFitness:      d.BestFitness,
			MeanFitness:      d.MeanFitness,
			MinFitness:       d.MinFitness,
			Evaluated:        d.Evaluated,
			Diversity:        d.Diversity,
			ChampionID:       d.ChampionID,
			ChampionRetained: d.ChampionRetained,
		})
	}
	return out
}

func (p *Polis) updatePolicySummary(ctx context.Context, policy string, result evo.RunResult) error {
	summary, ok, err := p.store.GetPolicySummary(ctx, policy)
	if err != nil {
		return err
	}
	if !ok {
		summary = model.PolicySummary{
			VersionedRecord: storage.CurrentVersion(),
			Name:            policy,
			Description:     fmt.Sprintf("best observed fitness for policy %s", policy),
		}
	}
	summary.Runs++
	if result.Extinct {
		summary.Extinctions++
	}
	if result.BestFitness > summary.BestFitness {
		summary.BestFitness = result.BestFitness
	}
	summary.UpdatedAt = p.now()
	return p.store.SavePolicySummary(ctx, summary)
}

// storeSnapshotSink writes snapshot champions to the store under
// "<run>-g<generation>".
type storeSnapshotSink struct {
	store storage.Store
	runID string
	now   func() time.Time
}

func (s *storeSnapshotSink) SaveSnapshot(ctx context.Context, generation int, champion evo.ScoredGenome) error {
	return s.store.SaveSnapshot(ctx, model.Snapshot{
		VersionedRecord: storage.CurrentVersion(),
		ID:              SnapshotID(s.runID, generation),
		RunID:           s.runID,
		Generation:      generation,
		GenomeID:        champion.ID,
		Fitness:         champion.Fitness,
		Phenotype:       genome.Extract(champion.Genome),
		Text:            champion.Genome.String(),
		Fingerprint:     champion.Genome.Fingerprint(),
		CreatedAt:       s.now(),
	})
}

func SnapshotID(runID string, generation int) string {
	return fmt.Sprintf("%s-g%d", runID, generation)
}

func (p *Polis) RegisteredScapes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.scapes))
	for name := range p.scapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Polis) ActiveSupportModules() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.supportModules))
	for name := range p.supportModules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) LastStopReason() StopReason {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastStopReason
}

func isValidStopReason(reason StopReason) bool {
	switch reason {
	case StopReasonNormal, StopReasonShutdown:
		return true
	default:
		return false
	}
}

func stopSupportModules(ctx context.Context, modules []SupportModule) {
	for i := len(modules) - 1; i >= 0; i-- {
		_ = modules[i].Stop(ctx)
	}
}
