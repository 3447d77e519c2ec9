// Package siliconsoul is the client API for evolving plastic-neuron genomes:
// running evolutions, mutating and inspecting genome files, and querying
// persisted runs.
package siliconsoul

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"siliconsoul/internal/evo"
	"siliconsoul/internal/genome"
	"siliconsoul/internal/metrics"
	"siliconsoul/internal/model"
	"siliconsoul/internal/platform"
	"siliconsoul/internal/report"
	"siliconsoul/internal/scape"
	"siliconsoul/internal/stats"
	"siliconsoul/internal/storage"
	"siliconsoul/internal/unit"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "siliconsoul.db"

	DefaultGenerationSize   = 10
	DefaultGenerations      = 20
	DefaultSnapshotInterval = 5
	DefaultNoise            = 10
	DefaultCycles           = 10
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
	// Progress receives one line per generation when set.
	Progress io.Writer
	// MetricsAddr starts a prometheus endpoint for the client's lifetime.
	MetricsAddr string
	// Registerer receives the run collectors. Defaults to a private registry.
	Registerer prometheus.Registerer
}

type Client struct {
	store    storage.Store
	polis    *platform.Polis
	recorder *metrics.Recorder
	modules  []platform.SupportModule
	log      *slog.Logger
	progress io.Writer

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	RunID    string
	BasePath string
	// Base overrides BasePath when non-empty.
	Base           genome.Text
	Policy         string
	GenerationSize int
	Generations    int
	// MutationRate defaults to evo.DefaultMutationRate; zero disables
	// mutation.
	MutationRate *float64
	DriftProfile string
	Drift        *int64
	DriftFloor   *int64
	// TestInputs, TargetMultiplier, Cycles and Feedback configure the
	// target-seeking policy; Noise configures logic-integrity.
	TestInputs       []int64
	TargetMultiplier int64
	Cycles           int
	Feedback         int64
	Noise            *int
	SnapshotInterval *int
	SnapshotDir      string
	// RetainChampion defaults to true.
	RetainChampion *bool
	EliteCount     int
	Selection        string
	Workers          int
	Seed             int64
}

type RunSummary struct {
	RunID                string
	ArtifactsDir         string
	Policy               string
	BestByGeneration     []float64
	FinalBestFitness     float64
	CompletedGenerations int
	Extinct              bool
	ExtinctAt            int
	Champion             genome.Text
	Phenotype            genome.Phenotype
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID                string
	CreatedAtUTC         string
	Policy               string
	Seed                 int64
	GenerationSize       int
	Generations          int
	CompletedGenerations int
	FinalBestFitness     float64
	Extinct              bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type LineageRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type LineageItem struct {
	GenomeID    string
	ParentID    string
	Generation  int
	Operation   string
	Fingerprint string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type SnapshotsRequest struct {
	RunID  string
	Latest bool
}

type MutateRequest struct {
	InPath string
	// OutPath defaults to <stem>_gen1<ext> next to InPath.
	OutPath      string
	Rate         float64
	DriftProfile string
	Drift        *int64
	DriftFloor   *int64
	Seed         int64
}

type MutateSummary struct {
	OutPath string
	Events  []evo.MutationEvent
	Changed bool
}

type InspectRequest struct {
	Path     string
	Input    int64
	Feedback int64
	Cycles   int
}

type InspectSummary struct {
	Phenotype   genome.Phenotype
	Fingerprint string
	Outputs     []int64
	FinalWeight int64
}

type PolicySummaryItem struct {
	Name        string
	Description string
	BestFitness float64
	Runs        int
	Extinctions int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath, logger.With(slog.String("component", "store")))
	if err != nil {
		return nil, err
	}

	registerer := opts.Registerer
	var gatherer prometheus.Gatherer
	if registerer == nil {
		reg := prometheus.NewRegistry()
		registerer, gatherer = reg, reg
	} else if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}
	var modules []platform.SupportModule
	if opts.MetricsAddr != "" {
		if gatherer == nil {
			return nil, errors.New("metrics endpoint requires a registerer that is also a gatherer")
		}
		modules = append(modules, metrics.NewServer(opts.MetricsAddr, gatherer, logger))
	}

	return &Client{
		store:        store,
		recorder:     metrics.NewRecorder(registerer),
		modules:      modules,
		log:          logger,
		progress:     opts.Progress,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.polis != nil {
		c.polis.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// Reset drops all persisted runs from the store.
func (c *Client) Reset(ctx context.Context) error {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return err
	}
	return p.Reset(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Policy == "" {
		req.Policy = scape.PolicyTargetSeeking
	}
	if req.GenerationSize <= 0 {
		req.GenerationSize = DefaultGenerationSize
	}
	if req.Generations <= 0 {
		req.Generations = DefaultGenerations
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	if req.EliteCount <= 0 {
		req.EliteCount = 1
	}
	if req.Selection == "" {
		req.Selection = "elite"
	}
	if req.Cycles <= 0 {
		req.Cycles = DefaultCycles
	}
	snapshotInterval := DefaultSnapshotInterval
	if req.SnapshotInterval != nil {
		snapshotInterval = *req.SnapshotInterval
	}
	noise := DefaultNoise
	if req.Noise != nil {
		noise = *req.Noise
	}
	retain := true
	if req.RetainChampion != nil {
		retain = *req.RetainChampion
	}
	if req.DriftProfile == "" {
		req.DriftProfile = defaultDriftProfile(req.Policy)
	}
	rate := evo.DefaultMutationRate
	if req.MutationRate != nil {
		rate = *req.MutationRate
	}
	params, err := mutationParams(rate, req.DriftProfile, req.Drift, req.DriftFloor)
	if err != nil {
		return RunSummary{}, err
	}

	base := req.Base
	if base == "" {
		base, err = genome.Load(req.BasePath)
		if err != nil {
			return RunSummary{}, err
		}
	}

	policy, err := scape.Resolve(req.Policy, scape.Options{
		TestInputs:       req.TestInputs,
		TargetMultiplier: req.TargetMultiplier,
		Cycles:           req.Cycles,
		Feedback:         req.Feedback,
		Noise:            &noise,
	})
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := evo.SelectorFromName(req.Selection)
	if err != nil {
		return RunSummary{}, err
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	if err := p.RegisterScape(policy); err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	observers := []evo.Observer{c.recorder.Observer(req.Policy)}
	if c.progress != nil {
		observers = append(observers, report.NewProgress(c.progress, req.Generations))
	}
	var sinks []evo.SnapshotSink
	if req.SnapshotDir != "" {
		sinks = append(sinks, stats.FileSnapshotSink{Dir: req.SnapshotDir, BasePath: req.BasePath})
	}

	result, err := p.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:            runID,
		Policy:           req.Policy,
		Base:             base,
		GenerationSize:   req.GenerationSize,
		Generations:      req.Generations,
		EliteCount:       req.EliteCount,
		Workers:          req.Workers,
		Seed:             req.Seed,
		RetainChampion:   retain,
		SnapshotInterval: snapshotInterval,
		Mutation: &evo.LineMutation{
			Rand:    rand.New(rand.NewSource(req.Seed + 1000)),
			Params:  params,
			OnEvent: c.logMutation,
		},
		Selector:  selector,
		Snapshots: sinks,
		Observers: observers,
	})
	if err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:            runID,
			BasePath:         req.BasePath,
			Policy:           req.Policy,
			GenerationSize:   req.GenerationSize,
			Generations:      req.Generations,
			MutationRate:     params.Rate,
			DriftProfile:     req.DriftProfile,
			Drift:            params.Drift,
			DriftFloor:       params.Floor,
			TestInputs:       req.TestInputs,
			TargetMultiplier: req.TargetMultiplier,
			Cycles:           req.Cycles,
			Feedback:         req.Feedback,
			Noise:            noise,
			SnapshotInterval: snapshotInterval,
			RetainChampion:   retain,
			EliteCount:       req.EliteCount,
			Selection:        req.Selection,
			Workers:          req.Workers,
			Seed:             req.Seed,
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.Diagnostics,
		FinalBestFitness:      result.BestFitness,
		Extinct:               result.Extinct,
		ExtinctAt:             result.ExtinctAt,
		Champion: stats.Champion{
			ID:        result.Champion.ID,
			Fitness:   result.Champion.Fitness,
			Phenotype: result.Phenotype,
			Text:      result.Champion.Genome.String(),
		},
		Lineage: stats.LineageEntries(result.Lineage),
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:                runID,
		Policy:               req.Policy,
		GenerationSize:       req.GenerationSize,
		Generations:          req.Generations,
		CompletedGenerations: result.CompletedGenerations,
		Seed:                 req.Seed,
		Workers:              req.Workers,
		FinalBestFitness:     result.BestFitness,
		Extinct:              result.Extinct,
		CreatedAtUTC:         now.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:                runID,
		ArtifactsDir:         filepath.Clean(runDir),
		Policy:               req.Policy,
		BestByGeneration:     append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness:     result.BestFitness,
		CompletedGenerations: result.CompletedGenerations,
		Extinct:              result.Extinct,
		ExtinctAt:            result.ExtinctAt,
		Champion:             result.Champion.Genome,
		Phenotype:            result.Phenotype,
	}, nil
}

// Mutate applies one mutation pass to a genome file and writes the result.
func (c *Client) Mutate(_ context.Context, req MutateRequest) (MutateSummary, error) {
	if req.DriftProfile == "" {
		req.DriftProfile = evo.DriftProfileBitstream
	}
	params, err := mutationParams(req.Rate, req.DriftProfile, req.Drift, req.DriftFloor)
	if err != nil {
		return MutateSummary{}, err
	}
	base, err := genome.Load(req.InPath)
	if err != nil {
		return MutateSummary{}, err
	}
	out := req.OutPath
	if out == "" {
		out = filepath.Join(filepath.Dir(req.InPath), genome.GenerationFileName(req.InPath, 1))
	}

	mutated, events, err := evo.Mutate(rand.New(rand.NewSource(req.Seed)), base, params)
	if err != nil {
		return MutateSummary{}, err
	}
	for _, event := range events {
		c.logMutation(event)
	}
	if err := genome.Write(out, mutated); err != nil {
		return MutateSummary{}, err
	}
	c.log.Info("mutant written",
		slog.String("in", req.InPath),
		slog.String("out", out),
		slog.Int("rewrites", len(events)))

	return MutateSummary{OutPath: out, Events: events, Changed: mutated != base}, nil
}

// Inspect extracts the phenotype of a genome file and simulates it.
func (c *Client) Inspect(_ context.Context, req InspectRequest) (InspectSummary, error) {
	if req.Cycles <= 0 {
		req.Cycles = DefaultCycles
	}
	text, err := genome.Load(req.Path)
	if err != nil {
		return InspectSummary{}, err
	}
	phenotype := genome.Extract(text)
	u := unit.New(phenotype)
	outputs := make([]int64, 0, req.Cycles)
	for i := 0; i < req.Cycles; i++ {
		outputs = append(outputs, u.Step(req.Input, req.Feedback))
	}
	return InspectSummary{
		Phenotype:   phenotype,
		Fingerprint: text.Fingerprint(),
		Outputs:     outputs,
		FinalWeight: u.Weight(),
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:                e.RunID,
			CreatedAtUTC:         e.CreatedAtUTC,
			Policy:               e.Policy,
			Seed:                 e.Seed,
			GenerationSize:       e.GenerationSize,
			Generations:          e.Generations,
			CompletedGenerations: e.CompletedGenerations,
			FinalBestFitness:     e.FinalBestFitness,
			Extinct:              e.Extinct,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) Lineage(ctx context.Context, req LineageRequest) ([]LineageItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "lineage")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}

	out := make([]LineageItem, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, LineageItem{
			GenomeID:    rec.GenomeID,
			ParentID:    rec.ParentID,
			Generation:  rec.Generation,
			Operation:   rec.Operation,
			Fingerprint: rec.Fingerprint,
		})
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) Snapshots(ctx context.Context, req SnapshotsRequest) ([]model.Snapshot, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "snapshots")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	return c.store.ListSnapshots(ctx, runID)
}

// PolicySummary reports the run totals of a fitness policy. The bool is false
// when no run has used the policy yet.
func (c *Client) PolicySummary(ctx context.Context, policy string) (PolicySummaryItem, bool, error) {
	if policy == "" {
		return PolicySummaryItem{}, false, errors.New("policy name is required")
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return PolicySummaryItem{}, false, err
	}
	summary, ok, err := c.store.GetPolicySummary(ctx, policy)
	if err != nil || !ok {
		return PolicySummaryItem{}, false, err
	}
	return PolicySummaryItem{
		Name:        summary.Name,
		Description: summary.Description,
		BestFitness: summary.BestFitness,
		Runs:        summary.Runs,
		Extinctions: summary.Extinctions,
	}, true, nil
}

// RunRecord returns the stored record of a run.
func (c *Client) RunRecord(ctx context.Context, runID string, latest bool) (model.RunRecord, error) {
	id, err := c.resolveRunID(runID, latest, "run record")
	if err != nil {
		return model.RunRecord{}, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return model.RunRecord{}, err
	}
	run, ok, err := c.store.GetRun(ctx, id)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", id)
	}
	return run, nil
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if !latest {
		if runID == "" {
			return "", fmt.Errorf("%s requires run id or latest", what)
		}
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{
		Store:          c.store,
		SupportModules: c.modules,
		Logger:         c.log,
	})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}

func (c *Client) logMutation(event evo.MutationEvent) {
	c.log.Debug("line mutated",
		slog.Int("line", event.Line),
		slog.String("kind", string(event.Kind)),
		slog.String("before", event.Before),
		slog.String("after", event.After))
}

func defaultDriftProfile(policy string) string {
	if policy == scape.PolicyLogicIntegrity {
		return evo.DriftProfileNaturalSelection
	}
	return evo.DriftProfileTargetSeeking
}

func mutationParams(rate float64, profileName string, drift, floor *int64) (evo.MutationParams, error) {
	profile, err := evo.LookupDriftProfile(profileName)
	if err != nil {
		return evo.MutationParams{}, err
	}
	params := evo.MutationParams{Rate: rate, Drift: profile.Drift, Floor: profile.Floor}
	if drift != nil {
		params.Drift = *drift
	}
	if floor != nil {
		params.Floor = *floor
	}
	if err := params.Validate(); err != nil {
		return evo.MutationParams{}, err
	}
	return params, nil
}
