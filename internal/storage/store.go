package storage

import (
	"context"
	"errors"

	"siliconsoul/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

// Store persists run records, snapshots and per-run histories.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, snapshot model.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (model.Snapshot, bool, error)
	ListSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error
	GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SavePolicySummary(ctx context.Context, summary model.PolicySummary) error
	GetPolicySummary(ctx context.Context, name string) (model.PolicySummary, bool, error)
}

// Resetter is implemented by stores that can drop all persisted state.
type Resetter interface {
	Reset(ctx context.Context) error
}
