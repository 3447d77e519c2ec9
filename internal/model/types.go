package model

import (
	"time"

	"siliconsoul/internal/genome"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Snapshot is a champion saved at a snapshot generation.
type Snapshot struct {
	VersionedRecord
	ID          string           `json:"id"`
	RunID       string           `json:"run_id"`
	Generation  int              `json:"generation"`
	GenomeID    string           `json:"genome_id"`
	Fitness     float64          `json:"fitness"`
	Phenotype   genome.Phenotype `json:"phenotype"`
	Text        string           `json:"text"`
	Fingerprint string           `json:"fingerprint"`
	CreatedAt   time.Time        `json:"created_at"`
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
	VersionedRecord
	GenomeID    string `json:"genome_id"`
	ParentID    string `json:"parent_id"`
	Generation  int    `json:"generation"`
	Operation   string `json:"operation"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// RunRecord summarizes one evolution run.
type RunRecord struct {
	VersionedRecord
	ID                   string           `json:"id"`
	Policy               string           `json:"policy"`
	Seed                 int64            `json:"seed"`
	Generations          int              `json:"generations"`
	GenerationSize       int              `json:"generation_size"`
	CompletedGenerations int              `json:"completed_generations"`
	BestFitness          float64          `json:"best_fitness"`
	Extinct              bool             `json:"extinct"`
	ExtinctAt            int              `json:"extinct_at,omitempty"`
	ChampionID           string           `json:"champion_id"`
	ChampionText         string           `json:"champion_text"`
	ChampionPhenotype    genome.Phenotype `json:"champion_phenotype"`
	StartedAt            time.Time        `json:"started_at"`
	FinishedAt           time.Time        `json:"finished_at"`
}

// PolicySummary aggregates results per fitness policy across runs.
type PolicySummary struct {
	VersionedRecord
	Name        string    `json:"name"`
	Description string    `json:"description"`
	BestFitness float64   `json:"best_fitness"`
	Runs        int       `json:"runs"`
	Extinctions int       `json:"extinctions"`
	UpdatedAt   time.Time `json:"updated_at"`
}
