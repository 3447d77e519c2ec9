// Package report renders human-readable run progress.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"siliconsoul/internal/evo"
	"siliconsoul/internal/genome"
)

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

// Progress prints one line per generation and a line on extinction. New
// champions are highlighted when writing to a terminal.
type Progress struct {
	mu          sync.Mutex
	w           io.Writer
	color       bool
	generations int
}

func NewProgress(w io.Writer, generations int) *Progress {
	return &Progress{w: w, color: IsTerminal(w), generations: generations}
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Progress) OnGeneration(_ context.Context, r evo.GenerationReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fitness := FormatFitness(r.Champion.Fitness)
	if p.color && !r.Diagnostics.ChampionRetained {
		fitness = ansiGreen + fitness + ansiReset
	}
	fmt.Fprintf(p.w, "Gen %s | Best Fitness: %s | Champion %s\n",
		p.generationLabel(r.Generation), fitness, FormatPhenotype(r.Phenotype))
}

func (p *Progress) OnExtinction(_ context.Context, generation int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := fmt.Sprintf("EXTINCTION EVENT at generation %d: all mutants failed", generation)
	if p.color {
		line = ansiBold + ansiRed + line + ansiReset
	}
	fmt.Fprintln(p.w, line)
}

func (p *Progress) generationLabel(generation int) string {
	if p.generations <= 0 {
		return fmt.Sprintf("%d", generation)
	}
	return fmt.Sprintf("%d/%d", generation, p.generations)
}

// FormatFitness renders a score with thousands separators and at most two
// decimals.
func FormatFitness(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func FormatPhenotype(p genome.Phenotype) string {
	return fmt.Sprintf("W:%s LR:%s Op:%s Learn:%s",
		humanize.Comma(p.Weight), humanize.Comma(p.LearningRate), p.Inference, p.Learning)
}

type RunSummary struct {
	RunID                string
	Policy               string
	CompletedGenerations int
	BestFitness          float64
	Extinct              bool
	ExtinctAt            int
	Phenotype            genome.Phenotype
	ArtifactsDir         string
}

func WriteSummary(w io.Writer, s RunSummary) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	printf("run_id=%s policy=%s generations=%d\n", s.RunID, s.Policy, s.CompletedGenerations)
	if s.Extinct {
		printf("extinct at generation %d\n", s.ExtinctAt)
	}
	printf("best fitness: %s\n", FormatFitness(s.BestFitness))
	printf("champion: %s\n", FormatPhenotype(s.Phenotype))
	if s.ArtifactsDir != "" {
		printf("artifacts: %s\n", s.ArtifactsDir)
	}
	return err
}
