// Package metrics exposes evolution progress as prometheus collectors.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"siliconsoul/internal/evo"
)

const namespace = "siliconsoul"

// Recorder holds the collectors fed by engine observers.
type Recorder struct {
	GenerationsTotal          *prometheus.CounterVec
	EvaluationsTotal          *prometheus.CounterVec
	ChampionReplacementsTotal *prometheus.CounterVec
	ExtinctionsTotal          *prometheus.CounterVec
	BestFitness               *prometheus.GaugeVec
	MeanFitness               *prometheus.GaugeVec
	Diversity                 *prometheus.GaugeVec
	ChampionWeight            *prometheus.GaugeVec
}

// NewRecorder registers the collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Completed generations by fitness policy.",
			},
			[]string{"policy"},
		),
		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Genome evaluations by fitness policy.",
			},
			[]string{"policy"},
		),
		ChampionReplacementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "champion_replacements_total",
				Help:      "Generations in which a mutant displaced the champion.",
			},
			[]string{"policy"},
		),
		ExtinctionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extinctions_total",
				Help:      "Runs ended by an extinction event.",
			},
			[]string{"policy"},
		),
		BestFitness: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "best_fitness",
				Help:      "Best fitness of the latest generation.",
			},
			[]string{"policy"},
		),
		MeanFitness: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mean_fitness",
				Help:      "Mean fitness of the latest generation.",
			},
			[]string{"policy"},
		),
		Diversity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "generation_diversity",
				Help:      "Distinct genome fingerprints in the latest generation.",
			},
			[]string{"policy"},
		),
		ChampionWeight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "champion_weight",
				Help:      "Initial weight extracted from the current champion.",
			},
			[]string{"policy"},
		),
	}
}

// Observer returns an engine observer that records under the policy label.
func (r *Recorder) Observer(policy string) evo.Observer {
	return &policyObserver{r: r, policy: policy}
}

type policyObserver struct {
	r      *Recorder
	policy string
}

func (o *policyObserver) OnGeneration(_ context.Context, report evo.GenerationReport) {
	o.r.GenerationsTotal.WithLabelValues(o.policy).Inc()
	o.r.EvaluationsTotal.WithLabelValues(o.policy).Add(float64(report.Diagnostics.Evaluated))
	if !report.Diagnostics.ChampionRetained {
		o.r.ChampionReplacementsTotal.WithLabelValues(o.policy).Inc()
	}
	o.r.BestFitness.WithLabelValues(o.policy).Set(report.Diagnostics.BestFitness)
	o.r.MeanFitness.WithLabelValues(o.policy).Set(report.Diagnostics.MeanFitness)
	o.r.Diversity.WithLabelValues(o.policy).Set(float64(report.Diagnostics.Diversity))
	o.r.ChampionWeight.WithLabelValues(o.policy).Set(float64(report.Phenotype.Weight))
}

func (o *policyObserver) OnExtinction(_ context.Context, _ int) {
	o.r.ExtinctionsTotal.WithLabelValues(o.policy).Inc()
}
