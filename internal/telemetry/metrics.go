// Package telemetry exports the evolution progress as Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/evolution"
)

const namespace = "flockevolve"

// Metrics is fed by polling the engine, it never calls back into it.
type Metrics struct {
	generation     prometheus.Gauge
	bestFitness    prometheus.Gauge
	averageFitness prometheus.Gauge
	memberRuns     prometheus.Counter
	generations    prometheus.Counter
	generationFit  *prometheus.GaugeVec
	maximalMembers prometheus.Counter

	lastRuns int
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "generation",
			Help: "Current generation, 1-based.",
		}),
		bestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "best_fitness",
			Help: "Best fitness scored so far, +Inf for the maximal sentinel.",
		}),
		averageFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "generation_average_fitness",
			Help: "Mean fitness of the members scored so far in the current generation.",
		}),
		memberRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "member_runs_total",
			Help: "Flock runs completed.",
		}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "generations_total",
			Help: "Generations scored and sorted.",
		}),
		generationFit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_generation_fitness",
			Help: "Fitness summary of the last sorted generation.",
		}, []string{"stat"}),
		maximalMembers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "maximal_fitness_members_total",
			Help: "Members whose fitness was replaced by the maximal sentinel.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.generation, m.bestFitness, m.averageFitness, m.memberRuns,
		m.generations, m.generationFit, m.maximalMembers,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveStatus(st evolution.Status) {
	m.generation.Set(float64(st.Generation))
	m.averageFitness.Set(st.AverageFitness)
	if st.HasBest {
		m.bestFitness.Set(st.BestFitness.Value())
	}
	if st.MemberRuns > m.lastRuns {
		m.memberRuns.Add(float64(st.MemberRuns - m.lastRuns))
		m.lastRuns = st.MemberRuns
	}
}

func (m *Metrics) ObserveGeneration(s evolution.GenerationSummary) {
	m.generations.Inc()
	m.generationFit.WithLabelValues("best").Set(s.Best.Value())
	m.generationFit.WithLabelValues("mean").Set(s.Mean)
	m.generationFit.WithLabelValues("stddev").Set(s.StdDev)
	m.maximalMembers.Add(float64(s.MaximalCount))
}
