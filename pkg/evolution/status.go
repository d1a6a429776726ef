package evolution

import (
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/fitness"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/genome"
)

// Status is a read-only view of the engine, meant to be polled by displays,
// loggers and metrics.
type Status struct {
	Phase           Phase
	Generation      int // 1-based
	GenerationCount int
	Member          int // 1-based
	MemberCount     int
	InPhase         time.Duration // time spent in the current phase
	MemberRuns      int           // members simulated since the start

	// Current member
	Genome       string
	Coefficients map[string]float64
	Fitness      fitness.Fitness
	HasFitness   bool

	// AverageFitness is the mean over the members scored so far in this generation.
	AverageFitness float64
	BestFitness    fitness.Fitness
	HasBest        bool
}

// GenerationSummary records one sorted generation.
type GenerationSummary struct {
	Generation       int // 1-based
	Best             fitness.Fitness
	BestGenome       string
	BestCoefficients map[string]float64
	BestStatistics   fitness.RunStatistics
	// Mean and StdDev cover finite fitness values only.
	Mean         float64
	StdDev       float64
	MaximalCount int
}

func summarize(generation int, sorted []*genome.Genome, stats map[string]fitness.RunStatistics) GenerationSummary {
	s := GenerationSummary{Generation: generation + 1}
	if len(sorted) == 0 {
		return s
	}
	best := sorted[0]
	s.Best = mustFitness(best)
	s.BestGenome = best.String()
	s.BestCoefficients = best.Values()
	s.BestStatistics = stats[best.ID()]

	values := make([]float64, 0, len(sorted))
	for _, g := range sorted {
		f := mustFitness(g)
		if f.IsMaximal() {
			s.MaximalCount++
			continue
		}
		values = append(values, f.Value())
	}
	switch len(values) {
	case 0:
	case 1:
		s.Mean = values[0]
	default:
		s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	}
	return s
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{
		Phase:           e.phase,
		Generation:      e.generation + 1,
		GenerationCount: e.cfg.GenerationCount,
		Member:          min(e.member, e.cfg.MemberCount-1) + 1,
		MemberCount:     e.cfg.MemberCount,
		InPhase:         e.inPhase,
		MemberRuns:      e.runs,
	}
	if e.scored > 0 {
		st.AverageFitness = e.totalFitness / float64(e.scored)
	}
	if e.best != nil {
		st.BestFitness, st.HasBest = mustFitness(e.best), true
	}
	if (e.phase == PhaseRunning || e.phase == PhaseScoring) && e.member < len(e.population) {
		g := e.population[e.member]
		st.Genome = g.String()
		st.Coefficients = g.Values()
		st.Fitness, st.HasFitness = g.Fitness()
	}
	return st
}

// History returns one summary per completed generation.
func (e *Engine) History() []GenerationSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.history)
}

// Population returns a copy of the current population slice. Once the engine
// is done it is sorted by descending fitness.
func (e *Engine) Population() []*genome.Genome {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.population)
}

// Best returns the fittest genome of the final population once the engine is
// done, and the fittest genome scored so far before that.
func (e *Engine) Best() (*genome.Genome, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.phase == PhaseDone && len(e.population) > 0 {
		return e.population[0], true
	}
	return e.best, e.best != nil
}

// BestCoefficients decodes Best, nil when nothing was scored yet.
func (e *Engine) BestCoefficients() map[string]float64 {
	g, ok := e.Best()
	if !ok {
		return nil
	}
	return g.Values()
}
