// Package evolution runs the generational genetic algorithm that tunes flock
// steering coefficients. The engine is a state machine advanced by an external
// clock: it never sleeps and never starts goroutines of its own.
package evolution

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/fitness"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/genome"
)

var ErrNoRunHook = errors.New("evolution engine needs a run hook")

// RunHook simulates one member for the configured run duration and reports
// what happened. It is called once per member per generation.
type RunHook func(ctx context.Context, g *genome.Genome) (fitness.RunStatistics, error)

type Phase int

const (
	PhaseSeeding Phase = iota
	PhaseRunning
	PhaseScoring
	PhaseSorting
	PhaseBreeding
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSeeding:
		return "seeding"
	case PhaseRunning:
		return "running"
	case PhaseScoring:
		return "scoring"
	case PhaseSorting:
		return "sorting"
	case PhaseBreeding:
		return "breeding"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type Option func(*Engine)

// WithLogger sets the logger, the default discards everything.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRand sets the random source used for seeding and breeding.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

func WithEvaluator(ev fitness.Evaluator) Option {
	return func(e *Engine) { e.evaluator = ev }
}

// Engine owns the population. All exported methods are safe for concurrent
// use; Advance calls are serialized.
type Engine struct {
	cfg       Config
	layout    *genome.Layout
	hook      RunHook
	evaluator fitness.Evaluator
	selector  Selector
	rng       *rand.Rand
	logger    log.Logger

	mu           sync.RWMutex
	phase        Phase
	generation   int // 0-based
	member       int // 0-based index into population
	inPhase      time.Duration
	population   []*genome.Genome
	stats        map[string]fitness.RunStatistics // by genome ID, current generation
	totalFitness float64
	scored       int
	runs         int
	best         *genome.Genome
	history      []GenerationSummary
}

// New normalizes cfg and derives the genome layout. Invalid config values fall
// back to defaults, invalid coefficient specs are an error.
func New(cfg Config, hook RunHook, opts ...Option) (*Engine, error) {
	if hook == nil {
		return nil, ErrNoRunHook
	}
	e := &Engine{
		hook:      hook,
		evaluator: fitness.DefaultEvaluator(),
		logger:    log.DiscardLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	normalized, replaced := cfg.Normalize()
	for _, r := range replaced {
		e.logger.Warnf("evolution config: %s", r)
	}
	e.cfg = normalized

	layout, err := genome.NewLayout(e.cfg.Coefficients)
	if err != nil {
		return nil, fmt.Errorf("evolution config: %w", err)
	}
	e.layout = layout
	e.selector, _ = SelectorByName(e.cfg.Selection)
	return e, nil
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Layout is shared by every genome of the run.
func (e *Engine) Layout() *genome.Layout {
	return e.layout
}

// Advance moves the state machine forward by elapsed time. Unused time carries
// over into the following phases, so a single call may score several members.
// A run hook error discards the current member's run, which restarts on the
// next call.
func (e *Engine) Advance(ctx context.Context, elapsed time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	budget := elapsed
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch e.phase {
		case PhaseSeeding:
			e.seed()

		case PhaseRunning:
			if !e.consume(&budget, e.cfg.RunDuration) {
				return nil
			}
			if err := e.runMember(ctx); err != nil {
				return err
			}

		case PhaseScoring:
			if !e.consume(&budget, e.cfg.ScoreHold) {
				return nil
			}
			e.member++
			if e.member == len(e.population) {
				e.enter(PhaseSorting)
			} else {
				e.enter(PhaseRunning)
			}

		case PhaseSorting:
			if !e.consume(&budget, e.cfg.GenerationHold) {
				return nil
			}
			e.sortAndRecord()
			if e.generation+1 >= e.cfg.GenerationCount {
				e.enter(PhaseDone)
				e.logger.Infof("evolution done after %d generations, best fitness %s", e.cfg.GenerationCount, e.bestFitness())
				return nil
			}
			e.enter(PhaseBreeding)

		case PhaseBreeding:
			if err := e.breed(); err != nil {
				return err
			}

		case PhaseDone:
			return nil
		}
	}
}

// Run advances the engine until it is done or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	step := e.cfg.RunDuration + e.cfg.ScoreHold
	for !e.Done() {
		if err := e.Advance(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Done() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase == PhaseDone
}

// consume takes what the current phase still needs from budget. It reports
// false when the budget ran out first.
func (e *Engine) consume(budget *time.Duration, phaseDuration time.Duration) bool {
	need := phaseDuration - e.inPhase
	if *budget < need {
		e.inPhase += *budget
		*budget = 0
		return false
	}
	*budget -= need
	e.inPhase = phaseDuration
	return true
}

func (e *Engine) enter(p Phase) {
	e.phase = p
	e.inPhase = 0
}

func (e *Engine) seed() {
	e.population = make([]*genome.Genome, e.cfg.MemberCount)
	for i := range e.population {
		e.population[i] = genome.NewRandom(e.rng, e.layout)
	}
	e.startGeneration(0)
	e.logger.Infof("seeded %d genomes of %d bits", e.cfg.MemberCount, e.layout.Len())
}

func (e *Engine) startGeneration(generation int) {
	e.generation = generation
	e.member = 0
	e.totalFitness = 0
	e.scored = 0
	e.stats = make(map[string]fitness.RunStatistics, len(e.population))
	e.enter(PhaseRunning)
	e.logger.Infof("generation %d/%d started", generation+1, e.cfg.GenerationCount)
}

func (e *Engine) runMember(ctx context.Context) error {
	g := e.population[e.member]
	stats, err := e.hook(ctx, g)
	if err != nil {
		e.inPhase = 0
		e.logger.Warnf("member %d of generation %d discarded: %v", e.member+1, e.generation+1, err)
		return fmt.Errorf("run member %d of generation %d: %w", e.member+1, e.generation+1, err)
	}
	e.runs++

	f, err := e.evaluator.Evaluate(stats)
	switch {
	case errors.Is(err, fitness.ErrUndefinedFitness):
		e.logger.Warnf("member %d: %v, using maximal fitness", e.member+1, err)
	case err != nil:
		e.logger.Warnf("member %d: %v", e.member+1, err)
	}
	if err := g.SetFitness(f); err != nil {
		return err
	}
	e.stats[g.ID()] = stats
	e.totalFitness += f.Value()
	e.scored++
	if e.best == nil || f.Compare(mustFitness(e.best)) > 0 {
		e.best = g
	}
	e.logger.Debugf("generation %d member %d %s: collisions=%d distance=%.3f speed=%.3f fitness=%s",
		e.generation+1, e.member+1, g, stats.CollisionCount, stats.MeanDistanceFromCenter, stats.MeanSpeed, f)
	e.enter(PhaseScoring)
	return nil
}

func (e *Engine) sortAndRecord() {
	slices.SortStableFunc(e.population, func(a, b *genome.Genome) int {
		return mustFitness(b).Compare(mustFitness(a))
	})
	summary := summarize(e.generation, e.population, e.stats)
	e.history = append(e.history, summary)
	e.logger.Infof("generation %d/%d: best %s mean %.4f stddev %.4f",
		e.generation+1, e.cfg.GenerationCount, summary.Best, summary.Mean, summary.StdDev)
}

// breed replaces the sorted population: elites first, then mutated children
// of selected pairs, then random genomes up to MemberCount.
func (e *Engine) breed() error {
	next := make([]*genome.Genome, 0, e.cfg.MemberCount)
	for i := 0; i < e.cfg.EliteCount; i++ {
		next = append(next, e.population[i].CloneElite())
	}
	for i := 0; i < e.cfg.PairsPerGeneration(); i++ {
		a := e.selector.Select(e.rng, e.population, e.totalFitness)
		b := e.selector.Select(e.rng, e.population, e.totalFitness)
		c1, c2, err := genome.Crossover(e.rng, a, b, e.cfg.NumSplits)
		if err != nil {
			return fmt.Errorf("breed generation %d: %w", e.generation+2, err)
		}
		next = append(next,
			genome.Mutate(e.rng, c1, e.cfg.MutationRate),
			genome.Mutate(e.rng, c2, e.cfg.MutationRate))
	}
	for len(next) < e.cfg.MemberCount {
		next = append(next, genome.NewRandom(e.rng, e.layout))
	}
	e.population = next
	e.startGeneration(e.generation + 1)
	return nil
}

func (e *Engine) bestFitness() fitness.Fitness {
	if e.best == nil {
		return fitness.Finite(0)
	}
	return mustFitness(e.best)
}

// mustFitness reads the fitness of a scored genome. Unscored genomes rank last.
func mustFitness(g *genome.Genome) fitness.Fitness {
	f, ok := g.Fitness()
	if !ok {
		return fitness.Finite(0)
	}
	return f
}
