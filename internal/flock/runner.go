package flock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/fitness"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/genome"
)

// ctxCheckInterval is the number of ticks between two context checks.
const ctxCheckInterval = 50

// Runner flies one flock per call for a fixed simulated duration.
type Runner struct {
	cfg         Config
	runDuration time.Duration
	logger      log.Logger
}

type RunnerOption func(*Runner)

func WithLogger(l log.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

func NewRunner(cfg Config, runDuration time.Duration, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:         cfg.WithDefaults(),
		runDuration: runDuration,
		logger:      log.DiscardLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Steps is the number of ticks in one run.
func (r *Runner) Steps() int {
	return int(math.Round(r.runDuration.Seconds() / r.cfg.TimeStep))
}

// Run flies a flock steered by g's coefficients. The random source is seeded
// from the configured seed and the genome bits, so the same bits always fly
// the same way. It matches evolution.RunHook.
func (r *Runner) Run(ctx context.Context, g *genome.Genome) (fitness.RunStatistics, error) {
	coeffs := behavior.CoefficientsFromGenome(g)
	stats, err := r.Simulate(ctx, coeffs, r.seedFor(g.String()))
	if err != nil {
		return stats, err
	}
	r.logger.Debugf("flock %s (%s): %d collisions, distance %.3f, speed %.3f",
		g, coeffs, stats.CollisionCount, stats.MeanDistanceFromCenter, stats.MeanSpeed)
	return stats, nil
}

// Simulate flies a flock with fixed coefficients.
func (r *Runner) Simulate(ctx context.Context, coeffs behavior.Coefficients, seed uint64) (fitness.RunStatistics, error) {
	f := New(r.cfg, coeffs, rand.New(rand.NewPCG(seed, r.cfg.Seed)))
	steps := r.Steps()
	for i := 0; i < steps; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fitness.RunStatistics{}, fmt.Errorf("flock run stopped after %.2fs: %w", f.Elapsed(), err)
			}
		}
		if err := f.Tick(ctx); err != nil {
			return fitness.RunStatistics{}, err
		}
	}
	return f.Statistics(), nil
}

func (r *Runner) seedFor(bits string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(bits))
	return r.cfg.Seed ^ h.Sum64()
}
