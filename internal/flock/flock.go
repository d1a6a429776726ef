// Package flock is the reference simulation harness: it flies a flock of boids
// with a given set of steering coefficients and measures how well it flocked.
package flock

import (
	"context"
	"math/rand/v2"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/fitness"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/geometry"
)

type pair struct {
	a, b int
}

// Flock owns its boids. It is not safe for concurrent use, Tick fans the
// steering work out internally.
type Flock struct {
	cfg    Config
	model  behavior.Model
	vision behavior.Vision
	coeffs behavior.Coefficients
	rng    *rand.Rand

	boids    []*Boid
	agents   []behavior.Agent
	steering []geometry.Vector3D
	grid     *grid

	// Collisions
	touching   map[pair]bool
	collisions uint

	// Measurements
	elapsed         float64
	nextSample      float64
	distanceSamples []float64
	speedSamples    []float64
}

// New spawns cfg.BoidCount boids in a cube above the origin, all flying with
// the initial velocity.
func New(cfg Config, coeffs behavior.Coefficients, rng *rand.Rand) *Flock {
	cfg = cfg.WithDefaults()
	f := &Flock{
		cfg:      cfg,
		model:    cfg.model(),
		vision:   cfg.vision(),
		coeffs:   coeffs,
		rng:      rng,
		boids:    make([]*Boid, cfg.BoidCount),
		agents:   make([]behavior.Agent, cfg.BoidCount),
		steering: make([]geometry.Vector3D, cfg.BoidCount),
		grid:     newGrid(max(cfg.LeaderRadius, cfg.CollisionDistance)),
		touching: make(map[pair]bool),
	}
	half := cfg.SpawnRange / 2
	for i := range f.boids {
		f.boids[i] = &Boid{
			ID: i,
			Pos: geometry.NewVector(
				(rng.Float64()*2-1)*half,
				cfg.SpawnHeight+(rng.Float64()*2-1)*half,
				(rng.Float64()*2-1)*half,
			),
			Vel:    cfg.InitialVelocity,
			jitter: newJitter(rng, cfg.JitterMagnitude),
		}
	}
	f.nextSample = cfg.WarmUp
	f.snapshot()
	return f
}

// Center is the mean boid position.
func (f *Flock) Center() geometry.Vector3D {
	positions := make([]geometry.Vector3D, len(f.boids))
	for i, b := range f.boids {
		positions[i] = b.Pos
	}
	return geometry.Mean(positions)
}

// Velocity is the mean boid velocity, the flock's own velocity.
func (f *Flock) Velocity() geometry.Vector3D {
	velocities := make([]geometry.Vector3D, len(f.boids))
	for i, b := range f.boids {
		velocities[i] = b.Vel
	}
	return geometry.Mean(velocities)
}

// Elapsed is the simulated time in seconds.
func (f *Flock) Elapsed() float64 {
	return f.elapsed
}

func (f *Flock) Collisions() uint {
	return f.collisions
}

func (f *Flock) snapshot() {
	for i, b := range f.boids {
		f.agents[i] = b.Agent()
	}
	f.grid.rebuild(f.agents)
}

// Tick advances the flock by one time step. Steering is computed in parallel
// from a snapshot taken at the start of the tick, then every boid is
// integrated in order, so the outcome only depends on the random source.
func (f *Flock) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dt := f.cfg.TimeStep
	flockVelocity := f.Velocity()

	p := pool.New().WithMaxGoroutines(f.cfg.Workers)
	chunk := (len(f.agents) + f.cfg.Workers - 1) / f.cfg.Workers
	for start := 0; start < len(f.agents); start += chunk {
		end := min(start+chunk, len(f.agents))
		p.Go(func() {
			var candidates, leaders []behavior.Agent
			for i := start; i < end; i++ {
				self := f.agents[i]
				candidates = f.grid.nearby(candidates[:0], self.Position)
				leaders = behavior.AppendLeaders(leaders[:0], self, candidates, f.vision.Radius, f.vision.AngleDeg)
				f.steering[i] = f.model.Steer(self, leaders, f.coeffs, flockVelocity)
			}
		})
	}
	p.Wait()

	for i, b := range f.boids {
		wander := b.jitter.next(f.rng, dt, f.cfg.JitterInterval, f.cfg.JitterMagnitude)
		b.Integrate(f.steering[i].Add(wander), dt)
	}
	f.snapshot()
	f.detectCollisions()

	f.elapsed += dt
	if f.elapsed+geometry.Epsilon >= f.nextSample {
		f.sample()
		f.nextSample += f.cfg.SampleInterval
	}
	return nil
}

// detectCollisions counts the boids that started touching another one this
// tick. Both boids of a new contact report it, so a pair adds two.
func (f *Flock) detectCollisions() {
	limitSq := f.cfg.CollisionDistance * f.cfg.CollisionDistance
	now := make(map[pair]bool, len(f.touching))
	var candidates []behavior.Agent
	for _, a := range f.agents {
		candidates = f.grid.nearby(candidates[:0], a.Position)
		for _, other := range candidates {
			if other.ID <= a.ID || a.Position.DistanceSquaredTo(other.Position) >= limitSq {
				continue
			}
			key := pair{a.ID, other.ID}
			now[key] = true
			if !f.touching[key] {
				f.collisions += 2
			}
		}
	}
	f.touching = now
}

func (f *Flock) sample() {
	center := f.Center()
	total := 0.0
	for _, b := range f.boids {
		total += b.Pos.DistanceTo(center)
	}
	f.distanceSamples = append(f.distanceSamples, total/float64(len(f.boids)))
	f.speedSamples = append(f.speedSamples, f.Velocity().Len())
}

// Statistics summarizes the run so far. Before the first sample it measures
// the current state.
func (f *Flock) Statistics() fitness.RunStatistics {
	if len(f.distanceSamples) == 0 {
		f.sample()
	}
	return fitness.RunStatistics{
		CollisionCount:         f.collisions,
		MeanDistanceFromCenter: stat.Mean(f.distanceSamples, nil),
		MeanSpeed:              stat.Mean(f.speedSamples, nil),
	}
}
