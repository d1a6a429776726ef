package flock

import (
	"math/rand/v2"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/geometry"
)

type Boid struct {
	ID  int
	Pos geometry.Vector3D
	Vel geometry.Vector3D

	jitter jitter
}

// Agent returns the read-only snapshot used for steering.
func (b *Boid) Agent() behavior.Agent {
	return behavior.Agent{ID: b.ID, Position: b.Pos, Velocity: b.Vel}
}

// Integrate applies acceleration for dt seconds, then moves the boid.
func (b *Boid) Integrate(acceleration geometry.Vector3D, dt float64) {
	b.Vel = b.Vel.Add(acceleration.Mul(dt))
	b.Pos = b.Pos.Add(b.Vel.Mul(dt))
}

// jitter is a random offset re-drawn every interval and applied a slice at a time.
type jitter struct {
	offset  geometry.Vector3D
	counter float64
}

func newJitter(rng *rand.Rand, magnitude float64) jitter {
	return jitter{offset: randomOffset(rng, magnitude)}
}

func randomOffset(rng *rand.Rand, magnitude float64) geometry.Vector3D {
	component := func() float64 { return (rng.Float64()*2 - 1) * magnitude }
	return geometry.NewVector(component(), component(), component())
}

// next returns the part of the offset that belongs to a step of dt seconds.
func (j *jitter) next(rng *rand.Rand, dt, interval, magnitude float64) geometry.Vector3D {
	if j.counter > interval {
		j.counter = 0
		j.offset = randomOffset(rng, magnitude)
	}
	j.counter += dt
	return j.offset.Mul(dt / interval)
}
