package flock

import (
	"runtime"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/geometry"
)

// Config holds the physics constants of one simulated flock. Times are in
// simulated seconds.
type Config struct {
	// Population
	BoidCount   int     `json:"boidCount"`
	SpawnRange  float64 `json:"spawnRange"`  // edge of the spawn cube
	SpawnHeight float64 `json:"spawnHeight"` // height of the cube centre above the flock origin

	// Initial velocity of every boid
	InitialVelocity geometry.Vector3D `json:"initialVelocity"`

	// Perception
	LeaderRadius       float64 `json:"leaderRadius"`
	VisionAngle        float64 `json:"visionAngle"`
	SeparationDistance float64 `json:"separationDistance"`
	CollisionDistance  float64 `json:"collisionDistance"` // centre distance at which two boids touch

	// Random wander applied on top of steering
	JitterInterval  float64 `json:"jitterInterval"`
	JitterMagnitude float64 `json:"jitterMagnitude"`

	// Measurements
	WarmUp         float64 `json:"warmUp"`
	SampleInterval float64 `json:"sampleInterval"`

	TimeStep float64 `json:"timeStep"`
	Workers  int     `json:"workers"`
	Seed     uint64  `json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		BoidCount:          20,
		SpawnRange:         20,
		SpawnHeight:        30,
		InitialVelocity:    geometry.NewVector(1, 0, 12),
		LeaderRadius:       12,
		VisionAngle:        95,
		SeparationDistance: 6,
		CollisionDistance:  1,
		JitterInterval:     1.5,
		JitterMagnitude:    4,
		WarmUp:             1.5,
		SampleInterval:     0.25,
		TimeStep:           0.02,
		Workers:            runtime.GOMAXPROCS(0),
		Seed:               1,
	}
}

// WithDefaults replaces zero or negative values by their default.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	positive := func(v *float64, d float64) {
		if !(*v > 0) {
			*v = d
		}
	}
	if c.BoidCount <= 0 {
		c.BoidCount = def.BoidCount
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	positive(&c.SpawnRange, def.SpawnRange)
	positive(&c.LeaderRadius, def.LeaderRadius)
	positive(&c.VisionAngle, def.VisionAngle)
	positive(&c.SeparationDistance, def.SeparationDistance)
	positive(&c.CollisionDistance, def.CollisionDistance)
	positive(&c.JitterInterval, def.JitterInterval)
	positive(&c.SampleInterval, def.SampleInterval)
	positive(&c.TimeStep, def.TimeStep)
	if c.JitterMagnitude < 0 {
		c.JitterMagnitude = def.JitterMagnitude
	}
	if c.WarmUp < 0 {
		c.WarmUp = def.WarmUp
	}
	return c
}

func (c Config) vision() behavior.Vision {
	return behavior.Vision{Radius: c.LeaderRadius, AngleDeg: c.VisionAngle}
}

func (c Config) model() behavior.Model {
	return behavior.Model{SeparationDistance: c.SeparationDistance}
}
