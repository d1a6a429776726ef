// Package behavior computes per-agent flocking steering vectors.
// Boids is an artificial life program, developed by Craig Reynolds in 1986,
// which simulates the flocking behaviour of birds, and related group motion.
// https://en.wikipedia.org/wiki/Boids
// Here every agent only reacts to its leaders: the flockmates it can see
// within a radius and inside a forward field of view.
package behavior

import "github.com/lao-tseu-is-alive/go-flock-evolution/pkg/geometry"

// Agent is a read-only snapshot of one flock member for the current tick.
// ID only tells apart agents sharing a position, callers that never set it
// still get distinct agents wherever positions differ.
type Agent struct {
	ID       int
	Position geometry.Vector3D
	Velocity geometry.Vector3D
}

// Vision controls which flockmates an agent follows.
type Vision struct {
	Radius   float64 // How far can they see?
	AngleDeg float64 // Half-angle of the forward field of view
}

// DefaultVision is 12 units and 95 degrees.
func DefaultVision() Vision {
	return Vision{Radius: 12, AngleDeg: 95}
}

// FindLeaders returns the candidates that self can see. A candidate is a leader
// when it lies within radius and the angle between self's velocity and the
// offset towards it is strictly below visionAngleDeg. An agent without velocity
// has no forward direction and therefore no leaders. A candidate with self's ID
// at self's position is self and is skipped. The order of the result is unspecified.
func FindLeaders(self Agent, candidates []Agent, radius, visionAngleDeg float64) []Agent {
	return AppendLeaders(nil, self, candidates, radius, visionAngleDeg)
}

// AppendLeaders is FindLeaders appending into dst, so tick loops can reuse a buffer.
func AppendLeaders(dst []Agent, self Agent, candidates []Agent, radius, visionAngleDeg float64) []Agent {
	if self.Velocity.IsZero() {
		return dst
	}
	radiusSq := radius * radius
	for _, other := range candidates {
		if isSelf(self, other) {
			continue
		}
		sep := other.Position.Sub(self.Position)
		if sep.LenSqr() > radiusSq {
			continue
		}
		angle, ok := self.Velocity.AngleDeg(sep)
		if !ok || angle >= visionAngleDeg {
			continue
		}
		dst = append(dst, other)
	}
	return dst
}

func isSelf(self, other Agent) bool {
	return other.ID == self.ID && other.Position.Eq(self.Position)
}
