package behavior

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/genome"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/geometry"
)

// Coefficients weight the three steering terms.
type Coefficients struct {
	Cohesion   float64 `json:"cohesion"`
	Separation float64 `json:"separation"`
	Follow     float64 `json:"follow"`
}

// DefaultCoefficients are the fixed weights used when nothing is evolved.
func DefaultCoefficients() Coefficients {
	return Coefficients{Cohesion: 1.5, Separation: 1.5, Follow: 1.5}
}

func (c Coefficients) String() string {
	return fmt.Sprintf("cohesion=%.3f separation=%.3f follow=%.3f", c.Cohesion, c.Separation, c.Follow)
}

// CoefficientsFromGenome decodes g by coefficient name. Names missing from the
// genome layout keep their default weight.
func CoefficientsFromGenome(g *genome.Genome) Coefficients {
	c := DefaultCoefficients()
	values := g.Values()
	if v, ok := values[genome.Cohesion]; ok {
		c.Cohesion = v
	}
	if v, ok := values[genome.Separation]; ok {
		c.Separation = v
	}
	if v, ok := values[genome.Follow]; ok {
		c.Follow = v
	}
	return c
}

// Model holds the physics constants shared by every agent of a flock.
type Model struct {
	SeparationDistance float64 // Personal space radius
}

// DefaultModel keeps 6 units of personal space.
func DefaultModel() Model {
	return Model{SeparationDistance: 6}
}

// Cohesion is the mean offset from self to its leaders.
func (m Model) Cohesion(self Agent, leaders []Agent) geometry.Vector3D {
	if len(leaders) == 0 {
		return geometry.Zero
	}
	var sum geometry.Vector3D
	for _, l := range leaders {
		sum = sum.Add(l.Position.Sub(self.Position))
	}
	return sum.Mul(1 / float64(len(leaders)))
}

// Separation pushes self away from every leader closer than SeparationDistance.
// Each such leader contributes a vector of length SeparationDistance/2 pointing
// away from it. Contributions are summed, not averaged. A leader at exactly
// self's position has no direction and contributes nothing.
func (m Model) Separation(self Agent, leaders []Agent) geometry.Vector3D {
	var sum geometry.Vector3D
	for _, l := range leaders {
		offset := self.Position.Sub(l.Position)
		dist := offset.Len()
		if dist >= m.SeparationDistance || dist < geometry.Epsilon {
			continue
		}
		sum = sum.Add(offset.Mul(m.SeparationDistance / (2 * dist)))
	}
	return sum
}

// Follow matches the leaders' mean velocity, or flockVelocity when self has no leaders.
func (m Model) Follow(self Agent, leaders []Agent, flockVelocity geometry.Vector3D) geometry.Vector3D {
	if len(leaders) == 0 {
		return flockVelocity.Sub(self.Velocity)
	}
	var sum geometry.Vector3D
	for _, l := range leaders {
		sum = sum.Add(l.Velocity)
	}
	return sum.Mul(1 / float64(len(leaders))).Sub(self.Velocity)
}

// Steer blends the three terms. The result is not normalized, the integrator
// scales it by the tick duration.
func (m Model) Steer(self Agent, leaders []Agent, c Coefficients, flockVelocity geometry.Vector3D) geometry.Vector3D {
	return m.Follow(self, leaders, flockVelocity).Mul(c.Follow).
		Add(m.Cohesion(self, leaders).Mul(c.Cohesion)).
		Add(m.Separation(self, leaders).Mul(c.Separation))
}
