package flock

import (
	"math"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/geometry"
)

type cellKey struct {
	x, y, z int
}

// grid is a spatial hash. With cells at least as large as the biggest query
// radius, the 3x3x3 block around a point holds every agent within that radius.
type grid struct {
	cellSize float64
	cells    map[cellKey][]behavior.Agent
}

func newGrid(cellSize float64) *grid {
	// Clamp to avoid tiny grids or div by zero
	return &grid{
		cellSize: math.Max(cellSize, 1),
		cells:    make(map[cellKey][]behavior.Agent),
	}
}

func (g *grid) key(p geometry.Vector3D) cellKey {
	return cellKey{
		x: int(math.Floor(p.X / g.cellSize)),
		y: int(math.Floor(p.Y / g.cellSize)),
		z: int(math.Floor(p.Z / g.cellSize)),
	}
}

func (g *grid) rebuild(agents []behavior.Agent) {
	// Reset slices to length 0 but keep their capacity, so a running flock
	// almost never allocates here.
	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}
	for _, a := range agents {
		k := g.key(a.Position)
		g.cells[k] = append(g.cells[k], a)
	}
}

// nearby appends the agents of the 27 cells around p to dst.
func (g *grid) nearby(dst []behavior.Agent, p geometry.Vector3D) []behavior.Agent {
	c := g.key(p)
	for i := c.x - 1; i <= c.x+1; i++ {
		for j := c.y - 1; j <= c.y+1; j++ {
			for k := c.z - 1; k <= c.z+1; k++ {
				if agents, ok := g.cells[cellKey{i, j, k}]; ok {
					dst = append(dst, agents...)
				}
			}
		}
	}
	return dst
}
