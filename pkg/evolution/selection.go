package evolution

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/genome"
)

const (
	SelectionRoulette = "roulette"
	SelectionRank     = "rank"
)

var ErrUnknownSelection = errors.New("unknown selection strategy")

// Selector picks one parent from a population sorted by descending fitness.
// totalFitness is the sum of every member's fitness value.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, population []*genome.Genome, totalFitness float64) *genome.Genome
}

// SelectorByName returns the strategy registered under name, case-insensitive.
func SelectorByName(name string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SelectionRoulette:
		return RouletteSelector{}, nil
	case SelectionRank:
		return RankSelector{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSelection, name)
}

// walk returns the first member whose cumulative share reaches u, or the last
// member when rounding keeps the sum below u.
func walk(population []*genome.Genome, u float64, share func(k int) float64) *genome.Genome {
	cumulative := 0.0
	for k, g := range population {
		cumulative += share(k)
		if cumulative >= u {
			return g
		}
	}
	return population[len(population)-1]
}

// RouletteSelector weighs members by their raw fitness.
type RouletteSelector struct{}

func (RouletteSelector) Name() string { return SelectionRoulette }

// Select draws a member proportionally to fitness. A maximal member at the
// head of the population always wins. When the total is not a positive finite
// number the wheel degrades to rank weights.
func (RouletteSelector) Select(rng *rand.Rand, population []*genome.Genome, totalFitness float64) *genome.Genome {
	if len(population) == 0 {
		return nil
	}
	if f, ok := population[0].Fitness(); ok && f.IsMaximal() {
		return population[0]
	}
	if !(totalFitness > 0) || math.IsInf(totalFitness, 0) {
		return RankSelector{}.Select(rng, population, totalFitness)
	}
	u := rng.Float64()
	return walk(population, u, func(k int) float64 {
		f, ok := population[k].Fitness()
		if !ok {
			return 0
		}
		return f.Value() / totalFitness
	})
}

// RankSelector weighs member k of n by n-k, independent of fitness magnitude.
type RankSelector struct{}

func (RankSelector) Name() string { return SelectionRank }

func (RankSelector) Select(rng *rand.Rand, population []*genome.Genome, _ float64) *genome.Genome {
	n := len(population)
	if n == 0 {
		return nil
	}
	denominator := float64(n*(n+1)) / 2
	u := rng.Float64()
	return walk(population, u, func(k int) float64 {
		return float64(n-k) / denominator
	})
}
