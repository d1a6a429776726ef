// Package fitness turns the statistics of one flock run into a scalar score.
package fitness

import (
	"cmp"
	"errors"
	"fmt"
	"math"
)

// ErrUndefinedFitness is reported when the distance or speed error is exactly zero,
// which makes the score formula divide by zero.
var ErrUndefinedFitness = errors.New("undefined fitness: perfect distance or speed match")

// ErrInvalidStatistics is reported for NaN run statistics. Such runs score zero.
var ErrInvalidStatistics = errors.New("invalid run statistics")

// RunStatistics is accumulated by the simulation over one member's run.
type RunStatistics struct {
	CollisionCount         uint    `json:"collisionCount"`
	MeanDistanceFromCenter float64 `json:"meanDistanceFromCenter"`
	MeanSpeed              float64 `json:"meanSpeed"`
}

// Fitness is either a finite score or the maximal sentinel used when the
// score formula is undefined. The zero value is a finite score of 0.
type Fitness struct {
	value   float64
	maximal bool
}

// Finite wraps a finite score.
func Finite(v float64) Fitness {
	return Fitness{value: v}
}

// Maximal returns the sentinel that ranks above every finite score.
func Maximal() Fitness {
	return Fitness{maximal: true}
}

// IsMaximal reports whether f is the maximal sentinel.
func (f Fitness) IsMaximal() bool {
	return f.maximal
}

// Value returns the score, +Inf for the maximal sentinel.
func (f Fitness) Value() float64 {
	if f.maximal {
		return math.Inf(1)
	}
	return f.value
}

// Compare returns -1, 0 or +1 when f ranks below, equal to or above other.
func (f Fitness) Compare(other Fitness) int {
	switch {
	case f.maximal && other.maximal:
		return 0
	case f.maximal:
		return 1
	case other.maximal:
		return -1
	}
	return cmp.Compare(f.value, other.value)
}

func (f Fitness) String() string {
	if f.maximal {
		return "max"
	}
	return fmt.Sprintf("%.4f", f.value)
}

// Evaluator scores a run against a target spacing and speed band.
type Evaluator struct {
	TargetDistance   float64 `json:"targetDistance"`
	MinSpeed         float64 `json:"minSpeed"`
	MaxSpeed         float64 `json:"maxSpeed"`
	FreeCollisions   uint    `json:"freeCollisions"`
	CollisionPenalty float64 `json:"collisionPenalty"`
}

// DefaultEvaluator targets a mean distance of 7 from the flock centre and a speed in [10, 14].
func DefaultEvaluator() Evaluator {
	return Evaluator{
		TargetDistance:   7,
		MinSpeed:         10,
		MaxSpeed:         14,
		FreeCollisions:   3,
		CollisionPenalty: 0.01,
	}
}

// TargetSpeed is the middle of the speed band.
func (e Evaluator) TargetSpeed() float64 {
	return (e.MinSpeed + e.MaxSpeed) / 2
}

// Evaluate computes
//
//	1 / (|targetDistance - meanDistance| * |targetSpeed - meanSpeed|) / (1 + forgiven*penalty)
//
// where forgiven counts collisions past the free ones. When either error term is
// zero it returns the maximal sentinel together with ErrUndefinedFitness.
func (e Evaluator) Evaluate(stats RunStatistics) (Fitness, error) {
	var forgiven uint
	if stats.CollisionCount > e.FreeCollisions {
		forgiven = stats.CollisionCount - e.FreeCollisions
	}

	distanceErr := math.Abs(e.TargetDistance - stats.MeanDistanceFromCenter)
	speedErr := math.Abs(e.TargetSpeed() - stats.MeanSpeed)
	product := distanceErr * speedErr
	if math.IsNaN(product) {
		return Finite(0), fmt.Errorf("%w: %+v", ErrInvalidStatistics, stats)
	}
	if product == 0 {
		return Maximal(), ErrUndefinedFitness
	}

	score := 1 / product / (1 + float64(forgiven)*e.CollisionPenalty)
	if math.IsInf(score, 0) {
		return Maximal(), fmt.Errorf("%w: score %v", ErrUndefinedFitness, score)
	}
	return Finite(score), nil
}

// Score is Evaluate with its error dropped: undefined scores resolve to the
// maximal sentinel and invalid statistics to zero.
func (e Evaluator) Score(stats RunStatistics) Fitness {
	f, _ := e.Evaluate(stats)
	return f
}
