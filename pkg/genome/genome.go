// Package genome encodes flock steering coefficients as fixed-length bit strings.
package genome

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/fitness"
)

// ErrFitnessAlreadySet is returned when a genome is scored twice.
var ErrFitnessAlreadySet = errors.New("genome fitness already set")

// Default steering coefficient names, in genome order.
const (
	Cohesion   = "cohesion"
	Separation = "separation"
	Follow     = "follow"
)

// DefaultSpecs returns the cohesion, separation and follow specs.
func DefaultSpecs() []CoefficientSpec {
	return []CoefficientSpec{
		{Name: Cohesion, Min: 1, Max: 5, Accuracy: 0.02},
		{Name: Separation, Min: 0.5, Max: 5, Accuracy: 0.02},
		{Name: Follow, Min: 0.5, Max: 5, Accuracy: 0.02},
	}
}

// Layout is the ordered list of coefficients shared by every genome of a run.
// Its length is computed once here and passed around explicitly.
type Layout struct {
	coefficients []Coefficient
	offsets      []uint
	length       uint
}

// NewLayout derives the encoding of every spec, in order.
func NewLayout(specs []CoefficientSpec) (*Layout, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no coefficients", ErrInvalidCoefficientSpec)
	}
	l := &Layout{
		coefficients: make([]Coefficient, 0, len(specs)),
		offsets:      make([]uint, 0, len(specs)),
	}
	for _, spec := range specs {
		c, err := NewCoefficient(spec)
		if err != nil {
			return nil, err
		}
		l.coefficients = append(l.coefficients, c)
		l.offsets = append(l.offsets, l.length)
		l.length += uint(c.BitLength)
	}
	return l, nil
}

// Len is the sum of every coefficient's bit length.
func (l *Layout) Len() uint {
	return l.length
}

// Coefficients returns a copy of the derived coefficients.
func (l *Layout) Coefficients() []Coefficient {
	out := make([]Coefficient, len(l.coefficients))
	copy(out, l.coefficients)
	return out
}

// Names returns the coefficient names in genome order.
func (l *Layout) Names() []string {
	names := make([]string, len(l.coefficients))
	for i, c := range l.coefficients {
		names[i] = c.Spec.Name
	}
	return names
}

// Origin tells how a genome came to be.
type Origin int

const (
	OriginRandom Origin = iota
	OriginElite
	OriginOffspring
)

func (o Origin) String() string {
	switch o {
	case OriginRandom:
		return "random"
	case OriginElite:
		return "elite"
	case OriginOffspring:
		return "offspring"
	}
	return fmt.Sprintf("Origin(%d)", int(o))
}

// Genome is one candidate solution. Its bits are never modified after
// construction; crossover and mutation build new genomes.
type Genome struct {
	id      string
	layout  *Layout
	bits    *bitset.BitSet
	origin  Origin
	fitness *fitness.Fitness
}

func newGenome(layout *Layout, bits *bitset.BitSet, origin Origin) *Genome {
	return &Genome{
		id:     uuid.NewString(),
		layout: layout,
		bits:   bits,
		origin: origin,
	}
}

// NewRandom concatenates one random segment per coefficient.
func NewRandom(rng *rand.Rand, layout *Layout) *Genome {
	bits := bitset.New(layout.Len())
	for i, c := range layout.coefficients {
		segment := EncodeRandom(rng, uint(c.BitLength))
		for j := uint(0); j < uint(c.BitLength); j++ {
			bits.SetTo(layout.offsets[i]+j, segment.Test(j))
		}
	}
	return newGenome(layout, bits, OriginRandom)
}

// NewFromBits copies bits into a new genome. bits.Len() must equal layout.Len().
func NewFromBits(layout *Layout, bits *bitset.BitSet) (*Genome, error) {
	if bits == nil || bits.Len() != layout.Len() {
		var got uint
		if bits != nil {
			got = bits.Len()
		}
		return nil, fmt.Errorf("%w: got %d bits, want %d", ErrLengthMismatch, got, layout.Len())
	}
	return newGenome(layout, bits.Clone(), OriginRandom), nil
}

// Parse builds a genome from a string of '0' and '1'.
func Parse(layout *Layout, s string) (*Genome, error) {
	if uint(len(s)) != layout.Len() {
		return nil, fmt.Errorf("%w: got %d bits, want %d", ErrLengthMismatch, len(s), layout.Len())
	}
	bits := bitset.New(layout.Len())
	for i, r := range s {
		switch r {
		case '1':
			bits.Set(uint(i))
		case '0':
		default:
			return nil, fmt.Errorf("invalid bit %q at position %d", r, i)
		}
	}
	return newGenome(layout, bits, OriginRandom), nil
}

// ID is unique per genome object, copies get a new one.
func (g *Genome) ID() string {
	return g.id
}

func (g *Genome) Layout() *Layout {
	return g.layout
}

func (g *Genome) Origin() Origin {
	return g.origin
}

// Len returns the number of bits.
func (g *Genome) Len() uint {
	return g.layout.Len()
}

// Bits returns a copy of the bit string.
func (g *Genome) Bits() *bitset.BitSet {
	return g.bits.Clone()
}

// String renders the bits most significant first, e.g. "010011".
func (g *Genome) String() string {
	var sb strings.Builder
	sb.Grow(int(g.Len()))
	for i := uint(0); i < g.Len(); i++ {
		if g.bits.Test(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// DecodeAll returns every coefficient value in layout order.
func (g *Genome) DecodeAll() []float64 {
	values := make([]float64, len(g.layout.coefficients))
	for i, c := range g.layout.coefficients {
		values[i] = c.Decode(g.bits, g.layout.offsets[i])
	}
	return values
}

// Values returns the decoded coefficients keyed by name.
func (g *Genome) Values() map[string]float64 {
	values := g.DecodeAll()
	out := make(map[string]float64, len(values))
	for i, c := range g.layout.coefficients {
		out[c.Spec.Name] = values[i]
	}
	return out
}

// Fitness returns the score, ok is false until SetFitness was called.
func (g *Genome) Fitness() (fitness.Fitness, bool) {
	if g.fitness == nil {
		return fitness.Fitness{}, false
	}
	return *g.fitness, true
}

// SetFitness stores the score of this genome's run. It can only be set once.
func (g *Genome) SetFitness(f fitness.Fitness) error {
	if g.fitness != nil {
		return fmt.Errorf("%w: genome %s", ErrFitnessAlreadySet, g.id)
	}
	g.fitness = &f
	return nil
}

// CloneElite returns a new unscored genome with the same bits.
func (g *Genome) CloneElite() *Genome {
	return newGenome(g.layout, g.bits.Clone(), OriginElite)
}
