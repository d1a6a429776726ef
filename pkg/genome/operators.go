package genome

import (
	"fmt"
	"math/rand/v2"

	"github.com/bits-and-blooms/bitset"
)

// SplitLengths draws numSplits segment lengths, each in [0, length/numSplits).
// Their sum is always below length, the remainder forms a final segment.
func SplitLengths(rng *rand.Rand, length uint, numSplits int) []uint {
	if numSplits < 1 {
		numSplits = 1
	}
	lengths := make([]uint, numSplits)
	for i := range lengths {
		lengths[i] = uint(rng.Float64() / float64(numSplits) * float64(length))
	}
	return lengths
}

// Crossover cuts both parents into numSplits random segments plus a remainder
// and alternates the source parent per segment. The first child starts from a,
// the second from b, so every position of the children holds exactly the two
// parent bits at that position.
func Crossover(rng *rand.Rand, a, b *Genome, numSplits int) (*Genome, *Genome, error) {
	return CrossoverAt(a, b, SplitLengths(rng, a.Len(), numSplits))
}

// CrossoverAt is Crossover with explicit segment lengths.
func CrossoverAt(a, b *Genome, segments []uint) (*Genome, *Genome, error) {
	if a.Len() != b.Len() {
		return nil, nil, fmt.Errorf("%w: parents of %d and %d bits", ErrLengthMismatch, a.Len(), b.Len())
	}
	length := a.Len()
	var total uint
	for _, s := range segments {
		total += s
	}
	if total > length {
		return nil, nil, fmt.Errorf("%w: segments cover %d of %d bits", ErrLengthMismatch, total, length)
	}

	parents := [2]*bitset.BitSet{a.bits, b.bits}
	first, second := bitset.New(length), bitset.New(length)

	pos := uint(0)
	copySegment := func(segment int, end uint) {
		src0, src1 := parents[segment%2], parents[(segment+1)%2]
		for ; pos < end; pos++ {
			first.SetTo(pos, src0.Test(pos))
			second.SetTo(pos, src1.Test(pos))
		}
	}
	for i, s := range segments {
		copySegment(i, pos+s)
	}
	copySegment(len(segments), length)

	return newGenome(a.layout, first, OriginOffspring), newGenome(a.layout, second, OriginOffspring), nil
}

// Mutate returns a copy of g where every bit flipped independently with
// probability rate. A rate of 0 copies g, a rate of 1 inverts it.
func Mutate(rng *rand.Rand, g *Genome, rate float64) *Genome {
	bits := g.bits.Clone()
	for i := uint(0); i < g.Len(); i++ {
		if rng.Float64() < rate {
			bits.Flip(i)
		}
	}
	return newGenome(g.layout, bits, OriginOffspring)
}
