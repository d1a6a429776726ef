package genome

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/bits-and-blooms/bitset"
)

const (
	// rangeTolerance is how far past the requested maximum the encodable range may reach.
	rangeTolerance = 1.25
	// accuracyStep shrinks the accuracy until the bit length fits the tolerance.
	accuracyStep = 0.9
	// maxDeriveIterations bounds DeriveLength on pathological inputs.
	maxDeriveIterations = 1000
	// MaxBitLength keeps decoded integers exactly representable in a float64 mantissa.
	MaxBitLength = 52
)

var (
	// ErrInvalidCoefficientSpec is returned for non-positive range or accuracy.
	ErrInvalidCoefficientSpec = errors.New("invalid coefficient spec")
	// ErrLengthMismatch is returned when a bit string does not match the layout length.
	ErrLengthMismatch = errors.New("genome length mismatch")
)

// CoefficientSpec defines one bounded, fixed-accuracy scalar to evolve.
type CoefficientSpec struct {
	Name     string  `json:"name"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Accuracy float64 `json:"accuracy"`
}

// Coefficient is a CoefficientSpec together with its derived encoding.
type Coefficient struct {
	Spec       CoefficientSpec
	BitLength  int
	Resolution float64 // possibly reduced accuracy, used as decode multiplier
}

// NewCoefficient derives the encoding of spec.
func NewCoefficient(spec CoefficientSpec) (Coefficient, error) {
	length, resolution, err := DeriveLength(spec.Min, spec.Max, spec.Accuracy)
	if err != nil {
		return Coefficient{}, fmt.Errorf("coefficient %q: %w", spec.Name, err)
	}
	return Coefficient{Spec: spec, BitLength: length, Resolution: resolution}, nil
}

// Offset is added to the scaled integer on decode.
func (c Coefficient) Offset() float64 {
	return c.Spec.Min
}

// UpperBound is the largest value the coefficient can decode to.
func (c Coefficient) UpperBound() float64 {
	return c.Offset() + (math.Exp2(float64(c.BitLength))-1)*c.Resolution
}

// Decode reads BitLength bits of bits starting at from.
func (c Coefficient) Decode(bits *bitset.BitSet, from uint) float64 {
	return Decode(bits, from, uint(c.BitLength), c.Resolution, c.Offset())
}

// DeriveLength returns the minimum number of bits needed to cover maxValue-minValue at the
// given accuracy, along with the accuracy actually used. The accuracy is shrunk
// in 10% steps until the encodable range stays within 125% of that range.
func DeriveLength(minValue, maxValue, accuracy float64) (int, float64, error) {
	span := maxValue - minValue
	if !(span > 0) || !(accuracy > 0) || math.IsInf(span, 0) || math.IsInf(accuracy, 0) {
		return 0, 0, fmt.Errorf("%w: range %v, accuracy %v", ErrInvalidCoefficientSpec, span, accuracy)
	}

	length := bitsFor(span, accuracy)
	for i := 0; (math.Exp2(float64(length))-1)*accuracy > span*rangeTolerance; i++ {
		if i >= maxDeriveIterations {
			return 0, 0, fmt.Errorf("%w: no bit length found for range %v", ErrInvalidCoefficientSpec, span)
		}
		accuracy *= accuracyStep
		length = bitsFor(span, accuracy)
	}
	if length < 1 || length > MaxBitLength {
		return 0, 0, fmt.Errorf("%w: %d bits needed, limit is %d", ErrInvalidCoefficientSpec, length, MaxBitLength)
	}
	return length, accuracy, nil
}

func bitsFor(span, accuracy float64) int {
	return int(math.Ceil(math.Log2(span/accuracy + 1)))
}

// Decode interprets length bits starting at from as an unsigned big-endian
// integer, multiplies it by resolution and adds offset.
func Decode(bits *bitset.BitSet, from, length uint, resolution, offset float64) float64 {
	return float64(DecodeUint(bits, from, length))*resolution + offset
}

// DecodeUint returns the unsigned big-endian integer held by the segment.
func DecodeUint(bits *bitset.BitSet, from, length uint) uint64 {
	var v uint64
	for i := from; i < from+length; i++ {
		v <<= 1
		if bits.Test(i) {
			v |= 1
		}
	}
	return v
}

// EncodeRandom returns length uniformly random bits.
func EncodeRandom(rng *rand.Rand, length uint) *bitset.BitSet {
	bits := bitset.New(length)
	for i := uint(0); i < length; i++ {
		if rng.IntN(2) == 1 {
			bits.Set(i)
		}
	}
	return bits
}
