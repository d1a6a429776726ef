package genome

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/fitness"
)

func newTestRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func mustLayout(t testing.TB, specs []CoefficientSpec) *Layout {
	t.Helper()
	l, err := NewLayout(specs)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return l
}

func TestDeriveLength(t *testing.T) {
	tests := []struct {
		name           string
		min, max, acc  float64
		wantLen        int
		wantResolution float64
	}{
		{"cohesion spec shrinks accuracy once", 1, 5, 0.02, 8, 0.018},
		{"separation spec fits directly", 0.5, 5, 0.02, 8, 0.02},
		{"exact power of two", 0, 1, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLen, gotRes, err := DeriveLength(tt.min, tt.max, tt.acc)
			if err != nil {
				t.Fatalf("DeriveLength returned error %v", err)
			}
			if gotLen != tt.wantLen {
				t.Errorf("length = %d; want %d", gotLen, tt.wantLen)
			}
			if math.Abs(gotRes-tt.wantResolution) > 1e-12 {
				t.Errorf("resolution = %v; want %v", gotRes, tt.wantResolution)
			}
		})
	}
}

func TestDeriveLength_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		min, max, acc float64
	}{
		{"zero range", 2, 2, 0.1},
		{"negative range", 5, 1, 0.1},
		{"zero accuracy", 0, 1, 0},
		{"negative accuracy", 0, 1, -0.5},
		{"NaN accuracy", 0, 1, math.NaN()},
		{"infinite range", 0, math.Inf(1), 0.1},
		{"too many bits", 0, 1e18, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DeriveLength(tt.min, tt.max, tt.acc)
			if !errors.Is(err, ErrInvalidCoefficientSpec) {
				t.Errorf("DeriveLength(%v, %v, %v) error = %v; want ErrInvalidCoefficientSpec", tt.min, tt.max, tt.acc, err)
			}
		})
	}
}

func TestDecode_BigEndian(t *testing.T) {
	bits := bitset.New(8)
	// 0000 0101 = 5
	bits.Set(5).Set(7)
	if got := DecodeUint(bits, 0, 8); got != 5 {
		t.Errorf("DecodeUint = %d; want 5", got)
	}
	if got := Decode(bits, 4, 4, 0.5, 1); got != 1+5*0.5 {
		t.Errorf("Decode = %v; want %v", got, 1+5*0.5)
	}
}

func TestDecode_RandomStaysInRange(t *testing.T) {
	rng := newTestRand(7)
	specs := []CoefficientSpec{
		{Name: "a", Min: 1, Max: 5, Accuracy: 0.02},
		{Name: "b", Min: 0.5, Max: 5, Accuracy: 0.02},
		{Name: "c", Min: -3, Max: 40, Accuracy: 0.7},
		{Name: "d", Min: 0, Max: 0.001, Accuracy: 0.0004},
	}
	for _, spec := range specs {
		c, err := NewCoefficient(spec)
		if err != nil {
			t.Fatalf("NewCoefficient(%+v): %v", spec, err)
		}
		upper := c.UpperBound()
		limit := rangeTolerance*(spec.Max-spec.Min) + spec.Min
		if upper > limit+1e-9 {
			t.Errorf("%s: upper bound %v exceeds %v", spec.Name, upper, limit)
		}
		for i := 0; i < 200; i++ {
			v := c.Decode(EncodeRandom(rng, uint(c.BitLength)), 0)
			if v < spec.Min || v > upper+1e-9 {
				t.Fatalf("%s: decoded %v outside [%v, %v]", spec.Name, v, spec.Min, upper)
			}
		}
	}
}

func TestNewLayout(t *testing.T) {
	l := mustLayout(t, DefaultSpecs())
	if l.Len() != 24 {
		t.Errorf("Len = %d; want 24", l.Len())
	}
	if got := strings.Join(l.Names(), ","); got != "cohesion,separation,follow" {
		t.Errorf("Names = %s", got)
	}

	_, err := NewLayout([]CoefficientSpec{{Name: "bad", Min: 1, Max: 1, Accuracy: 1}})
	if !errors.Is(err, ErrInvalidCoefficientSpec) {
		t.Errorf("NewLayout with bad spec error = %v", err)
	}
	_, err = NewLayout(nil)
	if !errors.Is(err, ErrInvalidCoefficientSpec) {
		t.Errorf("NewLayout(nil) error = %v", err)
	}
}

func TestGenome_NewFromBits(t *testing.T) {
	l := mustLayout(t, DefaultSpecs())

	if _, err := NewFromBits(l, bitset.New(l.Len()-1)); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("short bit string error = %v; want ErrLengthMismatch", err)
	}
	if _, err := NewFromBits(l, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("nil bit string error = %v; want ErrLengthMismatch", err)
	}

	src := bitset.New(l.Len())
	src.Set(0)
	g, err := NewFromBits(l, src)
	if err != nil {
		t.Fatalf("NewFromBits: %v", err)
	}
	src.Set(1)
	if g.bits.Test(1) {
		t.Error("genome aliases the caller's bit set")
	}
}

func TestGenome_DecodeAll(t *testing.T) {
	l := mustLayout(t, DefaultSpecs())
	// cohesion 00000010, separation 00000001, follow 11111111
	g, err := Parse(l, "00000010"+"00000001"+"11111111")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	coeffs := l.Coefficients()
	want := []float64{
		1 + 2*coeffs[0].Resolution,
		0.5 + 1*coeffs[1].Resolution,
		0.5 + 255*coeffs[2].Resolution,
	}
	first := g.DecodeAll()
	for i := range want {
		if math.Abs(first[i]-want[i]) > 1e-12 {
			t.Errorf("coefficient %d = %v; want %v", i, first[i], want[i])
		}
	}
	second := g.DecodeAll()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("DecodeAll is not idempotent at %d: %v vs %v", i, first[i], second[i])
		}
	}
	if g.String() != "000000100000000111111111" {
		t.Errorf("String = %s; decoding mutated the bits", g.String())
	}
	if v := g.Values()[Follow]; v != first[2] {
		t.Errorf("Values()[follow] = %v; want %v", v, first[2])
	}
}

func TestGenome_RoundTripFromBits(t *testing.T) {
	l := mustLayout(t, DefaultSpecs())
	rng := newTestRand(3)
	src := NewRandom(rng, l)
	a, _ := NewFromBits(l, src.Bits())
	b, _ := NewFromBits(l, src.Bits())
	av, bv := a.DecodeAll(), b.DecodeAll()
	for i := range av {
		if av[i] != bv[i] {
			t.Fatalf("decode differs at %d: %v vs %v", i, av[i], bv[i])
		}
	}
	if a.ID() == b.ID() {
		t.Error("genomes built from the same bits share an ID")
	}
}

func TestParse_Invalid(t *testing.T) {
	l := mustLayout(t, DefaultSpecs())
	if _, err := Parse(l, "0101"); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("short string error = %v", err)
	}
	if _, err := Parse(l, strings.Repeat("2", int(l.Len()))); err == nil {
		t.Error("expected an error for a non-binary character")
	}
}

func TestGenome_Fitness(t *testing.T) {
	g := NewRandom(newTestRand(1), mustLayout(t, DefaultSpecs()))
	if _, ok := g.Fitness(); ok {
		t.Fatal("a new genome should not have a fitness")
	}
	if err := g.SetFitness(fitness.Finite(2)); err != nil {
		t.Fatalf("SetFitness: %v", err)
	}
	if err := g.SetFitness(fitness.Finite(3)); !errors.Is(err, ErrFitnessAlreadySet) {
		t.Errorf("second SetFitness error = %v; want ErrFitnessAlreadySet", err)
	}
	if f, ok := g.Fitness(); !ok || f.Value() != 2 {
		t.Errorf("Fitness = %v, %v; want 2, true", f, ok)
	}
}

func TestGenome_CloneElite(t *testing.T) {
	g := NewRandom(newTestRand(9), mustLayout(t, DefaultSpecs()))
	_ = g.SetFitness(fitness.Finite(1))
	c := g.CloneElite()
	if !c.bits.Equal(g.bits) {
		t.Error("elite copy has different bits")
	}
	if c.ID() == g.ID() {
		t.Error("elite copy shares the original ID")
	}
	if _, ok := c.Fitness(); ok {
		t.Error("elite copy should start unscored")
	}
	if c.Origin() != OriginElite {
		t.Errorf("Origin = %v; want elite", c.Origin())
	}
}
