package evolution

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/fitness"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/genome"
)

// constantHook reports the same statistics for every genome.
func constantHook(distance, speed float64) RunHook {
	return func(context.Context, *genome.Genome) (fitness.RunStatistics, error) {
		return fitness.RunStatistics{MeanDistanceFromCenter: distance, MeanSpeed: speed}, nil
	}
}

// coefficientHook derives the statistics from the decoded coefficients, so the
// same bits always score the same. Cohesion is at least 1 and separation plus
// follow at least 1, the fitness is always finite.
func coefficientHook(_ context.Context, g *genome.Genome) (fitness.RunStatistics, error) {
	v := g.Values()
	return fitness.RunStatistics{
		CollisionCount:         uint(v[genome.Separation] * 2),
		MeanDistanceFromCenter: 7 + v[genome.Cohesion],
		MeanSpeed:              12 - v[genome.Separation] - v[genome.Follow],
	}, nil
}

func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.MemberCount = 10
	cfg.GenerationCount = 2
	cfg.EliteCount = 1
	cfg.RandomCount = 1
	cfg.MutationRate = 0.07
	cfg.Coefficients = []genome.CoefficientSpec{
		{Name: genome.Cohesion, Min: 1, Max: 5, Accuracy: 0.02},
		{Name: genome.Separation, Min: 1, Max: 5, Accuracy: 0.02},
		{Name: genome.Follow, Min: 0.5, Max: 5, Accuracy: 0.02},
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, hook RunHook) *Engine {
	t.Helper()
	e, err := New(cfg, hook, WithRand(rand.New(rand.NewPCG(2024, 1))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEngine_Scenario(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		e, err := New(scenarioConfig(), coefficientHook, WithRand(rand.New(rand.NewPCG(seed, seed+1))))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := e.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}

		pop := e.Population()
		if len(pop) != 10 {
			t.Fatalf("population size = %d; want 10", len(pop))
		}
		for _, g := range pop {
			if g.Len() != e.Layout().Len() {
				t.Fatalf("genome length %d; want %d", g.Len(), e.Layout().Len())
			}
			if _, ok := g.Fitness(); !ok {
				t.Fatal("final population has an unscored genome")
			}
		}

		history := e.History()
		if len(history) != 2 {
			t.Fatalf("history has %d generations; want 2", len(history))
		}
		if history[1].Best.Compare(history[0].Best) < 0 {
			t.Errorf("seed %d: best fitness dropped from %v to %v", seed, history[0].Best, history[1].Best)
		}

		best, ok := e.Best()
		if !ok || best != pop[0] {
			t.Error("Best should be the head of the final sorted population")
		}
		for i := 1; i < len(pop); i++ {
			a, _ := pop[i-1].Fitness()
			b, _ := pop[i].Fitness()
			if a.Compare(b) < 0 {
				t.Fatalf("population not sorted at %d: %v before %v", i, a, b)
			}
		}
		if st := e.Status(); st.Phase != PhaseDone || st.MemberRuns != 20 {
			t.Errorf("Status = %+v; want done after 20 runs", st)
		}
	}
}

func TestEngine_BreedingComposition(t *testing.T) {
	cfg := scenarioConfig()
	cfg.ScoreHold, cfg.GenerationHold = 0, 0
	e := newTestEngine(t, cfg, coefficientHook)
	ctx := context.Background()

	// one run duration per member of the first generation
	if err := e.Advance(ctx, 10*cfg.RunDuration); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	st := e.Status()
	if st.Generation != 2 || st.Phase != PhaseRunning || st.Member != 1 {
		t.Fatalf("Status = %+v; want first member of generation 2 running", st)
	}

	pop := e.Population()
	counts := map[genome.Origin]int{}
	for _, g := range pop {
		counts[g.Origin()]++
	}
	if counts[genome.OriginElite] != 1 || counts[genome.OriginOffspring] != 8 || counts[genome.OriginRandom] != 1 {
		t.Errorf("origins = %v; want 1 elite, 8 offspring, 1 random", counts)
	}
	if pop[0].Origin() != genome.OriginElite || pop[0].String() != e.History()[0].BestGenome {
		t.Error("the elite is not the best genome of the previous generation")
	}
	if _, ok := pop[0].Fitness(); ok {
		t.Error("the elite copy should be re-scored")
	}
}

func TestEngine_AdvanceTiming(t *testing.T) {
	cfg := scenarioConfig()
	cfg.RunDuration = 3 * time.Second
	cfg.ScoreHold = 2 * time.Second
	cfg.GenerationHold = 2 * time.Second

	calls := 0
	hook := func(ctx context.Context, g *genome.Genome) (fitness.RunStatistics, error) {
		calls++
		return coefficientHook(ctx, g)
	}
	e := newTestEngine(t, cfg, hook)
	ctx := context.Background()

	steps := []struct {
		elapsed    time.Duration
		wantPhase  Phase
		wantMember int
		wantCalls  int
	}{
		{0, PhaseRunning, 1, 0},
		{2900 * time.Millisecond, PhaseRunning, 1, 0},
		{100 * time.Millisecond, PhaseScoring, 1, 1},
		{1900 * time.Millisecond, PhaseScoring, 1, 1},
		{100 * time.Millisecond, PhaseRunning, 2, 1},
		// leftover time carries into the next phases
		{9 * time.Second, PhaseScoring, 3, 3},
		// rest of the hold, 7 more members, then most of the generation hold
		{time.Second + 7*5*time.Second + 1900*time.Millisecond, PhaseSorting, 10, 10},
		{100 * time.Millisecond, PhaseRunning, 1, 10},
	}
	for i, s := range steps {
		if err := e.Advance(ctx, s.elapsed); err != nil {
			t.Fatalf("step %d: Advance: %v", i, err)
		}
		st := e.Status()
		if st.Phase != s.wantPhase || st.Member != s.wantMember || calls != s.wantCalls {
			t.Fatalf("step %d: phase=%v member=%d calls=%d; want %v %d %d",
				i, st.Phase, st.Member, calls, s.wantPhase, s.wantMember, s.wantCalls)
		}
	}
	if st := e.Status(); st.Generation != 2 {
		t.Errorf("Generation = %d; want 2", st.Generation)
	}
}

func TestEngine_HookErrorDiscardsRun(t *testing.T) {
	cfg := scenarioConfig()
	errBoom := errors.New("boom")
	fail := true
	hook := func(ctx context.Context, g *genome.Genome) (fitness.RunStatistics, error) {
		if fail {
			return fitness.RunStatistics{}, errBoom
		}
		return coefficientHook(ctx, g)
	}
	e := newTestEngine(t, cfg, hook)
	ctx := context.Background()

	if err := e.Advance(ctx, cfg.RunDuration); !errors.Is(err, errBoom) {
		t.Fatalf("Advance error = %v; want boom", err)
	}
	st := e.Status()
	if st.Phase != PhaseRunning || st.Member != 1 || st.InPhase != 0 || st.MemberRuns != 0 || st.HasFitness {
		t.Fatalf("Status after failed run = %+v", st)
	}

	fail = false
	if err := e.Advance(ctx, cfg.RunDuration-time.Second); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if st := e.Status(); st.Phase != PhaseRunning {
		t.Fatalf("the member run should restart from zero, phase = %v", st.Phase)
	}
	if err := e.Advance(ctx, time.Second); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if st := e.Status(); st.Phase != PhaseScoring || !st.HasFitness || st.MemberRuns != 1 {
		t.Fatalf("Status = %+v; want the first member scored", st)
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	e := newTestEngine(t, scenarioConfig(), coefficientHook)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Advance(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Advance error = %v; want context.Canceled", err)
	}
	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v; want context.Canceled", err)
	}
}

func TestEngine_MaximalFitness(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Selection = SelectionRoulette
	e := newTestEngine(t, cfg, constantHook(7, 12))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := e.Status()
	if !st.HasBest || !st.BestFitness.IsMaximal() {
		t.Errorf("BestFitness = %v; want maximal", st.BestFitness)
	}
	h := e.History()
	if h[0].MaximalCount != 10 || h[0].Mean != 0 {
		t.Errorf("summary = %+v; want 10 maximal members and no finite mean", h[0])
	}
}

func TestEngine_Status(t *testing.T) {
	cfg := scenarioConfig()
	cfg.ScoreHold = time.Second
	e := newTestEngine(t, cfg, constantHook(9, 10)) // fitness 1/(2*2)
	ctx := context.Background()

	if st := e.Status(); st.Phase != PhaseSeeding || st.Genome != "" {
		t.Errorf("initial Status = %+v", st)
	}
	_ = e.Advance(ctx, cfg.RunDuration)
	st := e.Status()
	if st.Phase != PhaseScoring || !st.HasFitness || st.Fitness.Value() != 0.25 {
		t.Fatalf("Status = %+v", st)
	}
	if len(st.Genome) != int(e.Layout().Len()) || len(st.Coefficients) != 3 {
		t.Errorf("Status genome %q coefficients %v", st.Genome, st.Coefficients)
	}
	_ = e.Advance(ctx, cfg.ScoreHold+cfg.RunDuration)
	st = e.Status()
	if st.Member != 2 || st.AverageFitness != 0.25 || st.BestFitness.Value() != 0.25 {
		t.Errorf("Status = %+v", st)
	}
}

func TestNew_NoHook(t *testing.T) {
	if _, err := New(DefaultConfig(), nil); !errors.Is(err, ErrNoRunHook) {
		t.Errorf("New(nil hook) error = %v; want ErrNoRunHook", err)
	}
}
