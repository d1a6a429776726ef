package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lao-tseu-is-alive/go-flock-evolution/internal/flock"
	"github.com/lao-tseu-is-alive/go-flock-evolution/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/evolution"
)

const askTimeout = time.Minute

// Session runs one evolution inside an actor system and plays the external
// clock: every Step advances simulated time by one member run plus its
// score hold, then polls the status.
type Session struct {
	System actor.ActorSystem
	pid    *actor.PID
	evo    *EvolutionActor
	step   time.Duration
}

// NewSession starts an actor system and spawns the evolution actor. metrics may be nil.
func NewSession(ctx context.Context, cfg *Config, logger log.Logger, metrics *telemetry.Metrics) (*Session, error) {
	engineCfg := cfg.EngineConfig()
	// the runner must fly exactly as long as the engine waits
	normalized, _ := engineCfg.Normalize()
	runner := flock.NewRunner(cfg.Flock, normalized.RunDuration, flock.WithLogger(logger))

	opts := []evolution.Option{
		evolution.WithLogger(logger),
		evolution.WithEvaluator(cfg.Fitness),
	}
	if seed := cfg.Evolution.Seed; seed != 0 {
		opts = append(opts, evolution.WithRand(rand.New(rand.NewPCG(seed, seed))))
	}
	evo, err := NewEvolutionActor(engineCfg, runner.Run, metrics, opts...)
	if err != nil {
		return nil, err
	}

	system, err := actor.NewActorSystem("FlockEvolution",
		actor.WithLogger(logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		return nil, fmt.Errorf("create actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		return nil, fmt.Errorf("start actor system: %w", err)
	}
	pid, err := system.Spawn(ctx, "evolution", evo)
	if err != nil {
		_ = system.Stop(ctx)
		return nil, fmt.Errorf("spawn evolution actor: %w", err)
	}
	return &Session{
		System: system,
		pid:    pid,
		evo:    evo,
		step:   normalized.RunDuration + normalized.ScoreHold,
	}, nil
}

func (s *Session) Engine() *evolution.Engine {
	return s.evo.Engine()
}

// Step advances the engine by one step and returns the resulting status.
func (s *Session) Step(ctx context.Context) (Report, error) {
	if err := s.System.NoSender().Tell(ctx, s.pid, durationpb.New(s.step)); err != nil {
		return Report{}, fmt.Errorf("advance: %w", err)
	}
	return s.Status(ctx)
}

func (s *Session) Status(ctx context.Context) (Report, error) {
	reply, err := s.System.NoSender().Ask(ctx, s.pid, &emptypb.Empty{}, askTimeout)
	if err != nil {
		return Report{}, fmt.Errorf("status: %w", err)
	}
	st, ok := reply.(*structpb.Struct)
	if !ok {
		return Report{}, fmt.Errorf("status: unexpected reply %T", reply)
	}
	return DecodeStatus(st), nil
}

// Run steps until the evolution is done or ctx is cancelled. observe, if not
// nil, sees every report.
func (s *Session) Run(ctx context.Context, observe func(Report)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := s.Step(ctx)
		if err != nil {
			return err
		}
		if observe != nil {
			observe(r)
		}
		if r.Done {
			return nil
		}
	}
}

func (s *Session) Stop(ctx context.Context) error {
	return s.System.Stop(ctx)
}
