package simulation

import (
	"fmt"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/lao-tseu-is-alive/go-flock-evolution/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/evolution"
)

// EvolutionActor owns an evolution engine and advances it on behalf of an
// external scheduler:
//   - *durationpb.Duration advances the engine by that much simulated time
//   - *emptypb.Empty asks for the current status, answered as *structpb.Struct
type EvolutionActor struct {
	engine  *evolution.Engine
	metrics *telemetry.Metrics // optional

	observedGenerations int
}

// NewEvolutionActor builds the engine right away so that configuration errors
// surface before anything is spawned. metrics may be nil.
func NewEvolutionActor(cfg evolution.Config, hook evolution.RunHook, metrics *telemetry.Metrics, opts ...evolution.Option) (*EvolutionActor, error) {
	engine, err := evolution.New(cfg, hook, opts...)
	if err != nil {
		return nil, err
	}
	return &EvolutionActor{engine: engine, metrics: metrics}, nil
}

// Engine gives read access to history and population; its accessors are safe
// to call from any goroutine.
func (a *EvolutionActor) Engine() *evolution.Engine {
	return a.engine
}

func (a *EvolutionActor) PreStart(ctx *actor.Context) error {
	cfg := a.engine.Config()
	logger := ctx.ActorSystem().Logger()
	logger.Infof("Evolution of %d members over %d generations, %d-bit genomes",
		cfg.MemberCount, cfg.GenerationCount, a.engine.Layout().Len())
	for _, c := range a.engine.Layout().Coefficients() {
		logger.Infof("  %s: %d bits, step %g, decodes to [%g, %g]",
			c.Spec.Name, c.BitLength, c.Resolution, c.Offset(), c.UpperBound())
	}
	return nil
}

func (a *EvolutionActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Infof("%s started", ctx.Self().Name())

	case *durationpb.Duration:
		if err := a.engine.Advance(ctx.Context(), msg.AsDuration()); err != nil {
			// the engine already discarded the member run, the next advance retries it
			ctx.Logger().Warnf("advance by %s: %v", msg.AsDuration(), err)
		}
		a.observe()

	case *emptypb.Empty:
		report, err := EncodeStatus(a.engine.Status())
		if err != nil {
			ctx.Err(fmt.Errorf("encode status: %w", err))
			return
		}
		ctx.Response(report)

	default:
		ctx.Unhandled()
	}
}

func (a *EvolutionActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Info("Evolution actor is shutdown...")
	return nil
}

// observe pushes the new engine state to the metrics.
func (a *EvolutionActor) observe() {
	if a.metrics == nil {
		return
	}
	a.metrics.ObserveStatus(a.engine.Status())
	history := a.engine.History()
	for _, s := range history[a.observedGenerations:] {
		a.metrics.ObserveGeneration(s)
	}
	a.observedGenerations = len(history)
}
