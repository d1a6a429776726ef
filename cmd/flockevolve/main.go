package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-evolution/internal/flock"
	"github.com/lao-tseu-is-alive/go-flock-evolution/internal/simulation"
	"github.com/lao-tseu-is-alive/go-flock-evolution/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/evolution"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/fitness"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/genome"
)

type options struct {
	configPath  string
	generations int
	members     int
	seed        uint64
	metricsAddr string
	fixed       string
	replay      string
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "JSON config file, defaults are used when empty")
	flag.IntVar(&opts.generations, "generations", 0, "override the generation count")
	flag.IntVar(&opts.members, "members", 0, "override the member count")
	flag.Uint64Var(&opts.seed, "seed", 0, "override the evolution seed, 0 keeps the config value")
	flag.StringVar(&opts.metricsAddr, "metrics", "", "serve Prometheus metrics on this address, e.g. :9100")
	flag.StringVar(&opts.fixed, "fixed", "", "skip the evolution and fly one run with cohesion,separation,follow coefficients")
	flag.StringVar(&opts.replay, "genome", "", "skip the evolution and fly one run with this genome bit string")
	flag.BoolVar(&opts.verbose, "verbose", false, "log every member run")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, w io.Writer) (err error) {
	level := log.InfoLevel
	if opts.verbose {
		level = log.DebugLevel
	}
	logger := log.New(level, w)

	cfg := simulation.DefaultConfig()
	if opts.configPath != "" {
		if cfg, err = simulation.LoadConfig(opts.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if opts.generations > 0 {
		cfg.Evolution.GenerationCount = opts.generations
	}
	if opts.members > 0 {
		cfg.Evolution.MemberCount = opts.members
	}
	if opts.seed != 0 {
		cfg.Evolution.Seed = opts.seed
	}

	switch {
	case opts.fixed != "":
		return runFixed(ctx, w, cfg, opts.fixed, logger)
	case opts.replay != "":
		return runGenome(ctx, w, cfg, opts.replay, logger)
	}

	var metrics *telemetry.Metrics
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if metrics, err = telemetry.NewMetrics(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		srv := serveMetrics(opts.metricsAddr, reg, logger)
		defer func() {
			if shutdownErr := srv.Shutdown(context.Background()); shutdownErr != nil {
				err = errors.Join(err, fmt.Errorf("metrics server shutdown: %w", shutdownErr))
			}
		}()
	}
	return evolve(ctx, w, cfg, logger, metrics)
}

func evolve(ctx context.Context, w io.Writer, cfg *simulation.Config, logger log.Logger, metrics *telemetry.Metrics) (err error) {
	session, err := simulation.NewSession(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := session.Stop(context.Background()); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("stop actor system: %w", stopErr))
		}
	}()

	lastRuns := 0
	start := time.Now()
	err = session.Run(ctx, func(r simulation.Report) {
		if r.MemberRuns == lastRuns {
			return
		}
		lastRuns = r.MemberRuns
		best := r.BestFitness
		if best == "" {
			best = "-"
		}
		fmt.Fprintf(w, "gen %d/%d member %d/%d phase %-10s runs %4d avg %.4f best %s\n",
			r.Generation, r.GenerationCount, r.Member, r.MemberCount, r.Phase,
			r.MemberRuns, r.AverageFitness, best)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	engine := session.Engine()
	printHistory(w, engine.History(), engine.Layout().Names())
	if g, ok := engine.Best(); ok {
		f, _ := g.Fitness()
		fmt.Fprintf(w, "best genome %s fitness %s coefficients %s\n", g, f, behavior.CoefficientsFromGenome(g))
	}
	logger.Infof("evolution finished after %s (%d member runs)", time.Since(start).Round(time.Millisecond), lastRuns)
	return nil
}

func printHistory(w io.Writer, history []evolution.GenerationSummary, names []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Generations")
	header := table.Row{"Gen", "Best", "Mean", "StdDev", "Maximal"}
	for _, name := range names {
		header = append(header, name)
	}
	t.AppendHeader(append(header, "Collisions", "Distance", "Speed"))
	for _, s := range history {
		row := table.Row{
			s.Generation,
			s.Best.String(),
			fmt.Sprintf("%.4f", s.Mean),
			fmt.Sprintf("%.4f", s.StdDev),
			s.MaximalCount,
		}
		for _, name := range names {
			row = append(row, fmt.Sprintf("%.3f", s.BestCoefficients[name]))
		}
		t.AppendRow(append(row,
			s.BestStatistics.CollisionCount,
			fmt.Sprintf("%.2f", s.BestStatistics.MeanDistanceFromCenter),
			fmt.Sprintf("%.2f", s.BestStatistics.MeanSpeed),
		))
	}
	t.Render()
}

// runFixed flies the harness once with fixed coefficients, no evolution involved.
func runFixed(ctx context.Context, w io.Writer, cfg *simulation.Config, spec string, logger log.Logger) error {
	coeffs, err := parseCoefficients(spec)
	if err != nil {
		return err
	}
	runner, runDuration := newRunner(cfg, logger)
	stats, err := runner.Simulate(ctx, coeffs, cfg.Flock.Seed)
	if err != nil {
		return err
	}
	printRun(w, "Fixed Coefficients", table.Row{"Coefficients", coeffs.String()}, runDuration, stats, cfg.Fitness.Score(stats))
	return nil
}

// runGenome replays one genome printed by a previous evolution. Runs are seeded
// from the genome bits, so the score matches the one it got during the evolution.
func runGenome(ctx context.Context, w io.Writer, cfg *simulation.Config, bits string, logger log.Logger) error {
	engineCfg, _ := cfg.EngineConfig().Normalize()
	layout, err := genome.NewLayout(engineCfg.Coefficients)
	if err != nil {
		return fmt.Errorf("coefficient layout: %w", err)
	}
	g, err := genome.Parse(layout, strings.TrimSpace(bits))
	if err != nil {
		return fmt.Errorf("parse genome: %w", err)
	}
	runner, runDuration := newRunner(cfg, logger)
	stats, err := runner.Run(ctx, g)
	if err != nil {
		return err
	}
	values := g.Values()
	parts := make([]string, 0, len(values))
	for _, name := range layout.Names() {
		parts = append(parts, fmt.Sprintf("%s %.3f", name, values[name]))
	}
	printRun(w, "Genome "+g.String(), table.Row{"Coefficients", strings.Join(parts, ", ")}, runDuration, stats, cfg.Fitness.Score(stats))
	return nil
}

func newRunner(cfg *simulation.Config, logger log.Logger) (*flock.Runner, time.Duration) {
	normalized, _ := cfg.EngineConfig().Normalize()
	return flock.NewRunner(cfg.Flock, normalized.RunDuration, flock.WithLogger(logger)), normalized.RunDuration
}

func printRun(w io.Writer, title string, coefficients table.Row, runDuration time.Duration, stats fitness.RunStatistics, score fitness.Fitness) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendRows([]table.Row{
		coefficients,
		{"Run duration", runDuration},
		{"Collisions", stats.CollisionCount},
		{"Mean distance from center", fmt.Sprintf("%.3f", stats.MeanDistanceFromCenter)},
		{"Mean speed", fmt.Sprintf("%.3f", stats.MeanSpeed)},
		{"Fitness", score.String()},
	})
	t.Render()
}

func parseCoefficients(s string) (behavior.Coefficients, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return behavior.Coefficients{}, fmt.Errorf("want cohesion,separation,follow, got %q", s)
	}
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return behavior.Coefficients{}, fmt.Errorf("coefficient %d: %w", i+1, err)
		}
		values[i] = v
	}
	return behavior.Coefficients{Cohesion: values[0], Separation: values[1], Follow: values[2]}, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()
	logger.Infof("serving metrics on %s/metrics", addr)
	return srv
}
