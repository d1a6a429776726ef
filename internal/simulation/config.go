package simulation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lao-tseu-is-alive/go-flock-evolution/internal/flock"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/evolution"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/fitness"
	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/genome"
)

//go:embed config.schema.json
var configSchema string

// EvolutionConfig is the JSON form of evolution.Config, durations in seconds.
type EvolutionConfig struct {
	MemberCount           int                      `json:"memberCount"`
	GenerationCount       int                      `json:"generationCount"`
	EliteCount            int                      `json:"eliteCount"`
	RandomCount           int                      `json:"randomCount"`
	MutationRate          float64                  `json:"mutationRate"`
	NumSplits             int                      `json:"numSplits"`
	Selection             string                   `json:"selection"`
	RunSeconds            float64                  `json:"runSeconds"`
	ScoreHoldSeconds      float64                  `json:"scoreHoldSeconds"`
	GenerationHoldSeconds float64                  `json:"generationHoldSeconds"`
	Seed                  uint64                   `json:"seed"` // 0 draws a random seed
	Coefficients          []genome.CoefficientSpec `json:"coefficients"`
}

type Config struct {
	Evolution EvolutionConfig   `json:"evolution"`
	Flock     flock.Config      `json:"flock"`
	Fitness   fitness.Evaluator `json:"fitness"`
}

func DefaultConfig() *Config {
	evo := evolution.DefaultConfig()
	return &Config{
		Evolution: EvolutionConfig{
			MemberCount:           evo.MemberCount,
			GenerationCount:       evo.GenerationCount,
			EliteCount:            evo.EliteCount,
			RandomCount:           evo.RandomCount,
			MutationRate:          evo.MutationRate,
			NumSplits:             evo.NumSplits,
			Selection:             evo.Selection,
			RunSeconds:            evo.RunDuration.Seconds(),
			ScoreHoldSeconds:      evo.ScoreHold.Seconds(),
			GenerationHoldSeconds: evo.GenerationHold.Seconds(),
			Coefficients:          evo.Coefficients,
		},
		Flock:   flock.DefaultConfig(),
		Fitness: fitness.DefaultEvaluator(),
	}
}

// EngineConfig converts the JSON section into an evolution.Config.
func (c *Config) EngineConfig() evolution.Config {
	e := c.Evolution
	return evolution.Config{
		MemberCount:     e.MemberCount,
		GenerationCount: e.GenerationCount,
		EliteCount:      e.EliteCount,
		RandomCount:     e.RandomCount,
		MutationRate:    e.MutationRate,
		NumSplits:       e.NumSplits,
		Selection:       e.Selection,
		RunDuration:     seconds(e.RunSeconds),
		ScoreHold:       seconds(e.ScoreHoldSeconds),
		GenerationHold:  seconds(e.GenerationHoldSeconds),
		Coefficients:    e.Coefficients,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LoadConfig loads configuration from a JSON file and validates it against the
// embedded schema. Fields missing from the file keep their default value.
func LoadConfig(configFile string) (*Config, error) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return ParseConfig(b)
}

// ParseConfig validates and decodes a JSON document.
func ParseConfig(data []byte) (*Config, error) {
	// 1. Compile Schema
	sch, err := jsonschema.CompileString("config.schema.json", configSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	// 2. Validate
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 3. Unmarshal over the defaults
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
