package evolution

import (
	"fmt"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-evolution/pkg/genome"
)

// MinRunDuration is the shortest run a member can be given.
const MinRunDuration = 2500 * time.Millisecond

type Config struct {
	// Population
	MemberCount     int `json:"memberCount"`
	GenerationCount int `json:"generationCount"`
	EliteCount      int `json:"eliteCount"`
	RandomCount     int `json:"randomCount"`

	// Breeding
	MutationRate float64 `json:"mutationRate"`
	NumSplits    int     `json:"numSplits"`
	Selection    string  `json:"selection"` // "roulette" or "rank"

	// Timing, driven by Engine.Advance
	RunDuration    time.Duration `json:"-"`
	ScoreHold      time.Duration `json:"-"` // pause after each member is scored
	GenerationHold time.Duration `json:"-"` // pause before the population is sorted

	Coefficients []genome.CoefficientSpec `json:"coefficients"`
}

func DefaultConfig() Config {
	return Config{
		MemberCount:     30,
		GenerationCount: 30,
		EliteCount:      3,
		RandomCount:     1,
		MutationRate:    0.07,
		NumSplits:       1,
		Selection:       SelectionRoulette,
		RunDuration:     10 * time.Second,
		ScoreHold:       2 * time.Second,
		GenerationHold:  2 * time.Second,
		Coefficients:    genome.DefaultSpecs(),
	}
}

// Normalize replaces every out-of-range value with its default and returns a
// description of each replacement. It never fails: coefficient specs are
// checked later, when the genome layout is derived.
func (c Config) Normalize() (Config, []string) {
	def := DefaultConfig()
	var replaced []string
	fallback := func(field string, got, want any) {
		replaced = append(replaced, fmt.Sprintf("%s %v is invalid, using %v", field, got, want))
	}

	if c.GenerationCount <= 0 {
		fallback("generationCount", c.GenerationCount, def.GenerationCount)
		c.GenerationCount = def.GenerationCount
	}
	if c.EliteCount < 0 {
		fallback("eliteCount", c.EliteCount, def.EliteCount)
		c.EliteCount = def.EliteCount
	}
	if c.RandomCount < 0 {
		fallback("randomCount", c.RandomCount, def.RandomCount)
		c.RandomCount = def.RandomCount
	}
	if c.MemberCount <= 3 || c.MemberCount <= c.EliteCount+c.RandomCount {
		fallback("memberCount", c.MemberCount, def.MemberCount)
		c.MemberCount = def.MemberCount
	}
	if c.MemberCount <= c.EliteCount+c.RandomCount {
		fallback("eliteCount+randomCount", c.EliteCount+c.RandomCount, def.EliteCount+def.RandomCount)
		c.EliteCount, c.RandomCount = def.EliteCount, def.RandomCount
	}
	if !(c.MutationRate >= 0 && c.MutationRate < 1) {
		fallback("mutationRate", c.MutationRate, def.MutationRate)
		c.MutationRate = def.MutationRate
	}
	if c.NumSplits < 1 {
		fallback("numSplits", c.NumSplits, def.NumSplits)
		c.NumSplits = def.NumSplits
	}
	if _, err := SelectorByName(c.Selection); err != nil {
		fallback("selection", fmt.Sprintf("%q", c.Selection), def.Selection)
		c.Selection = def.Selection
	}
	if c.RunDuration <= MinRunDuration {
		fallback("runDuration", c.RunDuration, def.RunDuration)
		c.RunDuration = def.RunDuration
	}
	if c.ScoreHold < 0 {
		fallback("scoreHold", c.ScoreHold, time.Duration(0))
		c.ScoreHold = 0
	}
	if c.GenerationHold < 0 {
		fallback("generationHold", c.GenerationHold, time.Duration(0))
		c.GenerationHold = 0
	}
	if len(c.Coefficients) == 0 {
		c.Coefficients = def.Coefficients
	}
	return c, replaced
}

// PairsPerGeneration is the number of crossovers performed when breeding.
func (c Config) PairsPerGeneration() int {
	return (c.MemberCount - c.EliteCount - c.RandomCount) / 2
}
