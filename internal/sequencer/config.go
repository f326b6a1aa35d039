package sequencer

import (
	"math"
	"strings"

	"github.com/mind-engage/mindengage-sequencer/internal/seed"
)

type Strategy string

const (
	SimpleRandom  Strategy = "simple_random"
	Stratified    Strategy = "stratified"
	Deterministic Strategy = "deterministic"
	Adaptive      Strategy = "adaptive"
	TemplateBased Strategy = "template_based"
	Balanced      Strategy = "balanced"
)

type Template string

const (
	EasyToHard            Template = "easy_to_hard"
	HardToEasy            Template = "hard_to_easy"
	MixedDifficulty       Template = "mixed_difficulty"
	TopicGrouped          Template = "topic_grouped"
	AlternatingDifficulty Template = "alternating_difficulty"
	CognitiveProgression  Template = "cognitive_progression"
)

var knownTemplates = map[Template]bool{
	EasyToHard: true, HardToEasy: true, MixedDifficulty: true,
	TopicGrouped: true, AlternatingDifficulty: true, CognitiveProgression: true,
}

type StrataKey string

const (
	StrataDifficulty StrataKey = "difficulty"
	StrataTopic      StrataKey = "topic"
	StrataBoth       StrataKey = "both"
)

type RuleKind string

const (
	// RuleBefore requires Questions[i] before Questions[i+1] for every i.
	RuleBefore RuleKind = "before"
	// RuleNotAdjacent forbids any two members of Questions from being neighbours.
	RuleNotAdjacent RuleKind = "not_adjacent"
)

type BlockingRule struct {
	Kind      RuleKind `json:"kind" yaml:"kind"`
	Questions []string `json:"questions" yaml:"questions"`
}

// DefaultAdaptiveThreshold is the score below which a category counts as weak.
const DefaultAdaptiveThreshold = 0.6

// Config is the resolved randomization configuration of one sequencing call.
type Config struct {
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	Template Template `json:"template,omitempty" yaml:"template,omitempty"`

	// AnchorPositions maps a question id or a category to a 1-based position.
	AnchorPositions map[string]int `json:"anchor_positions,omitempty" yaml:"anchor_positions,omitempty"`
	BlockingRules   []BlockingRule `json:"blocking_rules,omitempty" yaml:"blocking_rules,omitempty"`

	StrataKey        StrataKey `json:"strata_key,omitempty" yaml:"strata_key,omitempty"`
	RandomnessFactor float64   `json:"randomness_factor" yaml:"randomness_factor"`

	PreventRepetition     bool `json:"prevent_repetition" yaml:"prevent_repetition"`
	LookbackSessions      int  `json:"lookback_sessions" yaml:"lookback_sessions"`
	MinGapBetweenExposure int  `json:"min_gap_between_exposure" yaml:"min_gap_between_exposure"`
	MinPoolSize           int  `json:"min_pool_size" yaml:"min_pool_size"`

	TimeBasedSeed bool        `json:"time_based_seed" yaml:"time_based_seed"`
	TimeWindow    seed.Window `json:"time_window,omitempty" yaml:"time_window,omitempty"`
	Salt          string      `json:"salt,omitempty" yaml:"salt,omitempty"`

	EnableAnswerRandomization bool  `json:"enable_answer_randomization" yaml:"enable_answer_randomization"`
	PreserveAnswerPositions   []int `json:"preserve_answer_positions,omitempty" yaml:"preserve_answer_positions,omitempty"`

	AdaptiveThreshold float64 `json:"adaptive_threshold,omitempty" yaml:"adaptive_threshold,omitempty"`
	// Performance is the learner's recent average score per category (0..1),
	// supplied by the caller for the adaptive strategy.
	Performance map[string]float64 `json:"performance,omitempty" yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Strategy:                  SimpleRandom,
		StrataKey:                 StrataDifficulty,
		LookbackSessions:          5,
		MinGapBetweenExposure:     2,
		MinPoolSize:               1,
		TimeWindow:                seed.Daily,
		EnableAnswerRandomization: true,
		AdaptiveThreshold:         DefaultAdaptiveThreshold,
	}
}

// Validate reports the first problem found as a *ConfigurationError.
func (c Config) Validate() error {
	switch c.Strategy {
	case SimpleRandom, Stratified, Deterministic, Adaptive, Balanced:
	case TemplateBased:
		if !knownTemplates[c.Template] {
			return configErr("template", "unknown template %q", c.Template)
		}
	default:
		return configErr("strategy", "unknown strategy %q", c.Strategy)
	}
	if c.Template != "" && !knownTemplates[c.Template] {
		return configErr("template", "unknown template %q", c.Template)
	}
	switch c.StrataKey {
	case "", StrataDifficulty, StrataTopic, StrataBoth:
	default:
		return configErr("strata_key", "unknown strata key %q", c.StrataKey)
	}
	if math.IsNaN(c.RandomnessFactor) || c.RandomnessFactor < 0 || c.RandomnessFactor > 1 {
		return configErr("randomness_factor", "must be within [0, 1], got %v", c.RandomnessFactor)
	}
	for key, pos := range c.AnchorPositions {
		if strings.TrimSpace(key) == "" {
			return configErr("anchor_positions", "empty anchor key")
		}
		if pos < 1 {
			return configErr("anchor_positions", "position for %q must be >= 1, got %d", key, pos)
		}
	}
	for i, r := range c.BlockingRules {
		if r.Kind != RuleBefore && r.Kind != RuleNotAdjacent {
			return configErr("blocking_rules", "rule %d: unknown kind %q", i, r.Kind)
		}
		if len(r.Questions) < 2 {
			return configErr("blocking_rules", "rule %d: needs at least two questions", i)
		}
	}
	if c.LookbackSessions < 0 {
		return configErr("lookback_sessions", "must be >= 0")
	}
	if c.MinGapBetweenExposure < 0 {
		return configErr("min_gap_between_exposure", "must be >= 0")
	}
	if c.MinPoolSize < 0 {
		return configErr("min_pool_size", "must be >= 0")
	}
	if c.TimeBasedSeed || c.Strategy == Deterministic {
		if _, err := seed.ParseWindow(string(c.window())); err != nil {
			return configErr("time_window", "%v", err)
		}
	}
	for _, p := range c.PreserveAnswerPositions {
		if p < 0 {
			return configErr("preserve_answer_positions", "index %d out of bounds", p)
		}
	}
	if math.IsNaN(c.AdaptiveThreshold) || c.AdaptiveThreshold < 0 || c.AdaptiveThreshold > 1 {
		return configErr("adaptive_threshold", "must be within [0, 1], got %v", c.AdaptiveThreshold)
	}
	return nil
}

func (c Config) window() seed.Window {
	if c.TimeWindow == "" {
		return seed.Daily
	}
	return c.TimeWindow
}

// Window returns the effective time window.
func (c Config) Window() seed.Window { return c.window() }

// UsesTimeSeed reports whether the seed must come from the time bucket. The
// deterministic strategy always does, regardless of TimeBasedSeed.
func (c Config) UsesTimeSeed() bool {
	return c.TimeBasedSeed || c.Strategy == Deterministic
}

func (c Config) strata() StrataKey {
	if c.StrataKey == "" {
		return StrataDifficulty
	}
	return c.StrataKey
}

func (c Config) threshold() float64 {
	if c.AdaptiveThreshold == 0 {
		return DefaultAdaptiveThreshold
	}
	return c.AdaptiveThreshold
}

// clone deep-copies maps and slices so merged configs never alias defaults.
func (c Config) clone() Config {
	out := c
	if c.AnchorPositions != nil {
		out.AnchorPositions = make(map[string]int, len(c.AnchorPositions))
		for k, v := range c.AnchorPositions {
			out.AnchorPositions[k] = v
		}
	}
	if c.BlockingRules != nil {
		out.BlockingRules = make([]BlockingRule, len(c.BlockingRules))
		for i, r := range c.BlockingRules {
			out.BlockingRules[i] = BlockingRule{Kind: r.Kind, Questions: append([]string(nil), r.Questions...)}
		}
	}
	if c.PreserveAnswerPositions != nil {
		out.PreserveAnswerPositions = append([]int(nil), c.PreserveAnswerPositions...)
	}
	if c.Performance != nil {
		out.Performance = make(map[string]float64, len(c.Performance))
		for k, v := range c.Performance {
			out.Performance[k] = v
		}
	}
	return out
}
