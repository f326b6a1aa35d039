package sequencer

import "github.com/mind-engage/mindengage-sequencer/internal/seed"

// Overrides carries per-request changes to stored test-set defaults. A nil
// field leaves the default alone; a set field wins, field by field.
type Overrides struct {
	Strategy *Strategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Template *Template `json:"template,omitempty" yaml:"template,omitempty"`

	AnchorPositions map[string]int  `json:"anchor_positions,omitempty" yaml:"anchor_positions,omitempty"`
	BlockingRules   *[]BlockingRule `json:"blocking_rules,omitempty" yaml:"blocking_rules,omitempty"`

	StrataKey        *StrataKey `json:"strata_key,omitempty" yaml:"strata_key,omitempty"`
	RandomnessFactor *float64   `json:"randomness_factor,omitempty" yaml:"randomness_factor,omitempty"`

	PreventRepetition     *bool `json:"prevent_repetition,omitempty" yaml:"prevent_repetition,omitempty"`
	LookbackSessions      *int  `json:"lookback_sessions,omitempty" yaml:"lookback_sessions,omitempty"`
	MinGapBetweenExposure *int  `json:"min_gap_between_exposure,omitempty" yaml:"min_gap_between_exposure,omitempty"`
	MinPoolSize           *int  `json:"min_pool_size,omitempty" yaml:"min_pool_size,omitempty"`

	TimeBasedSeed *bool        `json:"time_based_seed,omitempty" yaml:"time_based_seed,omitempty"`
	TimeWindow    *seed.Window `json:"time_window,omitempty" yaml:"time_window,omitempty"`
	Salt          *string      `json:"salt,omitempty" yaml:"salt,omitempty"`

	EnableAnswerRandomization *bool  `json:"enable_answer_randomization,omitempty" yaml:"enable_answer_randomization,omitempty"`
	PreserveAnswerPositions   *[]int `json:"preserve_answer_positions,omitempty" yaml:"preserve_answer_positions,omitempty"`

	AdaptiveThreshold *float64           `json:"adaptive_threshold,omitempty" yaml:"adaptive_threshold,omitempty"`
	Performance       map[string]float64 `json:"performance,omitempty" yaml:"-"`
}

// Apply returns c with every set field of o replacing the corresponding field.
// Anchor and performance maps replace wholesale rather than merging keys.
func (c Config) Apply(o Overrides) Config {
	out := c.clone()
	if o.Strategy != nil {
		out.Strategy = *o.Strategy
	}
	if o.Template != nil {
		out.Template = *o.Template
	}
	if o.AnchorPositions != nil {
		out.AnchorPositions = make(map[string]int, len(o.AnchorPositions))
		for k, v := range o.AnchorPositions {
			out.AnchorPositions[k] = v
		}
	}
	if o.BlockingRules != nil {
		out.BlockingRules = Config{BlockingRules: *o.BlockingRules}.clone().BlockingRules
		if out.BlockingRules == nil {
			out.BlockingRules = []BlockingRule{}
		}
	}
	if o.StrataKey != nil {
		out.StrataKey = *o.StrataKey
	}
	if o.RandomnessFactor != nil {
		out.RandomnessFactor = *o.RandomnessFactor
	}
	if o.PreventRepetition != nil {
		out.PreventRepetition = *o.PreventRepetition
	}
	if o.LookbackSessions != nil {
		out.LookbackSessions = *o.LookbackSessions
	}
	if o.MinGapBetweenExposure != nil {
		out.MinGapBetweenExposure = *o.MinGapBetweenExposure
	}
	if o.MinPoolSize != nil {
		out.MinPoolSize = *o.MinPoolSize
	}
	if o.TimeBasedSeed != nil {
		out.TimeBasedSeed = *o.TimeBasedSeed
	}
	if o.TimeWindow != nil {
		out.TimeWindow = *o.TimeWindow
	}
	if o.Salt != nil {
		out.Salt = *o.Salt
	}
	if o.EnableAnswerRandomization != nil {
		out.EnableAnswerRandomization = *o.EnableAnswerRandomization
	}
	if o.PreserveAnswerPositions != nil {
		out.PreserveAnswerPositions = append([]int{}, *o.PreserveAnswerPositions...)
	}
	if o.AdaptiveThreshold != nil {
		out.AdaptiveThreshold = *o.AdaptiveThreshold
	}
	if o.Performance != nil {
		out.Performance = make(map[string]float64, len(o.Performance))
		for k, v := range o.Performance {
			out.Performance[k] = v
		}
	}
	return out
}

// Then layers o2 over o, o2 winning. Used to stack defaults file layers.
func (o Overrides) Then(o2 Overrides) Overrides {
	out := o
	if o2.Strategy != nil {
		out.Strategy = o2.Strategy
	}
	if o2.Template != nil {
		out.Template = o2.Template
	}
	if o2.AnchorPositions != nil {
		out.AnchorPositions = o2.AnchorPositions
	}
	if o2.BlockingRules != nil {
		out.BlockingRules = o2.BlockingRules
	}
	if o2.StrataKey != nil {
		out.StrataKey = o2.StrataKey
	}
	if o2.RandomnessFactor != nil {
		out.RandomnessFactor = o2.RandomnessFactor
	}
	if o2.PreventRepetition != nil {
		out.PreventRepetition = o2.PreventRepetition
	}
	if o2.LookbackSessions != nil {
		out.LookbackSessions = o2.LookbackSessions
	}
	if o2.MinGapBetweenExposure != nil {
		out.MinGapBetweenExposure = o2.MinGapBetweenExposure
	}
	if o2.MinPoolSize != nil {
		out.MinPoolSize = o2.MinPoolSize
	}
	if o2.TimeBasedSeed != nil {
		out.TimeBasedSeed = o2.TimeBasedSeed
	}
	if o2.TimeWindow != nil {
		out.TimeWindow = o2.TimeWindow
	}
	if o2.Salt != nil {
		out.Salt = o2.Salt
	}
	if o2.EnableAnswerRandomization != nil {
		out.EnableAnswerRandomization = o2.EnableAnswerRandomization
	}
	if o2.PreserveAnswerPositions != nil {
		out.PreserveAnswerPositions = o2.PreserveAnswerPositions
	}
	if o2.AdaptiveThreshold != nil {
		out.AdaptiveThreshold = o2.AdaptiveThreshold
	}
	if o2.Performance != nil {
		out.Performance = o2.Performance
	}
	return out
}
