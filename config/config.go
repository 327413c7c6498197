// Package config holds every tunable of the engine in one explicit struct,
// plus the named presets surfaced to callers.
package config

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/gdicarlo/damasco/equity"
	"github.com/gdicarlo/damasco/stats"
)

// RolloutPolicy selects how leaf values are produced.
type RolloutPolicy string

const (
	// RolloutRandom plays uniformly random legal moves to the depth cap.
	RolloutRandom RolloutPolicy = "random"
	// RolloutHeuristic mixes heuristic-best moves with random ones per
	// RolloutEpsilon.
	RolloutHeuristic RolloutPolicy = "heuristic"
	// RolloutNeural asks the network's value head instead of rolling out.
	RolloutNeural RolloutPolicy = "neural"
)

// StoppingCondition optionally ends the search early once the best move's
// confidence interval separates from the rest.
type StoppingCondition int

const (
	StopNone StoppingCondition = iota
	Stop95
	Stop98
	Stop99
)

// Config enumerates every engine flag. Zero value is not useful; start from
// a preset or DefaultConfig.
type Config struct {
	// Selection.
	UCB1C              float64 `yaml:"ucb1_c" json:"ucb1_c"`
	PUCTC              float64 `yaml:"puct_c" json:"puct_c"`
	UseUCB1Tuned       bool    `yaml:"use_ucb1_tuned" json:"use_ucb1_tuned"`
	UsePUCT            bool    `yaml:"use_puct" json:"use_puct"`
	UseProgressiveBias bool    `yaml:"use_progressive_bias" json:"use_progressive_bias"`
	UseSolver          bool    `yaml:"use_solver" json:"use_solver"`
	UseFPU             bool    `yaml:"use_fpu" json:"use_fpu"`
	FPUValue           float64 `yaml:"fpu_value" json:"fpu_value"`
	BiasConstant       float64 `yaml:"bias_constant" json:"bias_constant"`

	// Tree and table.
	UseTT        bool `yaml:"use_tt" json:"use_tt"`
	UseTreeReuse bool `yaml:"use_tree_reuse" json:"use_tree_reuse"`
	// TTSizeExponent sets the table to 2^n entries. 0 picks a size from
	// available memory.
	TTSizeExponent int `yaml:"tt_size_exponent" json:"tt_size_exponent"`
	// ArenaMB caps the node arena. 0 picks a size from available memory.
	ArenaMB int `yaml:"arena_mb" json:"arena_mb"`

	// Simulation.
	RolloutPolicy     RolloutPolicy `yaml:"rollout_policy" json:"rollout_policy"`
	RolloutDepth      int           `yaml:"rollout_depth" json:"rollout_depth"`
	RolloutEpsilon    float64       `yaml:"rollout_epsilon" json:"rollout_epsilon"`
	UseLookahead      bool          `yaml:"use_lookahead" json:"use_lookahead"`
	UseDecayingReward bool          `yaml:"use_decaying_reward" json:"use_decaying_reward"`
	UseFastRollout    bool          `yaml:"use_fast_rollout" json:"use_fast_rollout"`
	DecayFactor       float64       `yaml:"decay_factor" json:"decay_factor"`

	// Heuristic weights, shared by rollouts and progressive bias.
	Weights equity.Weights `yaml:"weights" json:"weights"`

	// Budget.
	MaxNodes          int64             `yaml:"max_nodes" json:"max_nodes"`
	TimeBudget        time.Duration     `yaml:"time_budget" json:"time_budget"`
	StoppingCondition StoppingCondition `yaml:"stopping_condition" json:"stopping_condition"`

	// Goroutines is the worker count; 0 means runtime.NumCPU().
	Goroutines int `yaml:"goroutines" json:"goroutines"`

	// CNNWeights is a path to an ONNX model, required by RolloutNeural and
	// used for PUCT priors when set.
	CNNWeights string `yaml:"cnn_weights" json:"cnn_weights"`
}

// DefaultConfig matches the Vanilla preset.
func DefaultConfig() Config {
	return Preset("vanilla")
}

func baseConfig() Config {
	return Config{
		UCB1C:          1.414,
		PUCTC:          1.5,
		FPUValue:       0.45,
		BiasConstant:   0.35,
		RolloutPolicy:  RolloutRandom,
		RolloutDepth:   120,
		RolloutEpsilon: 0.12,
		DecayFactor:    0.995,
		Weights:        equity.DefaultWeights(),
		TimeBudget:     5 * time.Second,
	}
}

// presets maps a lowercase preset name to a builder. Ablation presets turn
// on exactly one feature over the PureVanilla baseline.
var presets = map[string]func() Config{
	"purevanilla": func() Config {
		return baseConfig()
	},
	"vanilla": func() Config {
		c := baseConfig()
		c.RolloutPolicy = RolloutHeuristic
		c.UseLookahead = true
		c.UseTreeReuse = true
		return c
	},
	"grandmaster": func() Config {
		c := baseConfig()
		c.UsePUCT = true
		c.UseProgressiveBias = true
		c.UseSolver = true
		c.UseTreeReuse = true
		c.RolloutPolicy = RolloutHeuristic
		c.UseLookahead = true
		c.UseFastRollout = true
		return c
	},
	"alphazero": func() Config {
		c := baseConfig()
		c.UsePUCT = true
		c.UseSolver = true
		c.UseTT = true
		c.UseTreeReuse = true
		c.RolloutPolicy = RolloutNeural
		return c
	},
	"ablation-tuned": func() Config {
		c := baseConfig()
		c.UseUCB1Tuned = true
		return c
	},
	"ablation-bias": func() Config {
		c := baseConfig()
		c.UseProgressiveBias = true
		return c
	},
	"ablation-solver": func() Config {
		c := baseConfig()
		c.UseSolver = true
		return c
	},
	"ablation-fpu": func() Config {
		c := baseConfig()
		c.UseFPU = true
		return c
	},
	"ablation-tt": func() Config {
		c := baseConfig()
		c.UseTT = true
		return c
	},
	"ablation-reuse": func() Config {
		c := baseConfig()
		c.UseTreeReuse = true
		return c
	},
	"ablation-decay": func() Config {
		c := baseConfig()
		c.UseDecayingReward = true
		return c
	},
	"ablation-fastrollout": func() Config {
		c := baseConfig()
		c.UseFastRollout = true
		return c
	},
}

// Preset returns a named preset, panicking on an unknown name. Use
// LookupPreset when the name comes from user input.
func Preset(name string) Config {
	cfg, err := LookupPreset(name)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LookupPreset returns a named preset or an error listing the known names.
func LookupPreset(name string) (Config, error) {
	if build, ok := presets[name]; ok {
		return build(), nil
	}
	return Config{}, fmt.Errorf("unknown preset %q (known: %v)", name, PresetNames())
}

// PresetNames lists the known preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Workers resolves Goroutines, defaulting to the machine's CPU count.
func (c *Config) Workers() int {
	if c.Goroutines > 0 {
		return c.Goroutines
	}
	return runtime.NumCPU()
}

// ConfidenceZ maps the stopping condition to its z value; 0 means no early
// stop.
func (c *Config) ConfidenceZ() float64 {
	switch c.StoppingCondition {
	case Stop95:
		return stats.Z95
	case Stop98:
		return stats.Z98
	case Stop99:
		return stats.Z99
	}
	return 0
}

// Load reads a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Debug().Str("path", path).Msg("loaded-config")
	return cfg, nil
}

// Save writes the config as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
