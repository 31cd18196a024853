// SPDX-License-Identifier: Apache-2.0
package vectorize

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config tunes the packer's search: target width, MCTS budget and UCT
// constants, the DP solver's exhaustiveness cutoff, and the policy
// evaluator's batching. Zero value is not meaningful; use DefaultConfig or
// LoadConfig.
type Config struct {
	MaxNumLanes int `yaml:"max_num_lanes"`

	UseMCTS             bool    `yaml:"use_mcts"`
	NumSimulations      int     `yaml:"num_simulations"`
	ExplorationConstant float64 `yaml:"c"`
	RolloutWeight       float64 `yaml:"w"`
	ExpandAfter         int     `yaml:"expand_after"`
	MaxSearchDist       int     `yaml:"max_search_dist"`

	EnumCap int `yaml:"enum_cap"`

	BatchSize  int `yaml:"batch_size"`
	NumThreads int `yaml:"num_threads"`
}

// DefaultConfig returns the packer's out-of-the-box tuning: MCTS enabled
// with a modest simulation budget, single-threaded policy batching (which
// degenerates to synchronous evaluation when no backend is attached).
func DefaultConfig() *Config {
	return &Config{
		MaxNumLanes:         8,
		UseMCTS:             true,
		NumSimulations:      256,
		ExplorationConstant: 1.41421356,
		RolloutWeight:       1.0,
		ExpandAfter:         1,
		MaxSearchDist:       64,
		EnumCap:             4096,
		BatchSize:           8,
		NumThreads:          1,
	}
}

// Option mutates a Config in place; functional options compose over
// DefaultConfig's baseline.
type Option func(*Config)

// WithMaxNumLanes overrides the widest vector register the packer will
// consider.
func WithMaxNumLanes(n int) Option { return func(c *Config) { c.MaxNumLanes = n } }

// WithMCTS toggles the MCTS engine; when false, the packer runs the DP
// solver (bounded by EnumCap) instead.
func WithMCTS(enabled bool) Option { return func(c *Config) { c.UseMCTS = enabled } }

// WithNumSimulations overrides the MCTS simulation budget.
func WithNumSimulations(n int) Option { return func(c *Config) { c.NumSimulations = n } }

// WithExplorationConstant overrides UCT's c constant.
func WithExplorationConstant(c float64) Option {
	return func(cfg *Config) { cfg.ExplorationConstant = c }
}

// WithRolloutWeight overrides w, the prior-weight multiplier in ucb1's
// W*prior term.
func WithRolloutWeight(w float64) Option { return func(c *Config) { c.RolloutWeight = w } }

// WithExpandAfter overrides the number of visits a leaf needs before MCTS
// expansion grows its children.
func WithExpandAfter(n int) Option { return func(c *Config) { c.ExpandAfter = n } }

// WithEnumCap overrides the DP solver's exact-exploration budget.
func WithEnumCap(n int) Option { return func(c *Config) { c.EnumCap = n } }

// WithBatchSize overrides the policy evaluator's batching threshold.
func WithBatchSize(n int) Option { return func(c *Config) { c.BatchSize = n } }

// WithNumThreads overrides the number of worker goroutines the policy
// evaluator uses to run batches concurrently.
func WithNumThreads(n int) Option { return func(c *Config) { c.NumThreads = n } }

// NewConfig builds a Config from DefaultConfig with opts applied in order.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// LoadConfig reads a YAML config file, starting from DefaultConfig so an
// incomplete file only overrides the fields it mentions.
func LoadConfig(path string, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}
