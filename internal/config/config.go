package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/orchard/internal/chain"
	"github.com/Iron-Ham/orchard/internal/search"
)

// Config represents the complete orchard configuration
type Config struct {
	Run      RunConfig      `mapstructure:"run" yaml:"run"`
	Model    ModelConfig    `mapstructure:"model" yaml:"model"`
	Progress ProgressConfig `mapstructure:"progress" yaml:"progress"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// RunConfig controls the ensemble shape
type RunConfig struct {
	// Chains is the number of independently seeded searches (default: 1)
	Chains int `mapstructure:"chains" yaml:"chains"`
	// PoolSize caps concurrently running chains (0 = min(chains, CPUs))
	PoolSize int `mapstructure:"pool_size" yaml:"pool_size"`
	// Seed is the base seed every chain seed is derived from
	Seed int64 `mapstructure:"seed" yaml:"seed"`
	// RandomizeNodes gives each chain its own sampled node order
	RandomizeNodes bool `mapstructure:"randomize_nodes" yaml:"randomize_nodes"`
}

// ModelConfig is the search configuration shared by every chain
type ModelConfig struct {
	// Kind selects the search variant
	// Options: "beam", "stochastic"
	Kind string `mapstructure:"kind" yaml:"kind"`
	// BeamWidth is the number of partial trees kept per step (default: 1)
	BeamWidth        int  `mapstructure:"beam_width" yaml:"beam_width"`
	IgnoreZeroProbs  bool `mapstructure:"ignore_zero_probs" yaml:"ignore_zero_probs"`
	ForceMonoprimary bool `mapstructure:"force_monoprimary" yaml:"force_monoprimary"`
	// MaxPlacements limits candidate parents per step (0 = unlimited)
	MaxPlacements int `mapstructure:"max_placements" yaml:"max_placements"`
}

// ProgressConfig controls progress reporting
type ProgressConfig struct {
	// Style selects the indicator
	// Options: "auto" (bar on a terminal, plain otherwise), "bar", "plain", "none"
	Style string `mapstructure:"style" yaml:"style"`
	// ChannelCapacity is the progress channel buffer size
	ChannelCapacity int `mapstructure:"channel_capacity" yaml:"channel_capacity"`
	// PushTimeoutMs is how long a chain waits to push one unit before it is
	// counted as overflow
	PushTimeoutMs int `mapstructure:"push_timeout_ms" yaml:"push_timeout_ms"`
}

// OutputConfig controls how results are rendered
type OutputConfig struct {
	// Format is one of "table", "markdown", "json", "yaml"
	Format string `mapstructure:"format" yaml:"format"`
	// Top limits rendered solutions (0 = all)
	Top int `mapstructure:"top" yaml:"top"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is active (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the minimum log level to record (default: "warn")
	// Valid values: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where debug.log is written (empty = stderr)
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Chains:   1,
			PoolSize: 0,
			Seed:     0,
		},
		Model: ModelConfig{
			Kind:             string(search.KindBeam),
			BeamWidth:        1,
			ForceMonoprimary: true,
		},
		Progress: ProgressConfig{
			Style:           "auto",
			ChannelCapacity: 256,
			PushTimeoutMs:   50,
		},
		Output: OutputConfig{
			Format: "table",
			Top:    10,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "warn",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Run defaults
	viper.SetDefault("run.chains", defaults.Run.Chains)
	viper.SetDefault("run.pool_size", defaults.Run.PoolSize)
	viper.SetDefault("run.seed", defaults.Run.Seed)
	viper.SetDefault("run.randomize_nodes", defaults.Run.RandomizeNodes)

	// Model defaults
	viper.SetDefault("model.kind", defaults.Model.Kind)
	viper.SetDefault("model.beam_width", defaults.Model.BeamWidth)
	viper.SetDefault("model.ignore_zero_probs", defaults.Model.IgnoreZeroProbs)
	viper.SetDefault("model.force_monoprimary", defaults.Model.ForceMonoprimary)
	viper.SetDefault("model.max_placements", defaults.Model.MaxPlacements)

	// Progress defaults
	viper.SetDefault("progress.style", defaults.Progress.Style)
	viper.SetDefault("progress.channel_capacity", defaults.Progress.ChannelCapacity)
	viper.SetDefault("progress.push_timeout_ms", defaults.Progress.PushTimeoutMs)

	// Output defaults
	viper.SetDefault("output.format", defaults.Output.Format)
	viper.SetDefault("output.top", defaults.Output.Top)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Metrics defaults
	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load for a specific viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ChainRunConfig converts the run section for the orchestrator.
func (c *Config) ChainRunConfig() chain.RunConfig {
	return chain.RunConfig{
		Chains:         c.Run.Chains,
		PoolSize:       c.Run.PoolSize,
		Seed:           uint64(c.Run.Seed),
		RandomizeNodes: c.Run.RandomizeNodes,
	}
}

// SearchParams converts the model section for the search.
func (c *Config) SearchParams() search.Params {
	return search.Params{
		BeamWidth:        c.Model.BeamWidth,
		IgnoreZeroProbs:  c.Model.IgnoreZeroProbs,
		ForceMonoprimary: c.Model.ForceMonoprimary,
		MaxPlacements:    c.Model.MaxPlacements,
	}
}

// PushTimeout returns the progress push timeout as a time.Duration
func (c *ProgressConfig) PushTimeout() time.Duration {
	return time.Duration(c.PushTimeoutMs) * time.Millisecond
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "orchard")
	}
	// Fall back to ~/.config/orchard
	home, err := os.UserHomeDir()
	if err != nil {
		return ".orchard"
	}
	return filepath.Join(home, ".config", "orchard")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
