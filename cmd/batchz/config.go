package main

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config is the batchz run description loaded by viper.
type Config struct {
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Log        LogConfig        `mapstructure:"log"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`

	// Processors maps a processor kind (numeric, text, log) to its input.
	Processors map[string]any `mapstructure:"processors"`
	Streams    []StreamConfig `mapstructure:"streams"`
	Pipelines  []PipeConfig   `mapstructure:"pipelines"`
	Filters    []FilterConfig `mapstructure:"filters"`
	Chain      ChainConfig    `mapstructure:"chain"`
}

// DispatcherConfig configures the dispatcher.
type DispatcherConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// LogConfig configures CLI logging.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// PipelineConfig holds settings shared by every pipeline.
type PipelineConfig struct {
	Separator string `mapstructure:"separator"`
}

// StreamConfig declares one stream and the batch it receives.
type StreamConfig struct {
	ID    string `mapstructure:"id"`
	Kind  string `mapstructure:"kind"`
	Batch []any  `mapstructure:"batch"`
}

// PipeConfig declares one pipeline and the item it receives.
type PipeConfig struct {
	ID      string `mapstructure:"id"`
	Adapter string `mapstructure:"adapter"`
	Input   any    `mapstructure:"input"`
}

// FilterConfig selects a subset of a stream's batch.
type FilterConfig struct {
	Stream    string `mapstructure:"stream"`
	Criterion string `mapstructure:"criterion"`
}

// ChainConfig runs declared pipelines back to back.
type ChainConfig struct {
	Pipelines []string `mapstructure:"pipelines"`
	Input     any      `mapstructure:"input"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dispatcher.capacity", 1000)
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("pipeline.separator", ",")
}

// newViper builds a viper instance with env binding and defaults. The config
// file is optional; its format follows the extension.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix("BATCHZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path == "" {
		return v, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to read config file %s", path),
			"config files may be YAML, TOML or JSON; the format follows the file extension",
		)
	}
	return v, nil
}

// LoadConfig reads the configuration at path, applying BATCHZ_ environment
// overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the references inside the configuration.
func (c *Config) Validate() error {
	if c.Dispatcher.Capacity < 1 {
		return errors.WithHint(
			errors.Newf("dispatcher.capacity must be positive, got %d", c.Dispatcher.Capacity),
			"remove the setting to use the default of 1000",
		)
	}

	streams := make(map[string]bool, len(c.Streams))
	for i, s := range c.Streams {
		if s.ID == "" {
			return errors.Newf("streams[%d]: id is required", i)
		}
		streams[s.ID] = true
	}

	pipelines := make(map[string]bool, len(c.Pipelines))
	for i, p := range c.Pipelines {
		if p.ID == "" {
			return errors.Newf("pipelines[%d]: id is required", i)
		}
		pipelines[p.ID] = true
	}

	for i, f := range c.Filters {
		if !streams[f.Stream] {
			return errors.WithHint(
				errors.Newf("filters[%d]: unknown stream %q", i, f.Stream),
				"filters must name a stream declared under streams",
			)
		}
	}

	for _, id := range c.Chain.Pipelines {
		if !pipelines[id] {
			return errors.WithHint(
				errors.Newf("chain: unknown pipeline %q", id),
				"chain entries must name a pipeline declared under pipelines",
			)
		}
	}
	return nil
}

// StreamByID returns the stream declaration with the given ID.
func (c *Config) StreamByID(id string) (StreamConfig, bool) {
	for _, s := range c.Streams {
		if s.ID == id {
			return s, true
		}
	}
	return StreamConfig{}, false
}
