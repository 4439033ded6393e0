// Package config loads and validates the nback configuration.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML file,
// NBACK_* environment variables (NBACK_TEST_N_BACK, NBACK_ARCHIVE_PATH, ...)
// and explicit overrides from command-line flags. The decoded configuration
// is checked against an embedded CUE schema before anything else sees it, so
// the engine never receives out-of-range values.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/nback/internal/logging"
	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/results"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "NBACK"

// DefaultFileName is the config file searched for when none is given.
const DefaultFileName = "nback"

// Config is the top-level configuration.
type Config struct {
	Test    TestConfig     `mapstructure:"test" json:"test"`
	Advance AdvanceConfig  `mapstructure:"advance" json:"advance"`
	Archive ArchiveConfig  `mapstructure:"archive" json:"archive"`
	Logging logging.Config `mapstructure:"logging" json:"logging"`
}

// TestConfig holds the settings of one test run.
type TestConfig struct {
	NBack           int     `mapstructure:"n_back" json:"n_back"`
	SecondsPerTrial float64 `mapstructure:"seconds_per_trial" json:"seconds_per_trial"`
	MatchPercentage float64 `mapstructure:"match_percentage" json:"match_percentage"`
	TotalTrials     int     `mapstructure:"total_trials" json:"total_trials"`
	ShowFeedback    bool    `mapstructure:"show_feedback" json:"show_feedback"`
	ShowTrialNumber bool    `mapstructure:"show_trial_number" json:"show_trial_number"`
	GridSize        int     `mapstructure:"grid_size" json:"grid_size"`

	// Seed fixes sequence generation; 0 draws a random seed.
	Seed uint64 `mapstructure:"seed" json:"seed"`
}

// AdvanceConfig holds the level advance/fallback thresholds.
type AdvanceConfig struct {
	AdvanceThreshold  int `mapstructure:"advance_threshold" json:"advance_threshold"`
	FallbackThreshold int `mapstructure:"fallback_threshold" json:"fallback_threshold"`
	FallbackCount     int `mapstructure:"fallback_count" json:"fallback_count"`
}

// ArchiveConfig locates the saved-run archive.
type ArchiveConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// Options controls Load.
type Options struct {
	// File is an explicit config file. Empty searches the working
	// directory for nback.yaml and tolerates its absence.
	File string

	// Overrides are applied last, keyed by dotted path ("test.n_back").
	Overrides map[string]any
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("test.n_back", 2)
	v.SetDefault("test.seconds_per_trial", 3.0)
	v.SetDefault("test.match_percentage", 30.0)
	v.SetDefault("test.total_trials", 30)
	v.SetDefault("test.show_feedback", true)
	v.SetDefault("test.show_trial_number", true)
	v.SetDefault("test.grid_size", model.DefaultGridSize)
	v.SetDefault("test.seed", 0)

	v.SetDefault("advance.advance_threshold", results.DefaultThresholds.Advance)
	v.SetDefault("advance.fallback_threshold", results.DefaultThresholds.Fallback)
	v.SetDefault("advance.fallback_count", results.DefaultThresholds.FallbackCount)

	v.SetDefault("archive.path", "nback.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: decoding defaults: %v", err))
	}
	return &cfg
}

// Load reads the configuration and validates it. A validation failure is
// returned as *Errors.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultFileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, &Errors{File: v.ConfigFileUsed(), List: errs}
	}
	return &cfg, nil
}

// Model returns the engine configuration of a run.
func (c *Config) Model() model.Config {
	return model.Config{
		NBack:           c.Test.NBack,
		SecondsPerTrial: c.Test.SecondsPerTrial,
		MatchPercentage: c.Test.MatchPercentage,
		TotalTrials:     c.Test.TotalTrials,
		ShowFeedback:    c.Test.ShowFeedback,
		GridSize:        c.Test.GridSize,
	}
}

// Thresholds returns the advance/fallback thresholds.
func (c *Config) Thresholds() results.Thresholds {
	return results.Thresholds{
		Advance:       c.Advance.AdvanceThreshold,
		Fallback:      c.Advance.FallbackThreshold,
		FallbackCount: c.Advance.FallbackCount,
	}
}
