// Package config provides configuration management using Viper.
// Values come from defaults, an optional config file, environment
// variables, and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for a detection run.
type Config struct {
	// DevMode switches logging to human-readable console output.
	DevMode bool `mapstructure:"dev_mode"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// ForceBackends lists backends that must activate; detection fails
	// if any of them is unavailable.
	ForceBackends []string `mapstructure:"force_backends"`

	// UnstableProps lets backends report best-effort properties that
	// are not guaranteed accurate, such as estimated memory bandwidth.
	UnstableProps bool `mapstructure:"unstable_props"`

	// WithHost includes a host machine snapshot in the output.
	WithHost bool `mapstructure:"with_host"`

	// DetectTimeout bounds a full detection pass.
	DetectTimeout time.Duration `mapstructure:"detect_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DevMode:       false,
		LogLevel:      "info",
		UnstableProps: false,
		WithHost:      false,
		DetectTimeout: 30 * time.Second,
	}
}

// Load reads configuration from defaults, an optional gpudetect.yaml, the
// environment (GPUDETECT_ prefix), and the given flag set. flags may be
// nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("dev_mode", defaults.DevMode)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("force_backends", defaults.ForceBackends)
	v.SetDefault("unstable_props", defaults.UnstableProps)
	v.SetDefault("with_host", defaults.WithHost)
	v.SetDefault("detect_timeout", defaults.DetectTimeout)

	// GPUDETECT_LOG_LEVEL=debug, GPUDETECT_UNSTABLE_PROPS=true, ...
	v.SetEnvPrefix("GPUDETECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gpudetect")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/gpudetect/")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		// Flag spellings differ from config keys, so bind explicitly.
		bindings := map[string]string{
			"dev":       "dev_mode",
			"log-level": "log_level",
			"force":     "force_backends",
			"unstable":  "unstable_props",
			"with-host": "with_host",
			"timeout":   "detect_timeout",
		}
		for name, key := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	if c.DetectTimeout <= 0 {
		return fmt.Errorf("detect_timeout must be positive, got %v", c.DetectTimeout)
	}

	return nil
}
