package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.ForceBackends)
	assert.False(t, cfg.UnstableProps)
	assert.False(t, cfg.WithHost)
	assert.Equal(t, 30*time.Second, cfg.DetectTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GPUDETECT_LOG_LEVEL", "debug")
	t.Setenv("GPUDETECT_UNSTABLE_PROPS", "true")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.UnstableProps)
}

func TestLoad_InvalidLogLevelFromEnv(t *testing.T) {
	t.Setenv("GPUDETECT_LOG_LEVEL", "loud")

	_, err := Load(nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "log_level")
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("GPUDETECT_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.StringSlice("force", nil, "")
	flags.Bool("unstable", false, "")
	require.NoError(t, flags.Parse([]string{
		"--log-level=error",
		"--force=cuda,amd",
		"--unstable",
	}))

	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, []string{"cuda", "amd"}, cfg.ForceBackends)
	assert.True(t, cfg.UnstableProps)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.LogLevel = "WARN" // case-insensitive
	assert.NoError(t, cfg.Validate())

	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DetectTimeout = 0
	assert.Error(t, cfg.Validate())
}
