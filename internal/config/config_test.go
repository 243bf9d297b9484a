package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags replaces the process flag set with a pristine one. pflag
// keeps a Changed marker on every flag Set has touched, and viper
// ranks a changed flag above the environment, so restoring flag values
// alone does not isolate tests from each other.
func resetFlags(t *testing.T) {
	t.Helper()
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	InitFlags()
}

func setFlag(t *testing.T, name, value string) {
	t.Helper()
	require.NoError(t, pflag.CommandLine.Set(name, value))
}

func TestLoad_Defaults(t *testing.T) {
	resetFlags(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ExportModeStandard, cfg.Mode)
	assert.True(t, cfg.Gzip)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_Flags(t *testing.T) {
	t.Run("full switches export mode", func(t *testing.T) {
		resetFlags(t)
		setFlag(t, "full", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ExportModeFull, cfg.Mode)
	})

	t.Run("no-gzip disables compression", func(t *testing.T) {
		resetFlags(t)
		setFlag(t, "no-gzip", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Gzip)
	})

	t.Run("json-only is an alias for no-gzip", func(t *testing.T) {
		resetFlags(t)
		setFlag(t, "json-only", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Gzip)
	})

	t.Run("zero timeout is rejected", func(t *testing.T) {
		resetFlags(t)
		setFlag(t, "timeout", "0s")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoad_Environment(t *testing.T) {
	t.Run("TONAL_OUTPUT_DIR overrides the default", func(t *testing.T) {
		resetFlags(t)
		t.Setenv("TONAL_OUTPUT_DIR", "/tmp/exports")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/exports", cfg.OutputDir)
	})

	t.Run("TONAL_FULL switches export mode", func(t *testing.T) {
		resetFlags(t)
		t.Setenv("TONAL_FULL", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ExportModeFull, cfg.Mode)
	})

	t.Run("credentials are bound but never stored on Config", func(t *testing.T) {
		resetFlags(t)
		t.Setenv("TONAL_EMAIL", "user@example.com")
		t.Setenv("TONAL_PASSWORD", "hunter2")

		_, err := Load()
		require.NoError(t, err)

		// Resolved lazily by the caller, not carried on the struct.
		assert.Equal(t, "user@example.com", viper.GetString("email"))
		assert.Equal(t, "hunter2", viper.GetString("password"))
	})
}

// A flag changed by an earlier load must not shadow the environment
// for later ones: viper ranks a changed flag above AutomaticEnv, and
// pflag never clears the Changed marker.
func TestLoad_FlagStateDoesNotLeak(t *testing.T) {
	resetFlags(t)
	setFlag(t, "full", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ExportModeFull, cfg.Mode)

	resetFlags(t)
	t.Setenv("TONAL_FULL", "true")

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, ExportModeFull, cfg.Mode)
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Contains(t, info, "toneget version")
	assert.Contains(t, info, version)
}
