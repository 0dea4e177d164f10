package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/core/config"
)

type sweepConfig struct {
	Interval time.Duration `env:"CONFIG_TEST_SWEEP_INTERVAL" envDefault:"15m"`
	Enabled  bool          `env:"CONFIG_TEST_SWEEP_ENABLED" envDefault:"true"`
}

type cachedConfig struct {
	Name string `env:"CONFIG_TEST_CACHED_NAME" envDefault:"first"`
}

type requiredConfig struct {
	Secret string `env:"CONFIG_TEST_REQUIRED_SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults and env overrides", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_SWEEP_INTERVAL", "1m")

		var cfg sweepConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, time.Minute, cfg.Interval)
		assert.True(t, cfg.Enabled)
	})

	t.Run("returns cached value on subsequent loads", func(t *testing.T) {
		var first cachedConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("CONFIG_TEST_CACHED_NAME", "second")

		var second cachedConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first, second)
		assert.Equal(t, "first", second.Name)
	})

	t.Run("fails when a required variable is missing", func(t *testing.T) {
		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestMustLoad(t *testing.T) {
	type panicConfig struct {
		Value string `env:"CONFIG_TEST_MUST_LOAD_VALUE,required"`
	}

	assert.Panics(t, func() {
		var cfg panicConfig
		config.MustLoad(&cfg)
	})
}
