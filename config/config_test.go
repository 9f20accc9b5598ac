package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("ANGLE_LOG_LEVEL", "debug")
	t.Setenv("ANGLE_MAX_DEPTH", "128")
	t.Setenv("ANGLE_HTTP_TIMEOUT", "5s")
	t.Setenv("ANGLE_ADDR", "localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 128, cfg.Engine.MaxDepth)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "localhost:9000", cfg.Service.Addr)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("ANGLE_SLICE", "-1")
	_, err := Load()
	assert.ErrorIs(t, err, ErrConfig)

	t.Setenv("ANGLE_SLICE", "many")
	_, err = Load()
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLogger(t *testing.T) {
	logger, err := LogConfig{Level: "warn", Format: "json"}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = LogConfig{Level: "loud"}.Logger()
	assert.ErrorIs(t, err, ErrConfig)

	logger, err = LogConfig{Level: "loud", Disabled: true}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
