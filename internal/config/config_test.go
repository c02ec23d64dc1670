package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"depthsim/internal/generator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEPTHSIM_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Engine.Addr)
	assert.Equal(t, 100*time.Millisecond, cfg.Generator.Interval)
	assert.Equal(t, time.Second, cfg.Generator.Cooldown)
	assert.Equal(t, generator.VisualRanges(), cfg.Generator.Ranges)
	assert.Equal(t, 200*time.Millisecond, cfg.Render.Interval)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depthsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  addr: 10.0.0.1:9001
  read_ack: true
generator:
  interval: 50ms
  buy: {min: 100, max: 110}
  sell: {min: 90, max: 100}
render:
  width: 20
`), 0o644))

	t.Setenv("DEPTHSIM_CONFIG", path)
	t.Setenv("DEPTHSIM_LOG_LEVEL", "debug")
	t.Setenv("DEPTHSIM_SEED", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9001", cfg.Engine.Addr)
	assert.True(t, cfg.Engine.ReadAck)
	assert.Equal(t, 50*time.Millisecond, cfg.Generator.Interval)
	assert.Equal(t, generator.Range{Min: 100, Max: 110}, cfg.Generator.Ranges.Buy)
	assert.Equal(t, generator.Range{Min: 90, Max: 100}, cfg.Generator.Ranges.Sell)
	assert.Equal(t, generator.Range{Min: 1, Max: 10}, cfg.Generator.Ranges.Quantity)
	assert.Equal(t, 20, cfg.Render.Width)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, int64(7), cfg.Generator.Seed)

	t.Setenv("DEPTHSIM_ENGINE_ADDR", "127.0.0.1:1")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1", cfg.Engine.Addr)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Generator.Ranges.Buy = generator.Range{Min: 10, Max: 1}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = Default()
	cfg.Render.Interval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	assert.NoError(t, Default().Validate())
}
