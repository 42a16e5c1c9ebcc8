package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
log:
  level: debug
  encoding: console
engine:
  shards: 16
detections:
  ascent:
    max_rise: 1.75
    window: 3s
  reach:
    max_reach: 3.2
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

type ascentTunables struct {
	MaxRise float64       `yaml:"max_rise"`
	Window  time.Duration `yaml:"window"`
	Ticks   int           `yaml:"ticks"`
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Log, cfg.Log)
	assert.Equal(t, def.Engine, cfg.Engine)
	assert.Equal(t, def.Metrics, cfg.Metrics)
	assert.Empty(t, cfg.Detections())
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)
	assert.Equal(t, 16, cfg.Engine.Shards)
	assert.Equal(t, Default().Engine.Workers, cfg.Engine.Workers, "unset keys keep their default")
	assert.Equal(t, []string{"ascent", "reach"}, cfg.Detections())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("WARDEN_ENGINE__WORKERS", "3")
	t.Setenv("WARDEN_DETECTIONS__ASCENT__MAX_RISE", "2.5")
	t.Setenv("WARDEN_ENGINE__RESOLVER__COOLDOWN", "5s")
	t.Setenv("WARDEN_ENGINE__RESOLVER__MAX_FAILURES", "2")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.Workers)
	assert.Equal(t, 5*time.Second, cfg.Engine.Resolver.Cooldown)
	assert.Equal(t, uint32(2), cfg.Engine.Resolver.MaxFailures)

	tun := ascentTunables{Ticks: 4}
	require.NoError(t, cfg.Detection("ascent").Decode(&tun))
	assert.Equal(t, 2.5, tun.MaxRise)
}

func TestDetectionSection(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	tun := ascentTunables{Ticks: 4}
	require.NoError(t, cfg.Detection("ascent").Decode(&tun))
	assert.Equal(t, 1.75, tun.MaxRise)
	assert.Equal(t, 3*time.Second, tun.Window)
	assert.Equal(t, 4, tun.Ticks)

	untouched := ascentTunables{MaxRise: 9}
	require.NoError(t, cfg.Detection("missing").Decode(&untouched))
	assert.Equal(t, 9.0, untouched.MaxRise)
	assert.Empty(t, cfg.Detection("missing").(Section).Keys())
}

func TestValidate(t *testing.T) {
	_, err := Load(writeConfig(t, "log:\n  level: loud\nengine:\n  workers: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "engine.workers")

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
