package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phorecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithConfigFile(writeConfig(t, "")))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, time.Hour, cfg.Engine.Interval)
	assert.Equal(t, 4, cfg.Engine.MaxActiveRuns)
	assert.Equal(t, "127.0.0.1", cfg.Frontend.Host)
	assert.Equal(t, 8090, cfg.Frontend.Port)
	assert.NotEmpty(t, cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join(cfg.Paths.DataDir, "models"), cfg.Paths.ArtifactDir)
	assert.Equal(t, filepath.Join(cfg.Paths.DataDir, "components.json"), cfg.Paths.MetadataFile)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
debug: true
logFormat: json
paths:
  dataDir: /var/lib/phorecast
store:
  backend: influxdb
  influxdb:
    url: http://influx:8086
    token: secret
    org: home
    bucket: solar
engine:
  interval: 30m
  maxActiveRuns: 2
frontend:
  host: 0.0.0.0
  port: 9000
  authToken: sesame
`)

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)

	assert.True(t, cfg.Global.Debug)
	assert.Equal(t, "json", cfg.Global.LogFormat)
	assert.Equal(t, "influxdb", cfg.Store.Backend)
	assert.Equal(t, "http://influx:8086", cfg.Store.InfluxDB.URL)
	assert.Equal(t, "solar", cfg.Store.InfluxDB.Bucket)
	assert.Equal(t, 30*time.Minute, cfg.Engine.Interval)
	assert.Equal(t, 2, cfg.Engine.MaxActiveRuns)
	assert.Equal(t, "sesame", cfg.Frontend.AuthToken)
	assert.Equal(t, path, cfg.ConfigFileUsed)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PHORECAST_FRONTEND_PORT", "9999")
	t.Setenv("PHORECAST_STORE_BACKEND", "memory")

	cfg, err := Load(WithConfigFile(writeConfig(t, "")))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Frontend.Port)
}

func TestLoadRejectsInvalidBackend(t *testing.T) {
	_, err := Load(WithConfigFile(writeConfig(t, "store:\n  backend: etcd\n")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestLoadRejectsInfluxWithoutURL(t *testing.T) {
	_, err := Load(WithConfigFile(writeConfig(t, "store:\n  backend: influxdb\n")))
	require.Error(t, err)
}

func TestLoadRejectsBadInterval(t *testing.T) {
	_, err := Load(WithConfigFile(writeConfig(t, "engine:\n  interval: soon\n")))
	require.Error(t, err)
}

func TestMemoryBackendWithInfluxSettingsWarns(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: memory
  influxdb:
    url: http://influx:8086
`)
	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "ignored")
}
