package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HERMES_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "env", cfg.Secrets.Backend)
	assert.Equal(t, "memory", cfg.JobStore.Backend)
	assert.Equal(t, 24*time.Hour, cfg.JobStore.TTL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Worker.ColdStartBackoff)
	assert.Equal(t, 60*time.Second, cfg.Worker.SmokeTimeout)
	assert.Equal(t, 30, cfg.Worker.PollMaxAttempts)
	assert.Equal(t, 4, cfg.Orchestrator.MaxConcurrentRuns)
	assert.Zero(t, cfg.TestJob.Ceiling)
	assert.Equal(t, time.Second, cfg.Scheduler.Tick)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HERMES_CONFIG", "")
	t.Setenv("HERMES_HTTP_ADDR", ":9090")
	t.Setenv("HERMES_WORKER_POLL_INTERVAL", "500ms")
	t.Setenv("HERMES_WORKER_POLL_MAX_ATTEMPTS", "7")
	t.Setenv("HERMES_JOBSTORE_BACKEND", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.PollInterval)
	assert.Equal(t, 7, cfg.Worker.PollMaxAttempts)
	assert.Equal(t, "redis", cfg.JobStore.Backend)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hermes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  path: /etc/hermes/catalog.yaml
orchestrator:
  max_parallel: 3
testjob:
  ceiling: 5m
`), 0o600))
	t.Setenv("HERMES_CONFIG", path)
	t.Setenv("HERMES_ORCHESTRATOR_MAX_PARALLEL", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/hermes/catalog.yaml", cfg.Catalog.Path)
	assert.Equal(t, 8, cfg.Orchestrator.MaxParallel, "env wins over file")
	assert.Equal(t, 5*time.Minute, cfg.TestJob.Ceiling)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("HERMES_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
