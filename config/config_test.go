package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 0.6, cfg.Swarm.ConsensusThresholdDefault)
	assert.Equal(t, 3, cfg.Swarm.TaskRetryLimit)
	assert.True(t, cfg.Swarm.AutoAssignTasks)
	assert.Equal(t, time.Minute, cfg.Sweep.StaleAgentInterval)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	content := `
swarm:
  task_retry_limit: 5
  handoff_timeout_seconds: 60
  consensus_threshold_default: 0.75
server:
  http_port: 9000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Swarm.TaskRetryLimit)
	assert.Equal(t, 60, cfg.Swarm.HandoffTimeoutSeconds)
	assert.Equal(t, 0.75, cfg.Swarm.ConsensusThresholdDefault)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	// Untouched sections keep defaults.
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("swarm:\n  task_retry_limit: 5\n"), 0o644))

	t.Setenv("SWARM_SWARM_TASK_RETRY_LIMIT", "7")
	t.Setenv("SWARM_SWARM_AUTO_ASSIGN_TASKS", "false")
	t.Setenv("SWARM_SWARM_CONSENSUS_EXPIRY", "90s")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Swarm.TaskRetryLimit)
	assert.False(t, cfg.Swarm.AutoAssignTasks)
	assert.Equal(t, 90*time.Second, cfg.Swarm.ConsensusExpiry)
}

func TestLoader_RejectsInvalidThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("swarm:\n  consensus_threshold_default: 1.5\n"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consensus_threshold_default")
}

func TestLoader_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/swarm.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestStore_ReloadSwapsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("swarm:\n  task_retry_limit: 2\n"), 0o644))

	cfg := MustLoad(path)
	store := NewStore(cfg, path, zap.NewNop())
	assert.Equal(t, 2, store.Swarm().TaskRetryLimit)

	var notified int
	store.Subscribe(func(*Config) { notified++ })

	require.NoError(t, os.WriteFile(path, []byte("swarm:\n  task_retry_limit: 4\n"), 0o644))
	require.NoError(t, store.Reload())

	assert.Equal(t, 4, store.Swarm().TaskRetryLimit)
	assert.Equal(t, 1, notified)
}

func TestStore_ReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("swarm:\n  task_retry_limit: 2\n"), 0o644))

	store := NewStore(MustLoad(path), path, zap.NewNop())

	require.NoError(t, os.WriteFile(path, []byte("swarm:\n  consensus_threshold_default: 9.0\n"), 0o644))
	require.Error(t, store.Reload())
	assert.Equal(t, 2, store.Swarm().TaskRetryLimit)
}
