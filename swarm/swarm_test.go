package swarm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/internal/storage"
	"github.com/hivechat/swarm/swarm"
	"github.com/hivechat/swarm/swarm/orchestrator"
	"github.com/hivechat/swarm/swarm/registry"
	"github.com/hivechat/swarm/swarm/sweep"
)

func newTestSwarm(t *testing.T) *swarm.Swarm {
	t.Helper()
	store, err := storage.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	s, err := swarm.New(swarm.Options{
		Storage:  store,
		Settings: config.NewStore(config.DefaultConfig(), "", zap.NewNop()),
	})
	require.NoError(t, err)
	return s
}

func TestNewRequiresStorageAndSettings(t *testing.T) {
	_, err := swarm.New(swarm.Options{})
	assert.Error(t, err)
}

func TestStatusAggregatesAllServices(t *testing.T) {
	s := newTestSwarm(t)
	ctx := context.Background()

	_, err := s.Agents.Register(ctx, &registry.Agent{
		OwnerID: "o1",
		Name:    "worker",
		Skills:  []string{"search"},
	}, 20)
	require.NoError(t, err)

	_, err = s.Tasks.CreateTask(ctx, orchestrator.CreateTaskInput{
		OwnerID:    "o1",
		Title:      "index the docs",
		AutoAssign: true,
	})
	require.NoError(t, err)

	st, err := s.Status(ctx, "o1")
	require.NoError(t, err)
	// The task was auto-assigned to the only idle agent.
	assert.Equal(t, int64(1), st.Agents[registry.StatusBusy])
	assert.Equal(t, int64(1), st.Tasks[orchestrator.StatusAssigned])
	assert.Empty(t, st.Handoffs)
	assert.Empty(t, st.Consensus)
	assert.Empty(t, st.Collaborations)
}

func TestStatusScopedToOwner(t *testing.T) {
	s := newTestSwarm(t)
	ctx := context.Background()

	_, err := s.Agents.Register(ctx, &registry.Agent{OwnerID: "o1", Name: "a"}, 20)
	require.NoError(t, err)

	st, err := s.Status(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, st.Agents)
}

func TestHealthReportsSweeper(t *testing.T) {
	s := newTestSwarm(t)
	ctx := context.Background()

	h := s.Health(ctx)
	assert.True(t, h.Healthy)
	assert.Equal(t, "stopped", h.Sweeper)

	sweeper := sweep.New(zap.NewNop(), time.Second)
	require.NoError(t, s.StartSweeps(sweeper))
	defer s.Stop()

	h = s.Health(ctx)
	assert.True(t, h.Healthy)
	assert.Equal(t, "running", h.Sweeper)
}
