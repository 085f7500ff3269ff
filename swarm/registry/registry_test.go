package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/internal/storage"
	"github.com/hivechat/swarm/swarm/registry"
	"github.com/hivechat/swarm/types"
)

func newTestRegistry(t *testing.T) (*registry.Registry, *storage.Storage) {
	t.Helper()
	store, err := storage.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return registry.New(store, store, nil, zap.NewNop()), store
}

func register(t *testing.T, r *registry.Registry, owner, name string, skills ...string) *registry.Agent {
	t.Helper()
	agent, err := r.Register(context.Background(), &registry.Agent{
		OwnerID: owner,
		Name:    name,
		Skills:  skills,
	}, 0)
	require.NoError(t, err)
	return agent
}

func TestRegisterDefaults(t *testing.T) {
	r, _ := newTestRegistry(t)

	agent := register(t, r, "o1", "worker")
	assert.NotEmpty(t, agent.ID)
	assert.Equal(t, registry.StatusIdle, agent.Status)
	assert.Equal(t, registry.DefaultReputation, agent.ReputationScore)
	assert.False(t, agent.LastHeartbeatAt.IsZero())
}

func TestRegisterValidatesInput(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Register(context.Background(), &registry.Agent{OwnerID: "o1"}, 0)
	assert.True(t, types.IsCode(err, types.ErrValidation))

	_, err = r.Register(context.Background(), &registry.Agent{Name: "nameless owner"}, 0)
	assert.True(t, types.IsCode(err, types.ErrValidation))
}

func TestRegisterEnforcesOwnerLimit(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	register(t, r, "o1", "first")
	register(t, r, "o1", "second")

	_, err := r.Register(ctx, &registry.Agent{OwnerID: "o1", Name: "third"}, 2)
	assert.True(t, types.IsCode(err, types.ErrValidation))

	// Other owners are unaffected.
	_, err = r.Register(ctx, &registry.Agent{OwnerID: "o2", Name: "first"}, 2)
	assert.NoError(t, err)
}

func TestHeartbeatRevivesOfflineAgent(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	agent := register(t, r, "o1", "worker")
	require.NoError(t, r.MarkOffline(ctx, agent.ID))

	require.NoError(t, r.Heartbeat(ctx, agent.ID))

	got, err := r.Get(ctx, agent.ID, "o1")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusIdle, got.Status)
}

func TestHeartbeatUnknownAgent(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.Heartbeat(context.Background(), "ghost")
	assert.True(t, types.IsCode(err, types.ErrNotFound))
}

func TestMarkBusyOnlyFromIdle(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	agent := register(t, r, "o1", "worker")

	require.NoError(t, r.MarkBusy(ctx, agent.ID))

	// Claiming an already-busy agent fails; the original claim stands.
	err := r.MarkBusy(ctx, agent.ID)
	assert.True(t, types.IsCode(err, types.ErrAgentUnavailable))

	require.NoError(t, r.MarkIdle(ctx, agent.ID))
	require.NoError(t, r.MarkBusy(ctx, agent.ID))
}

func TestListAvailableFiltersAndRanks(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	low := register(t, r, "o1", "low", "search")
	high := register(t, r, "o1", "high", "search")
	register(t, r, "o1", "other-skill", "translate")
	busy := register(t, r, "o1", "busy", "search")
	require.NoError(t, r.MarkBusy(ctx, busy.ID))

	require.NoError(t, r.AdjustReputation(ctx, high.ID, 5))
	require.NoError(t, r.AdjustReputation(ctx, low.ID, -5))

	available, err := r.ListAvailable(ctx, "o1", []string{"search"})
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, high.ID, available[0].ID)
	assert.Equal(t, low.ID, available[1].ID)
}

func TestListAvailableEmptyFilterMatchesAll(t *testing.T) {
	r, _ := newTestRegistry(t)
	register(t, r, "o1", "a", "search")
	register(t, r, "o1", "b")

	available, err := r.ListAvailable(context.Background(), "o1", nil)
	require.NoError(t, err)
	assert.Len(t, available, 2)
}

func TestSweepStaleMarksOffline(t *testing.T) {
	r, store := newTestRegistry(t)
	ctx := context.Background()

	stale := register(t, r, "o1", "stale")
	fresh := register(t, r, "o1", "fresh")
	_, err := store.TouchHeartbeat(ctx, stale.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	n, err := r.SweepStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := r.Get(ctx, stale.ID, "o1")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusOffline, got.Status)

	got, err = r.Get(ctx, fresh.ID, "o1")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusIdle, got.Status)

	// A second pass finds nothing.
	n, err = r.SweepStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, registry.CanTransition(registry.StatusIdle, registry.StatusBusy))
	assert.True(t, registry.CanTransition(registry.StatusOffline, registry.StatusIdle))
	assert.False(t, registry.CanTransition(registry.StatusOffline, registry.StatusBusy))
	assert.False(t, registry.CanTransition(registry.StatusIdle, registry.StatusIdle))
}
