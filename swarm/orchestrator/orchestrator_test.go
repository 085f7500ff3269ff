package orchestrator_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/internal/storage"
	"github.com/hivechat/swarm/swarm/orchestrator"
	"github.com/hivechat/swarm/swarm/registry"
	"github.com/hivechat/swarm/types"
)

type fixture struct {
	tasks  *orchestrator.Orchestrator
	agents *registry.Registry
	store  *storage.Storage
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	store, err := storage.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.DefaultConfig()
	for _, m := range mutate {
		m(cfg)
	}
	settings := config.NewStore(cfg, "", zap.NewNop())

	agents := registry.New(store, store, nil, zap.NewNop())
	tasks := orchestrator.New(store, agents, settings, nil, zap.NewNop())
	return &fixture{tasks: tasks, agents: agents, store: store}
}

func (f *fixture) registerAgent(t *testing.T, name string, skills ...string) *registry.Agent {
	t.Helper()
	agent, err := f.agents.Register(context.Background(), &registry.Agent{
		OwnerID: "o1",
		Name:    name,
		Skills:  skills,
	}, 0)
	require.NoError(t, err)
	return agent
}

func (f *fixture) agentStatus(t *testing.T, id string) registry.Status {
	t.Helper()
	agent, err := f.agents.Get(context.Background(), id, "o1")
	require.NoError(t, err)
	return agent.Status
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{OwnerID: "o1"})
	assert.True(t, types.IsCode(err, types.ErrValidation))

	_, err = f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{
		OwnerID:  "o1",
		Title:    "t",
		Priority: "sometime",
	})
	assert.True(t, types.IsCode(err, types.ErrValidation))
}

func TestCreateTaskStaysPendingWithoutAgents(t *testing.T) {
	f := newFixture(t)

	task, err := f.tasks.CreateTask(context.Background(), orchestrator.CreateTaskInput{
		OwnerID:    "o1",
		Title:      "orphan",
		AutoAssign: true,
	})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusPending, task.Status)
	assert.Nil(t, task.AssignedAgentID)
}

func TestAutoAssignPrefersReputation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registerAgent(t, "ordinary")
	strong := f.registerAgent(t, "strong")
	require.NoError(t, f.agents.AdjustReputation(ctx, strong.ID, 10))

	task, err := f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{
		OwnerID:    "o1",
		Title:      "pick the best",
		AutoAssign: true,
	})
	require.NoError(t, err)
	require.NotNil(t, task.AssignedAgentID)
	assert.Equal(t, strong.ID, *task.AssignedAgentID)
	assert.Equal(t, registry.StatusBusy, f.agentStatus(t, strong.ID))
}

func TestAutoAssignHonorsSkillFilter(t *testing.T) {
	f := newFixture(t)
	f.registerAgent(t, "translator", "translate")
	searcher := f.registerAgent(t, "searcher", "search")

	task, err := f.tasks.CreateTask(context.Background(), orchestrator.CreateTaskInput{
		OwnerID:        "o1",
		Title:          "find the docs",
		AutoAssign:     true,
		RequiredSkills: []string{"search"},
	})
	require.NoError(t, err)
	require.NotNil(t, task.AssignedAgentID)
	assert.Equal(t, searcher.ID, *task.AssignedAgentID)
}

func TestDirectAssignUnavailableAgentKeepsTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.registerAgent(t, "worker")
	require.NoError(t, f.agents.MarkBusy(ctx, agent.ID))

	task, err := f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{
		OwnerID: "o1",
		Title:   "for the busy one",
		AgentID: agent.ID,
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrAgentUnavailable))
	require.NotNil(t, task)
	assert.Equal(t, orchestrator.StatusPending, task.Status)
}

func TestConcurrentAssignmentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.registerAgent(t, "contested")

	t1, err := f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{OwnerID: "o1", Title: "one"})
	require.NoError(t, err)
	t2, err := f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{OwnerID: "o1", Title: "two"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{t1.ID, t2.ID} {
		wg.Add(1)
		go func(i int, taskID string) {
			defer wg.Done()
			_, errs[i] = f.tasks.AssignTask(ctx, taskID, agent.ID, "o1")
		}(i, id)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, types.IsCode(err, types.ErrAgentUnavailable), err)
		}
	}
	assert.Equal(t, 1, winners)

	// Exactly one task holds the agent.
	counts, err := f.store.ActiveTaskCounts(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[agent.ID])
}

func TestCompleteTaskReleasesAgentAndRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.registerAgent(t, "worker")

	task, err := f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{
		OwnerID: "o1",
		Title:   "do it",
		AgentID: agent.ID,
	})
	require.NoError(t, err)

	_, err = f.tasks.StartTask(ctx, task.ID, "o1")
	require.NoError(t, err)

	done, err := f.tasks.CompleteTask(ctx, task.ID, "o1", map[string]any{"out": "ok"})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusCompleted, done.Status)
	assert.Equal(t, registry.StatusIdle, f.agentStatus(t, agent.ID))

	got, err := f.agents.Get(ctx, agent.ID, "o1")
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultReputation+1, got.ReputationScore)

	// Completing twice is a state error.
	_, err = f.tasks.CompleteTask(ctx, task.ID, "o1", nil)
	assert.True(t, types.IsCode(err, types.ErrInvalidState))
}

func TestFailTaskRequeuesUntilRetryLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Swarm.TaskRetryLimit = 1
		c.Swarm.AutoAssignTasks = false
	})
	ctx := context.Background()
	agent := f.registerAgent(t, "worker")

	task, err := f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{
		OwnerID: "o1",
		Title:   "flaky",
		AgentID: agent.ID,
	})
	require.NoError(t, err)

	// First failure requeues and releases the agent.
	failed, err := f.tasks.FailTask(ctx, task.ID, "o1", "timeout")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusPending, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Equal(t, registry.StatusIdle, f.agentStatus(t, agent.ID))

	// Second attempt fails terminally and costs reputation.
	_, err = f.tasks.AssignTask(ctx, task.ID, agent.ID, "o1")
	require.NoError(t, err)
	failed, err = f.tasks.FailTask(ctx, task.ID, "o1", "timeout again")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusFailed, failed.Status)
	assert.Equal(t, "timeout again", failed.FailureReason)
	assert.Equal(t, registry.StatusIdle, f.agentStatus(t, agent.ID))

	got, err := f.agents.Get(ctx, agent.ID, "o1")
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultReputation-2, got.ReputationScore)
}

func TestFailTaskOnPendingTask(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Swarm.AutoAssignTasks = false
	})
	task, err := f.tasks.CreateTask(context.Background(), orchestrator.CreateTaskInput{
		OwnerID: "o1",
		Title:   "never started",
	})
	require.NoError(t, err)

	_, err = f.tasks.FailTask(context.Background(), task.ID, "o1", "nope")
	assert.True(t, types.IsCode(err, types.ErrInvalidState))
}

func TestCancelReleasesAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.registerAgent(t, "worker")

	task, err := f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{
		OwnerID: "o1",
		Title:   "doomed",
		AgentID: agent.ID,
	})
	require.NoError(t, err)

	cancelled, err := f.tasks.CancelTask(ctx, task.ID, "o1")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusCancelled, cancelled.Status)
	assert.Equal(t, registry.StatusIdle, f.agentStatus(t, agent.ID))

	_, err = f.tasks.CancelTask(ctx, task.ID, "o1")
	assert.True(t, types.IsCode(err, types.ErrInvalidState))
}

func TestMaxConcurrentTasks(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Swarm.MaxConcurrentTasks = 1
		c.Swarm.AutoAssignTasks = false
	})
	ctx := context.Background()

	_, err := f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{OwnerID: "o1", Title: "first"})
	require.NoError(t, err)

	_, err = f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{OwnerID: "o1", Title: "second"})
	assert.True(t, types.IsCode(err, types.ErrValidation))

	// Other owners have their own budget.
	_, err = f.tasks.CreateTask(ctx, orchestrator.CreateTaskInput{OwnerID: "o2", Title: "first"})
	assert.NoError(t, err)
}

func TestOwnerScoping(t *testing.T) {
	f := newFixture(t)
	task, err := f.tasks.CreateTask(context.Background(), orchestrator.CreateTaskInput{
		OwnerID: "o1",
		Title:   "private",
	})
	require.NoError(t, err)

	_, err = f.tasks.GetTask(context.Background(), task.ID, "o2")
	assert.True(t, types.IsCode(err, types.ErrNotFound))
}
