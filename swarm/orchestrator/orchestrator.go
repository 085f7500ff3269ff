package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/internal/broadcast"
	"github.com/hivechat/swarm/swarm/registry"
	"github.com/hivechat/swarm/types"
)

// AgentRegistry is the registry surface the orchestrator needs.
type AgentRegistry interface {
	ListAvailable(ctx context.Context, ownerID string, skillFilter []string) ([]*registry.Agent, error)
	MarkBusy(ctx context.Context, agentID string) error
	MarkIdle(ctx context.Context, agentID string) error
	AdjustReputation(ctx context.Context, agentID string, delta float64) error
}

// Settings provides the live swarm configuration, read per operation.
type Settings interface {
	Swarm() config.SwarmConfig
}

// Orchestrator queues tasks, assigns them to available agents and tracks
// completion, failure and retry.
type Orchestrator struct {
	store    Store
	agents   AgentRegistry
	settings Settings
	emitter  broadcast.Emitter
	logger   *zap.Logger
}

// New creates an orchestrator.
func New(store Store, agents AgentRegistry, settings Settings, emitter broadcast.Emitter, logger *zap.Logger) *Orchestrator {
	if emitter == nil {
		emitter = broadcast.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:    store,
		agents:   agents,
		settings: settings,
		emitter:  emitter,
		logger:   logger.With(zap.String("component", "task_orchestrator")),
	}
}

// CreateTaskInput holds the parameters for CreateTask.
type CreateTaskInput struct {
	OwnerID        string         `json:"owner_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Priority       Priority       `json:"priority"`
	AgentID        string         `json:"agent_id,omitempty"`
	AutoAssign     bool           `json:"auto_assign"`
	RequiredSkills []string       `json:"required_skills,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// CreateTask creates a task and attempts assignment. With AgentID set, a
// direct assignment is tried; if the agent is unavailable the task is still
// created, left pending, and the error returned alongside it. Without an
// AgentID, auto-assignment picks the best-ranked idle agent when enabled;
// when none is available the task stays pending.
func (o *Orchestrator) CreateTask(ctx context.Context, in CreateTaskInput) (*Task, error) {
	if in.OwnerID == "" || in.Title == "" {
		return nil, types.NewError(types.ErrValidation, "owner_id and title are required")
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, types.NewErrorf(types.ErrValidation, "unknown priority %q", in.Priority)
	}

	cfg := o.settings.Swarm()
	if cfg.MaxConcurrentTasks > 0 {
		active, err := o.store.CountActiveTasks(ctx, in.OwnerID)
		if err != nil {
			return nil, types.NewError(types.ErrInternalError, "failed to count active tasks").WithCause(err)
		}
		if active >= int64(cfg.MaxConcurrentTasks) {
			return nil, types.NewErrorf(types.ErrValidation, "owner %s reached the concurrent task limit (%d)", in.OwnerID, cfg.MaxConcurrentTasks)
		}
	}

	task := &Task{
		ID:          uuid.New().String(),
		OwnerID:     in.OwnerID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      StatusPending,
		Metadata:    in.Metadata,
	}
	if err := o.store.CreateTask(ctx, task); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to create task").WithCause(err)
	}

	o.logger.Info("task created",
		zap.String("task_id", task.ID),
		zap.String("owner_id", task.OwnerID),
		zap.String("priority", string(task.Priority)),
	)
	o.emitter.Emit(ctx, broadcast.EventTaskCreated, task)

	if in.AgentID != "" {
		if err := o.assign(ctx, task, in.AgentID); err != nil {
			// The task exists and stays pending; the caller learns why the
			// direct assignment did not happen.
			return task, err
		}
		return task, nil
	}

	if in.AutoAssign || cfg.AutoAssignTasks {
		o.autoAssign(ctx, task, in.RequiredSkills)
	}
	return task, nil
}

// autoAssign picks the best-ranked available agent. No agent available is
// not an error; the task simply stays in the pool.
func (o *Orchestrator) autoAssign(ctx context.Context, task *Task, skills []string) {
	candidates, err := o.agents.ListAvailable(ctx, task.OwnerID, skills)
	if err != nil {
		o.logger.Warn("auto-assign skipped, agent lookup failed",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		return
	}

	for _, agent := range candidates {
		if err := o.assign(ctx, task, agent.ID); err == nil {
			return
		}
		// Lost the race for this agent; try the next candidate.
	}
}

// assign books agentID for the task. The agent is claimed first (idle ->
// busy); losing the task update releases the agent again, so two concurrent
// assignments can never both succeed and an agent is never double-booked.
func (o *Orchestrator) assign(ctx context.Context, task *Task, agentID string) error {
	if err := o.agents.MarkBusy(ctx, agentID); err != nil {
		if types.IsCode(err, types.ErrAgentUnavailable) {
			return types.NewErrorf(types.ErrAgentUnavailable, "agent %s is not idle", agentID)
		}
		return err
	}

	ok, err := o.store.AssignTask(ctx, task.ID, agentID)
	if err != nil {
		o.releaseAgent(ctx, agentID)
		return types.NewError(types.ErrInternalError, "failed to assign task").WithCause(err)
	}
	if !ok {
		o.releaseAgent(ctx, agentID)
		return types.NewErrorf(types.ErrInvalidState, "task %s is no longer pending", task.ID)
	}

	task.Status = StatusAssigned
	task.AssignedAgentID = &agentID

	o.logger.Info("task assigned",
		zap.String("task_id", task.ID),
		zap.String("agent_id", agentID),
	)
	o.emitter.Emit(ctx, broadcast.EventTaskAssigned, map[string]any{
		"task_id":  task.ID,
		"owner_id": task.OwnerID,
		"agent_id": agentID,
	})
	return nil
}

func (o *Orchestrator) releaseAgent(ctx context.Context, agentID string) {
	if err := o.agents.MarkIdle(ctx, agentID); err != nil {
		// The agent may have gone offline in the meantime; the liveness
		// sweep owns that state.
		o.logger.Warn("failed to release agent",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
	}
}

// AssignTask explicitly assigns a pending task to an idle agent.
func (o *Orchestrator) AssignTask(ctx context.Context, taskID, agentID, ownerID string) (*Task, error) {
	task, err := o.store.GetTask(ctx, taskID, ownerID)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusPending {
		return nil, types.NewErrorf(types.ErrInvalidState, "task %s is %s, not pending", taskID, task.Status)
	}
	if err := o.assign(ctx, task, agentID); err != nil {
		return nil, err
	}
	return task, nil
}

// StartTask marks an assigned task as in progress.
func (o *Orchestrator) StartTask(ctx context.Context, taskID, ownerID string) (*Task, error) {
	task, err := o.store.GetTask(ctx, taskID, ownerID)
	if err != nil {
		return nil, err
	}

	ok, err := o.store.StartTask(ctx, taskID)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to start task").WithCause(err)
	}
	if !ok {
		return nil, types.NewErrorf(types.ErrInvalidState, "task %s is %s, not assigned", taskID, task.Status)
	}

	task.Status = StatusInProgress
	o.emitter.Emit(ctx, broadcast.EventTaskStarted, map[string]any{
		"task_id":  task.ID,
		"owner_id": task.OwnerID,
	})
	return task, nil
}

// CompleteTask finishes an assigned or in-progress task and releases its
// agent back to idle.
func (o *Orchestrator) CompleteTask(ctx context.Context, taskID, ownerID string, result map[string]any) (*Task, error) {
	task, err := o.store.GetTask(ctx, taskID, ownerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ok, err := o.store.FinishTask(ctx, taskID, StatusCompleted, result, "", now)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to complete task").WithCause(err)
	}
	if !ok {
		return nil, types.NewErrorf(types.ErrInvalidState, "task %s is %s, not active", taskID, task.Status)
	}

	if task.AssignedAgentID != nil {
		agentID := *task.AssignedAgentID
		o.releaseAgent(ctx, agentID)
		if err := o.agents.AdjustReputation(ctx, agentID, 1); err != nil {
			o.logger.Warn("failed to adjust reputation", zap.String("agent_id", agentID), zap.Error(err))
		}
	}

	task.Status = StatusCompleted
	task.Result = result
	task.CompletedAt = &now
	task.AssignedAgentID = nil

	o.logger.Info("task completed", zap.String("task_id", taskID))
	o.emitter.Emit(ctx, broadcast.EventTaskCompleted, map[string]any{
		"task_id":  taskID,
		"owner_id": ownerID,
	})
	return task, nil
}

// FailTask records a failure. Below the retry limit the task re-enters the
// assignment pool; at the limit it goes terminal. Either way the agent is
// released.
func (o *Orchestrator) FailTask(ctx context.Context, taskID, ownerID, reason string) (*Task, error) {
	task, err := o.store.GetTask(ctx, taskID, ownerID)
	if err != nil {
		return nil, err
	}
	if !task.Status.IsActive() {
		return nil, types.NewErrorf(types.ErrInvalidState, "task %s is %s, not active", taskID, task.Status)
	}

	agentID := ""
	if task.AssignedAgentID != nil {
		agentID = *task.AssignedAgentID
	}

	cfg := o.settings.Swarm()
	if task.RetryCount < cfg.TaskRetryLimit {
		ok, err := o.store.RequeueTask(ctx, taskID)
		if err != nil {
			return nil, types.NewError(types.ErrInternalError, "failed to requeue task").WithCause(err)
		}
		if !ok {
			return nil, types.NewErrorf(types.ErrInvalidState, "task %s is no longer active", taskID)
		}
		if agentID != "" {
			o.releaseAgent(ctx, agentID)
		}

		task.Status = StatusPending
		task.RetryCount++
		task.AssignedAgentID = nil

		o.logger.Info("task requeued",
			zap.String("task_id", taskID),
			zap.Int("retry_count", task.RetryCount),
			zap.String("reason", reason),
		)
		o.emitter.Emit(ctx, broadcast.EventTaskRequeued, map[string]any{
			"task_id":     taskID,
			"owner_id":    ownerID,
			"retry_count": task.RetryCount,
			"reason":      reason,
		})
		return task, nil
	}

	now := time.Now()
	ok, err := o.store.FinishTask(ctx, taskID, StatusFailed, nil, reason, now)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to fail task").WithCause(err)
	}
	if !ok {
		return nil, types.NewErrorf(types.ErrInvalidState, "task %s is no longer active", taskID)
	}
	if agentID != "" {
		o.releaseAgent(ctx, agentID)
		if err := o.agents.AdjustReputation(ctx, agentID, -2); err != nil {
			o.logger.Warn("failed to adjust reputation", zap.String("agent_id", agentID), zap.Error(err))
		}
	}

	task.Status = StatusFailed
	task.FailureReason = reason
	task.CompletedAt = &now
	task.AssignedAgentID = nil

	o.logger.Info("task failed terminally",
		zap.String("task_id", taskID),
		zap.String("reason", reason),
	)
	o.emitter.Emit(ctx, broadcast.EventTaskFailed, map[string]any{
		"task_id":  taskID,
		"owner_id": ownerID,
		"reason":   reason,
	})
	return task, nil
}

// CancelTask cancels a pending or active task and releases its agent.
func (o *Orchestrator) CancelTask(ctx context.Context, taskID, ownerID string) (*Task, error) {
	task, err := o.store.GetTask(ctx, taskID, ownerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ok, err := o.store.CancelTask(ctx, taskID, now)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to cancel task").WithCause(err)
	}
	if !ok {
		return nil, types.NewErrorf(types.ErrInvalidState, "task %s is %s, already terminal", taskID, task.Status)
	}

	if task.AssignedAgentID != nil {
		o.releaseAgent(ctx, *task.AssignedAgentID)
	}

	task.Status = StatusCancelled
	task.CompletedAt = &now
	task.AssignedAgentID = nil

	o.emitter.Emit(ctx, broadcast.EventTaskCancelled, map[string]any{
		"task_id":  taskID,
		"owner_id": ownerID,
	})
	return task, nil
}

// GetTask retrieves a task scoped to an owner.
func (o *Orchestrator) GetTask(ctx context.Context, taskID, ownerID string) (*Task, error) {
	return o.store.GetTask(ctx, taskID, ownerID)
}

// ListTasks lists tasks matching the filter.
func (o *Orchestrator) ListTasks(ctx context.Context, filter Filter) ([]*Task, error) {
	return o.store.ListTasks(ctx, filter)
}

// Counts returns the owner's task counts per status.
func (o *Orchestrator) Counts(ctx context.Context, ownerID string) (map[Status]int64, error) {
	return o.store.CountTasks(ctx, ownerID)
}
