package orchestrator

import (
	"context"
	"time"
)

// Store is the durable storage the orchestrator needs. Every state-changing
// method is a conditional update gated on the current status; the boolean
// result reports whether the caller won the transition.
type Store interface {
	// CreateTask persists a new task.
	CreateTask(ctx context.Context, task *Task) error

	// GetTask retrieves a task scoped to an owner.
	GetTask(ctx context.Context, id, ownerID string) (*Task, error)

	// ListTasks lists tasks matching the filter.
	ListTasks(ctx context.Context, filter Filter) ([]*Task, error)

	// CountTasks counts an owner's tasks per status.
	CountTasks(ctx context.Context, ownerID string) (map[Status]int64, error)

	// CountActiveTasks counts an owner's non-terminal tasks.
	CountActiveTasks(ctx context.Context, ownerID string) (int64, error)

	// ActiveTaskCounts counts assigned/in_progress tasks per agent for an
	// owner. Feeds the registry's load-based ranking.
	ActiveTaskCounts(ctx context.Context, ownerID string) (map[string]int64, error)

	// AssignTask sets the task assigned to agentID where status is still
	// pending.
	AssignTask(ctx context.Context, id, agentID string) (bool, error)

	// StartTask moves assigned -> in_progress.
	StartTask(ctx context.Context, id string) (bool, error)

	// FinishTask moves assigned/in_progress to the given terminal status,
	// clearing the agent and recording result or failure reason.
	FinishTask(ctx context.Context, id string, status Status, result map[string]any, reason string, at time.Time) (bool, error)

	// CancelTask moves pending/assigned/in_progress -> cancelled.
	CancelTask(ctx context.Context, id string, at time.Time) (bool, error)

	// RequeueTask moves assigned/in_progress back to pending, incrementing
	// retry_count and clearing the agent.
	RequeueTask(ctx context.Context, id string) (bool, error)
}
