package orchestrator

import (
	"time"
)

// Priority is the scheduling priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status is the lifecycle status of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether the status is terminal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether the task currently occupies an agent.
func (s Status) IsActive() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// Task is a unit of assignable work. assigned_agent_id is set exactly while
// status is assigned or in_progress.
type Task struct {
	ID              string         `json:"id" gorm:"primaryKey;size:64"`
	OwnerID         string         `json:"owner_id" gorm:"size:64;index:idx_tasks_owner_status"`
	Title           string         `json:"title" gorm:"size:255"`
	Description     string         `json:"description"`
	Priority        Priority       `json:"priority" gorm:"size:16"`
	Status          Status         `json:"status" gorm:"size:16;index:idx_tasks_owner_status"`
	AssignedAgentID *string        `json:"assigned_agent_id,omitempty" gorm:"size:64;index"`
	Metadata        map[string]any `json:"metadata,omitempty" gorm:"serializer:json"`
	Result          map[string]any `json:"result,omitempty" gorm:"serializer:json"`
	FailureReason   string         `json:"failure_reason,omitempty"`
	RetryCount      int            `json:"retry_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// TableName implements the gorm table naming convention.
func (Task) TableName() string { return "tasks" }

// Filter selects tasks for listing.
type Filter struct {
	OwnerID  string
	Statuses []Status
	AgentID  string
	Limit    int
	Offset   int
}
