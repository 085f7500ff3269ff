package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hivechat/swarm/swarm/orchestrator"
	"github.com/hivechat/swarm/types"
)

var activeTaskStatuses = []orchestrator.Status{
	orchestrator.StatusPending,
	orchestrator.StatusAssigned,
	orchestrator.StatusInProgress,
}

// CreateTask persists a new task.
func (s *Storage) CreateTask(ctx context.Context, task *orchestrator.Task) error {
	return s.db.WithContext(ctx).Create(task).Error
}

// GetTask retrieves a task scoped to an owner.
func (s *Storage) GetTask(ctx context.Context, id, ownerID string) (*orchestrator.Task, error) {
	var task orchestrator.Task
	err := s.db.WithContext(ctx).First(&task, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		return nil, wrapGet(err, "task", id)
	}
	return &task, nil
}

// ListTasks lists tasks matching the filter, newest first.
func (s *Storage) ListTasks(ctx context.Context, filter orchestrator.Filter) ([]*orchestrator.Task, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", filter.OwnerID)
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.AgentID != "" {
		q = q.Where("assigned_agent_id = ?", filter.AgentID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var tasks []*orchestrator.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list tasks").WithCause(err)
	}
	return tasks, nil
}

// CountTasks counts an owner's tasks per status.
func (s *Storage) CountTasks(ctx context.Context, ownerID string) (map[orchestrator.Status]int64, error) {
	var rows []struct {
		Status orchestrator.Status
		N      int64
	}
	err := s.db.WithContext(ctx).
		Model(&orchestrator.Task{}).
		Select("status, COUNT(*) AS n").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to count tasks").WithCause(err)
	}
	counts := make(map[orchestrator.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// CountActiveTasks counts an owner's non-terminal tasks.
func (s *Storage) CountActiveTasks(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&orchestrator.Task{}).
		Where("owner_id = ? AND status IN ?", ownerID, activeTaskStatuses).
		Count(&n).Error
	if err != nil {
		return 0, types.NewError(types.ErrInternalError, "failed to count active tasks").WithCause(err)
	}
	return n, nil
}

// ActiveTaskCounts counts assigned/in_progress tasks per agent for an
// owner.
func (s *Storage) ActiveTaskCounts(ctx context.Context, ownerID string) (map[string]int64, error) {
	var rows []struct {
		AssignedAgentID string
		N               int64
	}
	err := s.db.WithContext(ctx).
		Model(&orchestrator.Task{}).
		Select("assigned_agent_id, COUNT(*) AS n").
		Where("owner_id = ? AND status IN ? AND assigned_agent_id IS NOT NULL",
			ownerID, []orchestrator.Status{orchestrator.StatusAssigned, orchestrator.StatusInProgress}).
		Group("assigned_agent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to count tasks per agent").WithCause(err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.AssignedAgentID] = r.N
	}
	return counts, nil
}

// AssignTask claims a still-pending task for agentID. Concurrent assignment
// attempts race on the status condition; one wins.
func (s *Storage) AssignTask(ctx context.Context, id, agentID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&orchestrator.Task{}).
		Where("id = ? AND status = ?", id, orchestrator.StatusPending).
		Updates(map[string]any{
			"status":            orchestrator.StatusAssigned,
			"assigned_agent_id": agentID,
		})
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to assign task").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// StartTask moves assigned -> in_progress.
func (s *Storage) StartTask(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&orchestrator.Task{}).
		Where("id = ? AND status = ?", id, orchestrator.StatusAssigned).
		Update("status", orchestrator.StatusInProgress)
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to start task").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FinishTask moves an occupied task to a terminal status, clearing the
// agent and recording the outcome.
func (s *Storage) FinishTask(ctx context.Context, id string, status orchestrator.Status, result map[string]any, reason string, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":            status,
		"assigned_agent_id": gorm.Expr("NULL"),
		"completed_at":      at,
	}
	if result != nil {
		updates["result"] = result
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	res := s.db.WithContext(ctx).
		Model(&orchestrator.Task{}).
		Where("id = ? AND status IN ?", id,
			[]orchestrator.Status{orchestrator.StatusAssigned, orchestrator.StatusInProgress}).
		Updates(updates)
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to finish task").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CancelTask moves any non-terminal task to cancelled.
func (s *Storage) CancelTask(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&orchestrator.Task{}).
		Where("id = ? AND status IN ?", id, activeTaskStatuses).
		Updates(map[string]any{
			"status":            orchestrator.StatusCancelled,
			"assigned_agent_id": gorm.Expr("NULL"),
			"completed_at":      at,
		})
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to cancel task").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RequeueTask returns an occupied task to the pending pool, bumping
// retry_count.
func (s *Storage) RequeueTask(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&orchestrator.Task{}).
		Where("id = ? AND status IN ?", id,
			[]orchestrator.Status{orchestrator.StatusAssigned, orchestrator.StatusInProgress}).
		Updates(map[string]any{
			"status":            orchestrator.StatusPending,
			"assigned_agent_id": gorm.Expr("NULL"),
			"retry_count":       gorm.Expr("retry_count + 1"),
		})
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to requeue task").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}
