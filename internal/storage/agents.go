package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hivechat/swarm/swarm/registry"
	"github.com/hivechat/swarm/types"
)

// CreateAgent persists a new agent.
func (s *Storage) CreateAgent(ctx context.Context, agent *registry.Agent) error {
	return s.db.WithContext(ctx).Create(agent).Error
}

// GetAgent retrieves an agent by ID regardless of owner.
func (s *Storage) GetAgent(ctx context.Context, id string) (*registry.Agent, error) {
	var agent registry.Agent
	if err := s.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		return nil, wrapGet(err, "agent", id)
	}
	return &agent, nil
}

// GetOwnedAgent retrieves an agent scoped to an owner.
func (s *Storage) GetOwnedAgent(ctx context.Context, id, ownerID string) (*registry.Agent, error) {
	var agent registry.Agent
	err := s.db.WithContext(ctx).First(&agent, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		return nil, wrapGet(err, "agent", id)
	}
	return &agent, nil
}

// ListAgents lists an owner's agents, optionally filtered to statuses.
func (s *Storage) ListAgents(ctx context.Context, ownerID string, statuses ...registry.Status) ([]*registry.Agent, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var agents []*registry.Agent
	if err := q.Order("created_at ASC").Find(&agents).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list agents").WithCause(err)
	}
	return agents, nil
}

// CountAgents counts an owner's agents per status.
func (s *Storage) CountAgents(ctx context.Context, ownerID string) (map[registry.Status]int64, error) {
	var rows []struct {
		Status registry.Status
		N      int64
	}
	err := s.db.WithContext(ctx).
		Model(&registry.Agent{}).
		Select("status, COUNT(*) AS n").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to count agents").WithCause(err)
	}
	counts := make(map[registry.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// TouchHeartbeat sets last_heartbeat_at. Returns false when the agent does
// not exist.
func (s *Storage) TouchHeartbeat(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&registry.Agent{}).
		Where("id = ?", id).
		Update("last_heartbeat_at", at)
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to record heartbeat").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CompareAndSetStatus transitions id from any of the given statuses to the
// target. The WHERE clause on the current status makes concurrent
// transitions mutually exclusive: exactly one caller sees RowsAffected > 0.
func (s *Storage) CompareAndSetStatus(ctx context.Context, id string, from []registry.Status, to registry.Status) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&registry.Agent{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to update agent status").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// AdjustReputation adds delta to the agent's reputation score.
func (s *Storage) AdjustReputation(ctx context.Context, id string, delta float64) error {
	err := s.db.WithContext(ctx).
		Model(&registry.Agent{}).
		Where("id = ?", id).
		Update("reputation_score", gorm.Expr("reputation_score + ?", delta)).Error
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to adjust reputation").WithCause(err)
	}
	return nil
}

// ListStaleAgents lists agents of any owner whose last heartbeat predates
// cutoff and whose status is not already offline.
func (s *Storage) ListStaleAgents(ctx context.Context, cutoff time.Time) ([]*registry.Agent, error) {
	var agents []*registry.Agent
	err := s.db.WithContext(ctx).
		Where("last_heartbeat_at < ? AND status <> ?", cutoff, registry.StatusOffline).
		Find(&agents).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list stale agents").WithCause(err)
	}
	return agents, nil
}
