package registry

import (
	"context"
	"time"
)

// Store is the durable storage the registry needs. Implementations must back
// CompareAndSetStatus with a conditional update so concurrent transitions
// cannot both succeed.
type Store interface {
	// CreateAgent persists a new agent.
	CreateAgent(ctx context.Context, agent *Agent) error

	// GetAgent retrieves an agent by ID regardless of owner.
	GetAgent(ctx context.Context, id string) (*Agent, error)

	// GetOwnedAgent retrieves an agent scoped to an owner.
	GetOwnedAgent(ctx context.Context, id, ownerID string) (*Agent, error)

	// ListAgents lists an owner's agents, optionally filtered to statuses.
	ListAgents(ctx context.Context, ownerID string, statuses ...Status) ([]*Agent, error)

	// CountAgents counts an owner's agents per status.
	CountAgents(ctx context.Context, ownerID string) (map[Status]int64, error)

	// TouchHeartbeat sets last_heartbeat_at. Returns false when the agent
	// does not exist.
	TouchHeartbeat(ctx context.Context, id string, at time.Time) (bool, error)

	// CompareAndSetStatus transitions id from any of the given statuses to
	// the target status. Returns false when the current status was not in
	// from (the caller lost the race or the edge is stale).
	CompareAndSetStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)

	// AdjustReputation adds delta to the agent's reputation score.
	AdjustReputation(ctx context.Context, id string, delta float64) error

	// ListStaleAgents lists agents of any owner whose last heartbeat is
	// before cutoff and whose status is not offline.
	ListStaleAgents(ctx context.Context, cutoff time.Time) ([]*Agent, error)
}

// LoadCounter reports per-agent active work, used as the secondary sort key
// when ranking agents for assignment. Implemented by the task store.
type LoadCounter interface {
	ActiveTaskCounts(ctx context.Context, ownerID string) (map[string]int64, error)
}
