package registry

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivechat/swarm/internal/broadcast"
	"github.com/hivechat/swarm/types"
)

// Registry tracks agent identity, status and liveness.
type Registry struct {
	store   Store
	loads   LoadCounter
	emitter broadcast.Emitter
	logger  *zap.Logger
}

// New creates a registry. loads may be nil, in which case ranking falls back
// to reputation only.
func New(store Store, loads LoadCounter, emitter broadcast.Emitter, logger *zap.Logger) *Registry {
	if emitter == nil {
		emitter = broadcast.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:   store,
		loads:   loads,
		emitter: emitter,
		logger:  logger.With(zap.String("component", "agent_registry")),
	}
}

// Register persists a new agent owned by ownerID. maxPerOwner bounds the
// owner's fleet size (0 disables the check).
func (r *Registry) Register(ctx context.Context, agent *Agent, maxPerOwner int) (*Agent, error) {
	if agent == nil || agent.OwnerID == "" || agent.Name == "" {
		return nil, types.NewError(types.ErrValidation, "agent owner_id and name are required")
	}
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	if agent.Status == "" {
		agent.Status = StatusIdle
	}
	if !agent.Status.Valid() {
		return nil, types.NewErrorf(types.ErrValidation, "unknown agent status %q", agent.Status)
	}
	if agent.ReputationScore == 0 {
		agent.ReputationScore = DefaultReputation
	}
	if agent.LastHeartbeatAt.IsZero() {
		agent.LastHeartbeatAt = time.Now()
	}

	if maxPerOwner > 0 {
		counts, err := r.store.CountAgents(ctx, agent.OwnerID)
		if err != nil {
			return nil, types.NewError(types.ErrInternalError, "failed to count agents").WithCause(err)
		}
		var total int64
		for _, n := range counts {
			total += n
		}
		if total >= int64(maxPerOwner) {
			return nil, types.NewErrorf(types.ErrValidation, "owner %s reached the agent limit (%d)", agent.OwnerID, maxPerOwner)
		}
	}

	if err := r.store.CreateAgent(ctx, agent); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to create agent").WithCause(err)
	}

	r.logger.Info("agent registered",
		zap.String("agent_id", agent.ID),
		zap.String("owner_id", agent.OwnerID),
	)
	return agent, nil
}

// Get retrieves an agent scoped to an owner.
func (r *Registry) Get(ctx context.Context, id, ownerID string) (*Agent, error) {
	agent, err := r.store.GetOwnedAgent(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// Heartbeat marks the agent alive. An offline agent flips back to idle.
// Unknown agents are logged and reported as NotFound; callers treat this as
// non-fatal.
func (r *Registry) Heartbeat(ctx context.Context, agentID string) error {
	ok, err := r.store.TouchHeartbeat(ctx, agentID, time.Now())
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to record heartbeat").WithCause(err)
	}
	if !ok {
		r.logger.Warn("heartbeat from unknown agent", zap.String("agent_id", agentID))
		return types.NewErrorf(types.ErrNotFound, "agent %s not found", agentID)
	}

	// A heartbeat from an offline agent brings it back. Lost race means the
	// agent was not offline, which is fine.
	flipped, err := r.store.CompareAndSetStatus(ctx, agentID, []Status{StatusOffline}, StatusIdle)
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to restore agent").WithCause(err)
	}
	if flipped {
		r.logger.Info("agent back online", zap.String("agent_id", agentID))
		r.emitter.Emit(ctx, broadcast.EventAgentStatusChanged, map[string]any{
			"agent_id": agentID,
			"status":   StatusIdle,
		})
	}
	return nil
}

// List lists the owner's agents, optionally filtered to statuses.
func (r *Registry) List(ctx context.Context, ownerID string, statuses ...Status) ([]*Agent, error) {
	agents, err := r.store.ListAgents(ctx, ownerID, statuses...)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list agents").WithCause(err)
	}
	return agents, nil
}

// ListAvailable returns the owner's idle agents whose skill set intersects
// skillFilter, ranked by reputation desc then current load asc.
func (r *Registry) ListAvailable(ctx context.Context, ownerID string, skillFilter []string) ([]*Agent, error) {
	agents, err := r.store.ListAgents(ctx, ownerID, StatusIdle)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list agents").WithCause(err)
	}

	available := make([]*Agent, 0, len(agents))
	for _, a := range agents {
		if a.HasAnySkill(skillFilter) {
			available = append(available, a)
		}
	}

	loads := map[string]int64{}
	if r.loads != nil {
		loads, err = r.loads.ActiveTaskCounts(ctx, ownerID)
		if err != nil {
			// Ranking degrades to reputation only; availability itself is
			// not affected.
			r.logger.Warn("failed to load task counts", zap.Error(err))
			loads = map[string]int64{}
		}
	}

	sort.SliceStable(available, func(i, j int) bool {
		if available[i].ReputationScore != available[j].ReputationScore {
			return available[i].ReputationScore > available[j].ReputationScore
		}
		return loads[available[i].ID] < loads[available[j].ID]
	})

	return available, nil
}

// Counts returns the owner's agent counts per status.
func (r *Registry) Counts(ctx context.Context, ownerID string) (map[Status]int64, error) {
	return r.store.CountAgents(ctx, ownerID)
}

// MarkBusy transitions an idle agent to busy. Returns AgentUnavailable when
// the agent is not idle.
func (r *Registry) MarkBusy(ctx context.Context, agentID string) error {
	return r.transition(ctx, agentID, []Status{StatusIdle}, StatusBusy, types.ErrAgentUnavailable)
}

// MarkIdle releases a busy agent back to idle.
func (r *Registry) MarkIdle(ctx context.Context, agentID string) error {
	return r.transition(ctx, agentID, []Status{StatusBusy}, StatusIdle, types.ErrInvalidState)
}

// MarkOffline forces an agent offline from any non-offline status.
func (r *Registry) MarkOffline(ctx context.Context, agentID string) error {
	return r.transition(ctx, agentID, []Status{StatusIdle, StatusBusy, StatusError}, StatusOffline, types.ErrInvalidState)
}

// MarkError flags an agent as errored.
func (r *Registry) MarkError(ctx context.Context, agentID string) error {
	return r.transition(ctx, agentID, []Status{StatusIdle, StatusBusy, StatusOffline}, StatusError, types.ErrInvalidState)
}

func (r *Registry) transition(ctx context.Context, agentID string, from []Status, to Status, failCode types.ErrorCode) error {
	ok, err := r.store.CompareAndSetStatus(ctx, agentID, from, to)
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to update agent status").WithCause(err)
	}
	if !ok {
		return types.NewErrorf(failCode, "agent %s is not in a valid state for transition to %s", agentID, to)
	}

	r.emitter.Emit(ctx, broadcast.EventAgentStatusChanged, map[string]any{
		"agent_id": agentID,
		"status":   to,
	})
	return nil
}

// AdjustReputation adds delta to the agent's ranking score.
func (r *Registry) AdjustReputation(ctx context.Context, agentID string, delta float64) error {
	if err := r.store.AdjustReputation(ctx, agentID, delta); err != nil {
		return types.NewError(types.ErrInternalError, "failed to adjust reputation").WithCause(err)
	}
	return nil
}

// SweepStale transitions agents without a heartbeat within timeout to
// offline. Each agent is handled independently: a persistence error on one
// is logged and skipped, and a lost race is success-no-op. Returns the
// number of agents transitioned.
func (r *Registry) SweepStale(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := time.Now().Add(-timeout)

	stale, err := r.store.ListStaleAgents(ctx, cutoff)
	if err != nil {
		return 0, types.NewError(types.ErrInternalError, "failed to list stale agents").WithCause(err)
	}

	swept := 0
	for _, agent := range stale {
		ok, err := r.store.CompareAndSetStatus(ctx, agent.ID, []Status{StatusIdle, StatusBusy, StatusError}, StatusOffline)
		if err != nil {
			r.logger.Warn("stale sweep skipped agent",
				zap.String("agent_id", agent.ID),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			// Another transition beat the sweep.
			continue
		}

		swept++
		r.logger.Info("agent swept offline",
			zap.String("agent_id", agent.ID),
			zap.Time("last_heartbeat_at", agent.LastHeartbeatAt),
		)
		r.emitter.Emit(ctx, broadcast.EventAgentStatusChanged, map[string]any{
			"agent_id": agent.ID,
			"status":   StatusOffline,
			"reason":   "heartbeat_timeout",
		})
	}

	return swept, nil
}
