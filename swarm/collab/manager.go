package collab

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivechat/swarm/internal/broadcast"
	"github.com/hivechat/swarm/types"
)

// Manager runs bounded multi-round collaboration sessions.
type Manager struct {
	store   Store
	emitter broadcast.Emitter
	logger  *zap.Logger
}

// New creates a manager.
func New(store Store, emitter broadcast.Emitter, logger *zap.Logger) *Manager {
	if emitter == nil {
		emitter = broadcast.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		emitter: emitter,
		logger:  logger.With(zap.String("component", "collab_manager")),
	}
}

// CreateInput holds the parameters for Create.
type CreateInput struct {
	OwnerID   string   `json:"owner_id"`
	AgentIDs  []string `json:"agent_ids"`
	Task      string   `json:"task"`
	Context   string   `json:"context,omitempty"`
	Mode      Mode     `json:"mode"`
	MaxRounds int      `json:"max_rounds"`
}

// Create starts a session in round 1.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*Collaboration, error) {
	if in.OwnerID == "" || in.Task == "" {
		return nil, types.NewError(types.ErrValidation, "owner_id and task are required")
	}
	if len(in.AgentIDs) < 2 {
		return nil, types.NewError(types.ErrValidation, "at least two participants are required")
	}
	if in.Mode == "" {
		in.Mode = ModeSequential
	}
	if !in.Mode.Valid() {
		return nil, types.NewErrorf(types.ErrValidation, "unknown mode %q", in.Mode)
	}
	if in.MaxRounds <= 0 {
		return nil, types.NewError(types.ErrValidation, "max_rounds must be positive")
	}

	c := &Collaboration{
		ID:        uuid.New().String(),
		OwnerID:   in.OwnerID,
		AgentIDs:  in.AgentIDs,
		Task:      in.Task,
		Context:   in.Context,
		Mode:      in.Mode,
		MaxRounds: in.MaxRounds,
		Round:     1,
		Status:    StatusActive,
	}
	if err := m.store.CreateCollaboration(ctx, c); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to create collaboration").WithCause(err)
	}

	m.logger.Info("collaboration started",
		zap.String("collaboration_id", c.ID),
		zap.String("mode", string(c.Mode)),
		zap.Int("max_rounds", c.MaxRounds),
		zap.Int("participants", len(c.AgentIDs)),
	)
	m.emitter.Emit(ctx, broadcast.EventCollabStarted, c)
	return c, nil
}

// ContributionInput holds the body of a contribution.
type ContributionInput struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddContribution appends an agent's contribution to the current round. In
// sequential mode the agent must be the next expected contributor, and the
// round advances once every participant has contributed; exhausting
// MaxRounds completes the session instead of opening another round.
func (m *Manager) AddContribution(ctx context.Context, collaborationID, agentID string, in ContributionInput) (*Collaboration, error) {
	if in.Content == "" {
		return nil, types.NewError(types.ErrValidation, "content is required")
	}

	c, err := m.store.GetCollaboration(ctx, collaborationID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, types.NewErrorf(types.ErrInvalidState, "collaboration %s is %s", collaborationID, c.Status)
	}
	if !c.Participant(agentID) {
		return nil, types.NewErrorf(types.ErrValidation, "agent %s is not a participant", agentID)
	}

	if c.Mode == ModeSequential {
		if expected := c.NextContributor(); agentID != expected {
			return nil, types.NewErrorf(types.ErrOutOfTurn, "agent %s is out of turn, expected %s", agentID, expected)
		}
	}

	contrib := &Contribution{
		ID:              uuid.New().String(),
		CollaborationID: collaborationID,
		AgentID:         agentID,
		Content:         in.Content,
		Metadata:        in.Metadata,
		Round:           c.Round,
		CreatedAt:       time.Now(),
	}
	if err := m.store.AddContribution(ctx, contrib); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to add contribution").WithCause(err)
	}
	c.Contributions = append(c.Contributions, contrib)

	m.emitter.Emit(ctx, broadcast.EventCollabContribution, map[string]any{
		"collaboration_id": collaborationID,
		"agent_id":         agentID,
		"round":            contrib.Round,
	})

	if c.Mode == ModeSequential && c.roundContributions() == len(c.AgentIDs) {
		// Every participant has now contributed in this round.
		if err := m.advance(ctx, c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// AdvanceRound explicitly advances a parallel session to the next round.
func (m *Manager) AdvanceRound(ctx context.Context, collaborationID, ownerID string) (*Collaboration, error) {
	c, err := m.store.GetOwnedCollaboration(ctx, collaborationID, ownerID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, types.NewErrorf(types.ErrInvalidState, "collaboration %s is %s", collaborationID, c.Status)
	}
	if err := m.advance(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// advance opens the next round, or completes the session when MaxRounds is
// exhausted.
func (m *Manager) advance(ctx context.Context, c *Collaboration) error {
	if c.Round >= c.MaxRounds {
		return m.complete(ctx, c, ReasonRoundsExhausted)
	}

	ok, err := m.store.AdvanceRound(ctx, c.ID, c.Round)
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to advance round").WithCause(err)
	}
	if !ok {
		// Another contributor advanced the round concurrently.
		return nil
	}

	c.Round++
	m.logger.Debug("collaboration round advanced",
		zap.String("collaboration_id", c.ID),
		zap.Int("round", c.Round),
	)
	m.emitter.Emit(ctx, broadcast.EventCollabRoundAdvance, map[string]any{
		"collaboration_id": c.ID,
		"round":            c.Round,
	})
	return nil
}

// Complete ends a session explicitly.
func (m *Manager) Complete(ctx context.Context, collaborationID, ownerID, reason string) (*Collaboration, error) {
	c, err := m.store.GetOwnedCollaboration(ctx, collaborationID, ownerID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = ReasonCallerRequested
	}
	if err := m.complete(ctx, c, reason); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Manager) complete(ctx context.Context, c *Collaboration, reason string) error {
	ok, err := m.store.CompleteCollaboration(ctx, c.ID, reason)
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to complete collaboration").WithCause(err)
	}
	if !ok {
		return types.NewErrorf(types.ErrInvalidState, "collaboration %s is already completed", c.ID)
	}

	c.Status = StatusCompleted
	c.CompletedReason = reason

	m.logger.Info("collaboration completed",
		zap.String("collaboration_id", c.ID),
		zap.String("reason", reason),
		zap.Int("rounds", c.Round),
		zap.Int("contributions", len(c.Contributions)),
	)
	m.emitter.Emit(ctx, broadcast.EventCollabCompleted, map[string]any{
		"collaboration_id": c.ID,
		"owner_id":         c.OwnerID,
		"reason":           reason,
	})
	return nil
}

// Get retrieves a session with contributions, scoped to an owner.
func (m *Manager) Get(ctx context.Context, collaborationID, ownerID string) (*Collaboration, error) {
	return m.store.GetOwnedCollaboration(ctx, collaborationID, ownerID)
}

// List lists an owner's sessions, optionally filtered to statuses.
func (m *Manager) List(ctx context.Context, ownerID string, statuses ...Status) ([]*Collaboration, error) {
	return m.store.ListCollaborations(ctx, ownerID, statuses...)
}

// Counts returns the owner's session counts per status.
func (m *Manager) Counts(ctx context.Context, ownerID string) (map[Status]int64, error) {
	return m.store.CountCollaborations(ctx, ownerID)
}
