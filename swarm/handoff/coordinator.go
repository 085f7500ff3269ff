package handoff

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

// AgentResolver is the registry surface the coordinator needs to validate
// handoff targets.
type AgentResolver interface {
	Get(ctx context.Context, id, ownerID string) (*registry.Agent, error)
}

// ConversationReassigner is the collaborator that owns conversation
// records. It is invoked when an accepted handoff carries a conversation.
type ConversationReassigner interface {
	Reassign(ctx context.Context, conversationID, toAgentID string) error
}

// ReassignFunc adapts a function to the ConversationReassigner interface.
type ReassignFunc func(ctx context.Context, conversationID, toAgentID string) error

func (f ReassignFunc) Reassign(ctx context.Context, conversationID, toAgentID string) error {
	return f(ctx, conversationID, toAgentID)
}

// Settings provides the live swarm configuration, read per operation.
type Settings interface {
	Swarm() config.SwarmConfig
}

// Coordinator transfers conversation ownership between agents with
// accept/reject/expire semantics.
type Coordinator struct {
	store         Store
	agents        AgentResolver
	conversations ConversationReassigner
	settings      Settings
	emitter       broadcast.Emitter
	logger        *zap.Logger
}

// New creates a coordinator. conversations may be nil when handoffs are
// agent-to-agent only.
func New(store Store, agents AgentResolver, conversations ConversationReassigner, settings Settings, emitter broadcast.Emitter, logger *zap.Logger) *Coordinator {
	if emitter == nil {
		emitter = broadcast.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:         store,
		agents:        agents,
		conversations: conversations,
		settings:      settings,
		emitter:       emitter,
		logger:        logger.With(zap.String("component", "handoff_coordinator")),
	}
}

// CreateInput holds the parameters for Create.
type CreateInput struct {
	OwnerID        string  `json:"owner_id"`
	ConversationID *string `json:"conversation_id,omitempty"`
	FromAgentID    string  `json:"from_agent_id"`
	ToAgentID      string  `json:"to_agent_id"`
	Reason         string  `json:"reason"`
	AutoAccept     bool    `json:"auto_accept"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
}

// Create opens a handoff to a non-offline agent. With AutoAccept the
// handoff is accepted at creation and the conversation, when present, is
// reassigned immediately; otherwise it stays pending until accepted,
// rejected or expired by the sweep.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (*Handoff, error) {
	if in.OwnerID == "" || in.FromAgentID == "" || in.ToAgentID == "" {
		return nil, types.NewError(types.ErrValidation, "owner_id, from_agent_id and to_agent_id are required")
	}
	if in.FromAgentID == in.ToAgentID {
		return nil, types.NewError(types.ErrValidation, "cannot hand off to the requesting agent")
	}

	target, err := c.agents.Get(ctx, in.ToAgentID, in.OwnerID)
	if err != nil {
		return nil, err
	}
	if target.Status == registry.StatusOffline || target.Status == registry.StatusError {
		return nil, types.NewErrorf(types.ErrAgentUnavailable, "agent %s is %s", in.ToAgentID, target.Status)
	}

	timeout := in.TimeoutSeconds
	if timeout <= 0 {
		timeout = c.settings.Swarm().HandoffTimeoutSeconds
	}

	now := time.Now()
	h := &Handoff{
		ID:             uuid.New().String(),
		OwnerID:        in.OwnerID,
		ConversationID: in.ConversationID,
		FromAgentID:    in.FromAgentID,
		ToAgentID:      in.ToAgentID,
		Reason:         in.Reason,
		Status:         StatusPending,
		ExpiresAt:      now.Add(time.Duration(timeout) * time.Second),
	}
	if in.AutoAccept {
		h.Status = StatusAccepted
		h.AcceptedAt = &now
	}

	if err := c.store.CreateHandoff(ctx, h); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to create handoff").WithCause(err)
	}

	c.logger.Info("handoff created",
		zap.String("handoff_id", h.ID),
		zap.String("from", h.FromAgentID),
		zap.String("to", h.ToAgentID),
		zap.Bool("auto_accept", in.AutoAccept),
	)
	c.emitter.Emit(ctx, broadcast.EventHandoffCreated, h)

	if in.AutoAccept {
		c.reassignConversation(ctx, h)
		c.emitter.Emit(ctx, broadcast.EventHandoffAccepted, h)
	}
	return h, nil
}

// Accept resolves a pending handoff as accepted. Only the target agent may
// accept; an already-resolved handoff returns InvalidState.
func (c *Coordinator) Accept(ctx context.Context, handoffID, actingAgentID string) (*Handoff, error) {
	h, err := c.store.GetHandoff(ctx, handoffID)
	if err != nil {
		return nil, err
	}
	if h.ToAgentID != actingAgentID {
		return nil, types.NewErrorf(types.ErrValidation, "agent %s is not the handoff target", actingAgentID)
	}

	now := time.Now()
	ok, err := c.store.ResolveHandoff(ctx, handoffID, StatusAccepted, now, "")
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to accept handoff").WithCause(err)
	}
	if !ok {
		return nil, types.NewErrorf(types.ErrInvalidState, "handoff %s is already %s", handoffID, h.Status)
	}

	h.Status = StatusAccepted
	h.AcceptedAt = &now

	c.reassignConversation(ctx, h)

	c.logger.Info("handoff accepted", zap.String("handoff_id", handoffID))
	c.emitter.Emit(ctx, broadcast.EventHandoffAccepted, h)
	return h, nil
}

// Reject resolves a pending handoff as rejected, persisting the reason.
func (c *Coordinator) Reject(ctx context.Context, handoffID, actingAgentID, reason string) (*Handoff, error) {
	h, err := c.store.GetHandoff(ctx, handoffID)
	if err != nil {
		return nil, err
	}
	if h.ToAgentID != actingAgentID {
		return nil, types.NewErrorf(types.ErrValidation, "agent %s is not the handoff target", actingAgentID)
	}

	now := time.Now()
	ok, err := c.store.ResolveHandoff(ctx, handoffID, StatusRejected, now, reason)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to reject handoff").WithCause(err)
	}
	if !ok {
		return nil, types.NewErrorf(types.ErrInvalidState, "handoff %s is already %s", handoffID, h.Status)
	}

	h.Status = StatusRejected
	h.RejectedAt = &now
	h.RejectReason = reason

	c.logger.Info("handoff rejected",
		zap.String("handoff_id", handoffID),
		zap.String("reason", reason),
	)
	c.emitter.Emit(ctx, broadcast.EventHandoffRejected, h)
	return h, nil
}

// Get retrieves a handoff scoped to an owner.
func (c *Coordinator) Get(ctx context.Context, handoffID, ownerID string) (*Handoff, error) {
	return c.store.GetOwnedHandoff(ctx, handoffID, ownerID)
}

// List lists an owner's handoffs, optionally filtered to statuses.
func (c *Coordinator) List(ctx context.Context, ownerID string, statuses ...Status) ([]*Handoff, error) {
	return c.store.ListHandoffs(ctx, ownerID, statuses...)
}

// Counts returns the owner's handoff counts per status.
func (c *Coordinator) Counts(ctx context.Context, ownerID string) (map[Status]int64, error) {
	return c.store.CountHandoffs(ctx, ownerID)
}

// SweepExpired expires pending handoffs past their deadline. Lost races are
// success-no-op; per-record errors are logged and skipped. Returns the
// number of handoffs expired.
func (c *Coordinator) SweepExpired(ctx context.Context) (int, error) {
	stale, err := c.store.ListExpiredHandoffs(ctx, time.Now())
	if err != nil {
		return 0, types.NewError(types.ErrInternalError, "failed to list expired handoffs").WithCause(err)
	}

	expired := 0
	for _, h := range stale {
		ok, err := c.store.ResolveHandoff(ctx, h.ID, StatusExpired, time.Now(), "")
		if err != nil {
			c.logger.Warn("expiry sweep skipped handoff",
				zap.String("handoff_id", h.ID),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}

		expired++
		h.Status = StatusExpired
		c.logger.Info("handoff expired", zap.String("handoff_id", h.ID))
		c.emitter.Emit(ctx, broadcast.EventHandoffExpired, h)
	}

	return expired, nil
}

// reassignConversation hands the conversation to the accepting agent.
// Failures are logged; the handoff resolution stands regardless.
func (c *Coordinator) reassignConversation(ctx context.Context, h *Handoff) {
	if c.conversations == nil || h.ConversationID == nil {
		return
	}
	if err := c.conversations.Reassign(ctx, *h.ConversationID, h.ToAgentID); err != nil {
		c.logger.Error("conversation reassignment failed",
			zap.String("handoff_id", h.ID),
			zap.String("conversation_id", *h.ConversationID),
			zap.Error(err),
		)
	}
}
