// Package broadcast provides the notification sink the swarm core publishes
// state-transition events to. Delivery is best-effort and at-most-once: a
// failed publish is logged and never rolls back the transition that caused it.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event names emitted by the swarm core.
const (
	EventAgentStatusChanged = "agent.status_changed"
	EventTaskCreated        = "task.created"
	EventTaskAssigned       = "task.assigned"
	EventTaskStarted        = "task.started"
	EventTaskCompleted      = "task.completed"
	EventTaskFailed         = "task.failed"
	EventTaskRequeued       = "task.requeued"
	EventTaskCancelled      = "task.cancelled"
	EventHandoffCreated     = "handoff.created"
	EventHandoffAccepted    = "handoff.accepted"
	EventHandoffRejected    = "handoff.rejected"
	EventHandoffExpired     = "handoff.expired"
	EventConsensusCreated   = "consensus.created"
	EventConsensusVote      = "consensus.vote"
	EventConsensusResolved  = "consensus.resolved"
	EventConsensusExpired   = "consensus.expired"
	EventCollabStarted      = "collab.started"
	EventCollabContribution = "collab.contribution"
	EventCollabRoundAdvance = "collab.round_advanced"
	EventCollabCompleted    = "collab.completed"
)

// Emitter publishes state-transition events to interested collaborators.
// Implementations must not block the caller on delivery failures.
type Emitter interface {
	// Emit publishes a named event with an arbitrary payload.
	Emit(ctx context.Context, event string, payload any)

	// Ping checks sink connectivity.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Envelope is the wire format published to the sink.
type Envelope struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NopEmitter discards all events. Used when no sink is configured and in tests.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) {}
func (NopEmitter) Ping(context.Context) error        { return nil }
func (NopEmitter) Close() error                      { return nil }

// RedisEmitter publishes events to Redis pub/sub channels, one channel per
// event name under a common prefix.
type RedisEmitter struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisEmitter creates an emitter publishing to the given Redis client.
func NewRedisEmitter(client *redis.Client, prefix string, logger *zap.Logger) *RedisEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisEmitter{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "broadcast")),
	}
}

// Emit publishes the event. Failures are logged and otherwise ignored.
func (e *RedisEmitter) Emit(ctx context.Context, event string, payload any) {
	data, err := json.Marshal(Envelope{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		e.logger.Warn("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	if err := e.client.Publish(ctx, e.prefix+event, data).Err(); err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// Ping checks Redis connectivity.
func (e *RedisEmitter) Ping(ctx context.Context) error {
	return e.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (e *RedisEmitter) Close() error {
	return e.client.Close()
}

var (
	_ Emitter = NopEmitter{}
	_ Emitter = (*RedisEmitter)(nil)
)
