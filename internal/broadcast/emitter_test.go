package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEmitter(t *testing.T) (*RedisEmitter, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisEmitter(client, "swarm:", zap.NewNop()), redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisEmitter_PublishesEnvelope(t *testing.T) {
	emitter, sub := newTestEmitter(t)
	defer sub.Close()

	ctx := context.Background()
	pubsub := sub.Subscribe(ctx, "swarm:"+EventTaskAssigned)
	defer pubsub.Close()

	// Wait for the subscription to be established.
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	emitter.Emit(ctx, EventTaskAssigned, map[string]string{"task_id": "t1", "agent_id": "a1"})

	select {
	case msg := <-pubsub.Channel():
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, EventTaskAssigned, env.Event)
		assert.False(t, env.Timestamp.IsZero())

		payload, ok := env.Payload.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "t1", payload["task_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestRedisEmitter_FailureDoesNotPanic(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	emitter := NewRedisEmitter(client, "swarm:", zap.NewNop())

	// Broken sink must be silent for callers.
	emitter.Emit(context.Background(), EventTaskCreated, nil)
	assert.Error(t, emitter.Ping(context.Background()))
}

func TestNopEmitter(t *testing.T) {
	var e Emitter = NopEmitter{}
	e.Emit(context.Background(), EventTaskCreated, nil)
	assert.NoError(t, e.Ping(context.Background()))
	assert.NoError(t, e.Close())
}
