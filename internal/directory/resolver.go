// Package directory provides a cached lookup of agent records for hot
// paths that only need identity and status, such as request handlers
// resolving handoff targets. Lookups read through a Redis cache with a
// short TTL; concurrent misses for the same agent collapse into one
// database read.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hivechat/swarm/swarm/registry"
)

// Source is the authoritative agent lookup, implemented by the storage
// layer.
type Source interface {
	GetAgent(ctx context.Context, id string) (*registry.Agent, error)
}

// Resolver is a read-through cache over Source. A nil Redis client degrades
// to plain source lookups.
type Resolver struct {
	source Source
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	group  singleflight.Group
	logger *zap.Logger
}

// New creates a resolver. ttl bounds cache staleness; zero means 30
// seconds.
func New(source Source, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		prefix: "swarm:agent:",
		logger: logger.With(zap.String("component", "directory")),
	}
}

// Resolve returns the agent record, from cache when fresh.
func (r *Resolver) Resolve(ctx context.Context, id string) (*registry.Agent, error) {
	if r.rdb == nil {
		return r.source.GetAgent(ctx, id)
	}

	if agent, ok := r.cached(ctx, id); ok {
		return agent, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		agent, err := r.source.GetAgent(ctx, id)
		if err != nil {
			return nil, err
		}
		r.store(ctx, agent)
		return agent, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*registry.Agent), nil
}

// Invalidate drops the cached record, typically after a status change.
func (r *Resolver) Invalidate(ctx context.Context, id string) {
	if r.rdb == nil {
		return
	}
	if err := r.rdb.Del(ctx, r.prefix+id).Err(); err != nil {
		r.logger.Warn("cache invalidation failed",
			zap.String("agent_id", id),
			zap.Error(err),
		)
	}
}

func (r *Resolver) cached(ctx context.Context, id string) (*registry.Agent, bool) {
	raw, err := r.rdb.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache read failed", zap.String("agent_id", id), zap.Error(err))
		}
		return nil, false
	}
	var agent registry.Agent
	if err := json.Unmarshal(raw, &agent); err != nil {
		// Stale or corrupt entry; drop it and fall through to the source.
		_ = r.rdb.Del(ctx, r.prefix+id).Err()
		return nil, false
	}
	return &agent, true
}

func (r *Resolver) store(ctx context.Context, agent *registry.Agent) {
	raw, err := json.Marshal(agent)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, r.prefix+agent.ID, raw, r.ttl).Err(); err != nil {
		r.logger.Warn("cache write failed", zap.String("agent_id", agent.ID), zap.Error(err))
	}
}
