// Package swarm wires the coordination services into one facade: agent
// registry, task orchestrator, handoff coordinator, consensus engine and
// collaboration manager, sharing one storage layer, one event emitter and
// one sweep scheduler.
package swarm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/internal/broadcast"
	"github.com/hivechat/swarm/internal/directory"
	"github.com/hivechat/swarm/internal/metrics"
	"github.com/hivechat/swarm/internal/storage"
	"github.com/hivechat/swarm/swarm/collab"
	"github.com/hivechat/swarm/swarm/consensus"
	"github.com/hivechat/swarm/swarm/handoff"
	"github.com/hivechat/swarm/swarm/orchestrator"
	"github.com/hivechat/swarm/swarm/registry"
	"github.com/hivechat/swarm/swarm/sweep"
	"github.com/hivechat/swarm/types"
)

// Options configures the facade. Storage and Settings are required;
// everything else has a working default.
type Options struct {
	Storage  *storage.Storage
	Settings *config.Store
	Emitter  broadcast.Emitter
	// Reassigner moves live conversations on accepted handoffs. Nil means
	// handoffs track state only.
	Reassigner handoff.ConversationReassigner
	// Directory, when set, serves handoff target lookups through its cache
	// instead of hitting storage on every create.
	Directory *directory.Resolver
	Collector *metrics.Collector
	Logger    *zap.Logger
}

// Swarm is the coordination facade.
type Swarm struct {
	Agents    *registry.Registry
	Tasks     *orchestrator.Orchestrator
	Handoffs  *handoff.Coordinator
	Consensus *consensus.Engine
	Collabs   *collab.Manager

	store     *storage.Storage
	settings  *config.Store
	emitter   broadcast.Emitter
	collector *metrics.Collector
	sweeper   *sweep.Sweeper
	logger    *zap.Logger
}

// New wires the services together.
func New(opts Options) (*Swarm, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("swarm: storage is required")
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("swarm: settings are required")
	}
	if opts.Emitter == nil {
		opts.Emitter = broadcast.NopEmitter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	emitter := opts.Emitter
	if opts.Collector != nil {
		emitter = metrics.WrapEmitter(emitter, opts.Collector)
	}

	agents := registry.New(opts.Storage, opts.Storage, emitter, opts.Logger)
	tasks := orchestrator.New(opts.Storage, agents, opts.Settings, emitter, opts.Logger)

	var targets handoff.AgentResolver = agents
	if opts.Directory != nil {
		targets = &cachedAgentResolver{directory: opts.Directory}
	}
	handoffs := handoff.New(opts.Storage, targets, opts.Reassigner, opts.Settings, emitter, opts.Logger)
	votes := consensus.New(opts.Storage, opts.Settings, emitter, opts.Logger)
	collabs := collab.New(opts.Storage, emitter, opts.Logger)

	return &Swarm{
		Agents:    agents,
		Tasks:     tasks,
		Handoffs:  handoffs,
		Consensus: votes,
		Collabs:   collabs,
		store:     opts.Storage,
		settings:  opts.Settings,
		emitter:   emitter,
		collector: opts.Collector,
		logger:    opts.Logger.With(zap.String("component", "swarm")),
	}, nil
}

// cachedAgentResolver serves owner-scoped agent lookups from the directory
// cache. Cache entries are not owner-keyed, so ownership is checked after
// resolution; a mismatch reads as not-found to avoid leaking existence.
type cachedAgentResolver struct {
	directory *directory.Resolver
}

func (r *cachedAgentResolver) Get(ctx context.Context, id, ownerID string) (*registry.Agent, error) {
	agent, err := r.directory.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if agent.OwnerID != ownerID {
		return nil, types.NewErrorf(types.ErrNotFound, "agent %s not found", id)
	}
	return agent, nil
}

// StartSweeps registers and starts the maintenance jobs: stale-agent
// detection, handoff expiry and consensus expiry.
func (s *Swarm) StartSweeps(sweeper *sweep.Sweeper) error {
	cfg := s.settings.Get()

	jobs := []struct {
		name  string
		every time.Duration
		run   sweep.Job
	}{
		{"stale_agents", cfg.Sweep.StaleAgentInterval, func(ctx context.Context) (int, error) {
			timeout := time.Duration(s.settings.Swarm().IdleAgentTimeoutMinutes) * time.Minute
			return s.Agents.SweepStale(ctx, timeout)
		}},
		{"handoff_expiry", cfg.Sweep.ExpiryInterval, s.Handoffs.SweepExpired},
		{"consensus_expiry", cfg.Sweep.ExpiryInterval, s.Consensus.SweepExpired},
	}

	for _, j := range jobs {
		run := j.run
		name := j.name
		if s.collector != nil {
			run = func(ctx context.Context) (int, error) {
				n, err := j.run(ctx)
				s.collector.CountSweep(name, n)
				return n, err
			}
		}
		if err := sweeper.Register(name, j.every, run); err != nil {
			return err
		}
	}

	sweeper.Start()
	s.sweeper = sweeper
	return nil
}

// Stop halts the sweeps and closes the emitter. Storage is closed by the
// caller that opened it.
func (s *Swarm) Stop() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if err := s.emitter.Close(); err != nil {
		s.logger.Warn("emitter close failed", zap.Error(err))
	}
}

// Status is the per-owner view over every coordination concern.
type Status struct {
	Agents         map[registry.Status]int64     `json:"agents"`
	Tasks          map[orchestrator.Status]int64 `json:"tasks"`
	Handoffs       map[handoff.Status]int64      `json:"handoffs"`
	Consensus      map[consensus.Status]int64    `json:"consensus"`
	Collaborations map[collab.Status]int64       `json:"collaborations"`
}

// Status aggregates an owner's counts across all services.
func (s *Swarm) Status(ctx context.Context, ownerID string) (*Status, error) {
	var st Status
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		st.Agents, err = s.Agents.Counts(ctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		st.Tasks, err = s.Tasks.Counts(ctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		st.Handoffs, err = s.Handoffs.Counts(ctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		st.Consensus, err = s.Consensus.Counts(ctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		st.Collaborations, err = s.Collabs.Counts(ctx, ownerID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Health reports per-dependency liveness.
type Health struct {
	Database  string `json:"database"`
	Broadcast string `json:"broadcast"`
	Sweeper   string `json:"sweeper"`
	Healthy   bool   `json:"healthy"`
}

// Health checks the facade's dependencies.
func (s *Swarm) Health(ctx context.Context) Health {
	h := Health{Database: "ok", Broadcast: "ok", Sweeper: "stopped", Healthy: true}

	if err := s.store.Ping(ctx); err != nil {
		h.Database = err.Error()
		h.Healthy = false
	}
	if err := s.emitter.Ping(ctx); err != nil {
		h.Broadcast = err.Error()
		h.Healthy = false
	}
	if s.sweeper != nil && s.sweeper.Running() {
		h.Sweeper = "running"
	}
	return h
}
