package consensus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/internal/broadcast"
	"github.com/hivechat/swarm/types"
)

// Settings provides the live swarm configuration, read per operation.
type Settings interface {
	Swarm() config.SwarmConfig
}

// Engine collects weighted votes from a fixed set of agents and resolves a
// request the moment one option reaches the quorum threshold.
type Engine struct {
	store    Store
	settings Settings
	emitter  broadcast.Emitter
	logger   *zap.Logger
}

// New creates an engine.
func New(store Store, settings Settings, emitter broadcast.Emitter, logger *zap.Logger) *Engine {
	if emitter == nil {
		emitter = broadcast.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		settings: settings,
		emitter:  emitter,
		logger:   logger.With(zap.String("component", "consensus_engine")),
	}
}

// CreateInput holds the parameters for Create.
type CreateInput struct {
	OwnerID   string        `json:"owner_id"`
	Question  string        `json:"question"`
	Options   []string      `json:"options"`
	AgentIDs  []string      `json:"agent_ids"`
	Threshold float64       `json:"threshold,omitempty"`
	ExpiresIn time.Duration `json:"expires_in,omitempty"`
}

// Create opens a consensus request. Threshold defaults to the configured
// quorum fraction, ExpiresIn to the configured request lifetime.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*Request, error) {
	if in.OwnerID == "" || in.Question == "" {
		return nil, types.NewError(types.ErrValidation, "owner_id and question are required")
	}
	if len(in.Options) < 2 {
		return nil, types.NewError(types.ErrValidation, "at least two options are required")
	}
	if len(in.AgentIDs) == 0 {
		return nil, types.NewError(types.ErrValidation, "at least one eligible voter is required")
	}
	seen := make(map[string]bool, len(in.Options))
	for _, opt := range in.Options {
		if opt == "" {
			return nil, types.NewError(types.ErrValidation, "options must not be empty")
		}
		if seen[opt] {
			return nil, types.NewErrorf(types.ErrValidation, "duplicate option %q", opt)
		}
		seen[opt] = true
	}

	cfg := e.settings.Swarm()
	threshold := in.Threshold
	if threshold == 0 {
		threshold = cfg.ConsensusThresholdDefault
	}
	if threshold <= 0 || threshold > 1 {
		return nil, types.NewErrorf(types.ErrValidation, "threshold must be in (0,1], got %v", threshold)
	}

	expiresIn := in.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = cfg.ConsensusExpiry
	}

	r := &Request{
		ID:        uuid.New().String(),
		OwnerID:   in.OwnerID,
		Question:  in.Question,
		Options:   in.Options,
		AgentIDs:  in.AgentIDs,
		Threshold: threshold,
		Status:    StatusPending,
		ExpiresAt: time.Now().Add(expiresIn),
	}
	if err := e.store.CreateRequest(ctx, r); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to create consensus request").WithCause(err)
	}

	e.logger.Info("consensus request created",
		zap.String("request_id", r.ID),
		zap.Int("voters", len(r.AgentIDs)),
		zap.Float64("threshold", r.Threshold),
	)
	e.emitter.Emit(ctx, broadcast.EventConsensusCreated, r)
	return r, nil
}

// VoteResult is the synchronous outcome of a vote submission.
type VoteResult struct {
	Request  *Request       `json:"request"`
	Tally    map[string]int `json:"tally"`
	Resolved bool           `json:"resolved"`
}

// SubmitVote records an agent's vote and resolves the request when an
// option's fraction of the full eligible set reaches the threshold. A
// re-vote overwrites the agent's previous choice. Ties break by option
// index ascending.
func (e *Engine) SubmitVote(ctx context.Context, requestID, agentID, choice, reasoning string) (*VoteResult, error) {
	r, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if r.Status == StatusPending && time.Now().After(r.ExpiresAt) {
		// Read-time expiry: the sweep may not have run yet.
		if _, err := e.expire(ctx, r); err != nil {
			return nil, err
		}
		return nil, types.NewErrorf(types.ErrExpired, "consensus request %s has expired", requestID)
	}
	if r.Status != StatusPending {
		return nil, types.NewErrorf(types.ErrInvalidState, "consensus request %s is %s", requestID, r.Status)
	}
	if !r.Eligible(agentID) {
		return nil, types.NewErrorf(types.ErrValidation, "agent %s is not an eligible voter", agentID)
	}
	if !r.HasOption(choice) {
		return nil, types.NewErrorf(types.ErrValidation, "choice %q is not among the options", choice)
	}

	vote := &Vote{
		RequestID: requestID,
		AgentID:   agentID,
		Choice:    choice,
		Reasoning: reasoning,
		VotedAt:   time.Now(),
	}
	if err := e.store.UpsertVote(ctx, vote); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to record vote").WithCause(err)
	}

	e.emitter.Emit(ctx, broadcast.EventConsensusVote, map[string]any{
		"request_id": requestID,
		"agent_id":   agentID,
		"choice":     choice,
	})

	votes, err := e.store.ListVotes(ctx, requestID)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to tally votes").WithCause(err)
	}
	r.Votes = votes

	tally := Tally(r.Options, votes)
	result := &VoteResult{Request: r, Tally: tally}

	winner, quorum := Resolve(r.Options, tally, len(r.AgentIDs), r.Threshold)
	if !quorum {
		return result, nil
	}

	now := time.Now()
	ok, err := e.store.CompleteRequest(ctx, requestID, winner, now)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to resolve consensus request").WithCause(err)
	}
	if ok {
		r.Status = StatusCompleted
		r.Result = &winner
		r.CompletedAt = &now
		result.Resolved = true

		e.logger.Info("consensus reached",
			zap.String("request_id", requestID),
			zap.String("result", winner),
			zap.Int("votes", len(votes)),
		)
		e.emitter.Emit(ctx, broadcast.EventConsensusResolved, r)
	}
	return result, nil
}

// Get retrieves a request with its votes, applying read-time expiry to a
// pending request past its deadline.
func (e *Engine) Get(ctx context.Context, requestID, ownerID string) (*Request, error) {
	r, err := e.store.GetOwnedRequest(ctx, requestID, ownerID)
	if err != nil {
		return nil, err
	}

	if r.Status == StatusPending && time.Now().After(r.ExpiresAt) {
		if _, err := e.expire(ctx, r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// List lists an owner's requests, optionally filtered to statuses.
func (e *Engine) List(ctx context.Context, ownerID string, statuses ...Status) ([]*Request, error) {
	return e.store.ListRequests(ctx, ownerID, statuses...)
}

// Counts returns the owner's request counts per status.
func (e *Engine) Counts(ctx context.Context, ownerID string) (map[Status]int64, error) {
	return e.store.CountRequests(ctx, ownerID)
}

// SweepExpired expires pending requests past their deadline. Returns the
// number of requests expired.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	stale, err := e.store.ListExpiredRequests(ctx, time.Now())
	if err != nil {
		return 0, types.NewError(types.ErrInternalError, "failed to list expired requests").WithCause(err)
	}

	expired := 0
	for _, r := range stale {
		ok, err := e.expire(ctx, r)
		if err != nil {
			e.logger.Warn("expiry sweep skipped request",
				zap.String("request_id", r.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			expired++
		}
	}

	return expired, nil
}

// expire applies the pending -> expired transition. A lost race means the
// request resolved concurrently, which is success-no-op.
func (e *Engine) expire(ctx context.Context, r *Request) (bool, error) {
	ok, err := e.store.ExpireRequest(ctx, r.ID)
	if err != nil {
		return false, types.NewError(types.ErrInternalError, "failed to expire request").WithCause(err)
	}
	if !ok {
		return false, nil
	}

	r.Status = StatusExpired
	e.logger.Info("consensus request expired", zap.String("request_id", r.ID))
	e.emitter.Emit(ctx, broadcast.EventConsensusExpired, map[string]any{
		"request_id": r.ID,
		"owner_id":   r.OwnerID,
	})
	return true, nil
}
