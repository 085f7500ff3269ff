package consensus

import (
	"context"
	"time"
)

// Store is the durable storage the engine needs. CompleteRequest and
// ExpireRequest are conditional updates on status=pending so a request
// resolves exactly once and never un-resolves.
type Store interface {
	// CreateRequest persists a new request.
	CreateRequest(ctx context.Context, r *Request) error

	// GetRequest retrieves a request by ID (votes not loaded).
	GetRequest(ctx context.Context, id string) (*Request, error)

	// GetOwnedRequest retrieves a request with votes, scoped to an owner.
	GetOwnedRequest(ctx context.Context, id, ownerID string) (*Request, error)

	// ListRequests lists an owner's requests, optionally filtered to statuses.
	ListRequests(ctx context.Context, ownerID string, statuses ...Status) ([]*Request, error)

	// CountRequests counts an owner's requests per status.
	CountRequests(ctx context.Context, ownerID string) (map[Status]int64, error)

	// UpsertVote records a vote, overwriting the agent's previous one.
	UpsertVote(ctx context.Context, v *Vote) error

	// ListVotes lists a request's votes.
	ListVotes(ctx context.Context, requestID string) ([]*Vote, error)

	// CompleteRequest moves pending -> completed with the winning option.
	// Returns false when the request was already resolved.
	CompleteRequest(ctx context.Context, id, result string, at time.Time) (bool, error)

	// ExpireRequest moves pending -> expired. Returns false when the
	// request was already resolved.
	ExpireRequest(ctx context.Context, id string) (bool, error)

	// ListExpiredRequests lists pending requests of any owner past their
	// deadline.
	ListExpiredRequests(ctx context.Context, now time.Time) ([]*Request, error)
}
