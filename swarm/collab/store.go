package collab

import (
	"context"
)

// Store is the durable storage the session manager needs. Round advancement
// and completion are conditional updates so concurrent contributors cannot
// skip a round or resurrect a completed session.
type Store interface {
	// CreateCollaboration persists a new session.
	CreateCollaboration(ctx context.Context, c *Collaboration) error

	// GetCollaboration retrieves a session with contributions by ID.
	GetCollaboration(ctx context.Context, id string) (*Collaboration, error)

	// GetOwnedCollaboration retrieves a session with contributions, scoped
	// to an owner.
	GetOwnedCollaboration(ctx context.Context, id, ownerID string) (*Collaboration, error)

	// ListCollaborations lists an owner's sessions, optionally filtered to
	// statuses.
	ListCollaborations(ctx context.Context, ownerID string, statuses ...Status) ([]*Collaboration, error)

	// CountCollaborations counts an owner's sessions per status.
	CountCollaborations(ctx context.Context, ownerID string) (map[Status]int64, error)

	// AddContribution appends a contribution.
	AddContribution(ctx context.Context, contrib *Contribution) error

	// AdvanceRound moves the session from round to round+1 where the
	// session is still active and on the given round.
	AdvanceRound(ctx context.Context, id string, fromRound int) (bool, error)

	// CompleteCollaboration moves active -> completed with a reason.
	// Returns false when the session was already completed.
	CompleteCollaboration(ctx context.Context, id, reason string) (bool, error)
}
