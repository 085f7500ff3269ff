package handoff

import (
	"context"
	"time"
)

// Store is the durable storage the coordinator needs. Resolve must be a
// conditional update on status=pending so a handoff is resolved exactly
// once.
type Store interface {
	// CreateHandoff persists a new handoff.
	CreateHandoff(ctx context.Context, h *Handoff) error

	// GetHandoff retrieves a handoff by ID.
	GetHandoff(ctx context.Context, id string) (*Handoff, error)

	// GetOwnedHandoff retrieves a handoff scoped to an owner.
	GetOwnedHandoff(ctx context.Context, id, ownerID string) (*Handoff, error)

	// ListHandoffs lists an owner's handoffs, optionally filtered to statuses.
	ListHandoffs(ctx context.Context, ownerID string, statuses ...Status) ([]*Handoff, error)

	// CountHandoffs counts an owner's handoffs per status.
	CountHandoffs(ctx context.Context, ownerID string) (map[Status]int64, error)

	// ResolveHandoff moves pending -> to, recording the timestamp and, for
	// rejections, the reason. Returns false when the handoff was already
	// resolved.
	ResolveHandoff(ctx context.Context, id string, to Status, at time.Time, rejectReason string) (bool, error)

	// ListExpiredHandoffs lists pending handoffs of any owner whose
	// deadline is before now.
	ListExpiredHandoffs(ctx context.Context, now time.Time) ([]*Handoff, error)
}
