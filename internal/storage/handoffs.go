package storage

import (
	"context"
	"time"

	"github.com/hivechat/swarm/swarm/handoff"
	"github.com/hivechat/swarm/types"
)

// CreateHandoff persists a new handoff.
func (s *Storage) CreateHandoff(ctx context.Context, h *handoff.Handoff) error {
	return s.db.WithContext(ctx).Create(h).Error
}

// GetHandoff retrieves a handoff by ID.
func (s *Storage) GetHandoff(ctx context.Context, id string) (*handoff.Handoff, error) {
	var h handoff.Handoff
	if err := s.db.WithContext(ctx).First(&h, "id = ?", id).Error; err != nil {
		return nil, wrapGet(err, "handoff", id)
	}
	return &h, nil
}

// GetOwnedHandoff retrieves a handoff scoped to an owner.
func (s *Storage) GetOwnedHandoff(ctx context.Context, id, ownerID string) (*handoff.Handoff, error) {
	var h handoff.Handoff
	err := s.db.WithContext(ctx).First(&h, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		return nil, wrapGet(err, "handoff", id)
	}
	return &h, nil
}

// ListHandoffs lists an owner's handoffs, newest first.
func (s *Storage) ListHandoffs(ctx context.Context, ownerID string, statuses ...handoff.Status) ([]*handoff.Handoff, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var handoffs []*handoff.Handoff
	if err := q.Order("created_at DESC").Find(&handoffs).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list handoffs").WithCause(err)
	}
	return handoffs, nil
}

// CountHandoffs counts an owner's handoffs per status.
func (s *Storage) CountHandoffs(ctx context.Context, ownerID string) (map[handoff.Status]int64, error) {
	var rows []struct {
		Status handoff.Status
		N      int64
	}
	err := s.db.WithContext(ctx).
		Model(&handoff.Handoff{}).
		Select("status, COUNT(*) AS n").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to count handoffs").WithCause(err)
	}
	counts := make(map[handoff.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// ResolveHandoff moves pending -> to. A handoff resolves exactly once: the
// status condition rejects the second resolver, whatever the outcome.
func (s *Storage) ResolveHandoff(ctx context.Context, id string, to handoff.Status, at time.Time, rejectReason string) (bool, error) {
	updates := map[string]any{"status": to}
	switch to {
	case handoff.StatusAccepted:
		updates["accepted_at"] = at
	case handoff.StatusRejected:
		updates["rejected_at"] = at
		updates["reject_reason"] = rejectReason
	}
	res := s.db.WithContext(ctx).
		Model(&handoff.Handoff{}).
		Where("id = ? AND status = ?", id, handoff.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to resolve handoff").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListExpiredHandoffs lists pending handoffs of any owner past their
// deadline.
func (s *Storage) ListExpiredHandoffs(ctx context.Context, now time.Time) ([]*handoff.Handoff, error) {
	var handoffs []*handoff.Handoff
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", handoff.StatusPending, now).
		Find(&handoffs).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list expired handoffs").WithCause(err)
	}
	return handoffs, nil
}
