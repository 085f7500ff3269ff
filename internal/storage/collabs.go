package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/hivechat/swarm/swarm/collab"
	"github.com/hivechat/swarm/types"
)

// CreateCollaboration persists a new session.
func (s *Storage) CreateCollaboration(ctx context.Context, c *collab.Collaboration) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// GetCollaboration retrieves a session with its contributions.
func (s *Storage) GetCollaboration(ctx context.Context, id string) (*collab.Collaboration, error) {
	var c collab.Collaboration
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, wrapGet(err, "collaboration", id)
	}
	if err := s.loadContributions(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOwnedCollaboration retrieves a session with its contributions, scoped
// to an owner.
func (s *Storage) GetOwnedCollaboration(ctx context.Context, id, ownerID string) (*collab.Collaboration, error) {
	var c collab.Collaboration
	err := s.db.WithContext(ctx).First(&c, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		return nil, wrapGet(err, "collaboration", id)
	}
	if err := s.loadContributions(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Storage) loadContributions(ctx context.Context, c *collab.Collaboration) error {
	var contribs []*collab.Contribution
	err := s.db.WithContext(ctx).
		Where("collaboration_id = ?", c.ID).
		Order("created_at ASC").
		Find(&contribs).Error
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to load contributions").WithCause(err)
	}
	c.Contributions = contribs
	return nil
}

// ListCollaborations lists an owner's sessions, newest first.
func (s *Storage) ListCollaborations(ctx context.Context, ownerID string, statuses ...collab.Status) ([]*collab.Collaboration, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var sessions []*collab.Collaboration
	if err := q.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list collaborations").WithCause(err)
	}
	return sessions, nil
}

// CountCollaborations counts an owner's sessions per status.
func (s *Storage) CountCollaborations(ctx context.Context, ownerID string) (map[collab.Status]int64, error) {
	var rows []struct {
		Status collab.Status
		N      int64
	}
	err := s.db.WithContext(ctx).
		Model(&collab.Collaboration{}).
		Select("status, COUNT(*) AS n").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to count collaborations").WithCause(err)
	}
	counts := make(map[collab.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// AddContribution appends a contribution.
func (s *Storage) AddContribution(ctx context.Context, contrib *collab.Contribution) error {
	return s.db.WithContext(ctx).Create(contrib).Error
}

// AdvanceRound moves the session from fromRound to fromRound+1 where it is
// still active and on that round. Concurrent contributors race on the round
// condition; the losers observe a no-op.
func (s *Storage) AdvanceRound(ctx context.Context, id string, fromRound int) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&collab.Collaboration{}).
		Where("id = ? AND status = ? AND round = ?", id, collab.StatusActive, fromRound).
		Update("round", gorm.Expr("round + 1"))
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to advance round").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CompleteCollaboration moves active -> completed with a reason.
func (s *Storage) CompleteCollaboration(ctx context.Context, id, reason string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&collab.Collaboration{}).
		Where("id = ? AND status = ?", id, collab.StatusActive).
		Updates(map[string]any{
			"status":           collab.StatusCompleted,
			"completed_reason": reason,
		})
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to complete collaboration").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}
