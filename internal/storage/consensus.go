package storage

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/hivechat/swarm/swarm/consensus"
	"github.com/hivechat/swarm/types"
)

// CreateRequest persists a new request.
func (s *Storage) CreateRequest(ctx context.Context, r *consensus.Request) error {
	return s.db.WithContext(ctx).Create(r).Error
}

// GetRequest retrieves a request by ID, without votes.
func (s *Storage) GetRequest(ctx context.Context, id string) (*consensus.Request, error) {
	var r consensus.Request
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, wrapGet(err, "consensus request", id)
	}
	return &r, nil
}

// GetOwnedRequest retrieves a request with its votes, scoped to an owner.
func (s *Storage) GetOwnedRequest(ctx context.Context, id, ownerID string) (*consensus.Request, error) {
	var r consensus.Request
	err := s.db.WithContext(ctx).First(&r, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		return nil, wrapGet(err, "consensus request", id)
	}
	votes, err := s.ListVotes(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Votes = votes
	return &r, nil
}

// ListRequests lists an owner's requests, newest first.
func (s *Storage) ListRequests(ctx context.Context, ownerID string, statuses ...consensus.Status) ([]*consensus.Request, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var requests []*consensus.Request
	if err := q.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list consensus requests").WithCause(err)
	}
	return requests, nil
}

// CountRequests counts an owner's requests per status.
func (s *Storage) CountRequests(ctx context.Context, ownerID string) (map[consensus.Status]int64, error) {
	var rows []struct {
		Status consensus.Status
		N      int64
	}
	err := s.db.WithContext(ctx).
		Model(&consensus.Request{}).
		Select("status, COUNT(*) AS n").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to count consensus requests").WithCause(err)
	}
	counts := make(map[consensus.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// UpsertVote records a vote, overwriting the agent's previous one for the
// same request.
func (s *Storage) UpsertVote(ctx context.Context, v *consensus.Vote) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}, {Name: "agent_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"choice", "reasoning", "voted_at"}),
		}).
		Create(v).Error
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to record vote").WithCause(err)
	}
	return nil
}

// ListVotes lists a request's votes in voting order.
func (s *Storage) ListVotes(ctx context.Context, requestID string) ([]*consensus.Vote, error) {
	var votes []*consensus.Vote
	err := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("voted_at ASC").
		Find(&votes).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list votes").WithCause(err)
	}
	return votes, nil
}

// CompleteRequest moves pending -> completed with the winning option. The
// status condition guarantees a request resolves exactly once.
func (s *Storage) CompleteRequest(ctx context.Context, id, result string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&consensus.Request{}).
		Where("id = ? AND status = ?", id, consensus.StatusPending).
		Updates(map[string]any{
			"status":       consensus.StatusCompleted,
			"result":       result,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to complete consensus request").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ExpireRequest moves pending -> expired.
func (s *Storage) ExpireRequest(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&consensus.Request{}).
		Where("id = ? AND status = ?", id, consensus.StatusPending).
		Update("status", consensus.StatusExpired)
	if res.Error != nil {
		return false, types.NewError(types.ErrInternalError, "failed to expire consensus request").WithCause(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListExpiredRequests lists pending requests of any owner past their
// deadline.
func (s *Storage) ListExpiredRequests(ctx context.Context, now time.Time) ([]*consensus.Request, error) {
	var requests []*consensus.Request
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", consensus.StatusPending, now).
		Find(&requests).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list expired consensus requests").WithCause(err)
	}
	return requests, nil
}
