package consensus

import (
	"time"
)

// Status is the state of a consensus request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// Request is a poll posed to a fixed set of agents. The eligible voter set
// is immutable for the lifetime of the request; the quorum threshold is a
// fraction of that full set, not of votes cast.
type Request struct {
	ID          string     `json:"id" gorm:"primaryKey;size:64"`
	OwnerID     string     `json:"owner_id" gorm:"size:64;index:idx_consensus_owner_status"`
	Question    string     `json:"question"`
	Options     []string   `json:"options" gorm:"serializer:json"`
	AgentIDs    []string   `json:"agent_ids" gorm:"serializer:json"`
	Threshold   float64    `json:"threshold"`
	Status      Status     `json:"status" gorm:"size:16;index:idx_consensus_owner_status"`
	Result      *string    `json:"result,omitempty" gorm:"size:255"`
	ExpiresAt   time.Time  `json:"expires_at" gorm:"index"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Votes []*Vote `json:"votes,omitempty" gorm:"-"`
}

// TableName implements the gorm table naming convention.
func (Request) TableName() string { return "consensus_requests" }

// Eligible reports whether agentID belongs to the voter set.
func (r *Request) Eligible(agentID string) bool {
	for _, id := range r.AgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// HasOption reports whether choice is one of the request's options.
func (r *Request) HasOption(choice string) bool {
	for _, opt := range r.Options {
		if opt == choice {
			return true
		}
	}
	return false
}

// Vote is one agent's current choice on a request. Re-voting overwrites the
// previous row, keyed by (request_id, agent_id).
type Vote struct {
	RequestID string    `json:"request_id" gorm:"primaryKey;size:64"`
	AgentID   string    `json:"agent_id" gorm:"primaryKey;size:64"`
	Choice    string    `json:"choice" gorm:"size:255"`
	Reasoning string    `json:"reasoning,omitempty"`
	VotedAt   time.Time `json:"voted_at"`
}

// TableName implements the gorm table naming convention.
func (Vote) TableName() string { return "consensus_votes" }

// Tally counts votes per option, in option order. Votes for unknown options
// cannot exist by construction.
func Tally(options []string, votes []*Vote) map[string]int {
	tally := make(map[string]int, len(options))
	for _, opt := range options {
		tally[opt] = 0
	}
	for _, v := range votes {
		tally[v.Choice]++
	}
	return tally
}

// Resolve returns the first option, in option-index order, whose vote
// fraction over the full eligible set reaches threshold. The boolean
// reports whether a quorum exists.
func Resolve(options []string, tally map[string]int, eligible int, threshold float64) (string, bool) {
	if eligible == 0 {
		return "", false
	}
	for _, opt := range options {
		if float64(tally[opt])/float64(eligible) >= threshold {
			return opt, true
		}
	}
	return "", false
}
