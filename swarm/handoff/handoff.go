package handoff

import (
	"time"
)

// Status is the state of a handoff request. pending is the only
// non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// IsTerminal reports whether the status is terminal.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// Handoff is a transfer of conversation ownership from one agent to
// another. Handoffs model a request/ack protocol: expired means nobody
// answered, rejected means the target declined.
type Handoff struct {
	ID             string     `json:"id" gorm:"primaryKey;size:64"`
	OwnerID        string     `json:"owner_id" gorm:"size:64;index:idx_handoffs_owner_status"`
	ConversationID *string    `json:"conversation_id,omitempty" gorm:"size:64"`
	FromAgentID    string     `json:"from_agent_id" gorm:"size:64"`
	ToAgentID      string     `json:"to_agent_id" gorm:"size:64;index"`
	Reason         string     `json:"reason"`
	RejectReason   string     `json:"reject_reason,omitempty"`
	Status         Status     `json:"status" gorm:"size:16;index:idx_handoffs_owner_status"`
	ExpiresAt      time.Time  `json:"expires_at" gorm:"index"`
	CreatedAt      time.Time  `json:"created_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`
}

// TableName implements the gorm table naming convention.
func (Handoff) TableName() string { return "handoffs" }
