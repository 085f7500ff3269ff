package collab

import (
	"time"
)

// Mode controls how agents take turns within a round.
type Mode string

const (
	// ModeSequential runs agents in agent_ids order, one contribution each
	// per round.
	ModeSequential Mode = "sequential"
	// ModeParallel lets any participant contribute freely; rounds advance
	// only explicitly.
	ModeParallel Mode = "parallel"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSequential || m == ModeParallel
}

// Status is the state of a collaboration session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Completion reasons recorded when a session ends.
const (
	ReasonCallerRequested = "caller_requested"
	ReasonRoundsExhausted = "rounds_exhausted"
)

// Collaboration is a bounded multi-round working session where several
// agents contribute to one shared task. MaxRounds is a hard circuit
// breaker independent of any single agent's behavior.
type Collaboration struct {
	ID              string    `json:"id" gorm:"primaryKey;size:64"`
	OwnerID         string    `json:"owner_id" gorm:"size:64;index:idx_collabs_owner_status"`
	AgentIDs        []string  `json:"agent_ids" gorm:"serializer:json"`
	Task            string    `json:"task"`
	Context         string    `json:"context,omitempty"`
	Mode            Mode      `json:"mode" gorm:"size:16"`
	MaxRounds       int       `json:"max_rounds"`
	Round           int       `json:"round"`
	Status          Status    `json:"status" gorm:"size:16;index:idx_collabs_owner_status"`
	CompletedReason string    `json:"completed_reason,omitempty" gorm:"size:64"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Contributions []*Contribution `json:"contributions,omitempty" gorm:"-"`
}

// TableName implements the gorm table naming convention.
func (Collaboration) TableName() string { return "collaborations" }

// Participant reports whether agentID takes part in the session.
func (c *Collaboration) Participant(agentID string) bool {
	for _, id := range c.AgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// roundContributions counts contributions tagged with the current round.
func (c *Collaboration) roundContributions() int {
	n := 0
	for _, contrib := range c.Contributions {
		if contrib.Round == c.Round {
			n++
		}
	}
	return n
}

// NextContributor returns the agent expected next in sequential mode.
func (c *Collaboration) NextContributor() string {
	if len(c.AgentIDs) == 0 {
		return ""
	}
	return c.AgentIDs[c.roundContributions()%len(c.AgentIDs)]
}

// Contribution is one agent's addition to a session, tagged with the round
// it was made in.
type Contribution struct {
	ID              string         `json:"id" gorm:"primaryKey;size:64"`
	CollaborationID string         `json:"collaboration_id" gorm:"size:64;index"`
	AgentID         string         `json:"agent_id" gorm:"size:64"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty" gorm:"serializer:json"`
	Round           int            `json:"round"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TableName implements the gorm table naming convention.
func (Contribution) TableName() string { return "collab_contributions" }
