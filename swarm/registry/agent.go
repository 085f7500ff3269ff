package registry

import (
	"time"
)

// Status is the runtime status of an agent.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// statusTransitions is the closed set of legal status edges. Transitions are
// set exclusively by the registry operations and the liveness sweep; anything
// outside this table is rejected with InvalidState.
var statusTransitions = map[Status][]Status{
	StatusIdle:    {StatusBusy, StatusOffline, StatusError},
	StatusBusy:    {StatusIdle, StatusOffline, StatusError},
	StatusOffline: {StatusIdle, StatusError},
	StatusError:   {StatusIdle, StatusOffline},
}

// CanTransition reports whether from -> to is a legal status edge.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusBusy, StatusOffline, StatusError:
		return true
	}
	return false
}

// DefaultReputation is the reputation score assigned to new agents. It is
// used as a tiebreaker when ranking agents for assignment.
const DefaultReputation = 100.0

// Agent is the identity and runtime state of a swarm agent. Agents are
// provisioned out-of-band; the registry only reads and updates runtime state.
type Agent struct {
	ID              string     `json:"id" gorm:"primaryKey;size:64"`
	OwnerID         string     `json:"owner_id" gorm:"size:64;index:idx_agents_owner_status"`
	Name            string     `json:"name" gorm:"size:255"`
	Status          Status     `json:"status" gorm:"size:16;index:idx_agents_owner_status"`
	ReputationScore float64    `json:"reputation_score" gorm:"default:100"`
	Skills          []string   `json:"skills" gorm:"serializer:json"`
	LastHeartbeatAt time.Time  `json:"last_heartbeat_at" gorm:"index"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName implements the gorm table naming convention.
func (Agent) TableName() string { return "agents" }

// HasAnySkill reports whether the agent's skill set intersects the filter.
// An empty filter matches every agent.
func (a *Agent) HasAnySkill(filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		for _, have := range a.Skills {
			if have == want {
				return true
			}
		}
	}
	return false
}
