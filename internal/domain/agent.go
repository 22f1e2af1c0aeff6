// Package domain contains the conversation state types shared by every layer.
package domain

// AgentID names the conversation handler that owns a session's next turn.
type AgentID string

const (
	// AgentIdle marks a session with no prior interaction. It is never
	// persisted; Resolve maps it to AgentDiscovery.
	AgentIdle AgentID = "idle"
	// AgentDiscovery lists vacancies and lets the user pick one.
	AgentDiscovery AgentID = "discovery"
	// AgentJobInfo shows the selected vacancy and collects profile fields.
	AgentJobInfo AgentID = "job_info"
	// AgentApplication offers interview slots and records the selection.
	AgentApplication AgentID = "application"
)

// Agents lists every agent that can own a turn.
var Agents = []AgentID{AgentDiscovery, AgentJobInfo, AgentApplication}

// Valid reports whether a is one of the three working states.
func (a AgentID) Valid() bool {
	switch a {
	case AgentDiscovery, AgentJobInfo, AgentApplication:
		return true
	default:
		return false
	}
}

// Resolve returns the agent that should handle the next turn. Idle and
// empty identifiers resolve to Discovery.
func (a AgentID) Resolve() AgentID {
	if a == "" || a == AgentIdle {
		return AgentDiscovery
	}
	return a
}

func (a AgentID) String() string {
	if a == "" {
		return string(AgentIdle)
	}
	return string(a)
}
