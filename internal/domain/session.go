package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// Channel identifies the messaging platform a user writes from.
type Channel string

const (
	ChannelMessenger Channel = "messenger"
	ChannelWhatsApp  Channel = "whatsapp"
)

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	return c == ChannelMessenger || c == ChannelWhatsApp
}

// Session is the persisted conversation state of one user of one
// application.
type Session struct {
	AppName      string         `json:"app_name"`
	UserID       string         `json:"user_id"`
	Channel      Channel        `json:"channel"`
	ActiveAgent  AgentID        `json:"active_agent"`
	Context      JobContext     `json:"context"`
	Profile      Profile        `json:"profile"`
	Referral     *Referral      `json:"referral,omitempty"`
	Selection    *SlotSelection `json:"selection,omitempty"`
	Applications []Application  `json:"applications,omitempty"`
	// Working holds each agent's private state, keyed by the owning agent.
	Working   map[AgentID]json.RawMessage `json:"working,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// NewSession returns the state of a user seen for the first time.
func NewSession(appName, userID string, channel Channel, now time.Time) *Session {
	return &Session{
		AppName:     appName,
		UserID:      userID,
		Channel:     channel,
		ActiveAgent: AgentDiscovery,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Referral != nil {
		r := *s.Referral
		c.Referral = &r
	}
	if s.Selection != nil {
		sel := *s.Selection
		c.Selection = &sel
	}
	c.Applications = slices.Clone(s.Applications)
	if s.Working != nil {
		c.Working = make(map[AgentID]json.RawMessage, len(s.Working))
		for k, v := range s.Working {
			c.Working[k] = slices.Clone(v)
		}
	}
	return &c
}

// HasApplied reports whether an application was already recorded for jobID.
func (s *Session) HasApplied(jobID string) bool {
	for _, a := range s.Applications {
		if a.JobID == jobID {
			return true
		}
	}
	return false
}

// UserSummary is one row of the session inspection listing.
type UserSummary struct {
	UserID      string    `json:"user_id"`
	Channel     Channel   `json:"channel"`
	ActiveAgent AgentID   `json:"active_agent"`
	UpdatedAt   time.Time `json:"updated_at"`
}
