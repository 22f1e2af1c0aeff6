package domain

import (
	"strings"
	"time"
)

// InboundEvent is a user message after transport normalization.
type InboundEvent struct {
	MessageID  string    `json:"message_id,omitempty"`
	UserID     string    `json:"user_id"`
	Channel    Channel   `json:"channel"`
	Text       string    `json:"text,omitempty"`
	Postback   string    `json:"postback,omitempty"`
	Referral   *Referral `json:"referral,omitempty"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// Input returns the postback payload when present, otherwise the text.
func (e InboundEvent) Input() string {
	if p := strings.TrimSpace(e.Postback); p != "" {
		return p
	}
	return strings.TrimSpace(e.Text)
}

// QuickReply is a suggested answer rendered by the channel as a button.
type QuickReply struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Reply is the outbound payload for one turn.
type Reply struct {
	Channel      Channel      `json:"channel"`
	UserID       string       `json:"user_id"`
	Text         string       `json:"text"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}
