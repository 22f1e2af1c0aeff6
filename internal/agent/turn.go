// Package agent implements the conversation handlers and the router that
// moves turn ownership between them.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
)

// Handler owns one stage of the conversation.
type Handler interface {
	// ID returns the agent this handler implements.
	ID() domain.AgentID
	// Handle answers one turn. The session in turn is a private copy; all
	// changes go through the returned Result.
	Handle(ctx context.Context, turn Turn) (Result, error)
}

// Turn is the input of a handler.
type Turn struct {
	Session domain.Session
	Event   domain.InboundEvent
	Intent  Intent
	// Working is the handler's own private state from the previous turn.
	Working json.RawMessage
	Now     time.Time
}

// Patch is the only way a handler changes session state.
type Patch struct {
	// SelectJob starts the discussion of a new job, replacing the whole
	// context and invalidating any slot selection.
	SelectJob string
	// Job enriches the current job. Its ID must match the selected job.
	Job *domain.JobContext
	// Profile fields that are non-empty are merged into the profile.
	Profile domain.Profile
	// Selection records an interview slot for the current job.
	Selection *domain.SlotSelection
	// Application records a confirmed application.
	Application *domain.Application
}

// Directive hands the turn to another agent.
type Directive struct {
	Target domain.AgentID
	Patch  Patch
	// Enter lets the target answer within the same turn.
	Enter bool
}

// Result is the output of a handler.
type Result struct {
	Text         string
	QuickReplies []domain.QuickReply
	Patch        Patch
	// Working replaces the handler's private state when non-nil.
	Working json.RawMessage
	HandOff *Directive
}

func decodeWorking(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode working state: %w", err)
	}
	return nil
}

func encodeWorking(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Working state types are plain structs; this cannot fail.
		panic(fmt.Sprintf("encode working state: %v", err))
	}
	return data
}
