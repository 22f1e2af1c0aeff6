// Package api provides HTTP handlers for the job assistant API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/jobassist/internal/domain"
	"github.com/ashureev/jobassist/internal/orchestrator"
)

// TurnRunner runs one conversation turn.
type TurnRunner interface {
	HandleTurn(ctx context.Context, ev domain.InboundEvent) (orchestrator.Result, error)
}

// SessionReader is the read side of the session store.
type SessionReader interface {
	GetSession(ctx context.Context, appName, userID string) (*domain.Session, error)
	ListUsers(ctx context.Context, appName string) ([]domain.UserSummary, error)
}

// Handler provides common handler utilities.
type Handler struct {
	turns    TurnRunner
	sessions SessionReader
	appName  string
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(turns TurnRunner, sessions SessionReader, appName string) *Handler {
	return &Handler{
		turns:    turns,
		sessions: sessions,
		appName:  appName,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
