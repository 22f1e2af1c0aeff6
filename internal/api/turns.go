package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/jobassist/internal/domain"
	"github.com/ashureev/jobassist/internal/orchestrator"
)

const maxTurnBody = 64 << 10

type turnRequest struct {
	MessageID string           `json:"message_id"`
	UserID    string           `json:"user_id"`
	Channel   domain.Channel   `json:"channel"`
	Text      string           `json:"text"`
	Postback  string           `json:"postback"`
	Referral  *domain.Referral `json:"referral"`
}

type turnResponse struct {
	orchestrator.Result
	DeliveryError string `json:"delivery_error,omitempty"`
}

// RegisterRoutes registers the turn intake and session inspection routes.
// guard protects the inspection routes.
func (h *Handler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Post("/api/turns", h.HandleTurn)
	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Get("/api/sessions", h.ListSessions)
		r.Get("/api/sessions/{userID}", h.GetSession)
	})
}

// HandleTurn accepts one normalized inbound event and returns the reply that
// was sent.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody))
	if err := dec.Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.turns.HandleTurn(r.Context(), domain.InboundEvent{
		MessageID:  req.MessageID,
		UserID:     req.UserID,
		Channel:    req.Channel,
		Text:       req.Text,
		Postback:   req.Postback,
		Referral:   req.Referral,
		ReceivedAt: time.Now(),
	})
	switch {
	case errors.Is(err, orchestrator.ErrInvalidEvent):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		Error(w, http.StatusServiceUnavailable, "turn cancelled")
		return
	case err != nil:
		slog.Error("Turn failed", "user_id", req.UserID, "channel", req.Channel, "error", err)
		Error(w, http.StatusInternalServerError, "turn failed")
		return
	}

	resp := turnResponse{Result: res}
	if res.DeliveryErr != nil {
		resp.DeliveryError = res.DeliveryErr.Error()
	}
	JSON(w, http.StatusOK, resp)
}

// ListSessions returns the users of this application, most recent first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	users, err := h.sessions.ListUsers(r.Context(), h.appName)
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if users == nil {
		users = []domain.UserSummary{}
	}
	JSON(w, http.StatusOK, map[string]any{"users": users})
}

// GetSession returns the stored session of one user.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	sess, err := h.sessions.GetSession(r.Context(), h.appName, userID)
	if err != nil {
		slog.Error("Failed to load session", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, sess)
}
