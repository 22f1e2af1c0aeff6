// Package watch streams persisted session updates to inspection clients over
// WebSocket.
package watch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event describes one persisted turn.
type Event struct {
	TurnID      string    `json:"turn_id"`
	AppName     string    `json:"app_name"`
	UserID      string    `json:"user_id"`
	Channel     string    `json:"channel"`
	ActiveAgent string    `json:"active_agent"`
	JobID       string    `json:"job_id,omitempty"`
	Outcome     string    `json:"outcome"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type subscriber struct {
	userID string
	ch     chan Event
}

// Hub fans session updates out to subscribers. A slow subscriber loses
// events instead of blocking publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	buffer int
	logger *slog.Logger
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]*subscriber),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber. An empty userID receives every event.
// The returned function unregisters it and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	id := uuid.NewString()
	sub := &subscriber{userID: userID, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()
	h.logger.Info("Watch subscriber registered", "subscriber_id", id, "user_id", userID)

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
			h.mu.Unlock()
			h.logger.Info("Watch subscriber unregistered", "subscriber_id", id)
		})
	}
}

// Publish delivers ev to every matching subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.subs {
		if sub.userID != "" && sub.userID != ev.UserID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("Watch subscriber is behind, dropping event", "subscriber_id", id, "user_id", ev.UserID)
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}
