package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/jobassist/internal/delivery"
	"github.com/ashureev/jobassist/internal/domain"
	"github.com/ashureev/jobassist/internal/middleware"
	"github.com/ashureev/jobassist/internal/orchestrator"
)

type fakeRunner struct {
	got domain.InboundEvent
	res orchestrator.Result
	err error
}

func (f *fakeRunner) HandleTurn(_ context.Context, ev domain.InboundEvent) (orchestrator.Result, error) {
	f.got = ev
	return f.res, f.err
}

type fakeSessions struct {
	sessions map[string]*domain.Session
	err      error
}

func (f *fakeSessions) GetSession(_ context.Context, app, user string) (*domain.Session, error) {
	return f.sessions[app+"/"+user], f.err
}

func (f *fakeSessions) ListUsers(context.Context, string) ([]domain.UserSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.UserSummary
	for _, s := range f.sessions {
		out = append(out, domain.UserSummary{UserID: s.UserID, Channel: s.Channel, ActiveAgent: s.ActiveAgent})
	}
	return out, nil
}

func newTestRouter(h *Handler, token string) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r, middleware.BearerToken(token))
	return r
}

func TestHandleTurn(t *testing.T) {
	runner := &fakeRunner{res: orchestrator.Result{
		TurnID:      "t-1",
		UserID:      "525512345678",
		ActiveAgent: domain.AgentDiscovery,
		Outcome:     orchestrator.OutcomeOK,
		Reply:       domain.Reply{Text: "Estas son las vacantes disponibles"},
		Delivered:   false,
		DeliveryErr: fmt.Errorf("%w: status 400", delivery.ErrDeliveryFailed),
	}}
	srv := newTestRouter(NewHandler(runner, &fakeSessions{}, "Jobs Support"), "")

	body := `{"message_id":"m1","user_id":"5215512345678","channel":"whatsapp","text":"hola","referral":{"ad_id":"AD-9"}}`
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/turns", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5215512345678", runner.got.UserID)
	assert.Equal(t, domain.ChannelWhatsApp, runner.got.Channel)
	require.NotNil(t, runner.got.Referral)
	assert.Equal(t, "AD-9", runner.got.Referral.AdID)

	var got map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "t-1", got["turn_id"])
	assert.Equal(t, "discovery", got["active_agent"])
	assert.Contains(t, got["delivery_error"], "status 400")
}

func TestHandleTurnErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"invalid event", `{}`, fmt.Errorf("%w: empty message", orchestrator.ErrInvalidEvent), http.StatusBadRequest},
		{"cancelled", `{}`, fmt.Errorf("wait for user turn: %w", context.Canceled), http.StatusServiceUnavailable},
		{"store down", `{}`, errors.New("persist session: disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestRouter(NewHandler(&fakeRunner{err: tt.err}, &fakeSessions{}, "Jobs Support"), "")
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/turns", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSessionInspection(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*domain.Session{
		"Jobs Support/u1": {AppName: "Jobs Support", UserID: "u1", Channel: domain.ChannelMessenger, ActiveAgent: domain.AgentJobInfo},
	}}
	srv := newTestRouter(NewHandler(&fakeRunner{}, sessions, "Jobs Support"), "tok")

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/sessions", "").Code)

	w := get("/api/sessions", "tok")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)

	w = get("/api/sessions/u1", "tok")
	require.Equal(t, http.StatusOK, w.Code)
	var sess domain.Session
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sess))
	assert.Equal(t, domain.AgentJobInfo, sess.ActiveAgent)

	assert.Equal(t, http.StatusNotFound, get("/api/sessions/nobody", "tok").Code)

	sessions.err = errors.New("db gone")
	assert.Equal(t, http.StatusInternalServerError, get("/api/sessions", "tok").Code)
}

func TestListSessionsEmpty(t *testing.T) {
	srv := newTestRouter(NewHandler(&fakeRunner{}, &fakeSessions{}, "Jobs Support"), "")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"users":[]}`, w.Body.String())
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	r := chi.NewRouter()
	NewHealthHandler(fakePinger{}, 0).RegisterHealth(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	r = chi.NewRouter()
	NewHealthHandler(fakePinger{err: errors.New("down")}, 0).RegisterHealth(r)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}
