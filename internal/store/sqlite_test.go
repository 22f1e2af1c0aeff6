package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteGetSessionAbsent(t *testing.T) {
	repo := newTestStore(t)

	got, err := repo.GetSession(context.Background(), "Jobs Support", "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLitePutGetRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	s := domain.NewSession("Jobs Support", "5215550001", domain.ChannelWhatsApp, now)
	s.ActiveAgent = domain.AgentJobInfo
	s.Context = domain.JobContext{ID: "151", Title: "Cajero", Available: true, Loaded: true}
	s.Profile = domain.Profile{FirstName: "Ana"}
	s.Referral = &domain.Referral{AdID: "ad-9"}
	s.Working = map[domain.AgentID]json.RawMessage{
		domain.AgentJobInfo: json.RawMessage(`{"awaiting":"last_name"}`),
	}
	require.NoError(t, repo.PutSession(ctx, s))

	got, err := repo.GetSession(ctx, "Jobs Support", "5215550001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.AgentJobInfo, got.ActiveAgent)
	assert.Equal(t, s.Context, got.Context)
	assert.Equal(t, s.Profile, got.Profile)
	assert.Equal(t, "ad-9", got.Referral.AdID)
	assert.JSONEq(t, `{"awaiting":"last_name"}`, string(got.Working[domain.AgentJobInfo]))
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestSQLitePutReplacesRecord(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	s := domain.NewSession("Jobs Support", "u1", domain.ChannelMessenger, now)
	require.NoError(t, repo.PutSession(ctx, s))

	s.ActiveAgent = domain.AgentApplication
	s.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.PutSession(ctx, s))

	got, err := repo.GetSession(ctx, "Jobs Support", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentApplication, got.ActiveAgent)
}

func TestSQLiteSessionsAreScopedByApp(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, repo.PutSession(ctx, domain.NewSession("app-a", "u1", domain.ChannelMessenger, time.Now())))

	got, err := repo.GetSession(ctx, "app-b", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteListUsersNewestFirst(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "newest", "middle"} {
		s := domain.NewSession("Jobs Support", id, domain.ChannelMessenger, base)
		s.UpdatedAt = base.Add(time.Duration([]int{1, 3, 2}[i]) * time.Hour)
		require.NoError(t, repo.PutSession(ctx, s))
	}
	require.NoError(t, repo.PutSession(ctx, domain.NewSession("other", "x", domain.ChannelMessenger, base)))

	users, err := repo.ListUsers(ctx, "Jobs Support")
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "newest", users[0].UserID)
	assert.Equal(t, "middle", users[1].UserID)
	assert.Equal(t, "old", users[2].UserID)
	assert.True(t, users[0].UpdatedAt.Equal(base.Add(3*time.Hour)))
}

func TestSQLitePutRejectsIncompleteKey(t *testing.T) {
	repo := newTestStore(t)

	err := repo.PutSession(context.Background(), &domain.Session{UserID: "u1"})
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
}
