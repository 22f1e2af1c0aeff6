package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPostgresTestStore connects to POSTGRES_TEST_DSN and returns the store
// with an app name no other run uses. Rows of that app are removed on cleanup.
func newPostgresTestStore(t *testing.T) (*PostgresStore, string) {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	repo, err := NewPostgres(dsn)
	require.NoError(t, err)
	pg := repo.(*PostgresStore)

	app := fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() {
		pg.db.Where("app_name = ?", app).Delete(&sessionRecord{})
		_ = pg.Close()
	})
	return pg, app
}

func TestPostgresGetSessionAbsent(t *testing.T) {
	repo, app := newPostgresTestStore(t)

	got, err := repo.GetSession(context.Background(), app, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresPutUpsertsRecord(t *testing.T) {
	repo, app := newPostgresTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	s := domain.NewSession(app, "5215550001", domain.ChannelWhatsApp, now)
	s.Context = domain.JobContext{ID: "151", Title: "Cajero", Loaded: true}
	require.NoError(t, repo.PutSession(ctx, s))

	s.ActiveAgent = domain.AgentApplication
	s.Profile = domain.Profile{FirstName: "Ana"}
	s.Applications = []domain.Application{{JobID: "151", Day: "2026-10-19", Time: "10:00-10:30", AppliedAt: now}}
	s.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.PutSession(ctx, s))

	got, err := repo.GetSession(ctx, app, "5215550001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.AgentApplication, got.ActiveAgent)
	assert.Equal(t, "Ana", got.Profile.FirstName)
	assert.True(t, got.HasApplied("151"))

	var count int64
	require.NoError(t, repo.db.Model(&sessionRecord{}).Where("app_name = ?", app).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPostgresListUsersNewestFirst(t *testing.T) {
	repo, app := newPostgresTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	u1 := domain.NewSession(app, "u1", domain.ChannelMessenger, t0)
	u2 := domain.NewSession(app, "u2", domain.ChannelWhatsApp, t0)
	u2.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, repo.PutSession(ctx, u1))
	require.NoError(t, repo.PutSession(ctx, u2))

	u1.ActiveAgent = domain.AgentJobInfo
	u1.UpdatedAt = t0.Add(2 * time.Minute)
	require.NoError(t, repo.PutSession(ctx, u1))

	users, err := repo.ListUsers(ctx, app)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].UserID)
	assert.Equal(t, domain.AgentJobInfo, users[0].ActiveAgent)
	assert.True(t, users[0].UpdatedAt.Equal(t0.Add(2*time.Minute)))
	assert.Equal(t, "u2", users[1].UserID)
	assert.Equal(t, domain.ChannelWhatsApp, users[1].Channel)

	other, err := repo.ListUsers(ctx, app+"-other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPostgresRejectsIncompleteKey(t *testing.T) {
	repo, app := newPostgresTestStore(t)

	err := repo.PutSession(context.Background(), &domain.Session{AppName: app})
	require.Error(t, err)
}
