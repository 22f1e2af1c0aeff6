package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
	"github.com/ashureev/jobassist/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // Serializes writers to keep SQLITE_BUSY rare
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		app_name TEXT NOT NULL,
		user_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		active_agent TEXT NOT NULL,
		state_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (app_name, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(app_name, updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSession retrieves the session of a user.
func (s *SQLiteStore) GetSession(ctx context.Context, appName, userID string) (*domain.Session, error) {
	query := `SELECT state_json FROM sessions WHERE app_name = ? AND user_id = ?`

	var state string
	err := s.db.QueryRowContext(ctx, query, appName, userID).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	return decodeSession(state)
}

// PutSession creates or replaces a session record.
func (s *SQLiteStore) PutSession(ctx context.Context, session *domain.Session) error {
	if err := validateKey(session); err != nil {
		return err
	}
	state, err := encodeSession(session)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO sessions (app_name, user_id, channel, active_agent, state_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(app_name, user_id) DO UPDATE SET
		channel = excluded.channel,
		active_agent = excluded.active_agent,
		state_json = excluded.state_json,
		updated_at = excluded.updated_at`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return shared.RetryOnConflict(ctx, "upsert session", shared.DefaultRetryPolicy, func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.AppName, session.UserID, string(session.Channel),
			session.ActiveAgent.String(), state,
			session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli(),
		)
		return err
	})
}

// ListUsers returns the users of an application, most recently updated first.
func (s *SQLiteStore) ListUsers(ctx context.Context, appName string) ([]domain.UserSummary, error) {
	query := `
		SELECT user_id, channel, active_agent, updated_at
		FROM sessions WHERE app_name = ?
		ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, appName)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.UserSummary
	for rows.Next() {
		var (
			u         domain.UserSummary
			channel   string
			agent     string
			updatedAt int64
		)
		if err := rows.Scan(&u.UserID, &channel, &agent, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		u.Channel = domain.Channel(channel)
		u.ActiveAgent = domain.AgentID(agent)
		u.UpdatedAt = time.UnixMilli(updatedAt)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
