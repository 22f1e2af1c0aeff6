// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashureev/jobassist/internal/domain"
)

// Repository defines the interface for persisting conversation sessions.
type Repository interface {
	// GetSession retrieves the session of a user. It returns nil, nil when
	// the user has never been seen by the application.
	GetSession(ctx context.Context, appName, userID string) (*domain.Session, error)

	// PutSession creates or replaces the session record keyed by
	// (AppName, UserID).
	PutSession(ctx context.Context, session *domain.Session) error

	// ListUsers returns every user of the application with the time of their
	// most recent update, newest first.
	ListUsers(ctx context.Context, appName string) ([]domain.UserSummary, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the repository for driver. dsn is a file path for sqlite and
// a connection string for postgres.
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLite(dsn)
	case DriverPostgres:
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

func encodeSession(s *domain.Session) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return string(data), nil
}

func decodeSession(state string) (*domain.Session, error) {
	var s domain.Session
	if err := json.Unmarshal([]byte(state), &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func validateKey(s *domain.Session) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	if s.AppName == "" || s.UserID == "" {
		return fmt.Errorf("session key incomplete: app=%q user=%q", s.AppName, s.UserID)
	}
	return nil
}
