package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// sessionRecord is the GORM model of the sessions table.
type sessionRecord struct {
	AppName     string    `gorm:"primaryKey;size:128"`
	UserID      string    `gorm:"primaryKey;size:128"`
	Channel     string    `gorm:"size:32;not null"`
	ActiveAgent string    `gorm:"size:32;not null"`
	StateJSON   string    `gorm:"column:state_json;type:text;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false;not null"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false;not null;index:idx_sessions_updated"`
}

func (sessionRecord) TableName() string { return "sessions" }

// PostgresStore implements Repository on PostgreSQL through GORM.
type PostgresStore struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// NewPostgres connects to dsn and migrates the sessions table.
func NewPostgres(dsn string) (Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}

	return &PostgresStore{db: db, sqlDB: sqlDB}, nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.sqlDB.Close()
}

// GetSession retrieves the session of a user.
func (s *PostgresStore) GetSession(ctx context.Context, appName, userID string) (*domain.Session, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).
		Where("app_name = ? AND user_id = ?", appName, userID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(rec.StateJSON)
}

// PutSession creates or replaces a session record.
func (s *PostgresStore) PutSession(ctx context.Context, session *domain.Session) error {
	if err := validateKey(session); err != nil {
		return err
	}
	state, err := encodeSession(session)
	if err != nil {
		return err
	}

	rec := sessionRecord{
		AppName:     session.AppName,
		UserID:      session.UserID,
		Channel:     string(session.Channel),
		ActiveAgent: session.ActiveAgent.String(),
		StateJSON:   state,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "app_name"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel", "active_agent", "state_json", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// ListUsers returns the users of an application, most recently updated first.
func (s *PostgresStore) ListUsers(ctx context.Context, appName string) ([]domain.UserSummary, error) {
	var recs []sessionRecord
	err := s.db.WithContext(ctx).
		Select("user_id", "channel", "active_agent", "updated_at").
		Where("app_name = ?", appName).
		Order("updated_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]domain.UserSummary, 0, len(recs))
	for _, r := range recs {
		users = append(users, domain.UserSummary{
			UserID:      r.UserID,
			Channel:     domain.Channel(r.Channel),
			ActiveAgent: domain.AgentID(r.ActiveAgent),
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return users, nil
}
