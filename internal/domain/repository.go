package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// User operations
	SaveUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Decision records (append-only)
	SaveDecision(ctx context.Context, rec *DecisionRecord) error
	GetDecision(ctx context.Context, id string) (*DecisionRecord, error)
	ListDecisionsByEmail(ctx context.Context, email string) ([]*DecisionRecord, error)

	// RecentScores returns the combined scores of a customer's decisions
	// since the given time, newest first. Backs the velocity rule; must
	// observe the customer's prior committed decisions (read-your-writes).
	RecentScores(ctx context.Context, customerID string, since time.Time) ([]float64, error)

	// DecisionStats returns the slim per-decision rows for analytics.
	DecisionStats(ctx context.Context) ([]DecisionStat, error)

	// Custom rule configurations
	SaveCustomRule(ctx context.Context, rule *CustomRule) error
	ListCustomRules(ctx context.Context) ([]*CustomRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
