// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/riskshield/riskshield/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveUser stores a new user. Emails are unique; a duplicate insert fails.
func (r *SQLRepository) SaveUser(ctx context.Context, user *domain.User) error {
	if user.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO users (email, full_name, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		user.Email, user.FullName, user.PasswordHash, user.CreatedAt,
	)
	return err
}

// GetUserByEmail retrieves a user by email.
func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	query := `
		SELECT email, full_name, password_hash, created_at
		FROM users
		WHERE email = ?
	`

	var user domain.User
	err := r.db.QueryRowContext(ctx, r.rebind(query), email).Scan(
		&user.Email, &user.FullName, &user.PasswordHash, &user.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// SaveDecision stores a scoring decision. Decisions are append-only: the same
// transaction_id may be scored again and each pass produces a new row.
func (r *SQLRepository) SaveDecision(ctx context.Context, rec *domain.DecisionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: decision id is required", ErrInvalidInput)
	}

	features, _ := json.Marshal(rec.Features)
	flags, _ := json.Marshal(rec.Flags)

	query := `
		INSERT INTO decisions (
			id, customer_id, transaction_id, email, amount, channel,
			model_score, rule_score, combined_score, is_fraud,
			features, rule_flags, explanation, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.CustomerID, rec.TransactionID, rec.Email,
		rec.Amount, rec.Channel,
		rec.ModelScore, rec.RuleScore, rec.CombinedScore, rec.IsFraud,
		string(features), string(flags), rec.Explanation, rec.Timestamp,
	)
	return err
}

// GetDecision retrieves a decision by ID.
func (r *SQLRepository) GetDecision(ctx context.Context, id string) (*domain.DecisionRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: decision id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, transaction_id, email, amount, channel,
			   model_score, rule_score, combined_score, is_fraud,
			   features, rule_flags, explanation, timestamp
		FROM decisions
		WHERE id = ?
	`

	rec, err := scanDecision(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListDecisionsByEmail retrieves all decisions for an email, newest first.
func (r *SQLRepository) ListDecisionsByEmail(ctx context.Context, email string) ([]*domain.DecisionRecord, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, transaction_id, email, amount, channel,
			   model_score, rule_score, combined_score, is_fraud,
			   features, rule_flags, explanation, timestamp
		FROM decisions
		WHERE email = ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.DecisionRecord
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// RecentScores returns the combined scores of a customer's decisions since
// the given time, newest first. Reads committed rows only, so a scoring pass
// sees the customer's prior decisions but never its own in-flight one.
func (r *SQLRepository) RecentScores(ctx context.Context, customerID string, since time.Time) ([]float64, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", ErrInvalidInput)
	}

	query := `
		SELECT combined_score
		FROM decisions
		WHERE customer_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), customerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}

	return scores, rows.Err()
}

// DecisionStats returns the slim per-decision rows used for analytics.
func (r *SQLRepository) DecisionStats(ctx context.Context) ([]domain.DecisionStat, error) {
	query := `
		SELECT amount, channel, combined_score, is_fraud, timestamp
		FROM decisions
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.DecisionStat
	for rows.Next() {
		var s domain.DecisionStat
		if err := rows.Scan(&s.Amount, &s.Channel, &s.CombinedScore, &s.IsFraud, &s.Timestamp); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// SaveCustomRule stores a custom rule configuration, upserting on ID.
func (r *SQLRepository) SaveCustomRule(ctx context.Context, rule *domain.CustomRule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, label, expression, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			label = excluded.label,
			expression = excluded.expression,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Label,
		rule.Expression, rule.Weight, enabled,
		now, now,
	)
	return err
}

// ListCustomRules retrieves all enabled custom rules ordered by ID.
func (r *SQLRepository) ListCustomRules(ctx context.Context) ([]*domain.CustomRule, error) {
	query := `
		SELECT id, name, description, label, expression, weight, enabled, created_at, updated_at
		FROM rule_configs
		WHERE enabled = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.CustomRule
	for rows.Next() {
		var rule domain.CustomRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Label,
			&rule.Expression, &rule.Weight, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		configs = append(configs, &rule)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*domain.DecisionRecord, error) {
	var rec domain.DecisionRecord
	var features, flags string

	err := row.Scan(
		&rec.ID, &rec.CustomerID, &rec.TransactionID, &rec.Email,
		&rec.Amount, &rec.Channel,
		&rec.ModelScore, &rec.RuleScore, &rec.CombinedScore, &rec.IsFraud,
		&features, &flags, &rec.Explanation, &rec.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if features != "" {
		json.Unmarshal([]byte(features), &rec.Features)
	}
	if flags != "" {
		json.Unmarshal([]byte(flags), &rec.Flags)
	}
	if rec.Flags == nil {
		rec.Flags = []string{}
	}

	return &rec, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
