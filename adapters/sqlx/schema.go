package sqlx

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		username VARCHAR(255) UNIQUE,
		full_name VARCHAR(255),
		role VARCHAR(32) NOT NULL DEFAULT 'user',
		current_points BIGINT NOT NULL DEFAULT 0,
		level_id VARCHAR(64),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS levels (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		points BIGINT NOT NULL UNIQUE,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS point_rules (
		id VARCHAR(64) PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		event_condition VARCHAR(64),
		points BIGINT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_point_rules_event ON point_rules (event_type, event_condition)`,
	`CREATE TABLE IF NOT EXISTS point_transactions (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		points BIGINT NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		event_condition VARCHAR(64),
		related_forum_id VARCHAR(64),
		related_comment_id VARCHAR(64),
		related_reaction_id VARCHAR(64),
		description TEXT NOT NULL DEFAULT '',
		awarded_by VARCHAR(64),
		rule_id VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_point_transactions_user ON point_transactions (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		forum_id VARCHAR(64),
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		type VARCHAR(32) NOT NULL,
		aggregate_count INTEGER NOT NULL DEFAULT 1,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		read_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS forums (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL DEFAULT '',
		views_count BIGINT NOT NULL DEFAULT 0,
		upvotes BIGINT NOT NULL DEFAULT 0,
		downvotes BIGINT NOT NULL DEFAULT 0,
		comment_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_forums_created ON forums (created_at)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		username VARCHAR(255) UNIQUE,
		full_name VARCHAR(255),
		role VARCHAR(32) NOT NULL DEFAULT 'user',
		current_points BIGINT NOT NULL DEFAULT 0,
		level_id VARCHAR(64),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS levels (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		points BIGINT NOT NULL UNIQUE,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS point_rules (
		id VARCHAR(64) PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		event_condition VARCHAR(64),
		points BIGINT NOT NULL,
		description TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by VARCHAR(64),
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_point_rules_event (event_type, event_condition)
	)`,
	`CREATE TABLE IF NOT EXISTS point_transactions (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		points BIGINT NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		event_condition VARCHAR(64),
		related_forum_id VARCHAR(64),
		related_comment_id VARCHAR(64),
		related_reaction_id VARCHAR(64),
		description TEXT NOT NULL,
		awarded_by VARCHAR(64),
		rule_id VARCHAR(64),
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_point_transactions_user (user_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		forum_id VARCHAR(64),
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		type VARCHAR(32) NOT NULL,
		aggregate_count INT NOT NULL DEFAULT 1,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		read_at DATETIME(6) NULL,
		KEY idx_notifications_user (user_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS forums (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL DEFAULT '',
		views_count BIGINT NOT NULL DEFAULT 0,
		upvotes BIGINT NOT NULL DEFAULT 0,
		downvotes BIGINT NOT NULL DEFAULT 0,
		comment_count BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		deleted_at DATETIME(6) NULL,
		KEY idx_forums_created (created_at)
	)`,
}

// Schema returns the DDL statements for the store's dialect.
func (s *Store) Schema() []string {
	if s.driver.postgres() {
		return postgresSchema
	}
	return mysqlSchema
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
