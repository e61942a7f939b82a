// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/runecheck/registry"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SeedAccessTokens installs the default registry into an empty
// access_token table. A populated table is left alone.
func SeedAccessTokens(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM access_token").Scan(&count); err != nil {
		return fmt.Errorf("failed to count access tokens: %w", err)
	}
	if count > 0 {
		return nil
	}

	for i, t := range registry.DefaultAccessTokens() {
		_, err := db.ExecContext(ctx, `
			INSERT INTO access_token (name, required_balance, dashboard_path, description, external_url, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, t.Name, t.RequiredBalance, t.DashboardPath, t.Description, t.ExternalURL, i+1)
		if err != nil {
			return fmt.Errorf("failed to seed access token %s: %w", t.Name, err)
		}
	}
	return nil
}

// Timestamps are stored as fixed-width UTC text so they sort correctly and
// read back identically on sqlite and postgres.
const schema = `
-- Questions
CREATE TABLE IF NOT EXISTS question (
    id TEXT PRIMARY KEY,
    token TEXT NOT NULL,
    question TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'archived')),
    created_by TEXT NOT NULL,
    yes_votes TEXT NOT NULL DEFAULT '0',
    no_votes TEXT NOT NULL DEFAULT '0',
    total_voters INTEGER NOT NULL DEFAULT 0,
    total_voting_power TEXT NOT NULL DEFAULT '0',
    winning_choice TEXT NOT NULL DEFAULT '',
    has_ended BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TEXT,
    archived_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_question_token ON question(token);
CREATE INDEX IF NOT EXISTS idx_question_status ON question(status);

-- Votes (one per wallet per question)
CREATE TABLE IF NOT EXISTS vote (
    question_id TEXT NOT NULL REFERENCES question(id),
    wallet_address TEXT NOT NULL,
    choice TEXT NOT NULL CHECK (choice IN ('yes', 'no')),
    token_balance TEXT NOT NULL,
    cast_at TEXT NOT NULL,
    PRIMARY KEY (question_id, wallet_address)
);

CREATE INDEX IF NOT EXISTS idx_vote_wallet ON vote(wallet_address);

-- Access tokens (dashboard registry)
CREATE TABLE IF NOT EXISTS access_token (
    name TEXT PRIMARY KEY,
    required_balance BIGINT NOT NULL CHECK (required_balance >= 0),
    dashboard_path TEXT NOT NULL,
    description TEXT NOT NULL,
    external_url TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL
);

-- Wallet-registered tokens
CREATE TABLE IF NOT EXISTS token_association (
    wallet_address TEXT PRIMARY KEY,
    token_name TEXT NOT NULL UNIQUE,
    required_balance BIGINT NOT NULL CHECK (required_balance >= 0),
    associated_url TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`
