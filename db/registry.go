// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/registry"
	"github.com/danielhkuo/runecheck/voting"
)

// ListAccessTokens implements registry.Store.
func (s *Store) ListAccessTokens(ctx context.Context) ([]models.AccessToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, required_balance, dashboard_path, description, external_url
		FROM access_token
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("query access tokens: %w", err)
	}
	defer rows.Close()

	tokens := []models.AccessToken{}
	for rows.Next() {
		var t models.AccessToken
		if err := rows.Scan(&t.Name, &t.RequiredBalance, &t.DashboardPath, &t.Description, &t.ExternalURL); err != nil {
			return nil, fmt.Errorf("scan access token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// GetAccessToken implements registry.Store.
func (s *Store) GetAccessToken(ctx context.Context, name string) (*models.AccessToken, error) {
	var t models.AccessToken
	err := s.db.QueryRowContext(ctx, `
		SELECT name, required_balance, dashboard_path, description, external_url
		FROM access_token
		WHERE name = $1
	`, name).Scan(&t.Name, &t.RequiredBalance, &t.DashboardPath, &t.Description, &t.ExternalURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("access token %s: %w", name, voting.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query access token: %w", err)
	}
	return &t, nil
}

// ListAssociations implements registry.Store.
func (s *Store) ListAssociations(ctx context.Context) ([]models.TokenAssociation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_address, token_name, required_balance, associated_url, created_at
		FROM token_association
		ORDER BY created_at, wallet_address
	`)
	if err != nil {
		return nil, fmt.Errorf("query token associations: %w", err)
	}
	defer rows.Close()

	assocs := []models.TokenAssociation{}
	for rows.Next() {
		var (
			a       models.TokenAssociation
			created string
		)
		if err := rows.Scan(&a.WalletAddress, &a.TokenName, &a.RequiredBalance, &a.AssociatedURL, &created); err != nil {
			return nil, fmt.Errorf("scan token association: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		assocs = append(assocs, a)
	}
	return assocs, rows.Err()
}

// AddUserToken implements registry.Store.
func (s *Store) AddUserToken(ctx context.Context, assoc models.TokenAssociation, token models.AccessToken) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM token_association WHERE wallet_address = $1`, assoc.WalletAddress).Scan(&n)
		if err != nil {
			return fmt.Errorf("query token association: %w", err)
		}
		if n > 0 {
			return registry.ErrWalletHasToken
		}

		err = tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM access_token WHERE name = $1)
			     + (SELECT COUNT(*) FROM token_association WHERE token_name = $1)
		`, token.Name).Scan(&n)
		if err != nil {
			return fmt.Errorf("query token name: %w", err)
		}
		if n > 0 {
			return registry.ErrTokenExists
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO token_association (wallet_address, token_name, required_balance, associated_url, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, assoc.WalletAddress, assoc.TokenName, assoc.RequiredBalance, assoc.AssociatedURL, formatTime(assoc.CreatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return registry.ErrTokenExists
			}
			return fmt.Errorf("insert token association: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO access_token (name, required_balance, dashboard_path, description, external_url, sort_order)
			VALUES ($1, $2, $3, $4, $5, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM access_token))
		`, token.Name, token.RequiredBalance, token.DashboardPath, token.Description, token.ExternalURL)
		if err != nil {
			if isUniqueViolation(err) {
				return registry.ErrTokenExists
			}
			return fmt.Errorf("insert access token: %w", err)
		}
		return nil
	})
}

// UpdateRequiredBalance implements registry.Store.
func (s *Store) UpdateRequiredBalance(ctx context.Context, wallet, name string, balance int64) (*models.TokenAssociation, error) {
	var out *models.TokenAssociation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE token_association SET required_balance = $1
			WHERE wallet_address = $2 AND token_name = $3
		`, balance, wallet, name)
		if err != nil {
			return fmt.Errorf("update token association: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("token %s for %s: %w", name, wallet, voting.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE access_token SET required_balance = $1 WHERE name = $2`, balance, name); err != nil {
			return fmt.Errorf("update access token: %w", err)
		}

		var (
			a       models.TokenAssociation
			created string
		)
		err = tx.QueryRowContext(ctx, `
			SELECT wallet_address, token_name, required_balance, associated_url, created_at
			FROM token_association
			WHERE wallet_address = $1
		`, wallet).Scan(&a.WalletAddress, &a.TokenName, &a.RequiredBalance, &a.AssociatedURL, &created)
		if err != nil {
			return fmt.Errorf("query token association: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return err
		}
		out = &a
		return nil
	})
	return out, err
}

// DeleteUserToken implements registry.Store.
func (s *Store) DeleteUserToken(ctx context.Context, wallet, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM token_association WHERE wallet_address = $1 AND token_name = $2`, wallet, name)
		if err != nil {
			return fmt.Errorf("delete token association: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("token %s for %s: %w", name, wallet, voting.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM access_token WHERE name = $1`, name); err != nil {
			return fmt.Errorf("delete access token: %w", err)
		}
		return nil
	})
}
