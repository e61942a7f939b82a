// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/voting"
)

const questionColumns = `
	id, token, question, start_time, end_time, status, created_by,
	yes_votes, no_votes, total_voters, total_voting_power, winning_choice, has_ended,
	completed_at, archived_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var (
		q                       models.Question
		start, end              string
		yes, no, power          string
		completedAt, archivedAt sql.NullString
	)
	err := row.Scan(
		&q.ID, &q.Token, &q.Question, &start, &end, &q.Status, &q.CreatedBy,
		&yes, &no, &q.Results.TotalVoters, &power, &q.Results.WinningChoice, &q.Results.HasEnded,
		&completedAt, &archivedAt,
	)
	if err != nil {
		return nil, err
	}

	if q.StartTime, err = parseTime(start); err != nil {
		return nil, err
	}
	if q.EndTime, err = parseTime(end); err != nil {
		return nil, err
	}
	if q.Results.YesVotes, err = decimal.NewFromString(yes); err != nil {
		return nil, fmt.Errorf("parse yes_votes: %w", err)
	}
	if q.Results.NoVotes, err = decimal.NewFromString(no); err != nil {
		return nil, fmt.Errorf("parse no_votes: %w", err)
	}
	if q.Results.TotalVotingPower, err = decimal.NewFromString(power); err != nil {
		return nil, fmt.Errorf("parse total_voting_power: %w", err)
	}
	if q.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if q.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

func scanVotes(rows *sql.Rows) ([]models.Vote, error) {
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var (
			v             models.Vote
			balance, cast string
		)
		if err := rows.Scan(&v.QuestionID, &v.WalletAddress, &v.Choice, &balance, &cast); err != nil {
			return nil, err
		}
		var err error
		if v.TokenBalance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse token_balance: %w", err)
		}
		if v.Timestamp, err = parseTime(cast); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// CreateQuestion implements voting.Store.
func (s *Store) CreateQuestion(ctx context.Context, q *models.Question) error {
	r := q.Results
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO question (`+questionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, q.ID, q.Token, q.Question, formatTime(q.StartTime), formatTime(q.EndTime), q.Status, q.CreatedBy,
		r.YesVotes.String(), r.NoVotes.String(), r.TotalVoters, r.TotalVotingPower.String(), r.WinningChoice, r.HasEnded,
		formatNullTime(q.CompletedAt), formatNullTime(q.ArchivedAt))
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// GetQuestion implements voting.Store.
func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return getQuestion(ctx, s.db, id, "")
}

func getQuestion(ctx context.Context, q querier, id, suffix string) (*models.Question, error) {
	row := q.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM question WHERE id = $1`+suffix, id)
	question, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("question %s: %w", id, voting.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query question: %w", err)
	}
	return question, nil
}

// ListQuestions implements voting.Store.
func (s *Store) ListQuestions(ctx context.Context, token string) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM question`
	var args []any
	if token != "" {
		query += ` WHERE token = $1`
		args = append(args, token)
	}
	query += ` ORDER BY start_time, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// UpdateQuestion implements voting.Store.
func (s *Store) UpdateQuestion(ctx context.Context, id string, fn voting.QuestionUpdate) (*models.Question, error) {
	var out *models.Question
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		q, err := getQuestion(ctx, tx, id, s.forUpdate())
		if err != nil {
			return err
		}
		votes, err := votesForQuestion(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(q, votes); err != nil {
			return err
		}
		if err := saveQuestion(ctx, tx, q); err != nil {
			return err
		}
		out = q
		return nil
	})
	return out, err
}

// RecordVote implements voting.Store. The primary key on
// (question_id, wallet_address) backs the duplicate check.
func (s *Store) RecordVote(ctx context.Context, vote models.Vote, fn voting.QuestionUpdate) (*models.Question, error) {
	var out *models.Question
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		q, err := getQuestion(ctx, tx, vote.QuestionID, s.forUpdate())
		if err != nil {
			return err
		}
		votes, err := votesForQuestion(ctx, tx, vote.QuestionID)
		if err != nil {
			return err
		}
		for _, v := range votes {
			if v.WalletAddress == vote.WalletAddress {
				return voting.ErrDuplicateVote
			}
		}

		if err := fn(q, append(votes, vote)); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO vote (question_id, wallet_address, choice, token_balance, cast_at)
			VALUES ($1, $2, $3, $4, $5)
		`, vote.QuestionID, vote.WalletAddress, vote.Choice, vote.TokenBalance.String(), formatTime(vote.Timestamp))
		if err != nil {
			if isUniqueViolation(err) {
				return voting.ErrDuplicateVote
			}
			return fmt.Errorf("insert vote: %w", err)
		}

		if err := saveQuestion(ctx, tx, q); err != nil {
			return err
		}
		out = q
		return nil
	})
	return out, err
}

// VotesForQuestion implements voting.Store.
func (s *Store) VotesForQuestion(ctx context.Context, questionID string) ([]models.Vote, error) {
	return votesForQuestion(ctx, s.db, questionID)
}

// VotesByWallet implements voting.Store.
func (s *Store) VotesByWallet(ctx context.Context, walletAddress string) ([]models.Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, wallet_address, choice, token_balance, cast_at
		FROM vote
		WHERE wallet_address = $1
		ORDER BY cast_at, question_id
	`, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	return scanVotes(rows)
}

func votesForQuestion(ctx context.Context, q querier, questionID string) ([]models.Vote, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT question_id, wallet_address, choice, token_balance, cast_at
		FROM vote
		WHERE question_id = $1
		ORDER BY cast_at, wallet_address
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	return scanVotes(rows)
}

func saveQuestion(ctx context.Context, q querier, question *models.Question) error {
	r := question.Results
	_, err := q.ExecContext(ctx, `
		UPDATE question
		SET status = $1, yes_votes = $2, no_votes = $3, total_voters = $4,
		    total_voting_power = $5, winning_choice = $6, has_ended = $7,
		    completed_at = $8, archived_at = $9
		WHERE id = $10
	`, question.Status, r.YesVotes.String(), r.NoVotes.String(), r.TotalVoters,
		r.TotalVotingPower.String(), r.WinningChoice, r.HasEnded,
		formatNullTime(question.CompletedAt), formatNullTime(question.ArchivedAt), question.ID)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}
