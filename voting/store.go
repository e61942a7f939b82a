package voting

import (
	"context"

	"github.com/danielhkuo/runecheck/models"
)

// QuestionUpdate mutates a question given its complete vote ledger.
// Returning an error aborts the unit of work and nothing is written.
type QuestionUpdate func(q *models.Question, votes []models.Vote) error

// Store persists questions and the vote ledger.
//
// UpdateQuestion and RecordVote are units of work: the question, its votes
// and the write happen atomically, so a concurrent writer can neither lose
// an update nor slip a duplicate vote past the uniqueness check.
type Store interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	// ListQuestions returns questions for a token, or all of them when token is empty.
	ListQuestions(ctx context.Context, token string) ([]models.Question, error)
	UpdateQuestion(ctx context.Context, id string, fn QuestionUpdate) (*models.Question, error)

	// RecordVote appends vote to the ledger. It fails with ErrNotFound for an
	// unknown question and ErrDuplicateVote if the wallet already voted.
	// fn sees the ledger including the new vote and may veto it.
	RecordVote(ctx context.Context, vote models.Vote, fn QuestionUpdate) (*models.Question, error)
	VotesForQuestion(ctx context.Context, questionID string) ([]models.Vote, error)
	VotesByWallet(ctx context.Context, walletAddress string) ([]models.Vote, error)
}
