// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/runecheck/models"
)

// WeightSource reports the voting power a wallet holds in a token.
// It fails with ErrForbidden when the wallet holds none of the token.
type WeightSource interface {
	VotingWeight(ctx context.Context, address, token string) (decimal.Decimal, error)
}

// AdminChecker authorizes lifecycle actions. It fails with ErrUnauthorized
// for a blank address and ErrForbidden for a wallet that is not an admin.
type AdminChecker interface {
	RequireAdmin(ctx context.Context, address string) error
}

type Options struct {
	// EnforceVotingWindow rejects votes cast before a question's start time.
	EnforceVotingWindow bool
	Now                 func() time.Time
	NewID               func() (string, error)
}

// Service is the question lifecycle manager and the vote ledger's write path.
type Service struct {
	store   Store
	weights WeightSource
	admins  AdminChecker
	opts    Options
}

func NewService(store Store, weights WeightSource, admins AdminChecker, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newQuestionID
	}
	return &Service{store: store, weights: weights, admins: admins, opts: opts}
}

func newQuestionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

// CreateQuestion opens a new question for a token. The end time comes from
// EndTime or from StartTime plus DurationMinutes; StartTime defaults to now.
func (s *Service) CreateQuestion(ctx context.Context, req models.CreateQuestionRequest) (*models.Question, error) {
	if err := s.admins.RequireAdmin(ctx, req.CreatedBy); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(req.Token)
	text := strings.TrimSpace(req.Question)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrValidation)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: question is required", ErrValidation)
	}
	if req.DurationMinutes < 0 {
		return nil, fmt.Errorf("%w: durationMinutes must be positive", ErrValidation)
	}

	now := s.now()
	start := now
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}

	var end time.Time
	switch {
	case req.EndTime != nil:
		end = req.EndTime.UTC()
	case req.DurationMinutes > 0:
		end = start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	default:
		return nil, fmt.Errorf("%w: endTime or durationMinutes is required", ErrValidation)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: startTime must be before endTime", ErrValidation)
	}

	if req.ArchiveCompleted {
		if err := s.archiveCompleted(ctx, token, now); err != nil {
			return nil, err
		}
	}

	id, err := s.opts.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate question id: %w", err)
	}

	q := &models.Question{
		ID:        id,
		Token:     token,
		Question:  text,
		StartTime: start,
		EndTime:   end,
		Status:    models.StatusActive,
		CreatedBy: req.CreatedBy,
		Results:   EmptyResults(),
	}
	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

func (s *Service) archiveCompleted(ctx context.Context, token string, now time.Time) error {
	questions, err := s.questions(ctx, token)
	if err != nil {
		return err
	}
	for _, q := range questions {
		if q.Status != models.StatusCompleted {
			continue
		}
		if _, err := s.store.UpdateQuestion(ctx, q.ID, archiveQuestion("", now)); err != nil && !errors.Is(err, errUnchanged) {
			return fmt.Errorf("archive question %s: %w", q.ID, err)
		}
	}
	return nil
}

// GetQuestion returns one question, completing it first if its deadline passed.
func (s *Service) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: questionId is required", ErrValidation)
	}
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status == models.StatusActive && s.now().After(q.EndTime) {
		return s.expire(ctx, id, s.now())
	}
	return q, nil
}

// ListQuestions lists a token's questions (all tokens when token is empty),
// optionally filtered by status.
func (s *Service) ListQuestions(ctx context.Context, token, status string) ([]models.Question, error) {
	if status != "" && !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	questions, err := s.questions(ctx, token)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return questions, nil
	}
	return filterQuestions(questions, func(q models.Question) bool { return q.Status == status }), nil
}

// ActiveSessions lists the questions shown on a token's dashboard: everything
// that has not been archived.
func (s *Service) ActiveSessions(ctx context.Context, token string) ([]models.Question, error) {
	questions, err := s.questions(ctx, token)
	if err != nil {
		return nil, err
	}
	return filterQuestions(questions, func(q models.Question) bool { return q.Status != models.StatusArchived }), nil
}

func (s *Service) ArchivedSessions(ctx context.Context, token string) ([]models.Question, error) {
	return s.ListQuestions(ctx, token, models.StatusArchived)
}

// CurrentQuestion returns the token's active question, or else the completed
// question that ended most recently. It returns nil when there is neither.
func (s *Service) CurrentQuestion(ctx context.Context, token string) (*models.Question, error) {
	questions, err := s.questions(ctx, token)
	if err != nil {
		return nil, err
	}

	var latest *models.Question
	for i := range questions {
		q := &questions[i]
		switch q.Status {
		case models.StatusActive:
			return q, nil
		case models.StatusCompleted:
			if latest == nil || q.EndTime.After(latest.EndTime) {
				latest = q
			}
		}
	}
	return latest, nil
}

// RefreshStatuses completes every active question whose end time has passed
// and returns how many were completed.
func (s *Service) RefreshStatuses(ctx context.Context) (int, error) {
	questions, err := s.store.ListQuestions(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list questions: %w", err)
	}

	now := s.now()
	completed := 0
	for _, q := range questions {
		if q.Status != models.StatusActive || !now.After(q.EndTime) {
			continue
		}
		updated, err := s.expire(ctx, q.ID, now)
		if err != nil {
			return completed, err
		}
		if updated.Status == models.StatusCompleted {
			completed++
		}
	}
	return completed, nil
}

// Complete closes a question by admin action and recomputes its results.
// Completing an already completed question only re-tallies it.
func (s *Service) Complete(ctx context.Context, id, adminAddress string) (*models.Question, error) {
	if err := s.admins.RequireAdmin(ctx, adminAddress); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: questionId is required", ErrValidation)
	}

	now := s.now()
	return s.store.UpdateQuestion(ctx, id, func(q *models.Question, votes []models.Vote) error {
		if q.Status == models.StatusArchived {
			return fmt.Errorf("%w: question %s is archived", ErrInvalidTransition, q.ID)
		}
		completeQuestion(q, votes, now)
		return nil
	})
}

// Archive moves a completed question out of the dashboard listings. A
// non-empty token must match the question's token.
func (s *Service) Archive(ctx context.Context, id, token, adminAddress string) (*models.Question, error) {
	if err := s.admins.RequireAdmin(ctx, adminAddress); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: questionId is required", ErrValidation)
	}

	now := s.now()
	if _, err := s.expire(ctx, id, now); err != nil {
		return nil, err
	}

	q, err := s.store.UpdateQuestion(ctx, id, archiveQuestion(token, now))
	if errors.Is(err, errUnchanged) {
		return s.store.GetQuestion(ctx, id)
	}
	return q, err
}

// UpdateStatus applies a manual status transition.
func (s *Service) UpdateStatus(ctx context.Context, req models.UpdateStatusRequest) (*models.Question, error) {
	switch req.Status {
	case models.StatusCompleted:
		return s.Complete(ctx, req.QuestionID, req.AdminAddress)
	case models.StatusArchived:
		return s.Archive(ctx, req.QuestionID, "", req.AdminAddress)
	case models.StatusActive:
		if err := s.admins.RequireAdmin(ctx, req.AdminAddress); err != nil {
			return nil, err
		}
		q, err := s.GetQuestion(ctx, req.QuestionID)
		if err != nil {
			return nil, err
		}
		if q.Status == models.StatusActive {
			return q, nil
		}
		return nil, fmt.Errorf("%w: %s question cannot become active again", ErrInvalidTransition, q.Status)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
	}
}

// CastVote records a wallet's ballot weighted by its current holding of the
// question's token, and returns the vote with the refreshed results.
func (s *Service) CastVote(ctx context.Context, req models.CastVoteRequest) (*models.Vote, models.Results, error) {
	choice := strings.ToLower(strings.TrimSpace(req.Choice))
	wallet := strings.TrimSpace(req.WalletAddress)
	if strings.TrimSpace(req.QuestionID) == "" {
		return nil, models.Results{}, fmt.Errorf("%w: questionId is required", ErrValidation)
	}
	if wallet == "" {
		return nil, models.Results{}, fmt.Errorf("%w: walletAddress is required", ErrValidation)
	}
	if choice != models.ChoiceYes && choice != models.ChoiceNo {
		return nil, models.Results{}, fmt.Errorf("%w: choice must be yes or no", ErrValidation)
	}

	q, err := s.GetQuestion(ctx, req.QuestionID)
	if err != nil {
		return nil, models.Results{}, err
	}
	now := s.now()
	if err := s.checkOpen(q, now); err != nil {
		return nil, models.Results{}, err
	}

	// Fail fast before asking the oracle; RecordVote repeats the check atomically.
	voted, err := s.hasVoted(ctx, q.ID, wallet)
	if err != nil {
		return nil, models.Results{}, err
	}
	if voted {
		return nil, models.Results{}, ErrDuplicateVote
	}

	weight, err := s.weights.VotingWeight(ctx, wallet, q.Token)
	if err != nil {
		return nil, models.Results{}, err
	}

	vote := models.Vote{
		QuestionID:    q.ID,
		WalletAddress: wallet,
		Choice:        choice,
		TokenBalance:  weight,
		Timestamp:     now,
	}
	if err := ValidateVote(vote); err != nil {
		return nil, models.Results{}, err
	}

	updated, err := s.store.RecordVote(ctx, vote, func(q *models.Question, votes []models.Vote) error {
		if err := s.checkOpen(q, now); err != nil {
			return err
		}
		q.Results = Tally(votes)
		return nil
	})
	if err != nil {
		return nil, models.Results{}, err
	}
	return &vote, updated.Results, nil
}

// ValidateVote checks a vote before it is appended to the ledger.
func ValidateVote(v models.Vote) error {
	if v.Choice != models.ChoiceYes && v.Choice != models.ChoiceNo {
		return fmt.Errorf("%w: choice must be yes or no", ErrValidation)
	}
	if !v.TokenBalance.IsPositive() {
		return ErrInvalidBalance
	}
	return nil
}

func (s *Service) checkOpen(q *models.Question, now time.Time) error {
	if q.Status != models.StatusActive || now.After(q.EndTime) {
		return fmt.Errorf("%w: question %s has ended", ErrNotActive, q.ID)
	}
	if s.opts.EnforceVotingWindow && now.Before(q.StartTime) {
		return fmt.Errorf("%w: voting on question %s has not started", ErrNotActive, q.ID)
	}
	return nil
}

func (s *Service) hasVoted(ctx context.Context, questionID, wallet string) (bool, error) {
	votes, err := s.store.VotesForQuestion(ctx, questionID)
	if err != nil {
		return false, fmt.Errorf("list votes: %w", err)
	}
	for _, v := range votes {
		if v.WalletAddress == wallet {
			return true, nil
		}
	}
	return false, nil
}

// Votes returns a question's ballots with a live tally.
func (s *Service) Votes(ctx context.Context, questionID string) ([]models.Vote, models.Results, error) {
	q, err := s.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, models.Results{}, err
	}
	votes, err := s.store.VotesForQuestion(ctx, q.ID)
	if err != nil {
		return nil, models.Results{}, fmt.Errorf("list votes: %w", err)
	}
	results := Tally(votes)
	results.HasEnded = q.Status != models.StatusActive
	return votes, results, nil
}

// CheckVote reports whether wallet voted on a question, along with the
// question's ballots and live tally.
func (s *Service) CheckVote(ctx context.Context, questionID, wallet string) (bool, []models.Vote, models.Results, error) {
	if strings.TrimSpace(wallet) == "" {
		return false, nil, models.Results{}, fmt.Errorf("%w: walletAddress is required", ErrValidation)
	}
	votes, results, err := s.Votes(ctx, questionID)
	if err != nil {
		return false, nil, models.Results{}, err
	}
	for _, v := range votes {
		if v.WalletAddress == wallet {
			return true, votes, results, nil
		}
	}
	return false, votes, results, nil
}

// VotedQuestionIDs lists the questions a wallet has voted on.
func (s *Service) VotedQuestionIDs(ctx context.Context, wallet string) ([]string, error) {
	if strings.TrimSpace(wallet) == "" {
		return nil, fmt.Errorf("%w: walletAddress is required", ErrValidation)
	}
	votes, err := s.store.VotesByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	ids := make([]string, 0, len(votes))
	for _, v := range votes {
		ids = append(ids, v.QuestionID)
	}
	return ids, nil
}

// questions loads a token's questions and completes the overdue ones.
func (s *Service) questions(ctx context.Context, token string) ([]models.Question, error) {
	questions, err := s.store.ListQuestions(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	now := s.now()
	for i, q := range questions {
		if q.Status != models.StatusActive || !now.After(q.EndTime) {
			continue
		}
		updated, err := s.expire(ctx, q.ID, now)
		if err != nil {
			return nil, err
		}
		questions[i] = *updated
	}
	return questions, nil
}

// expire completes an active question whose end time has passed. Questions
// that are not due are returned as stored.
func (s *Service) expire(ctx context.Context, id string, now time.Time) (*models.Question, error) {
	q, err := s.store.UpdateQuestion(ctx, id, func(q *models.Question, votes []models.Vote) error {
		if q.Status != models.StatusActive || !now.After(q.EndTime) {
			return errUnchanged
		}
		completeQuestion(q, votes, now)
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return s.store.GetQuestion(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("question completed",
		"question_id", q.ID,
		"token", q.Token,
		"total_voters", q.Results.TotalVoters,
		"winning_choice", q.Results.WinningChoice,
	)
	return q, nil
}

func completeQuestion(q *models.Question, votes []models.Vote, now time.Time) {
	q.Results = Tally(votes)
	q.Results.HasEnded = true
	if q.Status == models.StatusActive {
		q.Status = models.StatusCompleted
		completedAt := now
		q.CompletedAt = &completedAt
	}
}

func archiveQuestion(token string, now time.Time) QuestionUpdate {
	return func(q *models.Question, _ []models.Vote) error {
		if token != "" && q.Token != token {
			return fmt.Errorf("%w: question %s for token %s", ErrNotFound, q.ID, token)
		}
		switch q.Status {
		case models.StatusArchived:
			return errUnchanged
		case models.StatusActive:
			return fmt.Errorf("%w: question %s is still active", ErrInvalidTransition, q.ID)
		}
		q.Status = models.StatusArchived
		archivedAt := now
		q.ArchivedAt = &archivedAt
		return nil
	}
}

func filterQuestions(questions []models.Question, keep func(models.Question) bool) []models.Question {
	out := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if keep(q) {
			out = append(out, q)
		}
	}
	return out
}

func validStatus(status string) bool {
	switch status {
	case models.StatusActive, models.StatusCompleted, models.StatusArchived:
		return true
	}
	return false
}
