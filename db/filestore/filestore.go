// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/registry"
	"github.com/danielhkuo/runecheck/voting"
)

// Data file names inside the store directory.
const (
	VotesFile        = "votes.json"
	QuestionsFile    = "voting-input.json"
	UserTokensFile   = "user-tokens.json"
	AccessTokensFile = "access-tokens.json"
)

// Store implements voting.Store and registry.Store on JSON files.
// A single mutex serializes every operation.
type Store struct {
	dir string
	mu  sync.Mutex
}

type questionsDoc struct {
	Questions []models.Question `json:"questions"`
}

// Open prepares dir and seeds the access-token file if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{dir: dir}
	_, err := os.Stat(s.path(AccessTokensFile))
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.writeJSON(AccessTokensFile, registry.DefaultAccessTokens()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", AccessTokensFile, err)
	}
	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// readJSON decodes name into v. A missing or blank file leaves v untouched.
func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// writeJSON replaces name atomically: the new content is written to a temp
// file in the same directory and renamed over the old one.
func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *Store) readVotes() ([]models.Vote, error) {
	votes := []models.Vote{}
	if err := s.readJSON(VotesFile, &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

// load reads questions and votes. A question whose voter count disagrees
// with the ledger gets its results recomputed, which repairs a crash between
// the votes write and the questions write.
func (s *Store) load() ([]models.Question, []models.Vote, error) {
	votes, err := s.readVotes()
	if err != nil {
		return nil, nil, err
	}
	var doc questionsDoc
	if err := s.readJSON(QuestionsFile, &doc); err != nil {
		return nil, nil, err
	}
	if doc.Questions == nil {
		doc.Questions = []models.Question{}
	}

	byQuestion := map[string][]models.Vote{}
	for _, v := range votes {
		byQuestion[v.QuestionID] = append(byQuestion[v.QuestionID], v)
	}
	for i := range doc.Questions {
		q := &doc.Questions[i]
		if q.Results.TotalVoters == len(byQuestion[q.ID]) {
			continue
		}
		ended := q.Results.HasEnded
		q.Results = voting.Tally(byQuestion[q.ID])
		q.Results.HasEnded = ended
	}
	return doc.Questions, votes, nil
}

func (s *Store) saveQuestions(questions []models.Question) error {
	return s.writeJSON(QuestionsFile, questionsDoc{Questions: questions})
}

func findQuestion(questions []models.Question, id string) (int, error) {
	for i := range questions {
		if questions[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("question %s: %w", id, voting.ErrNotFound)
}

func votesFor(votes []models.Vote, questionID string) []models.Vote {
	out := []models.Vote{}
	for _, v := range votes {
		if v.QuestionID == questionID {
			out = append(out, v)
		}
	}
	return out
}

// CreateQuestion implements voting.Store.
func (s *Store) CreateQuestion(_ context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, _, err := s.load()
	if err != nil {
		return err
	}
	if _, err := findQuestion(questions, q.ID); err == nil {
		return fmt.Errorf("question %s already exists", q.ID)
	}
	return s.saveQuestions(append(questions, *q))
}

// GetQuestion implements voting.Store.
func (s *Store) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, _, err := s.load()
	if err != nil {
		return nil, err
	}
	i, err := findQuestion(questions, id)
	if err != nil {
		return nil, err
	}
	q := questions[i]
	return &q, nil
}

// ListQuestions implements voting.Store.
func (s *Store) ListQuestions(_ context.Context, token string) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, _, err := s.load()
	if err != nil {
		return nil, err
	}

	out := []models.Question{}
	for _, q := range questions {
		if token == "" || q.Token == token {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateQuestion implements voting.Store.
func (s *Store) UpdateQuestion(_ context.Context, id string, fn voting.QuestionUpdate) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, votes, err := s.load()
	if err != nil {
		return nil, err
	}
	i, err := findQuestion(questions, id)
	if err != nil {
		return nil, err
	}

	q := questions[i]
	if err := fn(&q, votesFor(votes, id)); err != nil {
		return nil, err
	}
	questions[i] = q
	if err := s.saveQuestions(questions); err != nil {
		return nil, err
	}
	return &q, nil
}

// RecordVote implements voting.Store. The ledger is written before the
// questions file so a crash in between is repaired on the next load.
func (s *Store) RecordVote(_ context.Context, vote models.Vote, fn voting.QuestionUpdate) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, votes, err := s.load()
	if err != nil {
		return nil, err
	}
	i, err := findQuestion(questions, vote.QuestionID)
	if err != nil {
		return nil, err
	}
	existing := votesFor(votes, vote.QuestionID)
	for _, v := range existing {
		if v.WalletAddress == vote.WalletAddress {
			return nil, voting.ErrDuplicateVote
		}
	}

	q := questions[i]
	if err := fn(&q, append(existing, vote)); err != nil {
		return nil, err
	}

	if err := s.writeJSON(VotesFile, append(votes, vote)); err != nil {
		return nil, err
	}
	questions[i] = q
	if err := s.saveQuestions(questions); err != nil {
		return nil, err
	}
	return &q, nil
}

// VotesForQuestion implements voting.Store.
func (s *Store) VotesForQuestion(_ context.Context, questionID string) ([]models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	votes, err := s.readVotes()
	if err != nil {
		return nil, err
	}
	return votesFor(votes, questionID), nil
}

// VotesByWallet implements voting.Store.
func (s *Store) VotesByWallet(_ context.Context, walletAddress string) ([]models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	votes, err := s.readVotes()
	if err != nil {
		return nil, err
	}
	out := []models.Vote{}
	for _, v := range votes {
		if v.WalletAddress == walletAddress {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) readRegistry() ([]models.AccessToken, []models.TokenAssociation, error) {
	tokens := []models.AccessToken{}
	if err := s.readJSON(AccessTokensFile, &tokens); err != nil {
		return nil, nil, err
	}
	assocs := []models.TokenAssociation{}
	if err := s.readJSON(UserTokensFile, &assocs); err != nil {
		return nil, nil, err
	}
	return tokens, assocs, nil
}

// ListAccessTokens implements registry.Store.
func (s *Store) ListAccessTokens(_ context.Context) ([]models.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, _, err := s.readRegistry()
	return tokens, err
}

// GetAccessToken implements registry.Store.
func (s *Store) GetAccessToken(_ context.Context, name string) (*models.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, _, err := s.readRegistry()
	if err != nil {
		return nil, err
	}
	for _, t := range tokens {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("access token %s: %w", name, voting.ErrNotFound)
}

// ListAssociations implements registry.Store.
func (s *Store) ListAssociations(_ context.Context) ([]models.TokenAssociation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, assocs, err := s.readRegistry()
	return assocs, err
}

// AddUserToken implements registry.Store.
func (s *Store) AddUserToken(_ context.Context, assoc models.TokenAssociation, token models.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, assocs, err := s.readRegistry()
	if err != nil {
		return err
	}
	for _, a := range assocs {
		if a.WalletAddress == assoc.WalletAddress {
			return registry.ErrWalletHasToken
		}
		if a.TokenName == token.Name {
			return registry.ErrTokenExists
		}
	}
	for _, t := range tokens {
		if t.Name == token.Name {
			return registry.ErrTokenExists
		}
	}

	if err := s.writeJSON(UserTokensFile, append(assocs, assoc)); err != nil {
		return err
	}
	return s.writeJSON(AccessTokensFile, append(tokens, token))
}

func findAssociation(assocs []models.TokenAssociation, wallet, name string) (int, error) {
	for i, a := range assocs {
		if a.WalletAddress == wallet && a.TokenName == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("token %s for %s: %w", name, wallet, voting.ErrNotFound)
}

// UpdateRequiredBalance implements registry.Store.
func (s *Store) UpdateRequiredBalance(_ context.Context, wallet, name string, balance int64) (*models.TokenAssociation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, assocs, err := s.readRegistry()
	if err != nil {
		return nil, err
	}
	i, err := findAssociation(assocs, wallet, name)
	if err != nil {
		return nil, err
	}

	assocs[i].RequiredBalance = balance
	for j := range tokens {
		if tokens[j].Name == name {
			tokens[j].RequiredBalance = balance
		}
	}

	if err := s.writeJSON(UserTokensFile, assocs); err != nil {
		return nil, err
	}
	if err := s.writeJSON(AccessTokensFile, tokens); err != nil {
		return nil, err
	}
	a := assocs[i]
	return &a, nil
}

// DeleteUserToken implements registry.Store.
func (s *Store) DeleteUserToken(_ context.Context, wallet, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, assocs, err := s.readRegistry()
	if err != nil {
		return err
	}
	i, err := findAssociation(assocs, wallet, name)
	if err != nil {
		return err
	}
	assocs = append(assocs[:i], assocs[i+1:]...)

	kept := tokens[:0]
	for _, t := range tokens {
		if t.Name != name {
			kept = append(kept, t)
		}
	}

	if err := s.writeJSON(UserTokensFile, assocs); err != nil {
		return err
	}
	return s.writeJSON(AccessTokensFile, kept)
}
