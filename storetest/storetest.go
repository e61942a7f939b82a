// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package storetest checks that a storage backend honours the voting.Store
// and registry.Store contracts. Each backend's tests call Run.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/registry"
	"github.com/danielhkuo/runecheck/voting"
)

// Store is what a complete backend implements.
type Store interface {
	voting.Store
	registry.Store
}

// Run runs the conformance suite. open must return a fresh, empty store
// that has been seeded with registry.DefaultAccessTokens.
func Run(t *testing.T, open func(t *testing.T) Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s Store)
	}{
		{"QuestionRoundTrip", testQuestionRoundTrip},
		{"GetQuestionNotFound", testGetQuestionNotFound},
		{"ListQuestions", testListQuestions},
		{"UpdateQuestion", testUpdateQuestion},
		{"UpdateQuestionAborts", testUpdateQuestionAborts},
		{"RecordVote", testRecordVote},
		{"RecordVoteDuplicate", testRecordVoteDuplicate},
		{"RecordVoteUnknownQuestion", testRecordVoteUnknownQuestion},
		{"RecordVoteVetoed", testRecordVoteVetoed},
		{"VotesByWallet", testVotesByWallet},
		{"ConcurrentVotes", testConcurrentVotes},
		{"SeededAccessTokens", testSeededAccessTokens},
		{"AddUserToken", testAddUserToken},
		{"AddUserTokenConflicts", testAddUserTokenConflicts},
		{"UpdateRequiredBalance", testUpdateRequiredBalance},
		{"DeleteUserToken", testDeleteUserToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// NewQuestion returns an active question on token with an empty tally.
func NewQuestion(id, token string, start time.Time) *models.Question {
	return &models.Question{
		ID:        id,
		Token:     token,
		Question:  "Question " + id,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    models.StatusActive,
		CreatedBy: "bc1qadmin",
		Results:   voting.EmptyResults(),
	}
}

// NewVote returns a ballot cast at a fixed time.
func NewVote(questionID, wallet, choice string, weight int64) models.Vote {
	return models.Vote{
		QuestionID:    questionID,
		WalletAddress: wallet,
		Choice:        choice,
		TokenBalance:  decimal.NewFromInt(weight),
		Timestamp:     base.Add(time.Minute),
	}
}

func retally(q *models.Question, votes []models.Vote) error {
	q.Results = voting.Tally(votes)
	return nil
}

func mustCreate(t *testing.T, s Store, q *models.Question) {
	t.Helper()
	if err := s.CreateQuestion(context.Background(), q); err != nil {
		t.Fatalf("Failed to create question: %v", err)
	}
}

func mustVote(t *testing.T, s Store, v models.Vote) *models.Question {
	t.Helper()
	q, err := s.RecordVote(context.Background(), v, retally)
	if err != nil {
		t.Fatalf("Failed to record vote: %v", err)
	}
	return q
}

func testQuestionRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	q := NewQuestion("q1", "UNCOMMON•GOODS", base)
	completed := base.Add(2 * time.Hour)
	q.CompletedAt = &completed
	q.Status = models.StatusCompleted
	q.Results.HasEnded = true
	mustCreate(t, s, q)

	got, err := s.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}

	if got.ID != q.ID || got.Token != q.Token || got.Question != q.Question ||
		got.Status != q.Status || got.CreatedBy != q.CreatedBy {
		t.Errorf("Expected %+v, got %+v", q, got)
	}
	if !got.StartTime.Equal(q.StartTime) || !got.EndTime.Equal(q.EndTime) {
		t.Errorf("Expected window %v-%v, got %v-%v", q.StartTime, q.EndTime, got.StartTime, got.EndTime)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("Expected completedAt %v, got %v", completed, got.CompletedAt)
	}
	if got.ArchivedAt != nil {
		t.Errorf("Expected no archivedAt, got %v", got.ArchivedAt)
	}
	AssertResults(t, got.Results, q.Results)

	// Balances beyond 64 bits survive storage exactly.
	mustCreate(t, s, NewQuestion("q2", "UNCOMMON•GOODS", base))
	whale := NewVote("q2", "whale", models.ChoiceYes, 0)
	whale.TokenBalance = decimal.RequireFromString("123456789012345678901234567890")
	mustVote(t, s, whale)
	mustVote(t, s, NewVote("q2", "minnow", models.ChoiceNo, 40))

	got, err = s.GetQuestion(ctx, "q2")
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	AssertResults(t, got.Results, models.Results{
		YesVotes:         whale.TokenBalance,
		NoVotes:          decimal.NewFromInt(40),
		TotalVoters:      2,
		TotalVotingPower: decimal.RequireFromString("123456789012345678901234567930"),
		WinningChoice:    models.ChoiceYes,
	})

	votes, _ := s.VotesForQuestion(ctx, "q2")
	for _, v := range votes {
		if v.WalletAddress == "whale" && !v.TokenBalance.Equal(whale.TokenBalance) {
			t.Errorf("Expected balance %s, got %s", whale.TokenBalance, v.TokenBalance)
		}
	}
}

func testGetQuestionNotFound(t *testing.T, s Store) {
	_, err := s.GetQuestion(context.Background(), "missing")
	if !errors.Is(err, voting.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testListQuestions(t *testing.T, s Store) {
	ctx := context.Background()
	mustCreate(t, s, NewQuestion("q2", "UNCOMMON•GOODS", base.Add(time.Hour)))
	mustCreate(t, s, NewQuestion("q1", "UNCOMMON•GOODS", base))
	mustCreate(t, s, NewQuestion("q3", "YOLO•MOON•RUNES", base))

	all, err := s.ListQuestions(ctx, "")
	if err != nil {
		t.Fatalf("ListQuestions failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 questions, got %d", len(all))
	}

	goods, err := s.ListQuestions(ctx, "UNCOMMON•GOODS")
	if err != nil {
		t.Fatalf("ListQuestions failed: %v", err)
	}
	if len(goods) != 2 || goods[0].ID != "q1" || goods[1].ID != "q2" {
		t.Errorf("Expected [q1 q2] in start order, got %+v", goods)
	}

	none, err := s.ListQuestions(ctx, "MAGA•FIGHT•FIGHT")
	if err != nil {
		t.Fatalf("ListQuestions failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no questions, got %d", len(none))
	}
}

func testUpdateQuestion(t *testing.T, s Store) {
	ctx := context.Background()
	mustCreate(t, s, NewQuestion("q1", "UNCOMMON•GOODS", base))
	mustVote(t, s, NewVote("q1", "w1", models.ChoiceNo, 9))

	archivedAt := base.Add(3 * time.Hour)
	updated, err := s.UpdateQuestion(ctx, "q1", func(q *models.Question, votes []models.Vote) error {
		if len(votes) != 1 {
			return fmt.Errorf("expected 1 vote, got %d", len(votes))
		}
		q.Status = models.StatusArchived
		q.ArchivedAt = &archivedAt
		q.Results = voting.Tally(votes)
		q.Results.HasEnded = true
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateQuestion failed: %v", err)
	}
	if updated.Status != models.StatusArchived {
		t.Errorf("Expected archived, got %s", updated.Status)
	}

	got, _ := s.GetQuestion(ctx, "q1")
	if got.Status != models.StatusArchived || got.ArchivedAt == nil || !got.ArchivedAt.Equal(archivedAt) {
		t.Errorf("Expected stored archive transition, got %+v", got)
	}
	if !got.Results.HasEnded || got.Results.WinningChoice != models.ChoiceNo {
		t.Errorf("Expected final results stored, got %+v", got.Results)
	}

	if _, err := s.UpdateQuestion(ctx, "missing", retally); !errors.Is(err, voting.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testUpdateQuestionAborts(t *testing.T, s Store) {
	ctx := context.Background()
	mustCreate(t, s, NewQuestion("q1", "UNCOMMON•GOODS", base))

	_, err := s.UpdateQuestion(ctx, "q1", func(q *models.Question, _ []models.Vote) error {
		q.Status = models.StatusCompleted
		return voting.ErrInvalidTransition
	})
	if !errors.Is(err, voting.ErrInvalidTransition) {
		t.Fatalf("Expected the callback error, got %v", err)
	}

	got, _ := s.GetQuestion(ctx, "q1")
	if got.Status != models.StatusActive {
		t.Errorf("Expected aborted update to leave status active, got %s", got.Status)
	}
}

func testRecordVote(t *testing.T, s Store) {
	ctx := context.Background()
	mustCreate(t, s, NewQuestion("q1", "UNCOMMON•GOODS", base))

	mustVote(t, s, NewVote("q1", "w1", models.ChoiceYes, 100))
	mustVote(t, s, NewVote("q1", "w2", models.ChoiceNo, 40))
	q := mustVote(t, s, NewVote("q1", "w3", models.ChoiceYes, 5))

	want := models.Results{
		YesVotes:         decimal.NewFromInt(105),
		NoVotes:          decimal.NewFromInt(40),
		TotalVoters:      3,
		TotalVotingPower: decimal.NewFromInt(145),
		WinningChoice:    models.ChoiceYes,
	}
	AssertResults(t, q.Results, want)

	stored, _ := s.GetQuestion(ctx, "q1")
	AssertResults(t, stored.Results, want)

	votes, err := s.VotesForQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("VotesForQuestion failed: %v", err)
	}
	if len(votes) != 3 {
		t.Fatalf("Expected 3 votes, got %d", len(votes))
	}
	for _, v := range votes {
		if v.QuestionID != "q1" || !v.Timestamp.Equal(base.Add(time.Minute)) {
			t.Errorf("Unexpected vote %+v", v)
		}
	}
}

func testRecordVoteDuplicate(t *testing.T, s Store) {
	ctx := context.Background()
	mustCreate(t, s, NewQuestion("q1", "UNCOMMON•GOODS", base))
	mustVote(t, s, NewVote("q1", "w1", models.ChoiceYes, 10))

	_, err := s.RecordVote(ctx, NewVote("q1", "w1", models.ChoiceNo, 99), retally)
	if !errors.Is(err, voting.ErrDuplicateVote) {
		t.Fatalf("Expected ErrDuplicateVote, got %v", err)
	}

	votes, _ := s.VotesForQuestion(ctx, "q1")
	if len(votes) != 1 || votes[0].Choice != models.ChoiceYes {
		t.Errorf("Expected ledger unchanged, got %+v", votes)
	}
	q, _ := s.GetQuestion(ctx, "q1")
	if q.Results.TotalVoters != 1 {
		t.Errorf("Expected results unchanged, got %+v", q.Results)
	}
}

func testRecordVoteUnknownQuestion(t *testing.T, s Store) {
	_, err := s.RecordVote(context.Background(), NewVote("missing", "w1", models.ChoiceYes, 10), retally)
	if !errors.Is(err, voting.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testRecordVoteVetoed(t *testing.T, s Store) {
	ctx := context.Background()
	mustCreate(t, s, NewQuestion("q1", "UNCOMMON•GOODS", base))

	_, err := s.RecordVote(ctx, NewVote("q1", "w1", models.ChoiceYes, 10), func(*models.Question, []models.Vote) error {
		return voting.ErrNotActive
	})
	if !errors.Is(err, voting.ErrNotActive) {
		t.Fatalf("Expected ErrNotActive, got %v", err)
	}

	votes, _ := s.VotesForQuestion(ctx, "q1")
	if len(votes) != 0 {
		t.Errorf("Expected vetoed vote not to be stored, got %+v", votes)
	}
}

func testVotesByWallet(t *testing.T, s Store) {
	ctx := context.Background()
	mustCreate(t, s, NewQuestion("q1", "UNCOMMON•GOODS", base))
	mustCreate(t, s, NewQuestion("q2", "UNCOMMON•GOODS", base))
	mustVote(t, s, NewVote("q1", "w1", models.ChoiceYes, 10))
	mustVote(t, s, NewVote("q2", "w1", models.ChoiceNo, 10))
	mustVote(t, s, NewVote("q2", "w2", models.ChoiceNo, 10))

	votes, err := s.VotesByWallet(ctx, "w1")
	if err != nil {
		t.Fatalf("VotesByWallet failed: %v", err)
	}
	ids := map[string]bool{}
	for _, v := range votes {
		ids[v.QuestionID] = true
	}
	if len(votes) != 2 || !ids["q1"] || !ids["q2"] {
		t.Errorf("Expected votes on q1 and q2, got %+v", votes)
	}

	votes, _ = s.VotesByWallet(ctx, "nobody")
	if len(votes) != 0 {
		t.Errorf("Expected no votes, got %+v", votes)
	}
}

func testConcurrentVotes(t *testing.T, s Store) {
	ctx := context.Background()
	mustCreate(t, s, NewQuestion("q1", "UNCOMMON•GOODS", base))

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for i := 0; i < voters; i++ {
		wg.Add(2)
		v := NewVote("q1", fmt.Sprintf("w%02d", i), models.ChoiceYes, int64(i+1))
		go func() {
			defer wg.Done()
			_, err := s.RecordVote(ctx, v, retally)
			errs <- err
		}()
		// The same wallet again: exactly one of the pair may win.
		go func() {
			defer wg.Done()
			_, err := s.RecordVote(ctx, v, retally)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case !errors.Is(err, voting.ErrDuplicateVote):
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if accepted != voters {
		t.Errorf("Expected %d accepted votes, got %d", voters, accepted)
	}

	votes, _ := s.VotesForQuestion(ctx, "q1")
	if len(votes) != voters {
		t.Errorf("Expected %d votes in the ledger, got %d", voters, len(votes))
	}

	q, _ := s.GetQuestion(ctx, "q1")
	AssertResults(t, q.Results, voting.Tally(votes))
}

func testSeededAccessTokens(t *testing.T, s Store) {
	tokens, err := s.ListAccessTokens(context.Background())
	if err != nil {
		t.Fatalf("ListAccessTokens failed: %v", err)
	}

	want := registry.DefaultAccessTokens()
	if len(tokens) != len(want) {
		t.Fatalf("Expected %d tokens, got %d", len(want), len(tokens))
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("Token %d: expected %+v, got %+v", i, want[i], tokens[i])
		}
	}

	if _, err := s.GetAccessToken(context.Background(), "NOPE"); !errors.Is(err, voting.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func newAssociation(wallet, name string, balance int64) (models.TokenAssociation, models.AccessToken) {
	path := registry.DashboardPath(name)
	return models.TokenAssociation{
			WalletAddress:   wallet,
			TokenName:       name,
			RequiredBalance: balance,
			AssociatedURL:   path,
			CreatedAt:       base,
		}, models.AccessToken{
			Name:            name,
			RequiredBalance: balance,
			DashboardPath:   path,
			Description:     "Access " + name + " Dashboard",
			ExternalURL:     path,
		}
}

func testAddUserToken(t *testing.T, s Store) {
	ctx := context.Background()
	assoc, token := newAssociation("w1", "DOG•GO•TO•THE•MOON", 1000)

	if err := s.AddUserToken(ctx, assoc, token); err != nil {
		t.Fatalf("AddUserToken failed: %v", err)
	}

	got, err := s.GetAccessToken(ctx, "DOG•GO•TO•THE•MOON")
	if err != nil {
		t.Fatalf("GetAccessToken failed: %v", err)
	}
	if *got != token {
		t.Errorf("Expected %+v, got %+v", token, *got)
	}

	tokens, _ := s.ListAccessTokens(ctx)
	if len(tokens) != 5 || tokens[4].Name != token.Name {
		t.Errorf("Expected new token appended to the registry, got %+v", tokens)
	}

	assocs, err := s.ListAssociations(ctx)
	if err != nil {
		t.Fatalf("ListAssociations failed: %v", err)
	}
	if len(assocs) != 1 || assocs[0].WalletAddress != "w1" || !assocs[0].CreatedAt.Equal(base) {
		t.Errorf("Expected one association for w1, got %+v", assocs)
	}
}

func testAddUserTokenConflicts(t *testing.T, s Store) {
	ctx := context.Background()
	assoc, token := newAssociation("w1", "DOG•GO•TO•THE•MOON", 1000)
	if err := s.AddUserToken(ctx, assoc, token); err != nil {
		t.Fatalf("AddUserToken failed: %v", err)
	}

	tests := []struct {
		name    string
		wallet  string
		token   string
		wantErr error
	}{
		{"wallet already registered", "w1", "OTHER•TOKEN", registry.ErrWalletHasToken},
		{"name taken by user token", "w2", "DOG•GO•TO•THE•MOON", registry.ErrTokenExists},
		{"name taken by seeded token", "w2", "UNCOMMON•GOODS", registry.ErrTokenExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, tok := newAssociation(tt.wallet, tt.token, 1)
			err := s.AddUserToken(ctx, a, tok)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, voting.ErrValidation) {
				t.Errorf("Expected conflicts to be validation errors, got %v", err)
			}
		})
	}

	assocs, _ := s.ListAssociations(ctx)
	if len(assocs) != 1 {
		t.Errorf("Expected registry unchanged, got %+v", assocs)
	}
}

func testUpdateRequiredBalance(t *testing.T, s Store) {
	ctx := context.Background()
	assoc, token := newAssociation("w1", "DOG•GO•TO•THE•MOON", 1000)
	if err := s.AddUserToken(ctx, assoc, token); err != nil {
		t.Fatalf("AddUserToken failed: %v", err)
	}

	got, err := s.UpdateRequiredBalance(ctx, "w1", "DOG•GO•TO•THE•MOON", 250)
	if err != nil {
		t.Fatalf("UpdateRequiredBalance failed: %v", err)
	}
	if got.RequiredBalance != 250 {
		t.Errorf("Expected 250, got %d", got.RequiredBalance)
	}

	tok, _ := s.GetAccessToken(ctx, "DOG•GO•TO•THE•MOON")
	if tok.RequiredBalance != 250 {
		t.Errorf("Expected access token updated to 250, got %d", tok.RequiredBalance)
	}

	if _, err := s.UpdateRequiredBalance(ctx, "w2", "DOG•GO•TO•THE•MOON", 1); !errors.Is(err, voting.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another wallet, got %v", err)
	}
	if _, err := s.UpdateRequiredBalance(ctx, "w1", "UNCOMMON•GOODS", 1); !errors.Is(err, voting.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a seeded token, got %v", err)
	}
}

func testDeleteUserToken(t *testing.T, s Store) {
	ctx := context.Background()
	assoc, token := newAssociation("w1", "DOG•GO•TO•THE•MOON", 1000)
	if err := s.AddUserToken(ctx, assoc, token); err != nil {
		t.Fatalf("AddUserToken failed: %v", err)
	}

	if err := s.DeleteUserToken(ctx, "w1", "DOG•GO•TO•THE•MOON"); err != nil {
		t.Fatalf("DeleteUserToken failed: %v", err)
	}
	if _, err := s.GetAccessToken(ctx, "DOG•GO•TO•THE•MOON"); !errors.Is(err, voting.ErrNotFound) {
		t.Errorf("Expected access token removed, got %v", err)
	}
	assocs, _ := s.ListAssociations(ctx)
	if len(assocs) != 0 {
		t.Errorf("Expected association removed, got %+v", assocs)
	}

	if err := s.DeleteUserToken(ctx, "w1", "DOG•GO•TO•THE•MOON"); !errors.Is(err, voting.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}

	// The wallet may register again once its token is gone.
	if err := s.AddUserToken(ctx, assoc, token); err != nil {
		t.Errorf("Expected re-registration to succeed, got %v", err)
	}
}

// AssertResults compares two tallies by value.
func AssertResults(t *testing.T, got, want models.Results) {
	t.Helper()
	if !got.YesVotes.Equal(want.YesVotes) || !got.NoVotes.Equal(want.NoVotes) ||
		!got.TotalVotingPower.Equal(want.TotalVotingPower) || got.TotalVoters != want.TotalVoters ||
		got.WinningChoice != want.WinningChoice || got.HasEnded != want.HasEnded {
		t.Errorf("Expected results %+v, got %+v", want, got)
	}
}
