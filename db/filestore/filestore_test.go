// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/storetest"
)

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open file store: %v", err)
	}
	return s
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestFileStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return openTestStore(t)
	})
}

func TestMissingFilesReadEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	questions, err := s.ListQuestions(ctx, "")
	if err != nil {
		t.Fatalf("ListQuestions failed: %v", err)
	}
	if questions == nil || len(questions) != 0 {
		t.Errorf("Expected empty non-nil list, got %#v", questions)
	}

	votes, err := s.VotesByWallet(ctx, "w1")
	if err != nil {
		t.Fatalf("VotesByWallet failed: %v", err)
	}
	if votes == nil || len(votes) != 0 {
		t.Errorf("Expected empty non-nil list, got %#v", votes)
	}

	assocs, err := s.ListAssociations(ctx)
	if err != nil {
		t.Fatalf("ListAssociations failed: %v", err)
	}
	if len(assocs) != 0 {
		t.Errorf("Expected no associations, got %+v", assocs)
	}
}

func TestBlankFileReadsEmpty(t *testing.T) {
	s := openTestStore(t)
	writeFile(t, s.Dir(), VotesFile, "  \n")

	votes, err := s.VotesForQuestion(context.Background(), "q1")
	if err != nil {
		t.Fatalf("VotesForQuestion failed: %v", err)
	}
	if len(votes) != 0 {
		t.Errorf("Expected no votes, got %+v", votes)
	}
}

func TestCorruptFileIsAnError(t *testing.T) {
	s := openTestStore(t)
	writeFile(t, s.Dir(), QuestionsFile, "{not json")

	if _, err := s.ListQuestions(context.Background(), ""); err == nil {
		t.Error("Expected decode error for a corrupt file")
	}
}

// Files written by the earlier deployment store balances as JSON numbers.
func TestReadsNumericBalances(t *testing.T) {
	s := openTestStore(t)
	writeFile(t, s.Dir(), QuestionsFile, `{
  "questions": [
    {
      "id": "q1",
      "token": "YOLO•MOON•RUNES",
      "question": "Burn the treasury?",
      "startTime": "2025-03-01T12:00:00.000Z",
      "endTime": "2025-03-02T12:00:00.000Z",
      "status": "active",
      "createdBy": "bc1qadmin",
      "results": {"yesVotes": 105, "noVotes": 40, "totalVoters": 3, "totalVotingPower": 145, "winningChoice": "yes", "hasEnded": false}
    }
  ]
}`)
	writeFile(t, s.Dir(), VotesFile, `[
  {"questionId": "q1", "walletAddress": "w1", "choice": "yes", "tokenBalance": 100, "timestamp": "2025-03-01T12:01:00.000Z"},
  {"questionId": "q1", "walletAddress": "w2", "choice": "no", "tokenBalance": 40, "timestamp": "2025-03-01T12:02:00.000Z"},
  {"questionId": "q1", "walletAddress": "w3", "choice": "yes", "tokenBalance": 5, "timestamp": "2025-03-01T12:03:00.000Z"}
]`)

	q, err := s.GetQuestion(context.Background(), "q1")
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if !q.Results.YesVotes.Equal(decimal.NewFromInt(105)) || q.Results.TotalVoters != 3 {
		t.Errorf("Expected stored results, got %+v", q.Results)
	}

	votes, _ := s.VotesForQuestion(context.Background(), "q1")
	if len(votes) != 3 || !votes[0].TokenBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected numeric balances decoded, got %+v", votes)
	}
}

func TestRepairsResultsFromLedger(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	q := storetest.NewQuestion("q1", "UNCOMMON•GOODS", start)
	if err := s.CreateQuestion(ctx, q); err != nil {
		t.Fatalf("CreateQuestion failed: %v", err)
	}

	// Simulate a crash after the ledger write: votes.json has a vote the
	// question's cached results do not.
	votes := []models.Vote{storetest.NewVote("q1", "w1", models.ChoiceNo, 7)}
	data, _ := json.Marshal(votes)
	writeFile(t, s.Dir(), VotesFile, string(data))

	got, err := s.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if got.Results.TotalVoters != 1 || !got.Results.NoVotes.Equal(decimal.NewFromInt(7)) ||
		got.Results.WinningChoice != models.ChoiceNo {
		t.Errorf("Expected results recomputed from the ledger, got %+v", got.Results)
	}
}

func TestWritesLeaveNoTempFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	q := storetest.NewQuestion("q1", "UNCOMMON•GOODS", start)
	if err := s.CreateQuestion(ctx, q); err != nil {
		t.Fatalf("CreateQuestion failed: %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		switch e.Name() {
		case QuestionsFile, AccessTokensFile:
		default:
			t.Errorf("Unexpected file %s", e.Name())
		}
	}
}

func TestOpenKeepsExistingRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, AccessTokensFile, `[{"name": "ONLY•ONE", "requiredBalance": 1, "dashboardPath": "/dashboards/only-one", "description": "Access ONLY•ONE Dashboard"}]`)

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	tokens, err := s.ListAccessTokens(context.Background())
	if err != nil {
		t.Fatalf("ListAccessTokens failed: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Name != "ONLY•ONE" {
		t.Errorf("Expected existing registry kept, got %+v", tokens)
	}
}
