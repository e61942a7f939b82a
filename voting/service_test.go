// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/runecheck/models"
)

// memStore is an in-memory Store guarded by one mutex.
type memStore struct {
	mu        sync.Mutex
	questions map[string]models.Question
	order     []string
	votes     []models.Vote
}

func newMemStore() *memStore {
	return &memStore{questions: make(map[string]models.Question)}
}

func (m *memStore) CreateQuestion(_ context.Context, q *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[q.ID]; ok {
		return fmt.Errorf("question %s already exists", q.ID)
	}
	m.questions[q.ID] = *q
	m.order = append(m.order, q.ID)
	return nil
}

func (m *memStore) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return &q, nil
}

func (m *memStore) ListQuestions(_ context.Context, token string) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Question{}
	for _, id := range m.order {
		q := m.questions[id]
		if token == "" || q.Token == token {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memStore) UpdateQuestion(_ context.Context, id string, fn QuestionUpdate) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	if err := fn(&q, m.votesFor(id)); err != nil {
		return nil, err
	}
	m.questions[id] = q
	return &q, nil
}

func (m *memStore) RecordVote(_ context.Context, vote models.Vote, fn QuestionUpdate) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[vote.QuestionID]
	if !ok {
		return nil, fmt.Errorf("question %s: %w", vote.QuestionID, ErrNotFound)
	}
	votes := m.votesFor(vote.QuestionID)
	for _, v := range votes {
		if v.WalletAddress == vote.WalletAddress {
			return nil, ErrDuplicateVote
		}
	}
	votes = append(votes, vote)
	if err := fn(&q, votes); err != nil {
		return nil, err
	}
	m.votes = append(m.votes, vote)
	m.questions[q.ID] = q
	return &q, nil
}

func (m *memStore) VotesForQuestion(_ context.Context, questionID string) ([]models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.votesFor(questionID), nil
}

func (m *memStore) VotesByWallet(_ context.Context, wallet string) ([]models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Vote{}
	for _, v := range m.votes {
		if v.WalletAddress == wallet {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) votesFor(questionID string) []models.Vote {
	out := []models.Vote{}
	for _, v := range m.votes {
		if v.QuestionID == questionID {
			out = append(out, v)
		}
	}
	return out
}

type fakeWeights map[string]decimal.Decimal

func (f fakeWeights) VotingWeight(_ context.Context, address, _ string) (decimal.Decimal, error) {
	w, ok := f[address]
	if !ok {
		return decimal.Zero, ErrForbidden
	}
	return w, nil
}

type fakeAdmins map[string]bool

func (f fakeAdmins) RequireAdmin(_ context.Context, address string) error {
	if address == "" {
		return ErrUnauthorized
	}
	if !f[address] {
		return ErrForbidden
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const testAdmin = "bc1qadmin"

type fixture struct {
	svc   *Service
	store *memStore
	clock *fakeClock
}

func newFixture(t *testing.T, weights fakeWeights, opts Options) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore()
	n := 0
	opts.Now = clock.Now
	opts.NewID = func() (string, error) {
		n++
		return fmt.Sprintf("q%d", n), nil
	}

	return &fixture{
		svc:   NewService(store, weights, fakeAdmins{testAdmin: true}, opts),
		store: store,
		clock: clock,
	}
}

func (f *fixture) createQuestion(t *testing.T, token string, minutes int) *models.Question {
	t.Helper()
	q, err := f.svc.CreateQuestion(context.Background(), models.CreateQuestionRequest{
		Token:           token,
		Question:        "Should we burn the treasury?",
		DurationMinutes: minutes,
		CreatedBy:       testAdmin,
	})
	if err != nil {
		t.Fatalf("Failed to create question: %v", err)
	}
	return q
}

func (f *fixture) vote(t *testing.T, questionID, wallet, choice string) models.Results {
	t.Helper()
	_, results, err := f.svc.CastVote(context.Background(), models.CastVoteRequest{
		QuestionID:    questionID,
		WalletAddress: wallet,
		Choice:        choice,
	})
	if err != nil {
		t.Fatalf("Failed to cast vote for %s: %v", wallet, err)
	}
	return results
}

func weights(pairs map[string]int64) fakeWeights {
	w := fakeWeights{}
	for k, v := range pairs {
		w[k] = decimal.NewFromInt(v)
	}
	return w
}

func TestCreateQuestion(t *testing.T) {
	start := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	before := start.Add(-time.Hour)

	tests := []struct {
		name    string
		req     models.CreateQuestionRequest
		wantErr error
	}{
		{
			name: "explicit window",
			req:  models.CreateQuestionRequest{Token: "UNCOMMON•GOODS", Question: "Q?", StartTime: &start, EndTime: &end, CreatedBy: testAdmin},
		},
		{
			name: "duration from now",
			req:  models.CreateQuestionRequest{Token: "UNCOMMON•GOODS", Question: "Q?", DurationMinutes: 30, CreatedBy: testAdmin},
		},
		{
			name:    "missing token",
			req:     models.CreateQuestionRequest{Question: "Q?", DurationMinutes: 30, CreatedBy: testAdmin},
			wantErr: ErrValidation,
		},
		{
			name:    "blank question",
			req:     models.CreateQuestionRequest{Token: "UNCOMMON•GOODS", Question: "   ", DurationMinutes: 30, CreatedBy: testAdmin},
			wantErr: ErrValidation,
		},
		{
			name:    "no end",
			req:     models.CreateQuestionRequest{Token: "UNCOMMON•GOODS", Question: "Q?", CreatedBy: testAdmin},
			wantErr: ErrValidation,
		},
		{
			name:    "end before start",
			req:     models.CreateQuestionRequest{Token: "UNCOMMON•GOODS", Question: "Q?", StartTime: &start, EndTime: &before, CreatedBy: testAdmin},
			wantErr: ErrValidation,
		},
		{
			name:    "end equals start",
			req:     models.CreateQuestionRequest{Token: "UNCOMMON•GOODS", Question: "Q?", StartTime: &start, EndTime: &start, CreatedBy: testAdmin},
			wantErr: ErrValidation,
		},
		{
			name:    "no creator",
			req:     models.CreateQuestionRequest{Token: "UNCOMMON•GOODS", Question: "Q?", DurationMinutes: 30},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "creator is not admin",
			req:     models.CreateQuestionRequest{Token: "UNCOMMON•GOODS", Question: "Q?", DurationMinutes: 30, CreatedBy: "bc1qnobody"},
			wantErr: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, Options{})
			q, err := f.svc.CreateQuestion(context.Background(), tt.req)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				if len(f.store.questions) != 0 {
					t.Error("Expected nothing to be stored")
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if q.Status != models.StatusActive {
				t.Errorf("Expected status active, got %s", q.Status)
			}
			if !q.StartTime.Before(q.EndTime) {
				t.Errorf("Expected startTime before endTime, got %v and %v", q.StartTime, q.EndTime)
			}
			if q.Results.HasEnded || q.Results.TotalVoters != 0 {
				t.Errorf("Expected empty results, got %+v", q.Results)
			}
		})
	}
}

func TestCreateQuestionDuration(t *testing.T) {
	f := newFixture(t, nil, Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 90)

	if !q.StartTime.Equal(f.clock.Now()) {
		t.Errorf("Expected start at now, got %v", q.StartTime)
	}
	if got := q.EndTime.Sub(q.StartTime); got != 90*time.Minute {
		t.Errorf("Expected 90 minute window, got %v", got)
	}
}

func TestCastVote(t *testing.T) {
	f := newFixture(t, weights(map[string]int64{"w1": 100, "w2": 40, "w3": 5}), Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)

	f.vote(t, q.ID, "w1", models.ChoiceYes)
	f.vote(t, q.ID, "w2", models.ChoiceNo)
	results := f.vote(t, q.ID, "w3", "YES")

	assertResults(t, results, 105, 40, 3, models.ChoiceYes)
	if results.HasEnded {
		t.Error("Expected hasEnded false while active")
	}

	stored, _ := f.store.GetQuestion(context.Background(), q.ID)
	assertResults(t, stored.Results, 105, 40, 3, models.ChoiceYes)
}

func TestCastVoteSnapshotsWeight(t *testing.T) {
	w := weights(map[string]int64{"w1": 100})
	f := newFixture(t, w, Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)

	f.vote(t, q.ID, "w1", models.ChoiceYes)
	w["w1"] = decimal.NewFromInt(1)

	votes, results, err := f.svc.Votes(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("Failed to list votes: %v", err)
	}
	if !votes[0].TokenBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected weight snapshot 100, got %s", votes[0].TokenBalance)
	}
	assertResults(t, results, 100, 0, 1, models.ChoiceYes)
}

func TestCastVoteDuplicate(t *testing.T) {
	f := newFixture(t, weights(map[string]int64{"w1": 10}), Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)

	f.vote(t, q.ID, "w1", models.ChoiceYes)

	_, _, err := f.svc.CastVote(context.Background(), models.CastVoteRequest{
		QuestionID: q.ID, WalletAddress: "w1", Choice: models.ChoiceNo,
	})
	if !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("Expected ErrDuplicateVote, got %v", err)
	}
	if len(f.store.votes) != 1 {
		t.Errorf("Expected ledger size 1, got %d", len(f.store.votes))
	}

	stored, _ := f.store.GetQuestion(context.Background(), q.ID)
	assertResults(t, stored.Results, 10, 0, 1, models.ChoiceYes)
}

func TestRecordVoteRejectsDuplicateAtomically(t *testing.T) {
	f := newFixture(t, nil, Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)
	vote := ballot("w1", models.ChoiceYes, 10)
	vote.QuestionID = q.ID
	tally := func(q *models.Question, votes []models.Vote) error {
		q.Results = Tally(votes)
		return nil
	}

	if _, err := f.store.RecordVote(context.Background(), vote, tally); err != nil {
		t.Fatalf("Failed to record vote: %v", err)
	}
	if _, err := f.store.RecordVote(context.Background(), vote, tally); !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("Expected ErrDuplicateVote, got %v", err)
	}
	if len(f.store.votes) != 1 {
		t.Errorf("Expected ledger size 1, got %d", len(f.store.votes))
	}
}

func TestCastVoteErrors(t *testing.T) {
	f := newFixture(t, weights(map[string]int64{"w1": 10, "broke": 0}), Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)

	tests := []struct {
		name    string
		req     models.CastVoteRequest
		wantErr error
	}{
		{"missing question", models.CastVoteRequest{WalletAddress: "w1", Choice: "yes"}, ErrValidation},
		{"missing wallet", models.CastVoteRequest{QuestionID: q.ID, Choice: "yes"}, ErrValidation},
		{"invalid choice", models.CastVoteRequest{QuestionID: q.ID, WalletAddress: "w1", Choice: "abstain"}, ErrValidation},
		{"unknown question", models.CastVoteRequest{QuestionID: "nope", WalletAddress: "w1", Choice: "yes"}, ErrNotFound},
		{"holds no tokens", models.CastVoteRequest{QuestionID: q.ID, WalletAddress: "stranger", Choice: "yes"}, ErrForbidden},
		{"zero balance", models.CastVoteRequest{QuestionID: q.ID, WalletAddress: "broke", Choice: "no"}, ErrInvalidBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.CastVote(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if len(f.store.votes) != 0 {
		t.Errorf("Expected empty ledger, got %d votes", len(f.store.votes))
	}
}

func TestCastVoteAfterDeadline(t *testing.T) {
	f := newFixture(t, weights(map[string]int64{"w1": 10}), Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 10)

	f.clock.Advance(11 * time.Minute)

	_, _, err := f.svc.CastVote(context.Background(), models.CastVoteRequest{
		QuestionID: q.ID, WalletAddress: "w1", Choice: models.ChoiceYes,
	})
	if !errors.Is(err, ErrNotActive) {
		t.Fatalf("Expected ErrNotActive, got %v", err)
	}

	stored, _ := f.store.GetQuestion(context.Background(), q.ID)
	if stored.Status != models.StatusCompleted {
		t.Errorf("Expected overdue question to be completed, got %s", stored.Status)
	}
}

func TestVotingWindow(t *testing.T) {
	tests := []struct {
		name    string
		enforce bool
		wantErr error
	}{
		{"permissive by default", false, nil},
		{"enforced", true, ErrNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, weights(map[string]int64{"w1": 10}), Options{EnforceVotingWindow: tt.enforce})
			start := f.clock.Now().Add(time.Hour)
			end := start.Add(time.Hour)

			q, err := f.svc.CreateQuestion(context.Background(), models.CreateQuestionRequest{
				Token: "UNCOMMON•GOODS", Question: "Later?", StartTime: &start, EndTime: &end, CreatedBy: testAdmin,
			})
			if err != nil {
				t.Fatalf("Failed to create question: %v", err)
			}
			if q.Status != models.StatusActive {
				t.Errorf("Expected future question to be active, got %s", q.Status)
			}

			_, _, err = f.svc.CastVote(context.Background(), models.CastVoteRequest{
				QuestionID: q.ID, WalletAddress: "w1", Choice: models.ChoiceYes,
			})
			if tt.wantErr == nil && err != nil {
				t.Errorf("Expected vote to be accepted, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOverdueQuestionCompletes(t *testing.T) {
	f := newFixture(t, weights(map[string]int64{"w1": 10, "w2": 20, "w3": 30}), Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 5)

	f.vote(t, q.ID, "w1", models.ChoiceYes)
	f.vote(t, q.ID, "w2", models.ChoiceYes)
	f.vote(t, q.ID, "w3", models.ChoiceNo)

	f.clock.Advance(6 * time.Minute)

	got, err := f.svc.GetQuestion(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("Failed to get question: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Fatalf("Expected completed, got %s", got.Status)
	}
	if !got.Results.HasEnded {
		t.Error("Expected hasEnded true")
	}
	if got.CompletedAt == nil {
		t.Error("Expected completedAt to be set")
	}

	votes, _ := f.store.VotesForQuestion(context.Background(), q.ID)
	want := Tally(votes)
	want.HasEnded = true
	assertResults(t, got.Results, 30, 30, 3, "")
	if !got.Results.TotalVotingPower.Equal(want.TotalVotingPower) {
		t.Errorf("Expected results to match the ledger tally")
	}
}

func TestRefreshStatuses(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.createQuestion(t, "UNCOMMON•GOODS", 5)
	f.createQuestion(t, "YOLO•MOON•RUNES", 5)
	f.createQuestion(t, "YOLO•MOON•RUNES", 60)

	f.clock.Advance(10 * time.Minute)

	n, err := f.svc.RefreshStatuses(context.Background())
	if err != nil {
		t.Fatalf("RefreshStatuses failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 questions completed, got %d", n)
	}

	n, err = f.svc.RefreshStatuses(context.Background())
	if err != nil {
		t.Fatalf("RefreshStatuses failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected second refresh to complete nothing, got %d", n)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t, weights(map[string]int64{"w1": 7, "w2": 3}), Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)
	f.vote(t, q.ID, "w1", models.ChoiceNo)
	f.vote(t, q.ID, "w2", models.ChoiceYes)

	first, err := f.svc.Complete(context.Background(), q.ID, testAdmin)
	if err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}
	second, err := f.svc.Complete(context.Background(), q.ID, testAdmin)
	if err != nil {
		t.Fatalf("Second completion failed: %v", err)
	}

	assertResults(t, first.Results, 3, 7, 2, models.ChoiceNo)
	assertResults(t, second.Results, 3, 7, 2, models.ChoiceNo)
	if !first.CompletedAt.Equal(*second.CompletedAt) {
		t.Error("Expected completedAt to stay the same")
	}
	if !second.Results.HasEnded {
		t.Error("Expected hasEnded true")
	}
}

func TestArchive(t *testing.T) {
	f := newFixture(t, weights(map[string]int64{"w1": 10}), Options{})
	ctx := context.Background()
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)
	other := f.createQuestion(t, "UNCOMMON•GOODS", 60)
	f.vote(t, q.ID, "w1", models.ChoiceYes)

	if _, err := f.svc.Archive(ctx, q.ID, "UNCOMMON•GOODS", testAdmin); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected archiving an active question to fail, got %v", err)
	}

	if _, err := f.svc.Complete(ctx, q.ID, testAdmin); err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}

	if _, err := f.svc.Archive(ctx, q.ID, "YOLO•MOON•RUNES", testAdmin); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected token mismatch to be not found, got %v", err)
	}

	archived, err := f.svc.Archive(ctx, q.ID, "UNCOMMON•GOODS", testAdmin)
	if err != nil {
		t.Fatalf("Failed to archive: %v", err)
	}
	if archived.Status != models.StatusArchived || archived.ArchivedAt == nil {
		t.Errorf("Expected archived with timestamp, got %+v", archived)
	}
	assertResults(t, archived.Results, 10, 0, 1, models.ChoiceYes)

	again, err := f.svc.Archive(ctx, q.ID, "UNCOMMON•GOODS", testAdmin)
	if err != nil {
		t.Fatalf("Expected archiving twice to succeed, got %v", err)
	}
	if !again.ArchivedAt.Equal(*archived.ArchivedAt) {
		t.Error("Expected archivedAt unchanged")
	}

	active, err := f.svc.ActiveSessions(ctx, "UNCOMMON•GOODS")
	if err != nil {
		t.Fatalf("ActiveSessions failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != other.ID {
		t.Errorf("Expected only %s in active sessions, got %+v", other.ID, active)
	}

	hist, err := f.svc.ArchivedSessions(ctx, "UNCOMMON•GOODS")
	if err != nil {
		t.Fatalf("ArchivedSessions failed: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != q.ID {
		t.Errorf("Expected %s in archived sessions, got %+v", q.ID, hist)
	}

	if _, err := f.svc.Complete(ctx, q.ID, testAdmin); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected completing an archived question to fail, got %v", err)
	}
}

func TestArchiveRequiresAdmin(t *testing.T) {
	f := newFixture(t, nil, Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)

	if _, err := f.svc.Archive(context.Background(), q.ID, "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.svc.Archive(context.Background(), q.ID, "", "bc1qnobody"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t, nil, Options{})
	ctx := context.Background()
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)

	tests := []struct {
		name       string
		status     string
		wantErr    error
		wantStatus string
	}{
		{"active stays active", models.StatusActive, nil, models.StatusActive},
		{"unknown status", "paused", ErrValidation, ""},
		{"complete", models.StatusCompleted, nil, models.StatusCompleted},
		{"cannot reopen", models.StatusActive, ErrInvalidTransition, ""},
		{"archive", models.StatusArchived, nil, models.StatusArchived},
		{"cannot complete archived", models.StatusCompleted, ErrInvalidTransition, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.UpdateStatus(ctx, models.UpdateStatusRequest{
				QuestionID: q.ID, Status: tt.status, AdminAddress: testAdmin,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, got.Status)
			}
		})
	}
}

func TestCurrentQuestion(t *testing.T) {
	f := newFixture(t, nil, Options{})
	ctx := context.Background()

	got, err := f.svc.CurrentQuestion(ctx, "UNCOMMON•GOODS")
	if err != nil {
		t.Fatalf("CurrentQuestion failed: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected no current question, got %+v", got)
	}

	early := f.createQuestion(t, "UNCOMMON•GOODS", 5)
	late := f.createQuestion(t, "UNCOMMON•GOODS", 10)

	got, _ = f.svc.CurrentQuestion(ctx, "UNCOMMON•GOODS")
	if got == nil || got.ID != early.ID {
		t.Errorf("Expected first active question %s, got %+v", early.ID, got)
	}

	f.clock.Advance(time.Hour)

	got, _ = f.svc.CurrentQuestion(ctx, "UNCOMMON•GOODS")
	if got == nil || got.ID != late.ID {
		t.Fatalf("Expected latest completed question %s, got %+v", late.ID, got)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
}

func TestCreateQuestionArchivesCompleted(t *testing.T) {
	f := newFixture(t, nil, Options{})
	ctx := context.Background()
	old := f.createQuestion(t, "UNCOMMON•GOODS", 5)
	elsewhere := f.createQuestion(t, "YOLO•MOON•RUNES", 5)

	f.clock.Advance(time.Hour)

	_, err := f.svc.CreateQuestion(ctx, models.CreateQuestionRequest{
		Token: "UNCOMMON•GOODS", Question: "Next?", DurationMinutes: 30,
		CreatedBy: testAdmin, ArchiveCompleted: true,
	})
	if err != nil {
		t.Fatalf("Failed to create question: %v", err)
	}

	got, _ := f.store.GetQuestion(ctx, old.ID)
	if got.Status != models.StatusArchived {
		t.Errorf("Expected previous question archived, got %s", got.Status)
	}
	if !got.Results.HasEnded {
		t.Error("Expected archived question to keep its final results")
	}

	got, _ = f.store.GetQuestion(ctx, elsewhere.ID)
	if got.Status == models.StatusArchived {
		t.Error("Expected other tokens to be left alone")
	}
}

func TestListQuestions(t *testing.T) {
	f := newFixture(t, nil, Options{})
	ctx := context.Background()
	f.createQuestion(t, "UNCOMMON•GOODS", 5)
	f.createQuestion(t, "UNCOMMON•GOODS", 60)
	f.createQuestion(t, "YOLO•MOON•RUNES", 60)
	f.clock.Advance(10 * time.Minute)

	tests := []struct {
		token  string
		status string
		want   int
	}{
		{"", "", 3},
		{"UNCOMMON•GOODS", "", 2},
		{"UNCOMMON•GOODS", models.StatusCompleted, 1},
		{"UNCOMMON•GOODS", models.StatusActive, 1},
		{"", models.StatusActive, 2},
		{"MAGA•FIGHT•FIGHT", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.token+"/"+tt.status, func(t *testing.T) {
			got, err := f.svc.ListQuestions(ctx, tt.token, tt.status)
			if err != nil {
				t.Fatalf("ListQuestions failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d questions, got %d", tt.want, len(got))
			}
		})
	}

	if _, err := f.svc.ListQuestions(ctx, "", "deleted"); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown status, got %v", err)
	}
}

func TestCheckVoteAndVotedQuestions(t *testing.T) {
	f := newFixture(t, weights(map[string]int64{"w1": 10, "w2": 5}), Options{})
	ctx := context.Background()
	q1 := f.createQuestion(t, "UNCOMMON•GOODS", 60)
	q2 := f.createQuestion(t, "UNCOMMON•GOODS", 60)

	f.vote(t, q1.ID, "w1", models.ChoiceYes)
	f.vote(t, q2.ID, "w1", models.ChoiceNo)
	f.vote(t, q2.ID, "w2", models.ChoiceYes)

	voted, votes, results, err := f.svc.CheckVote(ctx, q2.ID, "w2")
	if err != nil {
		t.Fatalf("CheckVote failed: %v", err)
	}
	if !voted {
		t.Error("Expected w2 to have voted")
	}
	if len(votes) != 2 {
		t.Errorf("Expected 2 votes, got %d", len(votes))
	}
	assertResults(t, results, 5, 10, 2, models.ChoiceNo)

	voted, _, _, err = f.svc.CheckVote(ctx, q1.ID, "w2")
	if err != nil {
		t.Fatalf("CheckVote failed: %v", err)
	}
	if voted {
		t.Error("Expected w2 not to have voted on q1")
	}

	ids, err := f.svc.VotedQuestionIDs(ctx, "w1")
	if err != nil {
		t.Fatalf("VotedQuestionIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != q1.ID || ids[1] != q2.ID {
		t.Errorf("Expected [%s %s], got %v", q1.ID, q2.ID, ids)
	}
}

func TestConcurrentVotesSameWallet(t *testing.T) {
	f := newFixture(t, weights(map[string]int64{"w1": 10}), Options{})
	q := f.createQuestion(t, "UNCOMMON•GOODS", 60)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.CastVote(context.Background(), models.CastVoteRequest{
				QuestionID: q.ID, WalletAddress: "w1", Choice: models.ChoiceYes,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrDuplicateVote):
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("Expected exactly one accepted vote, got %d", ok)
	}
	if len(f.store.votes) != 1 {
		t.Errorf("Expected ledger size 1, got %d", len(f.store.votes))
	}
}
