// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/runecheck/auth"
	"github.com/danielhkuo/runecheck/cliparse"
	"github.com/danielhkuo/runecheck/db"
	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/oracle"
	"github.com/danielhkuo/runecheck/registry"
	"github.com/danielhkuo/runecheck/voting"
)

// Wallets known to the test oracle.
const (
	// AdminWallet holds 2,500,000 RUNE•MOON•DRAGON and 100 UNCOMMON•GOODS.
	AdminWallet = "bc1qadmin"
	// HolderWallet holds 40 UNCOMMON•GOODS and 400,000 YOLO•MOON•RUNES.
	HolderWallet = "bc1qholder"
	// WhaleWallet holds 105 UNCOMMON•GOODS.
	WhaleWallet = "bc1qwhale"
	// StrangerWallet holds nothing.
	StrangerWallet = "bc1qstranger"
)

// TestToken is the token test questions are created for.
const TestToken = "UNCOMMON•GOODS"

// Clock is a settable time source for voting.Options.Now.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Env is a fully wired service stack on a temporary sqlite database.
type Env struct {
	Store    *db.Store
	Oracle   *oracle.Static
	Gate     *auth.Gate
	Votes    *voting.Service
	Registry *registry.Service
	Clock    *Clock
	Config   cliparse.Config
}

// SetupTestEnv creates a fresh sqlite-backed environment that is closed
// when the test ends.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	store, err := db.Open(context.Background(), db.DialectSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	o := oracle.NewStatic(map[string][]oracle.RuneBalance{
		AdminWallet: {
			{Name: "RUNE•MOON•DRAGON", Balance: "2,500,000"},
			{Name: TestToken, Balance: "100"},
		},
		HolderWallet: {
			{Name: TestToken, Balance: "40"},
			{Name: "YOLO•MOON•RUNES", Balance: "400,000"},
		},
		WhaleWallet: {
			{Name: TestToken, Balance: "105"},
		},
	})

	cfg := GetTestConfig()
	gate := auth.NewGate(o, cfg.AdminToken, cfg.AdminMinBalance)
	clock := NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	return &Env{
		Store:    store,
		Oracle:   o,
		Gate:     gate,
		Votes:    voting.NewService(store, gate, gate, voting.Options{Now: clock.Now}),
		Registry: registry.NewService(store, gate),
		Clock:    clock,
		Config:   cfg,
	}
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:            3318,
		StoreType:       cliparse.StoreSQLite,
		DatabaseURL:     "test.db",
		AdminToken:      auth.DefaultAdminToken,
		AdminMinBalance: auth.DefaultAdminMinBalance,
		VoteRateLimit:   0,
		SweepInterval:   time.Minute,
		IPHashSalt:      "test-ip-salt",
	}
}

// CreateTestQuestion opens a question on TestToken that runs for duration
// from the environment's current time.
func CreateTestQuestion(t *testing.T, env *Env, duration time.Duration) *models.Question {
	t.Helper()

	end := env.Clock.Now().Add(duration)
	q, err := env.Votes.CreateQuestion(context.Background(), models.CreateQuestionRequest{
		Token:     TestToken,
		Question:  "Should we test this?",
		EndTime:   &end,
		CreatedBy: AdminWallet,
	})
	if err != nil {
		t.Fatalf("Failed to create test question: %v", err)
	}
	return q
}

// CastTestVote records a vote directly through the service.
func CastTestVote(t *testing.T, env *Env, questionID, wallet, choice string) {
	t.Helper()

	_, _, err := env.Votes.CastVote(context.Background(), models.CastVoteRequest{
		QuestionID:    questionID,
		WalletAddress: wallet,
		Choice:        choice,
	})
	if err != nil {
		t.Fatalf("Failed to cast test vote: %v", err)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
