// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"testing"
	"time"

	"github.com/danielhkuo/runecheck/models"
)

func TestSweepCompletesOverdueQuestions(t *testing.T) {
	f := newFixture(t, nil, Options{})
	overdue := f.createQuestion(t, "UNCOMMON•GOODS", 5)
	open := f.createQuestion(t, "UNCOMMON•GOODS", 60)

	f.clock.Advance(10 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.Sweep(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		q, err := f.store.GetQuestion(context.Background(), overdue.ID)
		if err != nil {
			t.Fatalf("Failed to get question: %v", err)
		}
		if q.Status == models.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("Expected sweeper to complete question, status is %s", q.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Sweep to return after cancel")
	}

	q, err := f.store.GetQuestion(context.Background(), open.ID)
	if err != nil {
		t.Fatalf("Failed to get question: %v", err)
	}
	if q.Status != models.StatusActive {
		t.Errorf("Expected open question to stay active, got %s", q.Status)
	}
}
