// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/registry"
	"github.com/danielhkuo/runecheck/voting"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", fmt.Errorf("%w: choice must be yes or no", voting.ErrValidation), http.StatusBadRequest},
		{"duplicate vote", voting.ErrDuplicateVote, http.StatusBadRequest},
		{"zero balance", voting.ErrInvalidBalance, http.StatusBadRequest},
		{"token exists", registry.ErrTokenExists, http.StatusBadRequest},
		{"missing wallet", fmt.Errorf("%w: admin address is required", voting.ErrUnauthorized), http.StatusUnauthorized},
		{"not admin", fmt.Errorf("%w: not an admin", voting.ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("question q1: %w", voting.ErrNotFound), http.StatusNotFound},
		{"ended", fmt.Errorf("%w: question q1 has ended", voting.ErrNotActive), http.StatusConflict},
		{"transition", voting.ErrInvalidTransition, http.StatusConflict},
		{"storage", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	t.Run("client error keeps message", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeServiceError(w, fmt.Errorf("%w: question q1 has ended", voting.ErrNotActive), "Failed to record vote")

		if w.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", w.Code)
		}
		var resp models.ErrorResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Error != "Conflict" {
			t.Errorf("Expected error 'Conflict', got '%s'", resp.Error)
		}
		if resp.Message != "question is not open for voting: question q1 has ended" {
			t.Errorf("Unexpected message '%s'", resp.Message)
		}
	})

	t.Run("internal error is hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeServiceError(w, errors.New("pq: connection refused"), "Failed to record vote")

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", w.Code)
		}
		var resp models.ErrorResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Message != "Failed to record vote" {
			t.Errorf("Expected generic message, got '%s'", resp.Message)
		}
	})
}
