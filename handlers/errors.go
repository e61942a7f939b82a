// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/runecheck/middleware"
	"github.com/danielhkuo/runecheck/voting"
)

// statusFor maps a service error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, voting.ErrValidation),
		errors.Is(err, voting.ErrDuplicateVote),
		errors.Is(err, voting.ErrInvalidBalance):
		return http.StatusBadRequest
	case errors.Is(err, voting.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, voting.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, voting.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, voting.ErrNotActive),
		errors.Is(err, voting.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError reports err to the client. Storage and other unexpected
// failures are logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, err error, failure string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(failure, "error", err)
		middleware.ErrorResponse(w, status, failure)
		return
	}
	middleware.ErrorResponse(w, status, err.Error())
}
