// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/runecheck/cliparse"
	"github.com/danielhkuo/runecheck/handlers"
	"github.com/danielhkuo/runecheck/middleware"
	"github.com/danielhkuo/runecheck/registry"
	"github.com/danielhkuo/runecheck/voting"
)

// NewRouter registers every endpoint. A nil limiter disables vote rate
// limiting.
func NewRouter(votes *voting.Service, reg *registry.Service, limiter *middleware.IPRateLimiter, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	questionHandler := handlers.NewQuestionHandler(votes)
	voteHandler := handlers.NewVoteHandler(votes, cfg.IPHashSalt, cfg.TrustedProxies)
	tokenHandler := handlers.NewTokenHandler(reg)
	rateLimited := middleware.RateLimit(limiter, cfg.TrustedProxies)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Questions
	mux.HandleFunc("GET /questions", middleware.WithLogging(questionHandler.ListQuestions))
	mux.HandleFunc("GET /questions/current", middleware.WithLogging(questionHandler.CurrentQuestion))
	mux.HandleFunc("GET /questions/{id}", middleware.WithLogging(questionHandler.GetQuestion))
	mux.HandleFunc("POST /questions", middleware.WithLogging(questionHandler.CreateQuestion))
	mux.HandleFunc("POST /update-status", middleware.WithLogging(questionHandler.UpdateStatus))
	mux.HandleFunc("POST /archive-session", middleware.WithLogging(questionHandler.ArchiveSession))
	mux.HandleFunc("GET /sessions/{token}", middleware.WithLogging(questionHandler.Sessions))
	mux.HandleFunc("GET /archived-sessions/{token}", middleware.WithLogging(questionHandler.ArchivedSessions))

	// Voting
	mux.HandleFunc("POST /vote", middleware.WithLogging(rateLimited(voteHandler.CastVote)))
	mux.HandleFunc("GET /vote", middleware.WithLogging(voteHandler.ListVotes))
	mux.HandleFunc("GET /vote/check", middleware.WithLogging(voteHandler.CheckVote))
	mux.HandleFunc("GET /votes", middleware.WithLogging(voteHandler.UserVotes))
	mux.HandleFunc("GET /results", middleware.WithLogging(voteHandler.Results))

	// Token registry and access
	mux.HandleFunc("GET /tokens", middleware.WithLogging(tokenHandler.ListTokens))
	mux.HandleFunc("GET /token-balance", middleware.WithLogging(tokenHandler.TokenBalance))
	mux.HandleFunc("POST /access", middleware.WithLogging(tokenHandler.CheckAccess))
	mux.HandleFunc("POST /check-admin", middleware.WithLogging(tokenHandler.CheckAdmin))
	mux.HandleFunc("GET /user-token", middleware.WithLogging(tokenHandler.UserToken))
	mux.HandleFunc("POST /user-tokens", middleware.WithLogging(tokenHandler.AddUserToken))
	mux.HandleFunc("POST /user-tokens/balance", middleware.WithLogging(tokenHandler.UpdateTokenBalance))
	mux.HandleFunc("DELETE /user-tokens", middleware.WithLogging(tokenHandler.DeleteUserToken))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("runecheck API v1"))
	})

	return mux
}
