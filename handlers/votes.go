// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/runecheck/auth"
	"github.com/danielhkuo/runecheck/middleware"
	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/voting"
)

type VoteHandler struct {
	votes   *voting.Service
	ipSalt  string
	proxies middleware.TrustedProxies
}

// NewVoteHandler creates the ballot handlers. ipSalt keys the hashed client
// IPs written to the vote log; proxies decides whose X-Forwarded-For counts.
func NewVoteHandler(votes *voting.Service, ipSalt string, proxies middleware.TrustedProxies) *VoteHandler {
	return &VoteHandler{votes: votes, ipSalt: ipSalt, proxies: proxies}
}

// CastVote handles POST /vote
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	vote, results, err := h.votes.CastVote(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to record vote")
		return
	}

	slog.Info("vote recorded",
		"question_id", vote.QuestionID,
		"wallet", vote.WalletAddress,
		"choice", vote.Choice,
		"weight", vote.TokenBalance.String(),
		"ip_hash", auth.HashIP(middleware.GetClientIP(r, h.proxies), h.ipSalt),
	)

	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{
		Success: true,
		Vote:    *vote,
		Results: results,
	})
}

// ListVotes handles GET /vote?questionId=
func (h *VoteHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	votes, results, err := h.votes.Votes(r.Context(), r.URL.Query().Get("questionId"))
	if err != nil {
		writeServiceError(w, err, "Failed to load votes")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.VotesResponse{Votes: votes, Results: results})
}

// CheckVote handles GET /vote/check?questionId=&walletAddress=
func (h *VoteHandler) CheckVote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	voted, votes, results, err := h.votes.CheckVote(r.Context(), q.Get("questionId"), q.Get("walletAddress"))
	if err != nil {
		writeServiceError(w, err, "Failed to check vote")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.CheckVoteResponse{
		UserVoted: voted,
		Results:   results,
		Votes:     votes,
	})
}

// UserVotes handles GET /votes?walletAddress=
func (h *VoteHandler) UserVotes(w http.ResponseWriter, r *http.Request) {
	ids, err := h.votes.VotedQuestionIDs(r.Context(), r.URL.Query().Get("walletAddress"))
	if err != nil {
		writeServiceError(w, err, "Failed to load user votes")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.UserVotesResponse{VotedQuestionIDs: ids})
}

// Results handles GET /results?questionId=
func (h *VoteHandler) Results(w http.ResponseWriter, r *http.Request) {
	_, results, err := h.votes.Votes(r.Context(), r.URL.Query().Get("questionId"))
	if err != nil {
		writeServiceError(w, err, "Failed to load results")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, results)
}
