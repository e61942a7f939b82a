// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the runecheck API.

# Handler Types

Each handler is a struct wrapping one service:

  - QuestionHandler: question lifecycle and dashboard sessions (voting.Service)
  - VoteHandler: ballots, vote checks and results (voting.Service)
  - TokenHandler: token registry, balances and access checks (registry.Service)

	questions := handlers.NewQuestionHandler(votes)

# Question Lifecycle

Questions move active → completed → archived. An active question is
completed when its end time passes (on the next read or by the sweeper) or
when an admin completes it:

	POST /questions        → CreateQuestion (admin)
	POST /update-status    → UpdateStatus (admin)
	POST /archive-session  → ArchiveSession (admin)

Admins are wallets holding the configured admin rune balance. The admin
wallet travels in the request body (createdBy, adminAddress, walletAddress).

# Voting

	POST /vote                → CastVote
	GET  /vote?questionId=    → ListVotes
	GET  /vote/check          → CheckVote
	GET  /votes?walletAddress= → UserVotes
	GET  /results?questionId= → Results

A vote weighs the wallet's balance of the question's token at the time it
is cast. Each wallet votes once per question.

# Error Handling

Service errors map to status codes:

	validation, duplicate vote, zero balance → 400
	missing wallet                           → 401
	not an admin, token not held             → 403
	unknown question or token association    → 404
	question not active, bad transition      → 409

All other errors are logged and reported as 500 with a generic message.
Errors are returned as JSON:

	{"error": "Bad Request", "message": "validation failed: choice must be yes or no"}
*/
package handlers
