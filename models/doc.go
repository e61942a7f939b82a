// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - Question: one governance vote scoped to a token and a time window
  - Vote: a wallet's yes/no ballot with its token-weight snapshot
  - Results: token-weighted tally cached on a question
  - AccessToken: a token that gates a dashboard by minimum balance
  - TokenAssociation: the wallet that registered a token

Token amounts are decimal.Decimal integers. They marshal as base-10
strings and accept either strings or numbers when decoding.

# Request Types

  - CreateQuestionRequest: token, question, startTime, endTime or durationMinutes
  - CastVoteRequest: questionId, walletAddress, choice
  - UpdateStatusRequest, ArchiveSessionRequest: admin transitions
  - AccessRequest, CheckAdminRequest: balance-gated checks
  - AddUserTokenRequest, UpdateTokenBalanceRequest, DeleteUserTokenRequest

# Constants

Status values:

	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"

Choices:

	ChoiceYes = "yes"
	ChoiceNo  = "no"
*/
package models
