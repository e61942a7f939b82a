// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting implements token-weighted Yes/No governance voting.

# Tally

Tally is a pure function from a vote set to Results:

	yesVotes         = sum(tokenBalance where choice = yes)
	noVotes          = sum(tokenBalance where choice = no)
	totalVoters      = len(votes)
	totalVotingPower = yesVotes + noVotes
	winningChoice    = yes | no | "" on a tie

Weights are exact decimals, so the result does not depend on vote order.

# Lifecycle

Questions move one way only:

	active -> completed -> archived

A question becomes completed when its end time passes or when an admin
closes it. Completion recomputes the cached results from the full ledger
and sets hasEnded. Completing twice yields the same results. Only a
completed question can be archived, and archived results never change.

Overdue questions are completed lazily on every read. Service.Sweep does
the same on a timer.

# Ledger

A wallet votes at most once per question. The vote's weight is the
wallet's holding of the question's token when the vote is cast and never
changes afterwards. Votes are only accepted while the question is active.

Store implementations run UpdateQuestion and RecordVote as atomic units
of work, so the ledger and the cached results cannot drift apart.

# Errors

Callers match the sentinel errors with errors.Is:

	ErrValidation, ErrNotFound, ErrUnauthorized, ErrForbidden,
	ErrDuplicateVote, ErrInvalidBalance, ErrNotActive, ErrInvalidTransition
*/
package voting
