// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/runecheck/models"
)

// Tally aggregates votes into token-weighted results.
// The sums are exact, so the output does not depend on vote order.
// HasEnded is left false; the lifecycle decides when a tally is final.
func Tally(votes []models.Vote) models.Results {
	yes := decimal.Zero
	no := decimal.Zero

	for _, v := range votes {
		switch v.Choice {
		case models.ChoiceYes:
			yes = yes.Add(v.TokenBalance)
		case models.ChoiceNo:
			no = no.Add(v.TokenBalance)
		}
	}

	results := models.Results{
		YesVotes:         yes,
		NoVotes:          no,
		TotalVoters:      len(votes),
		TotalVotingPower: yes.Add(no),
	}

	// Strictly greater wins; a tie has no winner
	switch yes.Cmp(no) {
	case 1:
		results.WinningChoice = models.ChoiceYes
	case -1:
		results.WinningChoice = models.ChoiceNo
	}

	return results
}

// EmptyResults is the tally of a question nobody voted on yet.
func EmptyResults() models.Results {
	return Tally(nil)
}
