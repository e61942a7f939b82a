// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package oracle

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// RuneBalance is one token holding reported for an address.
// Balance is the indexer's base-10 string, possibly with thousands separators.
type RuneBalance struct {
	Name    string `json:"name"`
	Balance string `json:"balance"`
	Symbol  string `json:"symbol"`
}

// Oracle reports the token balances held by a wallet address.
type Oracle interface {
	FetchBalances(ctx context.Context, address string) ([]RuneBalance, error)
}

// ParseBalance reads an ord balance string such as "2,500,000" as an integer
// amount. Commas are thousands separators. Parsing stops at the first
// non-digit; input with no leading digits is 0.
func ParseBalance(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimPrefix(s, "+")

	end := 0
	if end < len(s) && s[end] == '-' {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s[:end])
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Find returns the balance entry for token, matched by exact name.
func Find(balances []RuneBalance, token string) (RuneBalance, bool) {
	for _, b := range balances {
		if b.Name == token {
			return b, true
		}
	}
	return RuneBalance{}, false
}
