// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/runecheck/oracle"
	"github.com/danielhkuo/runecheck/voting"
)

// Default admin rule: hold at least 2,000,000 RUNE•MOON•DRAGON.
const (
	DefaultAdminToken      = "RUNE•MOON•DRAGON"
	DefaultAdminMinBalance = 2000000
)

// Gate makes balance-gated authorization decisions from oracle balances.
type Gate struct {
	oracle     oracle.Oracle
	adminToken string
	adminMin   decimal.Decimal
}

func NewGate(o oracle.Oracle, adminToken string, adminMinBalance int64) *Gate {
	if adminToken == "" {
		adminToken = DefaultAdminToken
	}
	return &Gate{
		oracle:     o,
		adminToken: adminToken,
		adminMin:   decimal.NewFromInt(adminMinBalance),
	}
}

// Balances returns the address's holdings. Oracle failures are logged and
// read as holding nothing, so every balance check fails closed.
func (g *Gate) Balances(ctx context.Context, address string) []oracle.RuneBalance {
	balances, err := g.oracle.FetchBalances(ctx, address)
	if err != nil {
		slog.Error("failed to fetch balances", "address", address, "error", err)
		return nil
	}
	return balances
}

// Holding reports how much of token the address holds and whether the
// oracle listed the token at all.
func (g *Gate) Holding(ctx context.Context, address, token string) (decimal.Decimal, bool) {
	b, ok := oracle.Find(g.Balances(ctx, address), token)
	if !ok {
		return decimal.Zero, false
	}
	return oracle.ParseBalance(b.Balance), true
}

// HasBalance reports the holding and whether it meets required.
func (g *Gate) HasBalance(ctx context.Context, address, token string, required int64) (decimal.Decimal, bool) {
	held, ok := g.Holding(ctx, address, token)
	if !ok {
		return decimal.Zero, false
	}
	return held, held.GreaterThanOrEqual(decimal.NewFromInt(required))
}

// VotingWeight implements voting.WeightSource.
func (g *Gate) VotingWeight(ctx context.Context, address, token string) (decimal.Decimal, error) {
	if strings.TrimSpace(address) == "" {
		return decimal.Zero, fmt.Errorf("%w: wallet address is required", voting.ErrUnauthorized)
	}
	held, ok := g.Holding(ctx, address, token)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no %s tokens found", voting.ErrForbidden, token)
	}
	return held, nil
}

// IsAdmin reports whether address holds enough of the admin token.
func (g *Gate) IsAdmin(ctx context.Context, address string) bool {
	if strings.TrimSpace(address) == "" {
		return false
	}
	held, ok := g.Holding(ctx, address, g.adminToken)
	return ok && held.GreaterThanOrEqual(g.adminMin)
}

// RequireAdmin implements voting.AdminChecker.
func (g *Gate) RequireAdmin(ctx context.Context, address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: admin address is required", voting.ErrUnauthorized)
	}
	if !g.IsAdmin(ctx, address) {
		return fmt.Errorf("%w: %s needs %s %s", voting.ErrForbidden, address, g.adminMin, g.adminToken)
	}
	return nil
}

// HashIP creates a one-way hash of an IP address for logging.
// Returns the first 16 hex chars of an HMAC-SHA256.
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
