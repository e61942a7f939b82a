// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/runecheck/auth"
	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/voting"
)

// DefaultBalanceToken is reported by TokenBalance when no token is named.
const DefaultBalanceToken = "YOLO•MOON•RUNES"

type Service struct {
	store Store
	gate  *auth.Gate
	now   func() time.Time
}

func NewService(store Store, gate *auth.Gate) *Service {
	return &Service{store: store, gate: gate, now: time.Now}
}

// DashboardPath derives a dashboard route from a token name:
// "RUNE•MOON•DRAGON" becomes "/dashboards/rune-moon-dragon".
func DashboardPath(name string) string {
	return "/dashboards/" + strings.ReplaceAll(strings.ToLower(name), "•", "-")
}

func (s *Service) ListAccessTokens(ctx context.Context) ([]models.AccessToken, error) {
	return s.store.ListAccessTokens(ctx)
}

// CheckAccess verifies that address holds the token's required balance.
func (s *Service) CheckAccess(ctx context.Context, req models.AccessRequest) (*models.AccessResponse, error) {
	if strings.TrimSpace(req.Address) == "" || strings.TrimSpace(req.TokenName) == "" {
		return nil, fmt.Errorf("%w: address and tokenName are required", voting.ErrValidation)
	}

	token, err := s.knownToken(ctx, req.TokenName)
	if err != nil {
		return nil, err
	}

	held, listed := s.gate.Holding(ctx, req.Address, token.Name)
	if !listed {
		return nil, fmt.Errorf("%w: no %s balance found", voting.ErrForbidden, token.Name)
	}
	if held.LessThan(decimal.NewFromInt(token.RequiredBalance)) {
		return nil, fmt.Errorf("%w: insufficient %s balance. Required: %s, Current: %s",
			voting.ErrForbidden, token.Name, humanize.Comma(token.RequiredBalance), formatAmount(held))
	}

	return &models.AccessResponse{
		HasAccess:       true,
		TokenName:       token.Name,
		Balance:         held,
		RequiredBalance: token.RequiredBalance,
		DashboardPath:   token.DashboardPath,
		ExternalURL:     token.ExternalURL,
	}, nil
}

// TokenBalance reports an address's holding of a registered token.
func (s *Service) TokenBalance(ctx context.Context, address, tokenName string) (*models.TokenBalanceResponse, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: address is required", voting.ErrValidation)
	}
	if tokenName == "" {
		tokenName = DefaultBalanceToken
	}

	token, err := s.knownToken(ctx, tokenName)
	if err != nil {
		return nil, err
	}

	held, ok := s.gate.HasBalance(ctx, address, token.Name, token.RequiredBalance)
	return &models.TokenBalanceResponse{
		Raw:               held,
		Formatted:         formatAmount(held),
		HasMinimumBalance: ok,
	}, nil
}

func (s *Service) IsAdmin(ctx context.Context, address string) bool {
	return s.gate.IsAdmin(ctx, address)
}

// AddUserToken registers a new token for an admin wallet. Each wallet may
// register one token and token names are unique.
func (s *Service) AddUserToken(ctx context.Context, req models.AddUserTokenRequest) (*models.TokenAssociation, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.RequiredBalance == nil || strings.TrimSpace(req.WalletAddress) == "" {
		return nil, fmt.Errorf("%w: name, requiredBalance and walletAddress are required", voting.ErrValidation)
	}
	if *req.RequiredBalance < 0 {
		return nil, fmt.Errorf("%w: requiredBalance cannot be negative", voting.ErrValidation)
	}
	if err := s.gate.RequireAdmin(ctx, req.WalletAddress); err != nil {
		return nil, err
	}

	path := DashboardPath(name)
	assoc := models.TokenAssociation{
		WalletAddress:   req.WalletAddress,
		TokenName:       name,
		RequiredBalance: *req.RequiredBalance,
		AssociatedURL:   path,
		CreatedAt:       s.now().UTC(),
	}
	token := models.AccessToken{
		Name:            name,
		RequiredBalance: *req.RequiredBalance,
		DashboardPath:   path,
		Description:     fmt.Sprintf("Access %s Dashboard", name),
		ExternalURL:     path,
	}

	if err := s.store.AddUserToken(ctx, assoc, token); err != nil {
		return nil, err
	}
	return &assoc, nil
}

// UpdateRequiredBalance changes the threshold of a token the wallet registered.
func (s *Service) UpdateRequiredBalance(ctx context.Context, req models.UpdateTokenBalanceRequest) (*models.TokenAssociation, error) {
	if strings.TrimSpace(req.WalletAddress) == "" || strings.TrimSpace(req.TokenName) == "" || req.NewBalance == nil {
		return nil, fmt.Errorf("%w: walletAddress, tokenName and newBalance are required", voting.ErrValidation)
	}
	if *req.NewBalance < 0 {
		return nil, fmt.Errorf("%w: newBalance cannot be negative", voting.ErrValidation)
	}
	if err := s.gate.RequireAdmin(ctx, req.WalletAddress); err != nil {
		return nil, err
	}
	return s.store.UpdateRequiredBalance(ctx, req.WalletAddress, req.TokenName, *req.NewBalance)
}

// DeleteUserToken removes a wallet's token and its dashboard entry.
func (s *Service) DeleteUserToken(ctx context.Context, req models.DeleteUserTokenRequest) error {
	if strings.TrimSpace(req.WalletAddress) == "" || strings.TrimSpace(req.TokenName) == "" {
		return fmt.Errorf("%w: walletAddress and tokenName are required", voting.ErrValidation)
	}
	if err := s.gate.RequireAdmin(ctx, req.WalletAddress); err != nil {
		return err
	}
	return s.store.DeleteUserToken(ctx, req.WalletAddress, req.TokenName)
}

// UserToken looks up an association by wallet address, or by token name
// when address is empty. It returns nil when nothing matches or when the
// token is no longer in the registry.
func (s *Service) UserToken(ctx context.Context, address, tokenName string) (*models.TokenAssociation, error) {
	if address == "" && tokenName == "" {
		return nil, fmt.Errorf("%w: address or tokenName is required", voting.ErrValidation)
	}

	assocs, err := s.store.ListAssociations(ctx)
	if err != nil {
		return nil, err
	}

	var found *models.TokenAssociation
	for i := range assocs {
		if (address != "" && assocs[i].WalletAddress == address) ||
			(address == "" && assocs[i].TokenName == tokenName) {
			found = &assocs[i]
			break
		}
	}
	if found == nil {
		return nil, nil
	}

	if _, err := s.store.GetAccessToken(ctx, found.TokenName); err != nil {
		if errors.Is(err, voting.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return found, nil
}

func (s *Service) knownToken(ctx context.Context, name string) (*models.AccessToken, error) {
	token, err := s.store.GetAccessToken(ctx, name)
	if errors.Is(err, voting.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid token %s", voting.ErrValidation, name)
	}
	return token, err
}

// formatAmount renders an integer amount with thousands separators.
func formatAmount(d decimal.Decimal) string {
	return humanize.BigComma(d.BigInt())
}
