package registry

import (
	"context"
	"fmt"

	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/voting"
)

var (
	ErrWalletHasToken = fmt.Errorf("%w: wallet already has a token registered", voting.ErrValidation)
	ErrTokenExists    = fmt.Errorf("%w: token name already exists", voting.ErrValidation)
)

// Store persists the access-token registry and wallet associations.
// The mutating calls update both records in one unit of work.
type Store interface {
	ListAccessTokens(ctx context.Context) ([]models.AccessToken, error)
	// GetAccessToken fails with voting.ErrNotFound for an unknown name.
	GetAccessToken(ctx context.Context, name string) (*models.AccessToken, error)
	ListAssociations(ctx context.Context) ([]models.TokenAssociation, error)

	// AddUserToken fails with ErrWalletHasToken or ErrTokenExists.
	AddUserToken(ctx context.Context, assoc models.TokenAssociation, token models.AccessToken) error
	// UpdateRequiredBalance fails with voting.ErrNotFound when the wallet
	// has no association for name.
	UpdateRequiredBalance(ctx context.Context, wallet, name string, balance int64) (*models.TokenAssociation, error)
	DeleteUserToken(ctx context.Context, wallet, name string) error
}

// DefaultAccessTokens is the registry every new store starts with.
func DefaultAccessTokens() []models.AccessToken {
	return []models.AccessToken{
		{
			Name:            "RUNE•MOON•DRAGON",
			RequiredBalance: 2000000,
			DashboardPath:   "/dashboards/moon-dragon",
			Description:     "Access Moon Dragon Dashboard",
		},
		{
			Name:            "UNCOMMON•GOODS",
			RequiredBalance: 5,
			DashboardPath:   "/dashboards/uncommon-goods",
			Description:     "Access UNCOMMON•GOODS Dashboard",
			ExternalURL:     "/dashboards/uncommon-goods",
		},
		{
			Name:            "YOLO•MOON•RUNES",
			RequiredBalance: 400000,
			DashboardPath:   "/dashboards/yolo-moon-runes",
			Description:     "Access YOLO•MOON•RUNES Dashboard",
		},
		{
			Name:            "MAGA•FIGHT•FIGHT",
			RequiredBalance: 10000,
			DashboardPath:   "/dashboards/maga-fight-fight",
			Description:     "Access MAGA•FIGHT•FIGHT Dashboard",
			ExternalURL:     "/dashboards/maga-fight-fight",
		},
	}
}
