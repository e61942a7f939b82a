package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Question status constants
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// Ballot choices
const (
	ChoiceYes = "yes"
	ChoiceNo  = "no"
)

// Domain types

type Question struct {
	ID          string     `json:"id"`
	Token       string     `json:"token"`
	Question    string     `json:"question"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     time.Time  `json:"endTime"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"createdBy"`
	Results     Results    `json:"results"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty"`
}

// Vote is one wallet's ballot on a question. TokenBalance is the weight
// captured when the vote was cast.
type Vote struct {
	QuestionID    string          `json:"questionId"`
	WalletAddress string          `json:"walletAddress"`
	Choice        string          `json:"choice"`
	TokenBalance  decimal.Decimal `json:"tokenBalance"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Results is the token-weighted tally cached on a question.
type Results struct {
	YesVotes         decimal.Decimal `json:"yesVotes"`
	NoVotes          decimal.Decimal `json:"noVotes"`
	TotalVoters      int             `json:"totalVoters"`
	TotalVotingPower decimal.Decimal `json:"totalVotingPower"`
	WinningChoice    string          `json:"winningChoice,omitempty"`
	HasEnded         bool            `json:"hasEnded"`
}

type AccessToken struct {
	Name            string `json:"name"`
	RequiredBalance int64  `json:"requiredBalance"`
	DashboardPath   string `json:"dashboardPath"`
	Description     string `json:"description"`
	ExternalURL     string `json:"externalUrl,omitempty"`
}

// TokenAssociation links the wallet that registered a token to it.
type TokenAssociation struct {
	WalletAddress   string    `json:"walletAddress"`
	TokenName       string    `json:"tokenName"`
	RequiredBalance int64     `json:"requiredBalance"`
	AssociatedURL   string    `json:"associatedUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Request types

type CreateQuestionRequest struct {
	Token            string     `json:"token"`
	Question         string     `json:"question"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	DurationMinutes  int        `json:"durationMinutes,omitempty"`
	CreatedBy        string     `json:"createdBy"`
	ArchiveCompleted bool       `json:"archiveCompleted,omitempty"`
}

type CastVoteRequest struct {
	QuestionID    string `json:"questionId"`
	WalletAddress string `json:"walletAddress"`
	Choice        string `json:"choice"`
}

type UpdateStatusRequest struct {
	QuestionID   string `json:"questionId"`
	Status       string `json:"status"`
	AdminAddress string `json:"adminAddress"`
}

type ArchiveSessionRequest struct {
	TokenName    string `json:"tokenName"`
	QuestionID   string `json:"questionId"`
	AdminAddress string `json:"adminAddress"`
}

type AccessRequest struct {
	Address   string `json:"address"`
	TokenName string `json:"tokenName"`
}

type CheckAdminRequest struct {
	Address string `json:"address"`
}

type AddUserTokenRequest struct {
	Name            string `json:"name"`
	RequiredBalance *int64 `json:"requiredBalance"`
	WalletAddress   string `json:"walletAddress"`
}

type UpdateTokenBalanceRequest struct {
	WalletAddress string `json:"walletAddress"`
	TokenName     string `json:"tokenName"`
	NewBalance    *int64 `json:"newBalance"`
}

type DeleteUserTokenRequest struct {
	WalletAddress string `json:"walletAddress"`
	TokenName     string `json:"tokenName"`
}

// Response types

type QuestionResponse struct {
	Question *Question `json:"question"`
}

type QuestionsResponse struct {
	Questions []Question `json:"questions"`
}

type SessionsResponse struct {
	Success  bool       `json:"success"`
	Sessions []Question `json:"sessions"`
}

type CastVoteResponse struct {
	Success bool    `json:"success"`
	Vote    Vote    `json:"vote"`
	Results Results `json:"results"`
}

type VotesResponse struct {
	Votes   []Vote  `json:"votes"`
	Results Results `json:"results"`
}

type CheckVoteResponse struct {
	UserVoted bool    `json:"userVoted"`
	Results   Results `json:"results"`
	Votes     []Vote  `json:"votes"`
}

type UserVotesResponse struct {
	VotedQuestionIDs []string `json:"votedQuestionIds"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type TokensResponse struct {
	Tokens []AccessToken `json:"tokens"`
}

type TokenBalanceResponse struct {
	Raw               decimal.Decimal `json:"raw"`
	Formatted         string          `json:"formatted"`
	HasMinimumBalance bool            `json:"hasMinimumBalance"`
}

type AccessResponse struct {
	HasAccess       bool            `json:"hasAccess"`
	TokenName       string          `json:"tokenName"`
	Balance         decimal.Decimal `json:"balance"`
	RequiredBalance int64           `json:"requiredBalance"`
	DashboardPath   string          `json:"dashboardPath,omitempty"`
	ExternalURL     string          `json:"externalUrl,omitempty"`
}

type CheckAdminResponse struct {
	IsAdmin bool `json:"isAdmin"`
}

type UserTokenResponse struct {
	Token *TokenAssociation `json:"token"`
}

type UserTokenMutationResponse struct {
	Success        bool              `json:"success"`
	Message        string            `json:"message"`
	Token          *TokenAssociation `json:"token,omitempty"`
	RequiresReload bool              `json:"requiresReload,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
