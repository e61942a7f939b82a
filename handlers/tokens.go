// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/runecheck/middleware"
	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/registry"
)

type TokenHandler struct {
	registry *registry.Service
}

func NewTokenHandler(reg *registry.Service) *TokenHandler {
	return &TokenHandler{registry: reg}
}

// ListTokens handles GET /tokens
func (h *TokenHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.registry.ListAccessTokens(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list tokens")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.TokensResponse{Tokens: tokens})
}

// TokenBalance handles GET /token-balance?address=&token=
func (h *TokenHandler) TokenBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.registry.TokenBalance(r.Context(), q.Get("address"), q.Get("token"))
	if err != nil {
		writeServiceError(w, err, "Failed to fetch token balance")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// CheckAccess handles POST /access
func (h *TokenHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	var req models.AccessRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.registry.CheckAccess(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to verify access")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// CheckAdmin handles POST /check-admin
func (h *TokenHandler) CheckAdmin(w http.ResponseWriter, r *http.Request) {
	var req models.CheckAdminRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Address == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "address is required")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CheckAdminResponse{
		IsAdmin: h.registry.IsAdmin(r.Context(), req.Address),
	})
}

// UserToken handles GET /user-token?address=&tokenName=
func (h *TokenHandler) UserToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assoc, err := h.registry.UserToken(r.Context(), q.Get("address"), q.Get("tokenName"))
	if err != nil {
		writeServiceError(w, err, "Failed to load user token")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.UserTokenResponse{Token: assoc})
}

// AddUserToken handles POST /user-tokens
func (h *TokenHandler) AddUserToken(w http.ResponseWriter, r *http.Request) {
	var req models.AddUserTokenRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	assoc, err := h.registry.AddUserToken(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to add token")
		return
	}

	slog.Info("user token added", "wallet", assoc.WalletAddress, "token", assoc.TokenName)
	middleware.JSONResponse(w, http.StatusCreated, models.UserTokenMutationResponse{
		Success:        true,
		Message:        "Token added successfully",
		Token:          assoc,
		RequiresReload: true,
	})
}

// UpdateTokenBalance handles POST /user-tokens/balance
func (h *TokenHandler) UpdateTokenBalance(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTokenBalanceRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	assoc, err := h.registry.UpdateRequiredBalance(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to update token balance")
		return
	}

	slog.Info("user token balance updated", "wallet", assoc.WalletAddress, "token", assoc.TokenName,
		"required_balance", assoc.RequiredBalance)
	middleware.JSONResponse(w, http.StatusOK, models.UserTokenMutationResponse{
		Success:        true,
		Message:        "Token balance updated successfully",
		Token:          assoc,
		RequiresReload: true,
	})
}

// DeleteUserToken handles DELETE /user-tokens
func (h *TokenHandler) DeleteUserToken(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteUserTokenRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.registry.DeleteUserToken(r.Context(), req); err != nil {
		writeServiceError(w, err, "Failed to delete token")
		return
	}

	slog.Info("user token deleted", "wallet", req.WalletAddress, "token", req.TokenName)
	middleware.JSONResponse(w, http.StatusOK, models.UserTokenMutationResponse{
		Success:        true,
		Message:        "Token deleted successfully",
		RequiresReload: true,
	})
}
