// Package handlers implements the REST endpoints on top of the application
// services.
package handlers

import (
	"net/http"

	"fleetgrid-backend/application/services"
	"fleetgrid-backend/interfaces/http/rest/middleware"
	"fleetgrid-backend/pkg/common"
	appErrors "fleetgrid-backend/pkg/errors"
	"fleetgrid-backend/pkg/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20 // 1MB

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth   *services.AuthService
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         interface{} `json:"user"`
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupInput
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	pair, profile, err := h.auth.Signup(r.Context(), req)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, common.APIResponse{
		Success: true,
		Data: authResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			User:         profile,
		},
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	pair, profile, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data: authResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			User:         profile,
		},
	})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data:    pair,
	})
}

// Logout handles POST /auth/logout. The token to revoke is the one
// presented as the bearer credential.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	rawToken := middleware.BearerToken(r)
	if rawToken == "" {
		common.RespondAppError(w, appErrors.NewValidationError("missing bearer token"))
		return
	}

	if err := h.auth.Logout(r.Context(), rawToken); err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data:    map[string]string{"message": "logged out"},
	})
}
