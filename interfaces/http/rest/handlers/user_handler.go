package handlers

import (
	"net/http"

	"fleetgrid-backend/application/services"
	"fleetgrid-backend/pkg/auth"
	"fleetgrid-backend/pkg/common"
	appErrors "fleetgrid-backend/pkg/errors"
	"fleetgrid-backend/pkg/utils"

	"go.uber.org/zap"
)

// UserHandler handles profile endpoints
type UserHandler struct {
	users  *services.UserService
	logger *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

type profileResponse struct {
	Profile interface{} `json:"profile"`
	Cached  bool        `json:"cached"`
}

// GetProfile handles GET /users/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	profile, cached, err := h.users.GetProfile(r.Context(), user.UserID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data: profileResponse{
			Profile: profile,
			Cached:  cached,
		},
	})
}

// UpdateProfile handles PUT /users/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	var req services.UpdateProfileInput
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	profile, err := h.users.UpdateProfile(r.Context(), user.UserID, req)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data:    profile,
	})
}
