package handlers

import (
	"net/http"

	"fleetgrid-backend/application/services"
	"fleetgrid-backend/pkg/auth"
	"fleetgrid-backend/pkg/common"
	appErrors "fleetgrid-backend/pkg/errors"
	"fleetgrid-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ExportHandler handles export job submission and status polling
type ExportHandler struct {
	exports *services.ExportService
	logger  *zap.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(exports *services.ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		exports: exports,
		logger:  logger,
	}
}

// Create handles POST /export
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	var req services.CreateExportInput
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	job, err := h.exports.CreateJob(r.Context(), user.OrganizationID, req)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusAccepted, common.APIResponse{
		Success: true,
		Data:    job,
	})
}

// Get handles GET /export/{jobID}
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	job, err := h.exports.GetJob(r.Context(), user.OrganizationID, chi.URLParam(r, "jobID"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data:    job,
	})
}
