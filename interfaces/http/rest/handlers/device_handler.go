package handlers

import (
	"net/http"
	"strconv"

	"fleetgrid-backend/application/services"
	"fleetgrid-backend/domain/entities"
	"fleetgrid-backend/pkg/auth"
	"fleetgrid-backend/pkg/common"
	appErrors "fleetgrid-backend/pkg/errors"
	"fleetgrid-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DeviceHandler handles device fleet endpoints, including per-device logs
// and the usage aggregate.
type DeviceHandler struct {
	devices   *services.DeviceService
	analytics *services.AnalyticsService
	logger    *zap.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(devices *services.DeviceService, analytics *services.AnalyticsService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		devices:   devices,
		analytics: analytics,
		logger:    logger,
	}
}

type deviceListResponse struct {
	Devices []entities.Device `json:"devices"`
	Cached  bool              `json:"cached"`
}

type usageResponse struct {
	Usage  entities.UsageSummary `json:"usage"`
	Cached bool                  `json:"cached"`
}

// Register handles POST /devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	var req services.RegisterDeviceInput
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	device, err := h.devices.Register(r.Context(), user.UserID, req)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, common.APIResponse{
		Success: true,
		Data:    device,
	})
}

// List handles GET /devices?type=&status=
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	filter := entities.DeviceFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
	}

	devices, cached, err := h.devices.List(r.Context(), user.UserID, filter)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data: deviceListResponse{
			Devices: devices,
			Cached:  cached,
		},
	})
}

// Get handles GET /devices/{deviceID}
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	device, err := h.devices.Get(r.Context(), user.UserID, chi.URLParam(r, "deviceID"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data:    device,
	})
}

// Update handles PATCH /devices/{deviceID}
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	var req services.UpdateDeviceInput
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	device, err := h.devices.Update(r.Context(), user.UserID, chi.URLParam(r, "deviceID"), req)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data:    device,
	})
}

// Delete handles DELETE /devices/{deviceID}
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	device, err := h.devices.Delete(r.Context(), user.UserID, chi.URLParam(r, "deviceID"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data:    device,
	})
}

// Heartbeat handles POST /devices/{deviceID}/heartbeat
func (h *DeviceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	// The body is optional: a bare heartbeat reports active.
	var req services.HeartbeatInput
	if r.ContentLength > 0 {
		if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
			common.RespondAppError(w, appErrors.NewValidationError("invalid request body"))
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			common.RespondAppError(w, appErrors.NewValidationError(err.Error()))
			return
		}
	}

	device, err := h.devices.Heartbeat(r.Context(), user.UserID, user.OrganizationID, chi.URLParam(r, "deviceID"), req)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data:    device,
	})
}

// RecordLog handles POST /devices/{deviceID}/logs
func (h *DeviceHandler) RecordLog(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	var req services.RecordLogInput
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError("invalid request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	entry, err := h.analytics.RecordLog(r.Context(), user.UserID, user.OrganizationID, chi.URLParam(r, "deviceID"), req)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, common.APIResponse{
		Success: true,
		Data:    entry,
	})
}

// ListLogs handles GET /devices/{deviceID}/logs?limit=
func (h *DeviceHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			common.RespondAppError(w, appErrors.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.analytics.RecentLogs(r.Context(), user.UserID, chi.URLParam(r, "deviceID"), limit)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data:    entries,
	})
}

// Usage handles GET /devices/{deviceID}/usage?range=
func (h *DeviceHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, appErrors.NewUnauthorizedError(""))
		return
	}

	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "24h"
	}

	usage, cached, err := h.analytics.Usage(r.Context(), user.UserID, chi.URLParam(r, "deviceID"), rng)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, common.APIResponse{
		Success: true,
		Data: usageResponse{
			Usage:  usage,
			Cached: cached,
		},
	})
}
