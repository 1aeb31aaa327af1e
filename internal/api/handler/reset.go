package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/sutaaa0/cashier-app-sub000/internal/api/request"
	"github.com/sutaaa0/cashier-app-sub000/internal/api/response"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// ResetSettingsService reads and writes the reset settings.
type ResetSettingsService interface {
	GetResetSettings(ctx context.Context) (*models.ResetSettings, error)
	SaveResetSettings(ctx context.Context, s models.ResetSettings) (*models.ResetSettings, error)
}

// ResetController runs resets and keeps their log.
type ResetController interface {
	Reset(ctx context.Context, req models.ResetRequest) (*models.ResetResult, error)
	ListLogs(ctx context.Context, limit int) ([]models.ResetLogEntry, error)
	Status() models.ResetStatus
}

type Reset struct {
	settings   ResetSettingsService
	controller ResetController
}

func NewReset(settings ResetSettingsService, controller ResetController) *Reset {
	return &Reset{settings: settings, controller: controller}
}

type saveResetSettingsResponse struct {
	Message  string                `json:"message"`
	Settings *models.ResetSettings `json:"settings"`
}

// GetSettings handles GET /reset/settings.
func (h *Reset) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetResetSettings(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, settings)
}

// SaveSettings handles PUT /reset/settings.
func (h *Reset) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req request.SaveResetSettings
	if err := request.Decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	saved, err := h.settings.SaveResetSettings(r.Context(), models.ResetSettings{
		ConfirmationCode:   req.ConfirmationCode,
		PreserveMasterData: *req.PreserveMasterData,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, saveResetSettingsResponse{
		Message:  "reset settings saved",
		Settings: saved,
	})
}

// Trigger handles POST /reset.
func (h *Reset) Trigger(w http.ResponseWriter, r *http.Request) {
	var req request.Reset
	if err := request.Decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.controller.Reset(r.Context(), models.ResetRequest{
		PreserveMasterData: req.PreserveMasterData,
		ConfirmationToken:  req.ConfirmationToken,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

// ListLogs handles GET /reset/logs?limit=N.
func (h *Reset) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.WriteFieldError(w, http.StatusBadRequest, "limit", "must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := h.controller.ListLogs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.ResetLogEntry{}
	}
	response.WriteJSON(w, http.StatusOK, logs)
}

// Status handles GET /reset/status.
func (h *Reset) Status(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.controller.Status())
}
