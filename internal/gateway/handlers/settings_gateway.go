package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	settingsHandler "syntra-pos/internal/services/settings/handler"
)

type SettingsService interface {
	GetOrCreateSettings(ctx context.Context) *settingsHandler.GetSettingsResponse
	UpsertSettings(ctx context.Context, req *settingsHandler.UpsertSettingsRequest) (*settingsHandler.UpsertSettingsResponse, error)
}

type SettingsHTTPHandler struct {
	settings SettingsService
	timeout  time.Duration
}

func NewSettingsHTTPHandler(settings SettingsService, timeout time.Duration) *SettingsHTTPHandler {
	return &SettingsHTTPHandler{
		settings: settings,
		timeout:  timeout,
	}
}

type UpdateSettingsRequest struct {
	TaxRate  *decimal.Decimal `json:"tax_rate" binding:"required"`
	Currency string           `json:"currency" binding:"required"`
}

func (h *SettingsHTTPHandler) GetSettings(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp := h.settings.GetOrCreateSettings(ctx)
	c.JSON(http.StatusOK, successWithMetaResponse("Settings retrieved successfully", resp.Settings, gin.H{
		"degraded": resp.Degraded,
	}))
}

func (h *SettingsHTTPHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.settings.UpsertSettings(ctx, &settingsHandler.UpsertSettingsRequest{
		TaxRate:  *req.TaxRate,
		Currency: req.Currency,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(messageOr(resp.Message, "Failed to update settings")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(messageOr(resp.Message, "Invalid settings")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Settings updated successfully", resp.Settings))
}
