package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"syntra-pos/internal/database/models"
)

const (
	DefaultCurrency = "R"
	maxCurrencyLen  = 16
)

var DefaultTaxRate = decimal.RequireFromString("0.15")

func DefaultSettings() models.Settings {
	return models.Settings{
		ID:       models.SettingsSingletonID,
		TaxRate:  DefaultTaxRate,
		Currency: DefaultCurrency,
	}
}

type GetSettingsResponse struct {
	Success  bool
	Settings models.Settings
	// Degraded is set when storage could not be read and defaults were returned.
	Degraded bool
}

type UpsertSettingsRequest struct {
	TaxRate  decimal.Decimal
	Currency string
}

type UpsertSettingsResponse struct {
	Success  bool
	Message  *string
	Settings models.Settings
}

type SettingsHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewSettingsHandler(db *gorm.DB, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		db:     db,
		logger: logger,
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetOrCreateSettings never fails: a missing row is created with the
// defaults, and a storage error yields the defaults with Degraded set.
func (s *SettingsHandler) GetOrCreateSettings(ctx context.Context) *GetSettingsResponse {
	settings, err := s.loadOrCreate(ctx)
	if err != nil {
		s.logger.Warn("settings unavailable, using defaults", zap.Error(err))
		return &GetSettingsResponse{
			Success:  true,
			Settings: DefaultSettings(),
			Degraded: true,
		}
	}

	return &GetSettingsResponse{
		Success:  true,
		Settings: settings,
	}
}

func (s *SettingsHandler) loadOrCreate(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	err := s.db.WithContext(ctx).Where("id = ?", models.SettingsSingletonID).First(&settings).Error
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	defaults := DefaultSettings()
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&defaults).Error; err != nil {
		return models.Settings{}, fmt.Errorf("failed to create default settings: %w", err)
	}

	// another request may have created the row first
	if err := s.db.WithContext(ctx).Where("id = ?", models.SettingsSingletonID).First(&settings).Error; err != nil {
		return models.Settings{}, fmt.Errorf("failed to reload settings: %w", err)
	}
	s.logger.Info("default settings created",
		zap.String("tax_rate", settings.TaxRate.String()),
		zap.String("currency", settings.Currency),
	)
	return settings, nil
}

func (s *SettingsHandler) UpsertSettings(ctx context.Context, req *UpsertSettingsRequest) (*UpsertSettingsResponse, error) {
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		return &UpsertSettingsResponse{
			Success: false,
			Message: strPtr("currency required"),
		}, nil
	}
	if len(currency) > maxCurrencyLen {
		return &UpsertSettingsResponse{
			Success: false,
			Message: strPtr(fmt.Sprintf("currency must be at most %d characters", maxCurrencyLen)),
		}, nil
	}
	if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return &UpsertSettingsResponse{
			Success: false,
			Message: strPtr("tax_rate must be between 0 and 1"),
		}, nil
	}

	now := time.Now()
	settings := models.Settings{
		ID:        models.SettingsSingletonID,
		TaxRate:   req.TaxRate,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tax_rate", "currency", "updated_at"}),
		}).
		Create(&settings).Error
	if err != nil {
		s.logger.Error("failed to save settings", zap.Error(err))
		return &UpsertSettingsResponse{
			Success: false,
			Message: strPtr("Failed to update settings"),
		}, fmt.Errorf("upsert settings: %w", err)
	}

	return &UpsertSettingsResponse{
		Success:  true,
		Message:  strPtr("Settings updated successfully"),
		Settings: settings,
	}, nil
}
