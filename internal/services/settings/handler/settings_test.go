package handler

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"syntra-pos/internal/database/databasetest"
	"syntra-pos/internal/database/models"
)

func TestGetOrCreateSettings_CreatesDefaults(t *testing.T) {
	db := databasetest.NewTestDB(t)
	h := NewSettingsHandler(db, zap.NewNop())

	resp := h.GetOrCreateSettings(context.Background())
	require.True(t, resp.Success)
	assert.False(t, resp.Degraded)
	assert.True(t, resp.Settings.TaxRate.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, "R", resp.Settings.Currency)

	var count int64
	require.NoError(t, db.Model(&models.Settings{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// second read must not create another row
	h.GetOrCreateSettings(context.Background())
	require.NoError(t, db.Model(&models.Settings{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateSettings_DegradesWhenStorageUnavailable(t *testing.T) {
	db := databasetest.NewTestDB(t)
	h := NewSettingsHandler(db, zap.NewNop())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	resp := h.GetOrCreateSettings(context.Background())
	assert.True(t, resp.Success)
	assert.True(t, resp.Degraded)
	assert.True(t, resp.Settings.TaxRate.Equal(DefaultTaxRate))
	assert.Equal(t, DefaultCurrency, resp.Settings.Currency)
}

func TestUpsertSettings(t *testing.T) {
	db := databasetest.NewTestDB(t)
	h := NewSettingsHandler(db, zap.NewNop())
	ctx := context.Background()

	resp, err := h.UpsertSettings(ctx, &UpsertSettingsRequest{
		TaxRate:  decimal.RequireFromString("0.2"),
		Currency: " USD ",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	got := h.GetOrCreateSettings(ctx)
	assert.True(t, got.Settings.TaxRate.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, "USD", got.Settings.Currency)

	resp, err = h.UpsertSettings(ctx, &UpsertSettingsRequest{
		TaxRate:  decimal.RequireFromString("0.05"),
		Currency: "EUR",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	var rows []models.Settings
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.SettingsSingletonID, rows[0].ID)
	assert.Equal(t, "EUR", rows[0].Currency)
	assert.True(t, rows[0].TaxRate.Equal(decimal.RequireFromString("0.05")))
}

func TestUpsertSettings_Validation(t *testing.T) {
	h := NewSettingsHandler(databasetest.NewTestDB(t), zap.NewNop())

	tests := []struct {
		name    string
		req     UpsertSettingsRequest
		message string
	}{
		{"blank currency", UpsertSettingsRequest{TaxRate: decimal.Zero, Currency: "  "}, "currency required"},
		{"negative rate", UpsertSettingsRequest{TaxRate: decimal.RequireFromString("-0.1"), Currency: "R"}, "tax_rate must be between 0 and 1"},
		{"rate above one", UpsertSettingsRequest{TaxRate: decimal.RequireFromString("1.5"), Currency: "R"}, "tax_rate must be between 0 and 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.UpsertSettings(context.Background(), &tt.req)
			require.NoError(t, err)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Message)
			assert.Equal(t, tt.message, *resp.Message)
		})
	}
}
