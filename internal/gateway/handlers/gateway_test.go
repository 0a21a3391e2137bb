package handlers

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"syntra-pos/internal/database/databasetest"
	"syntra-pos/internal/database/models"
	catalogHandler "syntra-pos/internal/services/catalog/handler"
	posHandler "syntra-pos/internal/services/pos/handler"
	settingsHandler "syntra-pos/internal/services/settings/handler"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := databasetest.NewTestDB(t)
	rdb, _ := databasetest.NewTestRedis(t)
	logger := zap.NewNop()

	catalog := catalogHandler.NewCatalogHandler(db, rdb, logger)
	settings := settingsHandler.NewSettingsHandler(db, logger)
	pos := posHandler.NewPOSHandler(db, rdb, logger, catalog, settings)

	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"),
		NewCatalogHTTPHandler(catalog, 5*time.Second),
		NewSettingsHTTPHandler(settings, 5*time.Second),
		NewPOSHTTPHandler(pos, 5*time.Second),
	)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w.Code, env
}

func createProduct(t *testing.T, r http.Handler, name, price string, stock int32) models.Product {
	t.Helper()
	code, env := do(t, r, http.MethodPost, "/api/v1/products", gin.H{
		"name":  name,
		"price": price,
		"stock": stock,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	var p models.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func TestProductRoutes(t *testing.T) {
	r := newTestRouter(t)

	p := createProduct(t, r, "Coffee", "10.00", 5)
	assert.NotEmpty(t, p.ID)

	code, env := do(t, r, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, code)
	var list []models.Product
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Coffee", list[0].Name)

	code, env = do(t, r, http.MethodPut, "/api/v1/products/"+p.ID, gin.H{
		"name":     "Flat White",
		"price":    "12.50",
		"stock":    8,
		"category": "drinks",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var updated models.Product
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Flat White", updated.Name)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("12.5")))

	code, env = do(t, r, http.MethodPatch, "/api/v1/products/"+p.ID+"/stock", gin.H{"stock": 0})
	require.Equal(t, http.StatusOK, code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Zero(t, updated.Stock)

	code, _ = do(t, r, http.MethodDelete, "/api/v1/products/"+p.ID, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodGet, "/api/v1/products/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestProductRoutes_Validation(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/products", gin.H{"price": "1.00"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request format", env.Message)

	code, env = do(t, r, http.MethodPost, "/api/v1/products", gin.H{"name": "Tea", "price": "-1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "price must not be negative", env.Message)

	code, _ = do(t, r, http.MethodPatch, "/api/v1/products/missing/stock", gin.H{"stock": 3})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodPatch, "/api/v1/products/missing/stock", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSettingsRoutes(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, code)
	var s models.Settings
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.True(t, s.TaxRate.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, "R", s.Currency)

	code, env = do(t, r, http.MethodPut, "/api/v1/settings", gin.H{"tax_rate": "0.2", "currency": "USD"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = do(t, r, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, "USD", s.Currency)

	code, env = do(t, r, http.MethodPut, "/api/v1/settings", gin.H{"tax_rate": "1.5", "currency": "USD"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "tax_rate must be between 0 and 1", env.Message)

	code, _ = do(t, r, http.MethodPut, "/api/v1/settings", gin.H{"currency": "USD"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSaleRoutes(t *testing.T) {
	r := newTestRouter(t)
	p := createProduct(t, r, "A", "10.00", 5)

	code, env := do(t, r, http.MethodPost, "/api/v1/sales", gin.H{
		"items":          []gin.H{{"product_id": p.ID, "quantity": 2, "unit_price": "10.00"}},
		"payment_method": "Card",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created SaleCreated
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.SaleID)

	code, env = do(t, r, http.MethodGet, "/api/v1/sales", nil)
	require.Equal(t, http.StatusOK, code)
	var sales []posHandler.SaleView
	require.NoError(t, json.Unmarshal(env.Data, &sales))
	require.Len(t, sales, 1)
	assert.Equal(t, created.SaleID, sales[0].ID)
	assert.True(t, sales[0].TotalAmount.Equal(decimal.RequireFromString("23")))
	require.Len(t, sales[0].Items, 1)
	require.NotNil(t, sales[0].Items[0].ProductName)
	assert.Equal(t, "A", *sales[0].Items[0].ProductName)
	require.NotNil(t, sales[0].Receipt)
	assert.Equal(t, "R", sales[0].Receipt.Currency)

	code, env = do(t, r, http.MethodGet, "/api/v1/sales/"+created.SaleID, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, r, http.MethodGet, "/api/v1/sales/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, r, http.MethodGet, "/api/v1/products/"+p.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var after models.Product
	require.NoError(t, json.Unmarshal(env.Data, &after))
	assert.EqualValues(t, 3, after.Stock)
}

func TestSaleRoutes_Rejections(t *testing.T) {
	r := newTestRouter(t)
	p := createProduct(t, r, "A", "10.00", 1)

	code, env := do(t, r, http.MethodPost, "/api/v1/sales", gin.H{
		"items":          []gin.H{},
		"payment_method": "Card",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "cart must contain at least one item", env.Message)

	code, env = do(t, r, http.MethodPost, "/api/v1/sales", gin.H{
		"items":          []gin.H{{"product_id": p.ID, "quantity": 2, "unit_price": "10.00"}},
		"payment_method": "Card",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "Insufficient stock")
	assert.False(t, env.Success)
}

func TestDashboardRoute(t *testing.T) {
	r := newTestRouter(t)
	p := createProduct(t, r, "A", "10.00", 5)

	code, _ := do(t, r, http.MethodPost, "/api/v1/sales", gin.H{
		"items":          []gin.H{{"product_id": p.ID, "quantity": 1, "unit_price": "10.00"}},
		"payment_method": "Cash",
	})
	require.Equal(t, http.StatusCreated, code)

	code, env := do(t, r, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, code)
	var summary posHandler.DashboardSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.EqualValues(t, 1, summary.SaleCount)
	assert.True(t, summary.TotalRevenue.Equal(decimal.RequireFromString("11.5")))
	assert.Len(t, summary.RecentSales, 1)
}

type failingSales struct{}

func (failingSales) ProcessSale(context.Context, *posHandler.ProcessSaleRequest) (*posHandler.ProcessSaleResponse, error) {
	return nil, errors.New("connection reset")
}

func (failingSales) ListSales(context.Context, *posHandler.ListSalesRequest) (*posHandler.ListSalesResponse, error) {
	return nil, errors.New("connection reset")
}

func (failingSales) GetSale(context.Context, string) (*posHandler.GetSaleResponse, error) {
	return nil, errors.New("connection reset")
}

func (failingSales) GetDashboardSummary(context.Context) (*posHandler.DashboardResponse, error) {
	return nil, errors.New("connection reset")
}

func TestSaleRoutes_ServiceErrorWithoutResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPOSHTTPHandler(failingSales{}, time.Second)
	r := gin.New()
	r.POST("/sales", h.CreateSale)
	r.GET("/sales", h.ListSales)
	r.GET("/sales/:id", h.GetSale)
	r.GET("/dashboard", h.GetDashboard)

	code, env := do(t, r, http.MethodPost, "/sales", gin.H{
		"items":          []gin.H{{"product_id": "a", "quantity": 1, "unit_price": "1.00"}},
		"payment_method": "Card",
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Transaction failed", env.Message)

	code, env = do(t, r, http.MethodGet, "/sales/abc", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", env.Message)

	code, _ = do(t, r, http.MethodGet, "/sales", nil)
	assert.Equal(t, http.StatusInternalServerError, code)

	code, _ = do(t, r, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestSaleRoutes_ReportsEffectiveLimit(t *testing.T) {
	r := newTestRouter(t)

	code, env := do(t, r, http.MethodGet, "/api/v1/sales?limit=1000", nil)
	require.Equal(t, http.StatusOK, code)

	var meta struct {
		TotalCount int64 `json:"total_count"`
		Limit      int   `json:"limit"`
		Offset     int   `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(env.Meta, &meta))
	assert.Equal(t, 200, meta.Limit)
	assert.Zero(t, meta.Offset)
	assert.Zero(t, meta.TotalCount)
}
