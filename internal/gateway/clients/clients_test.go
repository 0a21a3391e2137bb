package clients

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"syntra-pos/internal/cart"
	"syntra-pos/internal/database/databasetest"
	"syntra-pos/internal/gateway/handlers"
	catalogHandler "syntra-pos/internal/services/catalog/handler"
	posHandler "syntra-pos/internal/services/pos/handler"
	settingsHandler "syntra-pos/internal/services/settings/handler"
)

func newGateway(t *testing.T) (*httptest.Server, *catalogHandler.CatalogHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := databasetest.NewTestDB(t)
	rdb, _ := databasetest.NewTestRedis(t)
	logger := zap.NewNop()

	catalog := catalogHandler.NewCatalogHandler(db, rdb, logger)
	settings := settingsHandler.NewSettingsHandler(db, logger)
	pos := posHandler.NewPOSHandler(db, rdb, logger, catalog, settings)

	r := gin.New()
	handlers.RegisterRoutes(r.Group("/api/v1"),
		handlers.NewCatalogHTTPHandler(catalog, 5*time.Second),
		handlers.NewSettingsHTTPHandler(settings, 5*time.Second),
		handlers.NewPOSHTTPHandler(pos, 5*time.Second),
	)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, catalog
}

func TestPOSClient_CheckoutOverHTTP(t *testing.T) {
	srv, catalog := newGateway(t)
	ctx := context.Background()

	_, err := catalog.CreateProduct(ctx, catalogHandler.ProductInput{
		Name:  "A",
		Price: decimal.RequireFromString("10.00"),
		Stock: 2,
	})
	require.NoError(t, err)

	client := NewPOSClient(srv.URL+"/", 5*time.Second)

	settings, err := client.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "R", settings.Currency)

	products, err := client.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)

	c := cart.New()
	require.NoError(t, c.Add(products[0]))
	require.NoError(t, c.Add(products[0]))
	assert.Equal(t, "23.00", c.Total(settings).StringFixed(2))

	saleID, err := c.Checkout(ctx, client, "QR")
	require.NoError(t, err)
	assert.NotEmpty(t, saleID)
	assert.True(t, c.IsEmpty())

	// stock is now zero, so the same cart contents are rejected
	resp, err := client.ProcessSale(ctx, &posHandler.ProcessSaleRequest{
		Items:         []posHandler.SaleItemInput{{ProductID: products[0].ID, Quantity: 1, UnitPrice: products[0].Price}},
		PaymentMethod: "QR",
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Message)
	assert.Contains(t, *resp.Message, "Insufficient stock")
}

func TestPOSClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"message":"Transaction failed"}`))
	}))
	defer srv.Close()

	client := NewPOSClient(srv.URL, time.Second)
	resp, err := client.ProcessSale(context.Background(), &posHandler.ProcessSaleRequest{
		Items:         []posHandler.SaleItemInput{{ProductID: "a", Quantity: 1}},
		PaymentMethod: "Cash",
	})
	require.Error(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Transaction failed", *resp.Message)
}

func TestPOSClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewPOSClient(url, time.Second)
	_, err := client.ListProducts(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestHealthClient(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := NewHealthClient(lis.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := client.Check(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	status, err = client.Check(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
}
