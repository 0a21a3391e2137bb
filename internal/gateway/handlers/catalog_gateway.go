package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	catalogHandler "syntra-pos/internal/services/catalog/handler"
)

type CatalogService interface {
	ListProducts(ctx context.Context) (*catalogHandler.ListProductsResponse, error)
	GetProduct(ctx context.Context, id string) (*catalogHandler.ProductResponse, error)
	CreateProduct(ctx context.Context, in catalogHandler.ProductInput) (*catalogHandler.ProductResponse, error)
	UpdateProduct(ctx context.Context, id string, in catalogHandler.ProductInput) (*catalogHandler.ProductResponse, error)
	UpdateStock(ctx context.Context, id string, stock int32) (*catalogHandler.ProductResponse, error)
	DeleteProduct(ctx context.Context, id string) (*catalogHandler.DeleteProductResponse, error)
}

type CatalogHTTPHandler struct {
	catalog CatalogService
	timeout time.Duration
}

func NewCatalogHTTPHandler(catalog CatalogService, timeout time.Duration) *CatalogHTTPHandler {
	return &CatalogHTTPHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductRequest struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Stock    int32           `json:"stock"`
	Category string          `json:"category"`
}

type UpdateStockRequest struct {
	Stock *int32 `json:"stock" binding:"required"`
}

func (r ProductRequest) input() catalogHandler.ProductInput {
	return catalogHandler.ProductInput{
		Name:     r.Name,
		Price:    r.Price,
		Stock:    r.Stock,
		Category: r.Category,
	}
}

// writeProductResult maps a catalog response onto the HTTP envelope.
func writeProductResult(c *gin.Context, okStatus int, okMessage string, resp *catalogHandler.ProductResponse, err error) {
	switch {
	case errors.Is(err, catalogHandler.ErrProductNotFound):
		c.JSON(http.StatusNotFound, errorResponse("Product not found"))
	case err != nil:
		c.JSON(http.StatusInternalServerError, errorResponse(messageOr(resp.Message, "Internal server error")))
	case !resp.Success:
		c.JSON(http.StatusBadRequest, errorResponse(messageOr(resp.Message, "Invalid product")))
	default:
		c.JSON(okStatus, successResponse(okMessage, resp.Product))
	}
}

func (h *CatalogHTTPHandler) ListProducts(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.catalog.ListProducts(ctx)
	if err != nil || !resp.Success {
		msg := "Failed to list products"
		if resp != nil {
			msg = messageOr(resp.Message, msg)
		}
		c.JSON(http.StatusInternalServerError, errorResponse(msg))
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Products retrieved successfully", resp.Products, gin.H{
		"total_count": len(resp.Products),
	}))
}

func (h *CatalogHTTPHandler) GetProduct(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.catalog.GetProduct(ctx, c.Param("id"))
	writeProductResult(c, http.StatusOK, "Product retrieved successfully", resp, err)
}

func (h *CatalogHTTPHandler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.catalog.CreateProduct(ctx, req.input())
	writeProductResult(c, http.StatusCreated, "Product created successfully", resp, err)
}

func (h *CatalogHTTPHandler) UpdateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.catalog.UpdateProduct(ctx, c.Param("id"), req.input())
	writeProductResult(c, http.StatusOK, "Product updated successfully", resp, err)
}

func (h *CatalogHTTPHandler) UpdateStock(c *gin.Context) {
	var req UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.catalog.UpdateStock(ctx, c.Param("id"), *req.Stock)
	writeProductResult(c, http.StatusOK, "Stock updated successfully", resp, err)
}

func (h *CatalogHTTPHandler) DeleteProduct(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.catalog.DeleteProduct(ctx, c.Param("id"))
	switch {
	case errors.Is(err, catalogHandler.ErrProductNotFound):
		c.JSON(http.StatusNotFound, errorResponse("Product not found"))
	case err != nil:
		c.JSON(http.StatusInternalServerError, errorResponse(messageOr(resp.Message, "Internal server error")))
	case !resp.Success:
		c.JSON(http.StatusBadRequest, errorResponse(messageOr(resp.Message, "Invalid request")))
	default:
		c.JSON(http.StatusOK, successResponse("Product deleted successfully", nil))
	}
}
