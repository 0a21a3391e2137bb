package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	posHandler "syntra-pos/internal/services/pos/handler"
)

type SalesService interface {
	ProcessSale(ctx context.Context, req *posHandler.ProcessSaleRequest) (*posHandler.ProcessSaleResponse, error)
	ListSales(ctx context.Context, req *posHandler.ListSalesRequest) (*posHandler.ListSalesResponse, error)
	GetSale(ctx context.Context, id string) (*posHandler.GetSaleResponse, error)
	GetDashboardSummary(ctx context.Context) (*posHandler.DashboardResponse, error)
}

type POSHTTPHandler struct {
	pos     SalesService
	timeout time.Duration
}

func NewPOSHTTPHandler(pos SalesService, timeout time.Duration) *POSHTTPHandler {
	return &POSHTTPHandler{
		pos:     pos,
		timeout: timeout,
	}
}

type ListSalesQuery struct {
	Limit  int `form:"limit,default=50"`
	Offset int `form:"offset,default=0"`
}

type SaleCreated struct {
	SaleID string `json:"sale_id"`
}

// --- Sales ---

func (h *POSHTTPHandler) CreateSale(c *gin.Context) {
	var req posHandler.ProcessSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.pos.ProcessSale(ctx, &req)
	if err != nil {
		msg := "Transaction failed"
		if resp != nil {
			msg = messageOr(resp.Message, msg)
		}
		c.JSON(http.StatusInternalServerError, errorResponse(msg))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(messageOr(resp.Message, "Sale rejected")))
		return
	}

	c.JSON(http.StatusCreated, successResponse(messageOr(resp.Message, "Sale completed successfully"), SaleCreated{
		SaleID: resp.SaleID,
	}))
}

func (h *POSHTTPHandler) ListSales(c *gin.Context) {
	var query ListSalesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters"))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.pos.ListSales(ctx, &posHandler.ListSalesRequest{
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil || !resp.Success {
		msg := "Failed to list sales"
		if resp != nil {
			msg = messageOr(resp.Message, msg)
		}
		c.JSON(http.StatusInternalServerError, errorResponse(msg))
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Sales retrieved successfully", resp.Sales, gin.H{
		"total_count": resp.TotalCount,
		"limit":       resp.Limit,
		"offset":      resp.Offset,
	}))
}

func (h *POSHTTPHandler) GetSale(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.pos.GetSale(ctx, c.Param("id"))
	switch {
	case errors.Is(err, posHandler.ErrSaleNotFound):
		c.JSON(http.StatusNotFound, errorResponse("Sale not found"))
	case err != nil:
		msg := "Internal server error"
		if resp != nil {
			msg = messageOr(resp.Message, msg)
		}
		c.JSON(http.StatusInternalServerError, errorResponse(msg))
	case !resp.Success:
		c.JSON(http.StatusBadRequest, errorResponse(messageOr(resp.Message, "Invalid request")))
	default:
		c.JSON(http.StatusOK, successResponse("Sale retrieved successfully", resp.Sale))
	}
}

// --- Dashboard ---

func (h *POSHTTPHandler) GetDashboard(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	resp, err := h.pos.GetDashboardSummary(ctx)
	if err != nil || !resp.Success {
		msg := "Failed to load dashboard"
		if resp != nil {
			msg = messageOr(resp.Message, msg)
		}
		c.JSON(http.StatusInternalServerError, errorResponse(msg))
		return
	}

	c.JSON(http.StatusOK, successResponse("Dashboard retrieved successfully", resp.Summary))
}
