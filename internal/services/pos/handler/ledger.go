package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"syntra-pos/internal/database/models"
	"syntra-pos/internal/services/pos/receipt"
)

const (
	defaultSalesPageSize = 50
	maxSalesPageSize     = 200
	dashboardRecentSales = 5
)

var ErrSaleNotFound = errors.New("sale not found")

// SaleLineView is a line item with its product resolved at read time.
// ProductName is nil when the product has since been deleted.
type SaleLineView struct {
	ID          int64           `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName *string         `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"price_at_sale"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type ReceiptView struct {
	ID        int64     `json:"id"`
	Currency  string    `json:"currency"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type SaleView struct {
	ID            string          `json:"id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []SaleLineView  `json:"items"`
	Receipt       *ReceiptView    `json:"receipt"`
}

type ListSalesRequest struct {
	Limit  int
	Offset int
}

type ListSalesResponse struct {
	Success    bool
	Message    *string
	Sales      []SaleView
	TotalCount int64
	// Limit and Offset are the values applied after defaults and clamping.
	Limit  int
	Offset int
}

type GetSaleResponse struct {
	Success bool
	Message *string
	Sale    *SaleView
}

type DashboardSummary struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	SaleCount     int64           `json:"sale_count"`
	AverageSale   decimal.Decimal `json:"average_sale"`
	Currency      string          `json:"currency"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	ProductCount  int64           `json:"product_count"`
	LowStockCount int64           `json:"low_stock_count"`
	RecentSales   []SaleView      `json:"recent_sales"`
}

type DashboardResponse struct {
	Success bool
	Message *string
	Summary *DashboardSummary
}

// LowStockThreshold is the stock level at or below which a product counts
// as low on the dashboard.
const LowStockThreshold = 5

// ListSales returns sales most recent first with their items and receipts.
func (s *POSHandler) ListSales(ctx context.Context, req *ListSalesRequest) (*ListSalesResponse, error) {
	limit := defaultSalesPageSize
	offset := 0
	if req != nil {
		if req.Limit > 0 {
			limit = req.Limit
		}
		if limit > maxSalesPageSize {
			limit = maxSalesPageSize
		}
		if req.Offset > 0 {
			offset = req.Offset
		}
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Sale{}).Count(&total).Error; err != nil {
		return &ListSalesResponse{
			Success: false,
			Message: strPtr("Database error counting sales"),
		}, fmt.Errorf("count sales: %w", err)
	}

	sales, err := s.loadSales(ctx, limit, offset)
	if err != nil {
		return &ListSalesResponse{
			Success: false,
			Message: strPtr("Database error fetching sales"),
		}, err
	}

	views, err := s.toSaleViews(ctx, sales)
	if err != nil {
		return &ListSalesResponse{
			Success: false,
			Message: strPtr("Database error fetching sales"),
		}, err
	}

	return &ListSalesResponse{
		Success:    true,
		Sales:      views,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

func (s *POSHandler) GetSale(ctx context.Context, id string) (*GetSaleResponse, error) {
	if id == "" {
		return &GetSaleResponse{
			Success: false,
			Message: strPtr("sale id required"),
		}, nil
	}

	var sale models.Sale
	if err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Receipt").
		Where("id = ?", id).
		First(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &GetSaleResponse{
				Success: false,
				Message: strPtr("Sale not found"),
			}, ErrSaleNotFound
		}
		return &GetSaleResponse{
			Success: false,
			Message: strPtr("Database error"),
		}, fmt.Errorf("get sale %s: %w", id, err)
	}

	views, err := s.toSaleViews(ctx, []models.Sale{sale})
	if err != nil {
		return &GetSaleResponse{
			Success: false,
			Message: strPtr("Database error"),
		}, err
	}

	return &GetSaleResponse{
		Success: true,
		Sale:    &views[0],
	}, nil
}

// GetDashboardSummary aggregates revenue over all sales and lists the most
// recent ones.
func (s *POSHandler) GetDashboardSummary(ctx context.Context) (*DashboardResponse, error) {
	var agg struct {
		Revenue decimal.Decimal
		Count   int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Sale{}).
		Select("COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS count").
		Scan(&agg).Error; err != nil {
		s.logger.Error("failed to aggregate sales", zap.Error(err))
		return &DashboardResponse{
			Success: false,
			Message: strPtr("Failed to load dashboard"),
		}, fmt.Errorf("aggregate sales: %w", err)
	}

	var productCount, lowStock int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&productCount).Error; err != nil {
		return &DashboardResponse{
			Success: false,
			Message: strPtr("Failed to load dashboard"),
		}, fmt.Errorf("count products: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("stock <= ?", LowStockThreshold).
		Count(&lowStock).Error; err != nil {
		return &DashboardResponse{
			Success: false,
			Message: strPtr("Failed to load dashboard"),
		}, fmt.Errorf("count low stock products: %w", err)
	}

	recent, err := s.loadSales(ctx, dashboardRecentSales, 0)
	if err != nil {
		return &DashboardResponse{
			Success: false,
			Message: strPtr("Failed to load dashboard"),
		}, err
	}
	views, err := s.toSaleViews(ctx, recent)
	if err != nil {
		return &DashboardResponse{
			Success: false,
			Message: strPtr("Failed to load dashboard"),
		}, err
	}

	revenue := agg.Revenue.Round(2)
	average := decimal.Zero
	if agg.Count > 0 {
		average = revenue.DivRound(decimal.NewFromInt(agg.Count), 2)
	}

	settings := s.settings.GetOrCreateSettings(ctx).Settings

	return &DashboardResponse{
		Success: true,
		Summary: &DashboardSummary{
			TotalRevenue:  revenue,
			SaleCount:     agg.Count,
			AverageSale:   average,
			Currency:      settings.Currency,
			TaxRate:       settings.TaxRate,
			ProductCount:  productCount,
			LowStockCount: lowStock,
			RecentSales:   views,
		},
	}, nil
}

func (s *POSHandler) loadSales(ctx context.Context, limit, offset int) ([]models.Sale, error) {
	var sales []models.Sale
	if err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Receipt").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

// toSaleViews resolves product names with one lookup and reads each
// receipt's currency, falling back to the current settings.
func (s *POSHandler) toSaleViews(ctx context.Context, sales []models.Sale) ([]SaleView, error) {
	idSet := make(map[string]struct{})
	for _, sale := range sales {
		for _, item := range sale.Items {
			idSet[item.ProductID] = struct{}{}
		}
	}

	names := make(map[string]string, len(idSet))
	if len(idSet) > 0 {
		ids := make([]string, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}

		var products []models.Product
		if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&products).Error; err != nil {
			return nil, fmt.Errorf("resolve product names: %w", err)
		}
		for _, p := range products {
			names[p.ID] = p.Name
		}
	}

	fallbackCurrency := ""
	if len(sales) > 0 {
		fallbackCurrency = s.settings.GetOrCreateSettings(ctx).Settings.Currency
	}

	views := make([]SaleView, len(sales))
	for i, sale := range sales {
		lines := make([]SaleLineView, len(sale.Items))
		for j, item := range sale.Items {
			line := SaleLineView{
				ID:          item.ID,
				ProductID:   item.ProductID,
				Quantity:    item.Quantity,
				PriceAtSale: item.PriceAtSale,
				LineTotal:   item.PriceAtSale.Mul(decimal.NewFromInt32(item.Quantity)).Round(2),
			}
			if name, ok := names[item.ProductID]; ok {
				line.ProductName = strPtr(name)
			}
			lines[j] = line
		}

		view := SaleView{
			ID:            sale.ID,
			TotalAmount:   sale.TotalAmount,
			PaymentMethod: sale.PaymentMethod,
			CreatedAt:     sale.CreatedAt,
			Items:         lines,
		}
		if sale.Receipt != nil {
			view.Receipt = &ReceiptView{
				ID:        sale.Receipt.ID,
				Currency:  receipt.ResolveCurrency(sale.Receipt.Content, fallbackCurrency),
				Content:   sale.Receipt.Content,
				CreatedAt: sale.Receipt.CreatedAt,
			}
		}
		views[i] = view
	}
	return views, nil
}
