package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"syntra-pos/internal/database/models"
	catalogHandler "syntra-pos/internal/services/catalog/handler"
	"syntra-pos/internal/services/pos/receipt"
	settingsHandler "syntra-pos/internal/services/settings/handler"
)

const maxPaymentMethodLength = 32

// --- Helpers ---
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// rejection marks a failure inside the checkout transaction that is the
// caller's fault rather than the storage layer's.
type rejection struct {
	reason string
}

func (r *rejection) Error() string { return r.reason }

func reject(format string, args ...interface{}) error {
	return &rejection{reason: fmt.Sprintf(format, args...)}
}

// -- Request / Response --

type SaleItemInput struct {
	ProductID string          `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type ProcessSaleRequest struct {
	Items         []SaleItemInput `json:"items"`
	PaymentMethod string          `json:"payment_method"`
}

type ProcessSaleResponse struct {
	Success bool
	SaleID  string
	Message *string
}

// Totals are the amounts persisted for a sale, rounded to cents.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals prices the items at their snapshot unit prices under taxRate.
func ComputeTotals(items []SaleItemInput, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRate).Round(2)

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// -- Handler --
type POSHandler struct {
	db       *gorm.DB
	redis    *redis.Client
	logger   *zap.Logger
	catalog  *catalogHandler.CatalogHandler
	settings *settingsHandler.SettingsHandler
	now      func() time.Time
}

func NewPOSHandler(
	db *gorm.DB,
	redisClient *redis.Client,
	logger *zap.Logger,
	catalog *catalogHandler.CatalogHandler,
	settings *settingsHandler.SettingsHandler,
) *POSHandler {
	return &POSHandler{
		db:       db,
		redis:    redisClient,
		logger:   logger,
		catalog:  catalog,
		settings: settings,
		now:      time.Now,
	}
}

func validateSaleRequest(req *ProcessSaleRequest) string {
	if req == nil || len(req.Items) == 0 {
		return "cart must contain at least one item"
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return "payment_method required"
	}
	if len(method) > maxPaymentMethodLength {
		return fmt.Sprintf("payment_method must be at most %d characters", maxPaymentMethodLength)
	}

	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return "product_id required for every item"
		}
		if item.Quantity <= 0 {
			return fmt.Sprintf("quantity must be positive for product %s", item.ProductID)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Sprintf("unit_price must not be negative for product %s", item.ProductID)
		}
	}

	requested, _ := aggregateQuantities(req.Items)
	for id, qty := range requested {
		if qty > math.MaxInt32 {
			return fmt.Sprintf("quantity for product %s must be at most %d", strings.TrimSpace(id), math.MaxInt32)
		}
	}
	return ""
}

// aggregateQuantities sums requested quantities per distinct product and
// returns the product ids in lock order. Sums are int64 so repeated lines
// cannot wrap.
func aggregateQuantities(items []SaleItemInput) (map[string]int64, []string) {
	requested := make(map[string]int64, len(items))
	for _, item := range items {
		requested[strings.TrimSpace(item.ProductID)] += int64(item.Quantity)
	}

	ids := make([]string, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return requested, ids
}

// ProcessSale commits a sale, its line items, the stock decrements and the
// receipt in a single transaction. Settings are read once up front and the
// same rate applies to the whole sale.
func (s *POSHandler) ProcessSale(ctx context.Context, req *ProcessSaleRequest) (*ProcessSaleResponse, error) {
	if reason := validateSaleRequest(req); reason != "" {
		return &ProcessSaleResponse{
			Success: false,
			Message: strPtr(reason),
		}, nil
	}

	items := make([]SaleItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = SaleItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Round(2),
		}
	}
	paymentMethod := strings.TrimSpace(req.PaymentMethod)

	settings := s.settings.GetOrCreateSettings(ctx).Settings
	totals := ComputeTotals(items, settings.TaxRate)
	requested, productIDs := aggregateQuantities(items)
	now := s.now()

	sale := models.Sale{
		TotalAmount:   totals.Total,
		PaymentMethod: paymentMethod,
		CreatedAt:     now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := s.catalog.LockProducts(tx, productIDs)
		if err != nil {
			return err
		}

		for _, id := range productIDs {
			product, ok := products[id]
			if !ok {
				return reject("Product %s not found", id)
			}
			if int64(product.Stock) < requested[id] {
				return reject("Insufficient stock for %s. Available: %d, Requested: %d", product.Name, product.Stock, requested[id])
			}
		}

		if err := tx.Omit(clause.Associations).Create(&sale).Error; err != nil {
			return fmt.Errorf("create sale: %w", err)
		}

		lines := make([]models.SaleItem, len(items))
		receiptItems := make([]receipt.Item, len(items))
		for i, item := range items {
			lines[i] = models.SaleItem{
				SaleID:      sale.ID,
				ProductID:   item.ProductID,
				Quantity:    item.Quantity,
				PriceAtSale: item.UnitPrice,
				CreatedAt:   now,
			}
			receiptItems[i] = receipt.Item{
				ProductID: item.ProductID,
				Name:      products[item.ProductID].Name,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				LineTotal: item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)),
			}
		}
		if err := tx.Create(&lines).Error; err != nil {
			return fmt.Errorf("create sale items: %w", err)
		}

		for _, id := range productIDs {
			if err := s.catalog.DecrementStock(tx, id, int32(requested[id])); err != nil {
				if errors.Is(err, catalogHandler.ErrInsufficientStock) {
					return reject("Insufficient stock for %s", products[id].Name)
				}
				return err
			}
		}

		content, err := receipt.Encode(receipt.Snapshot{
			Items:         receiptItems,
			Subtotal:      totals.Subtotal,
			Tax:           totals.Tax,
			Total:         totals.Total,
			TaxRate:       settings.TaxRate,
			Currency:      settings.Currency,
			PaymentMethod: paymentMethod,
			Date:          now,
		})
		if err != nil {
			return err
		}

		if err := tx.Create(&models.Receipt{
			SaleID:    sale.ID,
			Content:   content,
			CreatedAt: now,
		}).Error; err != nil {
			return fmt.Errorf("create receipt: %w", err)
		}

		return nil
	})
	if err != nil {
		var r *rejection
		if errors.As(err, &r) {
			s.logger.Info("sale rejected", zap.String("reason", r.reason))
			return &ProcessSaleResponse{
				Success: false,
				Message: strPtr(r.reason),
			}, nil
		}

		s.logger.Error("sale transaction failed",
			zap.Int("items", len(items)),
			zap.String("payment_method", paymentMethod),
			zap.Error(err),
		)
		return &ProcessSaleResponse{
			Success: false,
			Message: strPtr("Transaction failed"),
		}, fmt.Errorf("process sale: %w", err)
	}

	s.catalog.InvalidateCatalogCache(ctx)

	if err := s.publishSaleEvent(ctx, SaleEvent{
		EventType:     EventSaleCreated,
		SaleID:        sale.ID,
		TotalAmount:   totals.Total.StringFixed(2),
		PaymentMethod: paymentMethod,
		Currency:      settings.Currency,
		ItemCount:     len(items),
		Timestamp:     now,
	}); err != nil {
		s.logger.Warn("failed to publish sale event", zap.String("sale_id", sale.ID), zap.Error(err))
	}

	s.logger.Info("sale committed",
		zap.String("sale_id", sale.ID),
		zap.String("total", totals.Total.StringFixed(2)),
		zap.String("currency", settings.Currency),
	)

	return &ProcessSaleResponse{
		Success: true,
		SaleID:  sale.ID,
		Message: strPtr("Sale completed successfully"),
	}, nil
}
