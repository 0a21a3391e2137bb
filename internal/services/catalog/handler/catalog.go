package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"syntra-pos/internal/database/models"
)

const (
	CATALOG_CACHE_PREFIX     = "pos:product"
	CATALOG_GENERATION_KEY   = "pos:product:gen"
	CACHE_TTL_MEDIUM         = 30 * time.Minute
	maxProductNameLength     = 128
	maxProductCategoryLength = 64
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type ProductInput struct {
	Name     string
	Price    decimal.Decimal
	Stock    int32
	Category string
}

type ListProductsResponse struct {
	Success  bool
	Message  *string
	Products []models.Product
}

type ProductResponse struct {
	Success bool
	Message *string
	Product *models.Product
}

type DeleteProductResponse struct {
	Success bool
	Message *string
}

// -- Handler --
type CatalogHandler struct {
	db     *gorm.DB
	redis  *redis.Client
	logger *zap.Logger
}

func NewCatalogHandler(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		db:     db,
		redis:  redisClient,
		logger: logger,
	}
}

// InvalidateCatalogCache bumps the cache generation. Readers build their key
// from the generation they observed before querying, so a list read that
// raced with a mutation lands under a key nobody reads any more.
func (s *CatalogHandler) InvalidateCatalogCache(ctx context.Context) {
	if err := s.redis.Incr(ctx, CATALOG_GENERATION_KEY).Err(); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

func (s *CatalogHandler) cacheKey(ctx context.Context) (string, bool) {
	gen, err := s.redis.Get(ctx, CATALOG_GENERATION_KEY).Int64()
	if err != nil && err != redis.Nil {
		s.logger.Warn("redis error reading catalog generation, bypassing cache", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("%s:v%d", CATALOG_CACHE_PREFIX, gen), true
}

// -- Validation --

func normalizeProductInput(in ProductInput) (ProductInput, string) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)

	switch {
	case in.Name == "":
		return in, "name required"
	case len(in.Name) > maxProductNameLength:
		return in, fmt.Sprintf("name must be at most %d characters", maxProductNameLength)
	case len(in.Category) > maxProductCategoryLength:
		return in, fmt.Sprintf("category must be at most %d characters", maxProductCategoryLength)
	case in.Price.IsNegative():
		return in, "price must not be negative"
	case in.Stock < 0:
		return in, "stock must not be negative"
	}

	in.Price = in.Price.Round(2)
	return in, ""
}

// -- Products --

func (s *CatalogHandler) ListProducts(ctx context.Context) (*ListProductsResponse, error) {
	key, useCache := s.cacheKey(ctx)
	if useCache {
		val, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			var cached []models.Product
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return &ListProductsResponse{
					Success:  true,
					Products: cached,
				}, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("redis error on catalog GET, falling back to DB", zap.Error(err))
		}
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&products).Error; err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return &ListProductsResponse{
			Success: false,
			Message: strPtr("Failed to fetch products"),
		}, fmt.Errorf("list products: %w", err)
	}

	if useCache {
		if jsonData, err := json.Marshal(products); err == nil {
			if err := s.redis.Set(ctx, key, jsonData, CACHE_TTL_MEDIUM).Err(); err != nil {
				s.logger.Warn("failed to cache catalog", zap.String("key", key), zap.Error(err))
			}
		}
	}

	return &ListProductsResponse{
		Success:  true,
		Products: products,
	}, nil
}

func (s *CatalogHandler) GetProduct(ctx context.Context, id string) (*ProductResponse, error) {
	if id == "" {
		return &ProductResponse{
			Success: false,
			Message: strPtr("product id must be provided"),
		}, nil
	}

	var product models.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ProductResponse{
				Success: false,
				Message: strPtr("Product not found"),
			}, ErrProductNotFound
		}
		return &ProductResponse{
			Success: false,
			Message: strPtr("database error"),
		}, fmt.Errorf("get product %s: %w", id, err)
	}

	return &ProductResponse{
		Success: true,
		Product: &product,
	}, nil
}

func (s *CatalogHandler) CreateProduct(ctx context.Context, in ProductInput) (*ProductResponse, error) {
	in, reason := normalizeProductInput(in)
	if reason != "" {
		return &ProductResponse{
			Success: false,
			Message: strPtr(reason),
		}, nil
	}

	product := models.Product{
		Name:     in.Name,
		Price:    in.Price,
		Stock:    in.Stock,
		Category: in.Category,
	}

	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		s.logger.Error("failed to add product", zap.String("name", in.Name), zap.Error(err))
		return &ProductResponse{
			Success: false,
			Message: strPtr("Failed to add product"),
		}, fmt.Errorf("create product: %w", err)
	}

	s.InvalidateCatalogCache(ctx)

	return &ProductResponse{
		Success: true,
		Message: strPtr("Product created successfully"),
		Product: &product,
	}, nil
}

// UpdateProduct replaces name, price, stock and category.
func (s *CatalogHandler) UpdateProduct(ctx context.Context, id string, in ProductInput) (*ProductResponse, error) {
	in, reason := normalizeProductInput(in)
	if reason != "" {
		return &ProductResponse{
			Success: false,
			Message: strPtr(reason),
		}, nil
	}

	return s.applyUpdate(ctx, id, map[string]interface{}{
		"name":       in.Name,
		"price":      in.Price,
		"stock":      in.Stock,
		"category":   in.Category,
		"updated_at": time.Now(),
	}, "Failed to update product")
}

// UpdateStock sets an absolute stock level, as a stock count correction.
func (s *CatalogHandler) UpdateStock(ctx context.Context, id string, stock int32) (*ProductResponse, error) {
	if stock < 0 {
		return &ProductResponse{
			Success: false,
			Message: strPtr("stock must not be negative"),
		}, nil
	}

	return s.applyUpdate(ctx, id, map[string]interface{}{
		"stock":      stock,
		"updated_at": time.Now(),
	}, "Failed to update stock")
}

func (s *CatalogHandler) applyUpdate(ctx context.Context, id string, fields map[string]interface{}, failure string) (*ProductResponse, error) {
	if id == "" {
		return &ProductResponse{
			Success: false,
			Message: strPtr("product id must be provided"),
		}, nil
	}

	result := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		s.logger.Error(strings.ToLower(failure), zap.String("product_id", id), zap.Error(result.Error))
		return &ProductResponse{
			Success: false,
			Message: strPtr(failure),
		}, fmt.Errorf("update product %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return &ProductResponse{
			Success: false,
			Message: strPtr("Product not found"),
		}, ErrProductNotFound
	}

	s.InvalidateCatalogCache(ctx)

	return s.GetProduct(ctx, id)
}

// DeleteProduct removes the product row only. Sale items keep their product
// id and resolve it lazily when read.
func (s *CatalogHandler) DeleteProduct(ctx context.Context, id string) (*DeleteProductResponse, error) {
	if id == "" {
		return &DeleteProductResponse{
			Success: false,
			Message: strPtr("product id must be provided"),
		}, nil
	}

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if result.Error != nil {
		s.logger.Error("failed to delete product", zap.String("product_id", id), zap.Error(result.Error))
		return &DeleteProductResponse{
			Success: false,
			Message: strPtr("Failed to delete product"),
		}, fmt.Errorf("delete product %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return &DeleteProductResponse{
			Success: false,
			Message: strPtr("Product not found"),
		}, ErrProductNotFound
	}

	s.InvalidateCatalogCache(ctx)

	return &DeleteProductResponse{
		Success: true,
		Message: strPtr("Product deleted successfully"),
	}, nil
}

// -- Stock inside a checkout transaction --

// LockProducts reads and row-locks the given products within tx, in id order
// so concurrent checkouts acquire locks consistently. Missing ids are simply
// absent from the returned map.
func (s *CatalogHandler) LockProducts(tx *gorm.DB, ids []string) (map[string]models.Product, error) {
	var products []models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// DecrementStock subtracts amount as a relative update that only applies
// while enough stock remains.
func (s *CatalogHandler) DecrementStock(tx *gorm.DB, id string, amount int32) error {
	result := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, amount).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("decrement stock for %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, ErrInsufficientStock)
	}
	return nil
}
