// Package cart stages products for a single checkout before they are
// submitted to the sale engine. A Cart lives only as long as its session and
// is not safe for concurrent use.
package cart

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"syntra-pos/internal/database/models"
	posHandler "syntra-pos/internal/services/pos/handler"
)

var (
	ErrOutOfStock   = errors.New("product is out of stock")
	ErrExceedsStock = errors.New("quantity would exceed available stock")
	ErrNotInCart    = errors.New("product is not in the cart")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrSaleRejected = errors.New("sale rejected")
	ErrNoSubmitter  = errors.New("no submitter configured")
)

// Submitter accepts a checkout. *posHandler.POSHandler satisfies it
// in-process; the gateway client satisfies it over HTTP.
type Submitter interface {
	ProcessSale(ctx context.Context, req *posHandler.ProcessSaleRequest) (*posHandler.ProcessSaleResponse, error)
}

// Entry is one product line. Product holds the price and stock as last seen
// by this cart.
type Entry struct {
	Product  models.Product
	Quantity int32
}

type Cart struct {
	entries []Entry
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) index(productID string) int {
	for i, e := range c.entries {
		if e.Product.ID == productID {
			return i
		}
	}
	return -1
}

// Add puts one unit of p in the cart. A product with no stock is never added,
// and an existing entry only grows while it stays within the known stock.
func (c *Cart) Add(p models.Product) error {
	if p.Stock <= 0 {
		return ErrOutOfStock
	}

	if i := c.index(p.ID); i >= 0 {
		if c.entries[i].Quantity >= p.Stock {
			return ErrExceedsStock
		}
		c.entries[i].Product = p
		c.entries[i].Quantity++
		return nil
	}

	c.entries = append(c.entries, Entry{Product: p, Quantity: 1})
	return nil
}

// Adjust changes an entry's quantity by delta. Reaching zero or below removes
// the entry; growing past the known stock is refused and nothing changes.
func (c *Cart) Adjust(productID string, delta int32) error {
	i := c.index(productID)
	if i < 0 {
		return ErrNotInCart
	}

	e := c.entries[i]
	if delta > 0 && delta > e.Product.Stock-e.Quantity {
		return ErrExceedsStock
	}

	next := int64(e.Quantity) + int64(delta)
	if next <= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
		return nil
	}

	c.entries[i].Quantity = int32(next)
	return nil
}

func (c *Cart) Remove(productID string) error {
	i := c.index(productID)
	if i < 0 {
		return ErrNotInCart
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.entries = nil
}

// Items returns a copy of the entries in the order they were added.
func (c *Cart) Items() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Cart) Quantity(productID string) int32 {
	if i := c.index(productID); i >= 0 {
		return c.entries[i].Quantity
	}
	return 0
}

func (c *Cart) IsEmpty() bool {
	return len(c.entries) == 0
}

// RefreshStock updates the known product state from a fresh catalog read and
// clamps entries down to the new stock, dropping those with none left.
// Products absent from the read are kept; checkout will reject them. It
// returns the ids of entries whose quantity changed.
func (c *Cart) RefreshStock(products []models.Product) []string {
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var changed []string
	kept := c.entries[:0]
	for _, e := range c.entries {
		p, ok := byID[e.Product.ID]
		if !ok {
			kept = append(kept, e)
			continue
		}
		e.Product = p
		if e.Quantity > p.Stock {
			changed = append(changed, p.ID)
			if p.Stock <= 0 {
				continue
			}
			e.Quantity = p.Stock
		}
		kept = append(kept, e)
	}
	c.entries = kept
	return changed
}

func (c *Cart) lines() []posHandler.SaleItemInput {
	items := make([]posHandler.SaleItemInput, len(c.entries))
	for i, e := range c.entries {
		items[i] = posHandler.SaleItemInput{
			ProductID: e.Product.ID,
			Quantity:  e.Quantity,
			UnitPrice: e.Product.Price,
		}
	}
	return items
}

// Totals are derived from the current entries and settings on every call.
func (c *Cart) Totals(settings models.Settings) posHandler.Totals {
	return posHandler.ComputeTotals(c.lines(), settings.TaxRate)
}

func (c *Cart) Subtotal() decimal.Decimal {
	return posHandler.ComputeTotals(c.lines(), decimal.Zero).Subtotal
}

func (c *Cart) Tax(settings models.Settings) decimal.Decimal {
	return c.Totals(settings).Tax
}

func (c *Cart) Total(settings models.Settings) decimal.Decimal {
	return c.Totals(settings).Total
}

// Request snapshots the entries into a sale request.
func (c *Cart) Request(paymentMethod string) *posHandler.ProcessSaleRequest {
	return &posHandler.ProcessSaleRequest{
		Items:         c.lines(),
		PaymentMethod: paymentMethod,
	}
}

// Checkout submits the cart and clears it once the sale is committed. On any
// failure the cart is left as it was so the sale can be retried.
func (c *Cart) Checkout(ctx context.Context, s Submitter, paymentMethod string) (string, error) {
	if s == nil {
		return "", ErrNoSubmitter
	}
	if c.IsEmpty() {
		return "", ErrEmptyCart
	}

	resp, err := s.ProcessSale(ctx, c.Request(paymentMethod))
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &RejectedError{Reason: messageOf(resp.Message)}
	}

	c.Clear()
	return resp.SaleID, nil
}

// RejectedError carries the engine's reason for refusing a sale.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return ErrSaleRejected.Error()
	}
	return ErrSaleRejected.Error() + ": " + e.Reason
}

func (e *RejectedError) Unwrap() error { return ErrSaleRejected }

func messageOf(m *string) string {
	if m == nil {
		return ""
	}
	return *m
}
