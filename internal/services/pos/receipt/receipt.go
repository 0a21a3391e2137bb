// Package receipt encodes the snapshot stored with every sale. The snapshot
// is self-contained so it stays readable after catalog or settings changes.
package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrentVersion is written into every new snapshot. Content without a
// version field is treated as version 0 (items, total, date, currency only).
const CurrentVersion = 1

var ErrEmptyContent = errors.New("receipt content is empty")

type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Snapshot struct {
	Version       int             `json:"version"`
	Items         []Item          `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	Date          time.Time       `json:"date"`
}

func Encode(s Snapshot) (string, error) {
	if s.Version == 0 {
		s.Version = CurrentVersion
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode receipt: %w", err)
	}
	return string(data), nil
}

// Parse decodes stored content. Unknown fields are ignored and missing ones
// stay zero, so older and newer snapshots both parse.
func Parse(content string) (Snapshot, error) {
	if strings.TrimSpace(content) == "" {
		return Snapshot{}, ErrEmptyContent
	}

	var s Snapshot
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		return Snapshot{}, fmt.Errorf("parse receipt: %w", err)
	}
	return s, nil
}

// ResolveCurrency returns the currency recorded in content, or fallback when
// the content cannot be parsed or carries no currency.
func ResolveCurrency(content, fallback string) string {
	s, err := Parse(content)
	if err != nil || strings.TrimSpace(s.Currency) == "" {
		return fallback
	}
	return s.Currency
}
