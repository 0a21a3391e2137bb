package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const SettingsSingletonID = "default"

type Product struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(128);not null;index" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	Stock     int32           `gorm:"not null;default:0" json:"stock"`
	Category  string          `gorm:"type:varchar(64)" json:"category"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Settings struct {
	ID        string          `gorm:"type:varchar(32);primaryKey" json:"-"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"tax_rate"`
	Currency  string          `gorm:"type:varchar(16);not null" json:"currency"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Sale is written once by the checkout transaction and never updated.
type Sale struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	PaymentMethod string          `gorm:"type:varchar(32);not null" json:"payment_method"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"created_at"`

	Items   []SaleItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items"`
	Receipt *Receipt   `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"receipt,omitempty"`
}

func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SaleItem keeps ProductID as a plain column: products may be deleted after
// the sale, so there is no foreign key to products.
type SaleItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID      string          `gorm:"type:varchar(36);index;not null" json:"sale_id"`
	ProductID   string          `gorm:"type:varchar(36);index;not null" json:"product_id"`
	Quantity    int32           `gorm:"not null" json:"quantity"`
	PriceAtSale decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price_at_sale"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Receipt struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID    string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"sale_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
