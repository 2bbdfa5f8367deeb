package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LegacySaleModel is the header table of the layout written by older
// releases. Real databases drift from this shape; readers introspect columns
// instead of relying on it.
type LegacySaleModel struct {
	ID           int64           `gorm:"primaryKey"`
	InvoiceNo    string          `gorm:"type:varchar(50);index"`
	CustomerID   *int64          `gorm:"index"`
	CustomerName string          `gorm:"type:varchar(200)"`
	SaleDate     time.Time       `gorm:"not null"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(18,2)"`
	Discount     decimal.Decimal `gorm:"type:decimal(18,2)"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(18,2)"`
	NetAmount    decimal.Decimal `gorm:"type:decimal(18,2)"`
	PaymentMode  string          `gorm:"type:varchar(20)"`
	PaidAmount   decimal.Decimal `gorm:"type:decimal(18,2)"`
	BalanceDue   decimal.Decimal `gorm:"type:decimal(18,2)"`
	Status       string          `gorm:"type:varchar(20)"`
	PdfPath      string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (LegacySaleModel) TableName() string {
	return "sales"
}

// LegacySaleItemModel is a legacy sale line
type LegacySaleItemModel struct {
	ID          int64           `gorm:"primaryKey"`
	SaleID      int64           `gorm:"not null;index"`
	ProductID   int64           `gorm:"index"`
	Qty         decimal.Decimal `gorm:"type:decimal(18,3)"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2)"`
	DiscPercent decimal.Decimal `gorm:"type:decimal(5,2)"`
	Total       decimal.Decimal `gorm:"type:decimal(18,2)"`
}

// TableName returns the table name for GORM
func (LegacySaleItemModel) TableName() string {
	return "sale_items"
}
