package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerModel is a customer account that may buy on credit
type CustomerModel struct {
	ID      int64  `gorm:"primaryKey"`
	Name    string `gorm:"type:varchar(200);not null"`
	Phone   string `gorm:"type:varchar(30);index"`
	Address string `gorm:"type:text"`
	GSTIN   string `gorm:"column:gstin;type:varchar(15)"`
	Timestamps
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ProductModel is the minimal product row invoices need for display
type ProductModel struct {
	ID        int64           `gorm:"primaryKey"`
	Name      string          `gorm:"type:varchar(200);not null"`
	HSNCode   string          `gorm:"column:hsn_code;type:varchar(20)"`
	Price     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ShopSettingModel is one key/value store setting
type ShopSettingModel struct {
	Key       string `gorm:"primaryKey;type:varchar(100)"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (ShopSettingModel) TableName() string {
	return "shop_settings"
}
