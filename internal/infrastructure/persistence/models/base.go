// Package models holds the GORM row types for the invoice, legacy sale,
// payment and ledger tables.
package models

import "time"

// Timestamps provides the created/updated columns shared by mutable tables
type Timestamps struct {
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&CustomerModel{},
		&ProductModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
		&PaymentEventModel{},
		&LedgerEntryModel{},
		&ShopSettingModel{},
	}
}

// Legacy returns the models of the layout written by older releases. They
// are only created by tests and by the import tool; production databases
// already have them or never will.
func Legacy() []any {
	return []any{
		&LegacySaleModel{},
		&LegacySaleItemModel{},
	}
}
