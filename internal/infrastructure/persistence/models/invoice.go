package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the current-layout invoice header. IDs are allocated by
// the application so they never collide with legacy sale IDs.
type InvoiceModel struct {
	ID                int64           `gorm:"primaryKey;autoIncrement:false"`
	InvoiceNumber     string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID        *int64          `gorm:"index"`
	CustomerName      string          `gorm:"type:varchar(200)"`
	CustomerPhone     string          `gorm:"type:varchar(30)"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	DiscountAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	CGSTAmount        decimal.Decimal `gorm:"column:cgst_amount;type:decimal(18,2);not null;default:0"`
	SGSTAmount        decimal.Decimal `gorm:"column:sgst_amount;type:decimal(18,2);not null;default:0"`
	GrandTotal        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	PaymentMethod     string          `gorm:"type:varchar(20);not null"`
	PaymentStatus     string          `gorm:"type:varchar(20);not null;index"`
	OutstandingAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	CashAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ArtifactPath      string          `gorm:"type:varchar(500)"`
	SourceLayout      string          `gorm:"type:varchar(20);not null;default:'CURRENT'"`
	Notes             string          `gorm:"type:text"`
	Version           int64           `gorm:"not null;default:1"`
	Timestamps
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the row to a canonical header
func (m *InvoiceModel) ToDomain() *invoice.TransactionHeader {
	layout := invoice.SourceLayout(m.SourceLayout)
	if layout == "" {
		layout = invoice.LayoutCurrent
	}
	return &invoice.TransactionHeader{
		ID:                m.ID,
		InvoiceNumber:     m.InvoiceNumber,
		CustomerID:        m.CustomerID,
		CustomerName:      m.CustomerName,
		CustomerPhone:     m.CustomerPhone,
		Subtotal:          m.Subtotal,
		DiscountAmount:    m.DiscountAmount,
		TaxCGST:           m.CGSTAmount,
		TaxSGST:           m.SGSTAmount,
		GrandTotal:        m.GrandTotal,
		PaymentMethod:     invoice.PaymentMethod(m.PaymentMethod),
		PaymentStatus:     invoice.PaymentStatus(m.PaymentStatus),
		OutstandingAmount: m.OutstandingAmount,
		CashAmount:        m.CashAmount,
		Notes:             m.Notes,
		CreatedAt:         m.CreatedAt,
		ArtifactPath:      m.ArtifactPath,
		SourceLayout:      layout,
	}
}

// InvoiceModelFromDomain converts a header to a row
func InvoiceModelFromDomain(h *invoice.TransactionHeader) *InvoiceModel {
	layout := h.SourceLayout
	if layout == "" {
		layout = invoice.LayoutCurrent
	}
	return &InvoiceModel{
		ID:                h.ID,
		InvoiceNumber:     h.InvoiceNumber,
		CustomerID:        h.CustomerID,
		CustomerName:      h.CustomerName,
		CustomerPhone:     h.CustomerPhone,
		Subtotal:          h.Subtotal,
		DiscountAmount:    h.DiscountAmount,
		CGSTAmount:        h.TaxCGST,
		SGSTAmount:        h.TaxSGST,
		GrandTotal:        h.GrandTotal,
		PaymentMethod:     string(h.PaymentMethod),
		PaymentStatus:     string(h.PaymentStatus),
		OutstandingAmount: h.OutstandingAmount,
		CashAmount:        h.CashAmount,
		ArtifactPath:      h.ArtifactPath,
		SourceLayout:      string(layout),
		Notes:             h.Notes,
		Version:           1,
		Timestamps:        Timestamps{CreatedAt: h.CreatedAt},
	}
}

// InvoiceItemModel is a current-layout invoice line
type InvoiceItemModel struct {
	ID          int64           `gorm:"primaryKey"`
	InvoiceID   int64           `gorm:"not null;index"`
	ProductID   int64           `gorm:"index"`
	ProductName string          `gorm:"type:varchar(200)"`
	HSNCode     string          `gorm:"column:hsn_code;type:varchar(20)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,3);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DiscountPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BatchNo     string          `gorm:"type:varchar(50)"`
	ExpiryDate  *time.Time
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// InvoiceItemModelFromDomain converts a line item to a row; the computed
// total is stored so later price edits never change an issued invoice
func InvoiceItemModelFromDomain(invoiceID int64, li invoice.LineItem) *InvoiceItemModel {
	return &InvoiceItemModel{
		InvoiceID:   invoiceID,
		ProductID:   li.ProductID,
		ProductName: li.Name,
		HSNCode:     li.HSNCode,
		Quantity:    li.Quantity,
		UnitPrice:   li.UnitPrice,
		DiscountPct: li.DiscountPct,
		TaxRate:     li.TaxRate,
		TaxAmount:   li.TaxAmount,
		LineTotal:   li.LineTotal(),
		BatchNo:     li.BatchNo,
		ExpiryDate:  li.ExpiryDate,
	}
}

// PaymentEventModel is an append-only payment row
type PaymentEventModel struct {
	ID            int64           `gorm:"primaryKey"`
	InvoiceID     int64           `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Method        string          `gorm:"type:varchar(20);not null"`
	Reference     string          `gorm:"type:varchar(100)"`
	DepositorName string          `gorm:"type:varchar(200)"`
	Note          string          `gorm:"type:text"`
	PaidAt        time.Time       `gorm:"not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentEventModel) TableName() string {
	return "payment_events"
}

// ToDomain converts the row to a payment event
func (m *PaymentEventModel) ToDomain() invoice.PaymentEvent {
	return invoice.PaymentEvent{
		ID:            m.ID,
		TransactionID: m.InvoiceID,
		Amount:        m.Amount,
		Method:        invoice.PaymentMethod(m.Method),
		Reference:     m.Reference,
		DepositorName: m.DepositorName,
		Note:          m.Note,
		PaidAt:        m.PaidAt,
		BalanceAfter:  m.BalanceAfter,
		CreatedAt:     m.CreatedAt,
	}
}

// PaymentEventModelFromDomain converts a payment event to a row
func PaymentEventModelFromDomain(e *invoice.PaymentEvent) *PaymentEventModel {
	return &PaymentEventModel{
		InvoiceID:     e.TransactionID,
		Amount:        e.Amount,
		Method:        string(e.Method),
		Reference:     e.Reference,
		DepositorName: e.DepositorName,
		Note:          e.Note,
		PaidAt:        e.PaidAt,
		BalanceAfter:  e.BalanceAfter,
		CreatedAt:     e.CreatedAt,
	}
}

// LedgerEntryModel is one row of a customer's running account
type LedgerEntryModel struct {
	ID             int64           `gorm:"primaryKey"`
	CustomerID     int64           `gorm:"not null;index"`
	InvoiceID      int64           `gorm:"not null;index"`
	EntryType      string          `gorm:"type:varchar(30);not null"`
	Debit          decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Credit         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	RunningBalance decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Description    string          `gorm:"type:varchar(500)"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "customer_ledger"
}

// ToDomain converts the row to a ledger entry
func (m *LedgerEntryModel) ToDomain() invoice.LedgerEntry {
	return invoice.LedgerEntry{
		ID:             m.ID,
		CustomerID:     m.CustomerID,
		TransactionID:  m.InvoiceID,
		EntryType:      invoice.LedgerEntryType(m.EntryType),
		Debit:          m.Debit,
		Credit:         m.Credit,
		RunningBalance: m.RunningBalance,
		Description:    m.Description,
		CreatedAt:      m.CreatedAt,
	}
}

// LedgerEntryModelFromDomain converts a ledger entry to a row
func LedgerEntryModelFromDomain(e *invoice.LedgerEntry) *LedgerEntryModel {
	return &LedgerEntryModel{
		CustomerID:     e.CustomerID,
		InvoiceID:      e.TransactionID,
		EntryType:      string(e.EntryType),
		Debit:          e.Debit,
		Credit:         e.Credit,
		RunningBalance: e.RunningBalance,
		Description:    e.Description,
		CreatedAt:      e.CreatedAt,
	}
}
