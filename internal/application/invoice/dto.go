package invoice

import (
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Sale DTOs
// =============================================================================

// RecordSaleRequest is a completed basket handed over by the till
type RecordSaleRequest struct {
	// InvoiceNumber is generated as INV-YYYYMMDD-NNNN when empty
	InvoiceNumber   string            `json:"invoice_number" validate:"omitempty,max=50"`
	CustomerID      *int64            `json:"customer_id" validate:"omitempty,gt=0"`
	CustomerName    string            `json:"customer_name" validate:"max=200"`
	CustomerPhone   string            `json:"customer_phone" validate:"max=20"`
	Items           []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	Discount        decimal.Decimal   `json:"discount"`
	DiscountPercent bool              `json:"discount_percent"`
	TaxInclusive    bool              `json:"tax_inclusive"`
	PaymentMethod   string            `json:"payment_method" validate:"required,oneof=CASH UPI CREDIT SPLIT CHEQUE"`
	// CashAmount is the part collected at the counter for SPLIT sales
	CashAmount decimal.Decimal `json:"cash_amount"`
	Notes      string          `json:"notes" validate:"max=500"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SaleItemRequest is one basket line
type SaleItemRequest struct {
	ProductID   int64           `json:"product_id" validate:"gte=0"`
	Name        string          `json:"name" validate:"max=200"`
	HSNCode     string          `json:"hsn_code" validate:"max=20"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	// TaxRate falls back to the shop's default GST rate when nil
	TaxRate    *decimal.Decimal `json:"tax_rate"`
	LineTotal  *decimal.Decimal `json:"line_total"`
	BatchNo    string           `json:"batch_no" validate:"max=50"`
	ExpiryDate *time.Time       `json:"expiry_date"`
}

func (r *RecordSaleRequest) normalize() {
	r.InvoiceNumber = strings.TrimSpace(r.InvoiceNumber)
	r.PaymentMethod = strings.ToUpper(strings.TrimSpace(r.PaymentMethod))
	r.CustomerName = strings.TrimSpace(r.CustomerName)
}

// RecordSaleResult describes a recorded sale and its first document
type RecordSaleResult struct {
	Header       *invoice.TransactionHeader
	Items        []invoice.LineItem
	ArtifactPath string
	// RenderError is set when the sale committed but its document could not
	// be produced; the document is rebuilt on first view
	RenderError string
}

// =============================================================================
// Collection DTOs
// =============================================================================

// CollectPaymentRequest pays down the outstanding balance of a credit invoice
type CollectPaymentRequest struct {
	TransactionID int64           `json:"transaction_id" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" validate:"required,oneof=CASH UPI CHEQUE"`
	Reference     string          `json:"reference" validate:"max=100"`
	DepositorName string          `json:"depositor_name" validate:"max=200"`
	// Date defaults to now when zero
	Date time.Time `json:"date"`
	Note string    `json:"note" validate:"max=500"`
	// IdempotencyKey makes a resubmitted request a no-op
	IdempotencyKey string `json:"idempotency_key" validate:"max=128"`
}

func (r *CollectPaymentRequest) normalize() {
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	r.Reference = strings.TrimSpace(r.Reference)
	r.DepositorName = strings.TrimSpace(r.DepositorName)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
}

// CustomerStatement is a customer's running account
type CustomerStatement struct {
	CustomerID int64
	Entries    []invoice.LedgerEntry
	Balance    decimal.Decimal
}

// =============================================================================
// Document DTOs
// =============================================================================

// RegenerationResult describes a rebuilt invoice document
type RegenerationResult struct {
	Success bool
	Path    string
	// Layout is the storage layout the header was read from
	Layout  invoice.SourceLayout
	Quality invoice.ResolutionQuality
}

// ArtifactResult points at a document that exists on disk
type ArtifactResult struct {
	Path        string
	Regenerated bool
	Quality     invoice.ResolutionQuality
}

// OpenMode tells the opener what the user wants to do with a document
type OpenMode string

const (
	OpenModeView  OpenMode = "view"
	OpenModePrint OpenMode = "print"
)

// IsValid reports whether m is a known mode
func (m OpenMode) IsValid() bool {
	return m == OpenModeView || m == OpenModePrint
}
