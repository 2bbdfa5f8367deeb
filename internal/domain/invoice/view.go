package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolutionQuality says how trustworthy a set of resolved items is
type ResolutionQuality string

const (
	QualityResolved   ResolutionQuality = "RESOLVED"
	QualityBestEffort ResolutionQuality = "BEST_EFFORT"
	QualityEmpty      ResolutionQuality = "EMPTY"
)

// ItemResolution is the outcome of looking up a transaction's items
type ItemResolution struct {
	Items   []LineItem
	Quality ResolutionQuality
	Layout  SourceLayout
}

// IsEmpty reports whether no items were found in any layout
func (r ItemResolution) IsEmpty() bool {
	return len(r.Items) == 0
}

// ShopInfo is a snapshot of the store details printed on every invoice
type ShopInfo struct {
	Name           string
	AddressLines   []string
	Phone          string
	Email          string
	GSTIN          string
	StateCode      string
	FooterNote     string
	CurrencySymbol string
	DefaultTaxRate decimal.Decimal
}

// InvoiceView is the fully assembled, display-ready invoice. It is built on
// demand and never persisted.
type InvoiceView struct {
	TransactionID int64
	InvoiceNumber string
	IssuedAt      time.Time
	CustomerName  string
	CustomerPhone string
	WalkIn        bool

	Items []ViewItem

	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxCGST        decimal.Decimal
	TaxSGST        decimal.Decimal
	GrandTotal     decimal.Decimal
	// DerivedTotal is what the items add up to; it is informational only
	DerivedTotal   decimal.Decimal
	TotalsMismatch bool
	TaxBreakdown   []TaxLine

	PaymentMethod     PaymentMethod
	PaymentStatus     PaymentStatus
	AmountPaid        decimal.Decimal
	OutstandingAmount decimal.Decimal

	AmountInWords string
	Formatted     FormattedTotals

	Shop         ShopInfo
	Quality      ResolutionQuality
	SourceLayout SourceLayout
	ArtifactPath string
}

// ViewItem is a line item with its display strings
type ViewItem struct {
	Index       int
	Name        string
	HSNCode     string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	TaxRate     decimal.Decimal
	LineTotal   decimal.Decimal

	QuantityText  string
	UnitPriceText string
	LineTotalText string
}

// TaxLine is one row of the GST summary grouped by rate
type TaxLine struct {
	Rate        decimal.Decimal
	TaxableText string
	CGSTText    string
	SGSTText    string
	Taxable     decimal.Decimal
	CGST        decimal.Decimal
	SGST        decimal.Decimal
}

// FormattedTotals holds the header amounts rendered with the shop's symbol
type FormattedTotals struct {
	Subtotal    string
	Discount    string
	CGST        string
	SGST        string
	GrandTotal  string
	AmountPaid  string
	Outstanding string
}
