package handler

import (
	"path/filepath"
	"time"

	appinvoice "github.com/erp/invoicing/internal/application/invoice"
	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Requests
// =============================================================================

// RecordSaleRequest is the basket a till submits when a sale completes
type RecordSaleRequest struct {
	InvoiceNumber   string           `json:"invoice_number" binding:"omitempty,max=50"`
	CustomerID      *int64           `json:"customer_id" binding:"omitempty,gt=0"`
	CustomerName    string           `json:"customer_name" binding:"max=200"`
	CustomerPhone   string           `json:"customer_phone" binding:"max=20"`
	Items           []SaleItemInput  `json:"items" binding:"dive"`
	Discount        decimal.Decimal  `json:"discount" binding:"gte=0"`
	DiscountPercent bool             `json:"discount_percent"`
	TaxInclusive    bool             `json:"tax_inclusive"`
	PaymentMethod   string           `json:"payment_method" binding:"required"`
	CashAmount      decimal.Decimal  `json:"cash_amount" binding:"gte=0"`
	Notes           string           `json:"notes" binding:"max=500"`
	CreatedAt       *time.Time       `json:"created_at"`
}

// SaleItemInput is one basket line
type SaleItemInput struct {
	ProductID   int64            `json:"product_id" binding:"gte=0"`
	Name        string           `json:"name" binding:"max=200"`
	HSNCode     string           `json:"hsn_code" binding:"max=20"`
	UnitPrice   decimal.Decimal  `json:"unit_price" binding:"gte=0"`
	Quantity    decimal.Decimal  `json:"quantity"`
	DiscountPct decimal.Decimal  `json:"discount_pct" binding:"gte=0,lte=100"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	LineTotal   *decimal.Decimal `json:"line_total"`
	BatchNo     string           `json:"batch_no" binding:"max=50"`
	ExpiryDate  *time.Time       `json:"expiry_date"`
}

func (r *RecordSaleRequest) toService() appinvoice.RecordSaleRequest {
	req := appinvoice.RecordSaleRequest{
		InvoiceNumber:   r.InvoiceNumber,
		CustomerID:      r.CustomerID,
		CustomerName:    r.CustomerName,
		CustomerPhone:   r.CustomerPhone,
		Discount:        r.Discount,
		DiscountPercent: r.DiscountPercent,
		TaxInclusive:    r.TaxInclusive,
		PaymentMethod:   r.PaymentMethod,
		CashAmount:      r.CashAmount,
		Notes:           r.Notes,
		Items:           make([]appinvoice.SaleItemRequest, 0, len(r.Items)),
	}
	if r.CreatedAt != nil {
		req.CreatedAt = *r.CreatedAt
	}
	for _, it := range r.Items {
		req.Items = append(req.Items, appinvoice.SaleItemRequest{
			ProductID:   it.ProductID,
			Name:        it.Name,
			HSNCode:     it.HSNCode,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			DiscountPct: it.DiscountPct,
			TaxRate:     it.TaxRate,
			LineTotal:   it.LineTotal,
			BatchNo:     it.BatchNo,
			ExpiryDate:  it.ExpiryDate,
		})
	}
	return req
}

// CollectPaymentRequest records money received against a credit invoice
type CollectPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" binding:"required"`
	Reference     string          `json:"reference" binding:"max=100"`
	DepositorName string          `json:"depositor_name" binding:"max=200"`
	Date          *time.Time      `json:"date"`
	Note          string          `json:"note" binding:"max=500"`
	// IdempotencyKey may also be sent as the Idempotency-Key header
	IdempotencyKey string `json:"idempotency_key" binding:"max=128"`
}

func (r *CollectPaymentRequest) toService(invoiceID int64) appinvoice.CollectPaymentRequest {
	req := appinvoice.CollectPaymentRequest{
		TransactionID:  invoiceID,
		Amount:         r.Amount,
		Method:         r.Method,
		Reference:      r.Reference,
		DepositorName:  r.DepositorName,
		Note:           r.Note,
		IdempotencyKey: r.IdempotencyKey,
	}
	if r.Date != nil {
		req.Date = *r.Date
	}
	return req
}

// =============================================================================
// Responses
// =============================================================================

// InvoiceResponse is a stored invoice header. Amounts are decimal strings
// with two places.
type InvoiceResponse struct {
	ID                int64     `json:"id"`
	InvoiceNumber     string    `json:"invoice_number"`
	CustomerID        *int64    `json:"customer_id,omitempty"`
	CustomerName      string    `json:"customer_name"`
	Subtotal          string    `json:"subtotal"`
	DiscountAmount    string    `json:"discount_amount"`
	CGST              string    `json:"cgst"`
	SGST              string    `json:"sgst"`
	GrandTotal        string    `json:"grand_total"`
	PaymentMethod     string    `json:"payment_method"`
	PaymentStatus     string    `json:"payment_status"`
	OutstandingAmount string    `json:"outstanding_amount"`
	CashAmount        string    `json:"cash_amount"`
	SourceLayout      string    `json:"source_layout"`
	CreatedAt         time.Time `json:"created_at"`
}

// SaleResponse is returned after a sale is recorded
type SaleResponse struct {
	Invoice      InvoiceResponse `json:"invoice"`
	ItemCount    int             `json:"item_count"`
	ArtifactPath string          `json:"artifact_path,omitempty"`
	// RenderError explains why no document exists yet; the sale itself is saved
	RenderError string `json:"render_error,omitempty"`
}

// InvoiceViewResponse is the display-ready invoice
type InvoiceViewResponse struct {
	ID             int64              `json:"id"`
	InvoiceNumber  string             `json:"invoice_number"`
	IssuedAt       time.Time          `json:"issued_at"`
	CustomerName   string             `json:"customer_name"`
	CustomerPhone  string             `json:"customer_phone,omitempty"`
	WalkIn         bool               `json:"walk_in"`
	Items          []ViewItemResponse `json:"items"`
	TaxBreakdown   []TaxLineResponse  `json:"tax_breakdown"`
	Subtotal       string             `json:"subtotal"`
	DiscountAmount string             `json:"discount_amount"`
	CGST           string             `json:"cgst"`
	SGST           string             `json:"sgst"`
	GrandTotal     string             `json:"grand_total"`
	DerivedTotal   string             `json:"derived_total"`
	TotalsMismatch bool               `json:"totals_mismatch"`
	PaymentMethod  string             `json:"payment_method"`
	PaymentStatus  string             `json:"payment_status"`
	AmountPaid     string             `json:"amount_paid"`
	Outstanding    string             `json:"outstanding_amount"`
	AmountInWords  string             `json:"amount_in_words"`
	Formatted      FormattedResponse  `json:"formatted"`
	Shop           ShopResponse       `json:"shop"`
	Quality        string             `json:"quality"`
	SourceLayout   string             `json:"source_layout"`
}

// ViewItemResponse is one printed invoice line
type ViewItemResponse struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	HSNCode     string `json:"hsn_code,omitempty"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	DiscountPct string `json:"discount_pct"`
	TaxRate     string `json:"tax_rate"`
	LineTotal   string `json:"line_total"`
}

// TaxLineResponse is one GST rate group
type TaxLineResponse struct {
	Rate    string `json:"rate"`
	Taxable string `json:"taxable"`
	CGST    string `json:"cgst"`
	SGST    string `json:"sgst"`
}

// FormattedResponse holds the totals as printed, currency symbol included
type FormattedResponse struct {
	Subtotal    string `json:"subtotal"`
	Discount    string `json:"discount"`
	CGST        string `json:"cgst"`
	SGST        string `json:"sgst"`
	GrandTotal  string `json:"grand_total"`
	AmountPaid  string `json:"amount_paid"`
	Outstanding string `json:"outstanding"`
}

// ShopResponse is the shop header printed on the invoice
type ShopResponse struct {
	Name         string   `json:"name"`
	AddressLines []string `json:"address_lines"`
	Phone        string   `json:"phone,omitempty"`
	Email        string   `json:"email,omitempty"`
	GSTIN        string   `json:"gstin,omitempty"`
}

// PaymentResponse is one collection against an invoice
type PaymentResponse struct {
	ID            int64     `json:"id"`
	InvoiceID     int64     `json:"invoice_id"`
	Amount        string    `json:"amount"`
	Method        string    `json:"method"`
	Reference     string    `json:"reference,omitempty"`
	DepositorName string    `json:"depositor_name,omitempty"`
	Note          string    `json:"note,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
	BalanceAfter  string    `json:"balance_after"`
}

// LedgerEntryResponse is one row of a customer account
type LedgerEntryResponse struct {
	ID             int64     `json:"id"`
	InvoiceID      int64     `json:"invoice_id"`
	EntryType      string    `json:"entry_type"`
	Debit          string    `json:"debit"`
	Credit         string    `json:"credit"`
	RunningBalance string    `json:"running_balance"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CustomerLedgerResponse is a customer's running account
type CustomerLedgerResponse struct {
	CustomerID int64                 `json:"customer_id"`
	Balance    string                `json:"balance"`
	Entries    []LedgerEntryResponse `json:"entries"`
}

// ArtifactResponse points at an invoice document
type ArtifactResponse struct {
	FileName    string `json:"file_name"`
	Path        string `json:"path"`
	Regenerated bool   `json:"regenerated"`
	Quality     string `json:"quality,omitempty"`
	Layout      string `json:"layout,omitempty"`
	DownloadURL string `json:"download_url"`
}

// =============================================================================
// Converters
// =============================================================================

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toInvoiceResponse(h *invoice.TransactionHeader) InvoiceResponse {
	return InvoiceResponse{
		ID:                h.ID,
		InvoiceNumber:     h.InvoiceNumber,
		CustomerID:        h.CustomerID,
		CustomerName:      h.CustomerName,
		Subtotal:          money(h.Subtotal),
		DiscountAmount:    money(h.DiscountAmount),
		CGST:              money(h.TaxCGST),
		SGST:              money(h.TaxSGST),
		GrandTotal:        money(h.GrandTotal),
		PaymentMethod:     string(h.PaymentMethod),
		PaymentStatus:     string(h.PaymentStatus),
		OutstandingAmount: money(h.OutstandingAmount),
		CashAmount:        money(h.CashAmount),
		SourceLayout:      string(h.SourceLayout),
		CreatedAt:         h.CreatedAt,
	}
}

func toSaleResponse(r *appinvoice.RecordSaleResult) SaleResponse {
	return SaleResponse{
		Invoice:      toInvoiceResponse(r.Header),
		ItemCount:    len(r.Items),
		ArtifactPath: r.ArtifactPath,
		RenderError:  r.RenderError,
	}
}

func toInvoiceViewResponse(v *invoice.InvoiceView) InvoiceViewResponse {
	resp := InvoiceViewResponse{
		ID:             v.TransactionID,
		InvoiceNumber:  v.InvoiceNumber,
		IssuedAt:       v.IssuedAt,
		CustomerName:   v.CustomerName,
		CustomerPhone:  v.CustomerPhone,
		WalkIn:         v.WalkIn,
		Items:          make([]ViewItemResponse, 0, len(v.Items)),
		TaxBreakdown:   make([]TaxLineResponse, 0, len(v.TaxBreakdown)),
		Subtotal:       money(v.Subtotal),
		DiscountAmount: money(v.DiscountAmount),
		CGST:           money(v.TaxCGST),
		SGST:           money(v.TaxSGST),
		GrandTotal:     money(v.GrandTotal),
		DerivedTotal:   money(v.DerivedTotal),
		TotalsMismatch: v.TotalsMismatch,
		PaymentMethod:  string(v.PaymentMethod),
		PaymentStatus:  string(v.PaymentStatus),
		AmountPaid:     money(v.AmountPaid),
		Outstanding:    money(v.OutstandingAmount),
		AmountInWords:  v.AmountInWords,
		Formatted: FormattedResponse{
			Subtotal:    v.Formatted.Subtotal,
			Discount:    v.Formatted.Discount,
			CGST:        v.Formatted.CGST,
			SGST:        v.Formatted.SGST,
			GrandTotal:  v.Formatted.GrandTotal,
			AmountPaid:  v.Formatted.AmountPaid,
			Outstanding: v.Formatted.Outstanding,
		},
		Shop: ShopResponse{
			Name:         v.Shop.Name,
			AddressLines: v.Shop.AddressLines,
			Phone:        v.Shop.Phone,
			Email:        v.Shop.Email,
			GSTIN:        v.Shop.GSTIN,
		},
		Quality:      string(v.Quality),
		SourceLayout: string(v.SourceLayout),
	}
	for _, it := range v.Items {
		resp.Items = append(resp.Items, ViewItemResponse{
			Index:       it.Index,
			Name:        it.Name,
			HSNCode:     it.HSNCode,
			Quantity:    it.Quantity.String(),
			UnitPrice:   money(it.UnitPrice),
			DiscountPct: it.DiscountPct.String(),
			TaxRate:     it.TaxRate.String(),
			LineTotal:   money(it.LineTotal),
		})
	}
	for _, tl := range v.TaxBreakdown {
		resp.TaxBreakdown = append(resp.TaxBreakdown, TaxLineResponse{
			Rate:    tl.Rate.String(),
			Taxable: money(tl.Taxable),
			CGST:    money(tl.CGST),
			SGST:    money(tl.SGST),
		})
	}
	return resp
}

func toPaymentResponse(p *invoice.PaymentEvent) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		InvoiceID:     p.TransactionID,
		Amount:        money(p.Amount),
		Method:        string(p.Method),
		Reference:     p.Reference,
		DepositorName: p.DepositorName,
		Note:          p.Note,
		PaidAt:        p.PaidAt,
		BalanceAfter:  money(p.BalanceAfter),
	}
}

func toPaymentResponses(events []invoice.PaymentEvent) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(events))
	for i := range events {
		out = append(out, toPaymentResponse(&events[i]))
	}
	return out
}

func toCustomerLedgerResponse(s *appinvoice.CustomerStatement) CustomerLedgerResponse {
	resp := CustomerLedgerResponse{
		CustomerID: s.CustomerID,
		Balance:    money(s.Balance),
		Entries:    make([]LedgerEntryResponse, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		resp.Entries = append(resp.Entries, LedgerEntryResponse{
			ID:             e.ID,
			InvoiceID:      e.TransactionID,
			EntryType:      string(e.EntryType),
			Debit:          money(e.Debit),
			Credit:         money(e.Credit),
			RunningBalance: money(e.RunningBalance),
			Description:    e.Description,
			CreatedAt:      e.CreatedAt,
		})
	}
	return resp
}

func toArtifactResponse(path, downloadURL string, regenerated bool, quality invoice.ResolutionQuality, layout invoice.SourceLayout) ArtifactResponse {
	return ArtifactResponse{
		FileName:    filepath.Base(path),
		Path:        path,
		Regenerated: regenerated,
		Quality:     string(quality),
		Layout:      string(layout),
		DownloadURL: downloadURL,
	}
}
