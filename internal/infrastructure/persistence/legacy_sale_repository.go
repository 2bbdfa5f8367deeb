package persistence

import (
	"context"
	"fmt"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLegacySaleRepository implements invoice.LegacySaleRepository over the
// sales table. Column names are introspected on every read since old
// databases disagree on them.
type GormLegacySaleRepository struct {
	db *gorm.DB
}

// NewGormLegacySaleRepository creates a new GormLegacySaleRepository
func NewGormLegacySaleRepository(db *gorm.DB) *GormLegacySaleRepository {
	return &GormLegacySaleRepository{db: db}
}

// FindByID maps the legacy sale with the given ID onto a canonical header
func (r *GormLegacySaleRepository) FindByID(ctx context.Context, id int64) (*invoice.TransactionHeader, error) {
	return findLegacyHeader(ctx, r.db, id)
}

func findLegacyHeader(ctx context.Context, db *gorm.DB, id int64) (*invoice.TransactionHeader, error) {
	cols, err := loadColumns(ctx, db, "sales")
	if err != nil {
		return nil, err
	}
	if !cols["id"] {
		return nil, invoice.ErrInvoiceNotFound(id)
	}

	var rows []map[string]any
	if err := db.WithContext(ctx).Table("sales").Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read legacy sale: %w", err)
	}
	if len(rows) == 0 {
		return nil, invoice.ErrInvoiceNotFound(id)
	}
	return mapLegacySale(id, rows[0], cols), nil
}

// mapLegacySale builds a header from whatever subset of the known legacy
// columns the row carries. Missing totals are derived from the ones present.
func mapLegacySale(id int64, row map[string]any, cols columnSet) *invoice.TransactionHeader {
	h := &invoice.TransactionHeader{
		ID:           id,
		SourceLayout: invoice.LayoutLegacy,
	}

	h.InvoiceNumber = rowString(row, cols.pick("invoice_no", "invoice_number", "bill_no"))
	if h.InvoiceNumber == "" {
		h.InvoiceNumber = fmt.Sprintf("SALE-%d", id)
	}
	if cid, ok := rowInt64(row, cols.pick("customer_id")); ok && cid > 0 {
		h.CustomerID = &cid
	}
	h.CustomerName = rowString(row, cols.pick("customer_name", "customer"))
	h.CustomerPhone = rowString(row, cols.pick("customer_phone", "phone", "mobile"))
	h.ArtifactPath = rowString(row, cols.pick("pdf_path", "invoice_path", "artifact_path"))
	h.Notes = rowString(row, cols.pick("notes", "remarks"))
	if t, ok := rowTime(row, cols.pick("created_at", "sale_date", "invoice_date", "date")); ok {
		h.CreatedAt = t
	}

	subtotal, hasSubtotal := rowDecimal(row, cols.pick("subtotal", "sub_total", "total_amount", "gross_amount"))
	h.DiscountAmount, _ = rowDecimal(row, cols.pick("discount_amount", "discount"))

	cgst, hasCGST := rowDecimal(row, cols.pick("cgst_amount", "cgst", "tax_cgst"))
	sgst, hasSGST := rowDecimal(row, cols.pick("sgst_amount", "sgst", "tax_sgst"))
	if hasCGST || hasSGST {
		h.TaxCGST, h.TaxSGST = cgst, sgst
	} else if tax, ok := rowDecimal(row, cols.pick("tax_amount", "gst_amount", "tax")); ok {
		h.TaxCGST, h.TaxSGST = valueobject.SplitGST(tax)
	}

	grand, hasGrand := rowDecimal(row, cols.pick("grand_total", "net_amount", "net_total", "final_amount", "total"))
	switch {
	case hasGrand && hasSubtotal:
	case hasGrand:
		subtotal = grand.Add(h.DiscountAmount).Sub(h.TotalTax())
	case hasSubtotal:
		grand = subtotal.Sub(h.DiscountAmount).Add(h.TotalTax())
	}
	h.Subtotal = valueobject.RoundMoney(subtotal)
	h.GrandTotal = valueobject.RoundMoney(grand)
	h.DiscountAmount = valueobject.RoundMoney(h.DiscountAmount)

	h.PaymentMethod = invoice.ParsePaymentMethod(rowString(row, cols.pick("payment_method", "payment_mode", "payment_type")))

	paid, hasPaid := rowDecimal(row, cols.pick("paid_amount", "amount_paid", "cash_amount"))
	balance, hasBalance := rowDecimal(row, cols.pick("balance_due", "outstanding_amount", "credit_amount", "due_amount"))
	switch {
	case hasBalance:
	case hasPaid:
		balance = h.GrandTotal.Sub(paid)
	case h.PaymentMethod == invoice.PaymentMethodCredit:
		balance = h.GrandTotal
	default:
		balance = decimal.Zero
	}
	balance = valueobject.RoundMoney(decimal.Max(decimal.Zero, decimal.Min(balance, h.GrandTotal)))
	h.OutstandingAmount = balance

	switch h.PaymentMethod {
	case invoice.PaymentMethodCredit:
		h.CashAmount = decimal.Zero
	case invoice.PaymentMethodSplit:
		if hasPaid {
			h.CashAmount = valueobject.RoundMoney(paid)
		} else {
			h.CashAmount = h.GrandTotal.Sub(balance)
		}
	default:
		h.CashAmount = h.GrandTotal
	}

	// older releases wrote free-text statuses that drifted from the
	// balance; the balance is authoritative
	switch {
	case !balance.IsPositive():
		h.PaymentStatus = invoice.PaymentStatusPaid
	case balance.GreaterThanOrEqual(h.GrandTotal):
		h.PaymentStatus = invoice.PaymentStatusUnpaid
	default:
		h.PaymentStatus = invoice.PaymentStatusPartiallyPaid
	}
	return h
}
