package invoice

import (
	"sort"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ViewAssembler combines a header, its resolved items and a shop snapshot
// into a display-ready InvoiceView. Payment history is never part of the view.
type ViewAssembler struct {
	logger *zap.Logger
}

// NewViewAssembler creates an assembler
func NewViewAssembler(logger *zap.Logger) *ViewAssembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewAssembler{logger: logger}
}

// Assemble builds the view. The header's amounts are what the customer was
// charged and always win over totals re-derived from the items.
func (a *ViewAssembler) Assemble(h *invoice.TransactionHeader, res invoice.ItemResolution, shop invoice.ShopInfo) *invoice.InvoiceView {
	symbol := shop.CurrencySymbol
	if symbol == "" {
		symbol = valueobject.DefaultSymbol
	}
	money := func(d decimal.Decimal) string {
		return valueobject.FormatCurrency(d, symbol, 2)
	}

	v := &invoice.InvoiceView{
		TransactionID:     h.ID,
		InvoiceNumber:     h.InvoiceNumber,
		IssuedAt:          h.CreatedAt,
		CustomerName:      h.CustomerName,
		CustomerPhone:     h.CustomerPhone,
		WalkIn:            h.IsWalkIn(),
		Subtotal:          h.Subtotal,
		DiscountAmount:    h.DiscountAmount,
		TaxCGST:           h.TaxCGST,
		TaxSGST:           h.TaxSGST,
		GrandTotal:        h.GrandTotal,
		PaymentMethod:     h.PaymentMethod,
		PaymentStatus:     h.PaymentStatus,
		OutstandingAmount: h.OutstandingAmount,
		Shop:              shop,
		Quality:           res.Quality,
		SourceLayout:      h.SourceLayout,
		ArtifactPath:      h.ArtifactPath,
	}
	if v.CustomerName == "" && v.WalkIn {
		v.CustomerName = "Walk-in Customer"
	}

	for i, it := range res.Items {
		total := it.LineTotal()
		v.Items = append(v.Items, invoice.ViewItem{
			Index:         i + 1,
			Name:          it.DisplayName(),
			HSNCode:       it.HSNCode,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			DiscountPct:   it.DiscountPct,
			TaxRate:       it.TaxRate,
			LineTotal:     total,
			QuantityText:  it.Quantity.String(),
			UnitPriceText: money(it.UnitPrice),
			LineTotalText: money(total),
		})
	}

	if len(res.Items) > 0 {
		a.reconcile(v, h, res.Items)
	}
	v.TaxBreakdown = taxBreakdown(res.Items, money)
	v.AmountPaid = valueobject.RoundMoney(v.GrandTotal.Sub(v.OutstandingAmount))
	v.AmountInWords = valueobject.NumberToWords(v.GrandTotal)
	v.Formatted = invoice.FormattedTotals{
		Subtotal:    money(v.Subtotal),
		Discount:    money(v.DiscountAmount),
		CGST:        money(v.TaxCGST),
		SGST:        money(v.TaxSGST),
		GrandTotal:  money(v.GrandTotal),
		AmountPaid:  money(v.AmountPaid),
		Outstanding: money(v.OutstandingAmount),
	}
	return v
}

// reconcile re-derives subtotal and tax from the items and compares the
// header's grand total with what they add up to. Line totals may or may not
// already include GST, so both readings are tried. The displayed grand total
// stays the header's; a header with no amounts at all takes the derived figures.
func (a *ViewAssembler) reconcile(v *invoice.InvoiceView, h *invoice.TransactionHeader, items []invoice.LineItem) {
	itemsTotal := invoice.ItemsSubtotal(items)
	itemsTax := invoice.ItemsTax(items)
	exclusive := valueobject.RoundMoney(itemsTotal.Sub(h.DiscountAmount).Add(itemsTax))
	inclusive := valueobject.RoundMoney(itemsTotal.Sub(h.DiscountAmount))

	v.TaxCGST, v.TaxSGST = valueobject.SplitGST(itemsTax)
	v.Subtotal = itemsTotal

	if h.GrandTotal.IsZero() && h.Subtotal.IsZero() {
		v.GrandTotal = exclusive
		v.DerivedTotal = exclusive
		return
	}

	switch {
	case valueobject.WithinTolerance(exclusive, h.GrandTotal):
		v.DerivedTotal = exclusive
	case valueobject.WithinTolerance(inclusive, h.GrandTotal):
		v.DerivedTotal = inclusive
	default:
		v.DerivedTotal = exclusive
		v.TotalsMismatch = true
	}
	// tax-inclusive lines carry their tax inside the line total
	switch taxable := valueobject.RoundMoney(itemsTotal.Sub(itemsTax)); {
	case valueobject.WithinTolerance(itemsTotal, h.Subtotal):
	case valueobject.WithinTolerance(taxable, h.Subtotal):
		v.Subtotal = taxable
	default:
		v.TotalsMismatch = true
	}
	v.GrandTotal = h.GrandTotal

	if v.TotalsMismatch {
		a.logger.Warn("invoice items do not add up to the header total",
			zap.Int64("invoice_id", h.ID),
			zap.String("header_subtotal", h.Subtotal.StringFixed(2)),
			zap.String("items_subtotal", itemsTotal.StringFixed(2)),
			zap.String("header_total", h.GrandTotal.StringFixed(2)),
			zap.String("items_total", exclusive.StringFixed(2)),
		)
	}
}

// taxBreakdown groups taxable value and tax by GST rate, lowest rate first
func taxBreakdown(items []invoice.LineItem, money func(decimal.Decimal) string) []invoice.TaxLine {
	byRate := map[string]*invoice.TaxLine{}
	var keys []string

	for _, it := range items {
		if !it.TaxRate.IsPositive() && it.TaxAmount.IsZero() {
			continue
		}
		taxable := it.LineTotal()
		tax := it.TaxAmount
		if tax.IsZero() {
			_, tax, _ = valueobject.CalculateGST(taxable, it.TaxRate, false)
		}
		cgst, sgst := valueobject.SplitGST(tax)

		key := it.TaxRate.String()
		line, ok := byRate[key]
		if !ok {
			line = &invoice.TaxLine{Rate: it.TaxRate}
			byRate[key] = line
			keys = append(keys, key)
		}
		line.Taxable = line.Taxable.Add(taxable)
		line.CGST = line.CGST.Add(cgst)
		line.SGST = line.SGST.Add(sgst)
	}

	sort.Slice(keys, func(i, j int) bool {
		return byRate[keys[i]].Rate.LessThan(byRate[keys[j]].Rate)
	})

	out := make([]invoice.TaxLine, 0, len(keys))
	for _, k := range keys {
		line := byRate[k]
		line.TaxableText = money(line.Taxable)
		line.CGSTText = money(line.CGST)
		line.SGSTText = money(line.SGST)
		out = append(out, *line)
	}
	return out
}
