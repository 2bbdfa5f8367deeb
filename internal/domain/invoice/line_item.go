package invoice

import (
	"strconv"
	"time"

	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItem is one product line of an invoice
type LineItem struct {
	ProductID   int64
	Name        string
	HSNCode     string
	UnitPrice   decimal.Decimal
	Quantity    decimal.Decimal
	DiscountPct decimal.Decimal
	TaxRate     decimal.Decimal
	TaxAmount   decimal.Decimal
	// StoredTotal is the line total as written at sale time, when the layout has one
	StoredTotal *decimal.Decimal
	BatchNo     string
	ExpiryDate  *time.Time
}

// ComputedTotal is UnitPrice × Quantity less the line discount, rounded to paise
func (li LineItem) ComputedTotal() decimal.Decimal {
	gross := li.UnitPrice.Mul(li.Quantity)
	_, net := valueobject.CalculateDiscount(gross, li.DiscountPct, true)
	if gross.IsNegative() {
		return valueobject.RoundMoney(gross)
	}
	return net
}

// LineTotal returns the stored total when present, else the computed one
func (li LineItem) LineTotal() decimal.Decimal {
	if li.StoredTotal != nil {
		return *li.StoredTotal
	}
	return li.ComputedTotal()
}

// DisplayName returns Name, or a placeholder derived from the product ID
func (li LineItem) DisplayName() string {
	if li.Name != "" {
		return li.Name
	}
	return "Item " + strconv.FormatInt(li.ProductID, 10)
}

// ItemsSubtotal sums LineTotal over items
func ItemsSubtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return valueobject.RoundMoney(sum)
}

// ItemsTax sums the per-line tax. Lines without a stored tax amount are
// taxed exclusively at their rate.
func ItemsTax(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if !it.TaxAmount.IsZero() {
			sum = sum.Add(it.TaxAmount)
			continue
		}
		_, tax, _ := valueobject.CalculateGST(it.LineTotal(), it.TaxRate, false)
		sum = sum.Add(tax)
	}
	return valueobject.RoundMoney(sum)
}
