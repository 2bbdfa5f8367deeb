package invoice

import (
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// SaleDraft is a completed basket as handed over by the till
type SaleDraft struct {
	InvoiceNumber   string
	CustomerID      *int64
	CustomerName    string
	CustomerPhone   string
	Items           []LineItem
	Discount        decimal.Decimal
	DiscountPercent bool
	// TaxInclusive means item prices already include GST
	TaxInclusive  bool
	PaymentMethod PaymentMethod
	// CashAmount is the amount collected at the counter for SPLIT sales
	CashAmount decimal.Decimal
	Notes      string
	CreatedAt  time.Time
}

// BuildSale validates draft and computes the header totals and settlement.
// Stored line totals and tax amounts on the items take precedence over
// recomputed ones.
func BuildSale(draft SaleDraft) (*TransactionHeader, error) {
	if len(draft.Items) == 0 {
		return nil, shared.NewValidationError("EMPTY_SALE", "A sale must contain at least one item")
	}
	if !draft.PaymentMethod.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method %q", draft.PaymentMethod))
	}
	if draft.CashAmount.IsNegative() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Cash amount cannot be negative")
	}

	subtotal, tax := decimal.Zero, decimal.Zero
	for i, it := range draft.Items {
		if !it.Quantity.IsPositive() {
			return nil, shared.NewValidationError("INVALID_QUANTITY", fmt.Sprintf("Item %d: quantity must be positive", i+1))
		}
		if it.UnitPrice.IsNegative() {
			return nil, shared.NewValidationError("INVALID_PRICE", fmt.Sprintf("Item %d: price cannot be negative", i+1))
		}
		taxable, lineTax := lineTaxParts(it, draft.TaxInclusive)
		subtotal = subtotal.Add(taxable)
		tax = tax.Add(lineTax)
	}
	subtotal = valueobject.RoundMoney(subtotal)

	discount, _ := valueobject.CalculateDiscount(subtotal, draft.Discount, draft.DiscountPercent)
	cgst, sgst := valueobject.SplitGST(tax)

	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	h := &TransactionHeader{
		InvoiceNumber:  draft.InvoiceNumber,
		CustomerID:     draft.CustomerID,
		CustomerName:   draft.CustomerName,
		CustomerPhone:  draft.CustomerPhone,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxCGST:        cgst,
		TaxSGST:        sgst,
		PaymentMethod:  draft.PaymentMethod,
		CashAmount:     valueobject.RoundMoney(draft.CashAmount),
		Notes:          draft.Notes,
		CreatedAt:      createdAt,
		SourceLayout:   LayoutCurrent,
	}
	h.GrandTotal = h.ExpectedGrandTotal()
	if h.PaymentMethod == PaymentMethodSplit && h.CashAmount.GreaterThan(h.GrandTotal) {
		h.CashAmount = h.GrandTotal
	}
	h.DeriveSettlement()

	if h.OutstandingAmount.IsPositive() && h.IsWalkIn() {
		return nil, shared.NewValidationError("CUSTOMER_REQUIRED", "Sales on credit require a customer account")
	}
	return h, nil
}

// lineTaxParts returns the line's taxable value and tax
func lineTaxParts(it LineItem, inclusive bool) (taxable, tax decimal.Decimal) {
	total := it.LineTotal()
	if !it.TaxAmount.IsZero() {
		if inclusive {
			return total.Sub(it.TaxAmount), it.TaxAmount
		}
		return total, it.TaxAmount
	}
	taxable, tax, _ = valueobject.CalculateGST(total, it.TaxRate, inclusive)
	return taxable, tax
}

// InitialPayment returns the payment event for the money collected at the
// counter, or nil when nothing was collected
func InitialPayment(h *TransactionHeader) *PaymentEvent {
	collected := h.CashAmount
	if !collected.IsPositive() {
		return nil
	}
	return &PaymentEvent{
		TransactionID: h.ID,
		Amount:        collected,
		Method:        counterMethod(h.PaymentMethod),
		Note:          "Collected at sale",
		PaidAt:        h.CreatedAt,
		BalanceAfter:  h.OutstandingAmount,
	}
}

// SaleCreditEntry returns the ledger entry for credit extended by the sale,
// or nil for walk-in or fully paid sales
func SaleCreditEntry(h *TransactionHeader) *LedgerEntry {
	if h.IsWalkIn() || !h.OutstandingAmount.IsPositive() {
		return nil
	}
	return &LedgerEntry{
		CustomerID:    *h.CustomerID,
		TransactionID: h.ID,
		EntryType:     LedgerEntrySaleCredit,
		Debit:         h.OutstandingAmount,
		Credit:        decimal.Zero,
		Description:   "Credit sale " + h.InvoiceNumber,
		CreatedAt:     h.CreatedAt,
	}
}

func counterMethod(m PaymentMethod) PaymentMethod {
	if m == PaymentMethodSplit {
		return PaymentMethodCash
	}
	return m
}
