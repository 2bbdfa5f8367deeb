package invoice

import (
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TransactionHeader is the canonical invoice header, whichever layout it was
// stored in
type TransactionHeader struct {
	ID                int64
	InvoiceNumber     string
	CustomerID        *int64
	CustomerName      string
	CustomerPhone     string
	Subtotal          decimal.Decimal
	DiscountAmount    decimal.Decimal
	TaxCGST           decimal.Decimal
	TaxSGST           decimal.Decimal
	GrandTotal        decimal.Decimal
	PaymentMethod     PaymentMethod
	PaymentStatus     PaymentStatus
	OutstandingAmount decimal.Decimal
	// CashAmount is what was collected at the counter when the sale was made
	CashAmount   decimal.Decimal
	Notes        string
	CreatedAt    time.Time
	ArtifactPath string
	SourceLayout SourceLayout
}

// IsWalkIn reports whether the sale has no customer account
func (h *TransactionHeader) IsWalkIn() bool {
	return h.CustomerID == nil
}

// TotalTax returns CGST + SGST
func (h *TransactionHeader) TotalTax() decimal.Decimal {
	return h.TaxCGST.Add(h.TaxSGST)
}

// ExpectedGrandTotal re-derives the total from its components
func (h *TransactionHeader) ExpectedGrandTotal() decimal.Decimal {
	return valueobject.RoundMoney(h.Subtotal.Sub(h.DiscountAmount).Add(h.TotalTax()))
}

// CreditComponent is the part of the grand total not collected at sale time
func (h *TransactionHeader) CreditComponent() decimal.Decimal {
	switch h.PaymentMethod {
	case PaymentMethodCredit:
		return h.GrandTotal
	case PaymentMethodSplit:
		c := h.GrandTotal.Sub(h.CashAmount)
		if c.IsNegative() {
			return decimal.Zero
		}
		return c
	default:
		return decimal.Zero
	}
}

// PermitsCollection reports whether the invoice was sold on credit at all
func (h *TransactionHeader) PermitsCollection() bool {
	return h.PaymentMethod.ExtendsCredit() && h.CreditComponent().IsPositive()
}

// PaidAmount is the total received so far
func (h *TransactionHeader) PaidAmount() decimal.Decimal {
	return h.GrandTotal.Sub(h.OutstandingAmount)
}

// Validate checks the header's arithmetic and status invariants
func (h *TransactionHeader) Validate() error {
	if h.InvoiceNumber == "" {
		return shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number is required")
	}
	if !h.PaymentMethod.IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method %q", h.PaymentMethod))
	}
	if !h.PaymentStatus.IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_STATUS", fmt.Sprintf("Unknown payment status %q", h.PaymentStatus))
	}
	if !valueobject.WithinTolerance(h.GrandTotal, h.ExpectedGrandTotal()) {
		return shared.NewValidationError("TOTAL_MISMATCH",
			fmt.Sprintf("Grand total %s does not equal subtotal - discount + tax (%s)",
				h.GrandTotal.StringFixed(2), h.ExpectedGrandTotal().StringFixed(2)))
	}
	if h.PaymentStatus == PaymentStatusPaid && !h.OutstandingAmount.IsZero() {
		return shared.NewValidationError("INVALID_OUTSTANDING", "A paid invoice cannot have an outstanding balance")
	}
	if h.OutstandingAmount.IsNegative() || h.OutstandingAmount.GreaterThan(h.GrandTotal) {
		return shared.NewValidationError("INVALID_OUTSTANDING", "Outstanding balance must be between zero and the grand total")
	}
	return nil
}

// ApplyPayment pays down the outstanding balance by amount and moves the
// invoice to PARTIALLY_PAID or PAID. The header is left untouched on error.
// Returns the amount actually applied, rounded to paise.
func (h *TransactionHeader) ApplyPayment(amount decimal.Decimal) (decimal.Decimal, error) {
	if !h.PermitsCollection() {
		return decimal.Zero, ErrNotCreditInvoice(h.PaymentMethod)
	}
	if !h.PaymentStatus.CanApplyPayment() {
		return decimal.Zero, ErrAlreadySettled(h.PaymentStatus)
	}
	amount = valueobject.RoundMoney(amount)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount()
	}
	if amount.GreaterThan(h.OutstandingAmount) {
		return decimal.Zero, ErrExceedsOutstanding(amount, h.OutstandingAmount)
	}

	remaining := valueobject.RoundMoney(h.OutstandingAmount.Sub(amount))
	if remaining.IsPositive() {
		h.OutstandingAmount = remaining
		h.PaymentStatus = PaymentStatusPartiallyPaid
	} else {
		h.OutstandingAmount = decimal.Zero
		h.PaymentStatus = PaymentStatusPaid
	}
	return amount, nil
}

// DeriveSettlement sets status and outstanding from the method, grand total
// and the amount collected at the counter
func (h *TransactionHeader) DeriveSettlement() {
	switch h.PaymentMethod {
	case PaymentMethodCredit:
		h.CashAmount = decimal.Zero
		h.OutstandingAmount = h.GrandTotal
	case PaymentMethodSplit:
		h.OutstandingAmount = h.CreditComponent()
	default:
		h.CashAmount = h.GrandTotal
		h.OutstandingAmount = decimal.Zero
	}

	switch {
	case !h.OutstandingAmount.IsPositive():
		h.OutstandingAmount = decimal.Zero
		h.PaymentStatus = PaymentStatusPaid
	case h.OutstandingAmount.Equal(h.GrandTotal):
		h.PaymentStatus = PaymentStatusUnpaid
	default:
		h.PaymentStatus = PaymentStatusPartiallyPaid
	}
}
