package invoice

import (
	"fmt"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ErrInvoiceNotFound reports that no header exists in either layout
func ErrInvoiceNotFound(id int64) error {
	return shared.NewNotFoundError("NOT_FOUND", fmt.Sprintf("Invoice %d not found", id))
}

// ErrCustomerNotFound reports an unknown customer account
func ErrCustomerNotFound(id int64) error {
	return shared.NewNotFoundError("NOT_FOUND", fmt.Sprintf("Customer %d not found", id))
}

// ErrNotCreditInvoice reports an attempt to collect against a sale with nothing on credit
func ErrNotCreditInvoice(method PaymentMethod) error {
	return shared.NewConflictError("NOT_CREDIT_INVOICE",
		fmt.Sprintf("Invoice paid by %s has no credit balance to collect", method))
}

// ErrAlreadySettled reports an attempt to collect against a settled invoice
func ErrAlreadySettled(status PaymentStatus) error {
	return shared.NewConflictError("INVALID_STATE",
		fmt.Sprintf("Cannot collect payment on an invoice in %s status", status))
}

// ErrInvalidAmount reports a zero or negative collection
func ErrInvalidAmount() error {
	return shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
}

// ErrExceedsOutstanding reports a collection larger than the balance owed
func ErrExceedsOutstanding(amount, outstanding decimal.Decimal) error {
	return shared.NewValidationError("EXCEEDS_OUTSTANDING",
		fmt.Sprintf("Payment amount %s exceeds outstanding amount %s", amount.StringFixed(2), outstanding.StringFixed(2)))
}

// ErrReferenceRequired reports a non-cash collection without a reference
func ErrReferenceRequired(method PaymentMethod) error {
	return shared.NewValidationError("REFERENCE_REQUIRED",
		fmt.Sprintf("A reference is required for %s payments", method))
}

// ErrInvalidDate reports a missing or future payment date
func ErrInvalidDate(reason string) error {
	return shared.NewValidationError("INVALID_DATE", "Invalid payment date: "+reason)
}

// ErrNoItems reports that a document cannot be rebuilt because no items survive
func ErrNoItems(id int64) error {
	return shared.NewIrrecoverableError("NO_ITEMS",
		fmt.Sprintf("No line items could be found for invoice %d; the document cannot be rebuilt", id))
}
