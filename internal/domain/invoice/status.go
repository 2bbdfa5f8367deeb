package invoice

import "strings"

// PaymentMethod is how the customer settled, or agreed to settle, a sale
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodUPI    PaymentMethod = "UPI"
	PaymentMethodCredit PaymentMethod = "CREDIT"
	PaymentMethodSplit  PaymentMethod = "SPLIT"
	PaymentMethodCheque PaymentMethod = "CHEQUE"
)

// ParsePaymentMethod normalizes free-text method names found in older rows
// ("cash", "Credit", "upi/gpay"). Unknown values map to CASH.
func ParsePaymentMethod(s string) PaymentMethod {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case v == "":
		return PaymentMethodCash
	case strings.HasPrefix(v, "UPI"), v == "GPAY", v == "PHONEPE", v == "PAYTM":
		return PaymentMethodUPI
	case strings.HasPrefix(v, "CREDIT"), v == "UDHAAR", v == "KHATA":
		return PaymentMethodCredit
	case v == "SPLIT", v == "MIXED", v == "PARTIAL":
		return PaymentMethodSplit
	case strings.HasPrefix(v, "CHEQUE"), strings.HasPrefix(v, "CHECK"):
		return PaymentMethodCheque
	default:
		return PaymentMethodCash
	}
}

// IsValid reports whether m is a known method
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodCredit, PaymentMethodSplit, PaymentMethodCheque:
		return true
	}
	return false
}

// ExtendsCredit reports whether a sale with this method may leave a balance owing
func (m PaymentMethod) ExtendsCredit() bool {
	return m == PaymentMethodCredit || m == PaymentMethodSplit
}

// IsCollectionMethod reports whether m may be used to pay down an outstanding balance
func (m PaymentMethod) IsCollectionMethod() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodCheque:
		return true
	}
	return false
}

// RequiresReference reports whether a collection by m needs a transaction or cheque reference
func (m PaymentMethod) RequiresReference() bool {
	return m != PaymentMethodCash
}

// PaymentStatus is the settlement state of an invoice
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentStatusPaid          PaymentStatus = "PAID"
)

// ParsePaymentStatus maps stored status text onto a PaymentStatus. Blank
// status is returned as "" so the caller can derive it from the balance.
func ParsePaymentStatus(s string) PaymentStatus {
	switch v := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_"); v {
	case "PAID", "COMPLETED", "SETTLED":
		return PaymentStatusPaid
	case "PARTIALLY_PAID", "PARTIAL":
		return PaymentStatusPartiallyPaid
	case "UNPAID", "PENDING", "DUE":
		return PaymentStatusUnpaid
	default:
		return ""
	}
}

// IsValid reports whether s is a known status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartiallyPaid, PaymentStatusPaid:
		return true
	}
	return false
}

// IsTerminal reports whether no further payments can be collected
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid
}

// CanApplyPayment reports whether a collection may be applied in this status
func (s PaymentStatus) CanApplyPayment() bool {
	return s == PaymentStatusUnpaid || s == PaymentStatusPartiallyPaid
}

// SourceLayout identifies which storage layout a header was read from
type SourceLayout string

const (
	// LayoutCurrent is the invoices / invoice_items layout
	LayoutCurrent SourceLayout = "CURRENT"
	// LayoutLegacy is the sales / sale_items layout written by older releases
	LayoutLegacy SourceLayout = "LEGACY"
	// LayoutBestEffort marks items recovered from unclassified raw rows
	LayoutBestEffort SourceLayout = "BEST_EFFORT"
)
