package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEvent is an immutable record of money received against an invoice
type PaymentEvent struct {
	ID            int64
	TransactionID int64
	Amount        decimal.Decimal
	Method        PaymentMethod
	Reference     string
	DepositorName string
	Note          string
	PaidAt        time.Time
	// BalanceAfter is the invoice's outstanding amount once this payment applied
	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
}

// LedgerEntryType classifies a customer ledger row
type LedgerEntryType string

const (
	// LedgerEntrySaleCredit records credit extended when a sale is made
	LedgerEntrySaleCredit LedgerEntryType = "SALE_CREDIT"
	// LedgerEntryCreditPayment records a collection against earlier credit
	LedgerEntryCreditPayment LedgerEntryType = "CREDIT_PAYMENT"
)

// LedgerEntry is one row of a customer's running account. Debit increases
// what the customer owes, Credit decreases it.
type LedgerEntry struct {
	ID             int64
	CustomerID     int64
	TransactionID  int64
	EntryType      LedgerEntryType
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	RunningBalance decimal.Decimal
	Description    string
	CreatedAt      time.Time
}

// Apply sets RunningBalance from the previous balance
func (e *LedgerEntry) Apply(previous decimal.Decimal) {
	e.RunningBalance = previous.Add(e.Debit).Sub(e.Credit)
}
