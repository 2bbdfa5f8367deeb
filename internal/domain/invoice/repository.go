package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// HeaderRepository reads invoice headers stored in the current layout
type HeaderRepository interface {
	// FindByID returns the header or a NotFound error
	FindByID(ctx context.Context, id int64) (*TransactionHeader, error)

	// ListByCustomer returns a customer's invoices, newest first unless the
	// filter orders them otherwise
	ListByCustomer(ctx context.Context, customerID int64, filter ListFilter) ([]TransactionHeader, error)
}

// ListFilter limits and orders a header listing. Unknown sort fields fall
// back to the creation time.
type ListFilter struct {
	Limit     int
	SortBy    string
	SortOrder string
}

// LegacySaleRepository reads headers from the legacy sales layout and maps
// them onto the canonical header
type LegacySaleRepository interface {
	// FindByID returns the mapped header or a NotFound error
	FindByID(ctx context.Context, id int64) (*TransactionHeader, error)
}

// ItemSource is one storage layout that may hold a transaction's items
type ItemSource interface {
	// Layout identifies the layout this source reads
	Layout() SourceLayout

	// Open starts a resolution session. Implementations inspect the table's
	// columns once per session. Open never fails on missing columns; a
	// session over an unusable table simply finds nothing.
	Open(ctx context.Context) ItemSession
}

// ItemSession reads items for any number of transactions using the column
// mapping captured when it was opened
type ItemSession interface {
	// Exists reports whether the layout holds a parent row for id
	Exists(ctx context.Context, id int64) (bool, error)

	// Items returns the id's items, or nothing if the layout has none
	Items(ctx context.Context, id int64) ([]LineItem, error)
}

// RawRow is an unclassified item row keyed by column name
type RawRow map[string]any

// RawItemSource dumps every row that looks like it belongs to a transaction,
// without interpreting columns
type RawItemSource interface {
	DumpRows(ctx context.Context, id int64) ([]RawRow, error)
}

// PaymentRepository reads the append-only payment and ledger history
type PaymentRepository interface {
	ListPayments(ctx context.Context, transactionID int64) ([]PaymentEvent, error)
	ListLedgerEntries(ctx context.Context, customerID int64) ([]LedgerEntry, error)
	CustomerBalance(ctx context.Context, customerID int64) (decimal.Decimal, error)
	CustomerExists(ctx context.Context, customerID int64) (bool, error)
}

// SettingsRepository reads shop settings stored as key/value rows
type SettingsRepository interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
}

// TxStore is the write surface available inside one unit of work. Every
// method runs on the same transaction.
type TxStore interface {
	// LockHeader loads the current-layout header and locks its row until
	// the transaction ends. Returns a NotFound error when absent.
	LockHeader(ctx context.Context, id int64) (*TransactionHeader, error)

	// FindLegacyHeader reads the legacy sales row for id
	FindLegacyHeader(ctx context.Context, id int64) (*TransactionHeader, error)

	// CreateHeader inserts h. A zero h.ID is replaced by a fresh ID that is
	// unused in both layouts; a non-zero ID is kept.
	CreateHeader(ctx context.Context, h *TransactionHeader) error

	// CreateItems inserts items under transactionID in the current layout
	CreateItems(ctx context.Context, transactionID int64, items []LineItem) error

	// UpdateSettlement persists status and outstanding amount
	UpdateSettlement(ctx context.Context, h *TransactionHeader) error

	// UpdateArtifactPath persists the rendered document's path
	UpdateArtifactPath(ctx context.Context, id int64, path string) error

	// AppendPayment inserts a payment event
	AppendPayment(ctx context.Context, e *PaymentEvent) error

	// AppendLedgerEntry inserts e after computing its running balance from
	// the customer's previous entry
	AppendLedgerEntry(ctx context.Context, e *LedgerEntry) error

	// CustomerExists reports whether a customer account exists
	CustomerExists(ctx context.Context, id int64) (bool, error)

	// InvoiceNumberTaken reports whether an invoice number is already used
	InvoiceNumberTaken(ctx context.Context, number string) (bool, error)

	// CountIssuedOn counts current-layout invoices created on day's calendar date
	CountIssuedOn(ctx context.Context, day time.Time) (int64, error)
}

// UnitOfWork runs a function inside a database transaction. The function's
// writes commit together or not at all.
type UnitOfWork interface {
	// Run uses the store's default isolation
	Run(ctx context.Context, fn func(tx TxStore) error) error

	// Serializable uses serializable isolation and retries the whole
	// function when the database aborts it for a serialization conflict
	Serializable(ctx context.Context, fn func(tx TxStore) error) error
}
