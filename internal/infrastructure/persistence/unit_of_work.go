package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultRetryBackoff = 20 * time.Millisecond

// PostgreSQL SQLSTATEs that mean "run the transaction again"
var retryableSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"23505": true, // unique_violation, from two writers allocating the same ID
}

// GormUnitOfWork implements invoice.UnitOfWork on a GORM connection
type GormUnitOfWork struct {
	db         *gorm.DB
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewGormUnitOfWork creates a unit of work that retries serializable
// transactions up to maxRetries times
func NewGormUnitOfWork(db *gorm.DB, maxRetries int, l *zap.Logger) *GormUnitOfWork {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GormUnitOfWork{
		db:         db,
		maxRetries: maxRetries,
		backoff:    defaultRetryBackoff,
		logger:     logger.OrNop(l),
	}
}

// Run implements invoice.UnitOfWork
func (u *GormUnitOfWork) Run(ctx context.Context, fn func(tx invoice.TxStore) error) error {
	return u.run(ctx, nil, fn)
}

// Serializable implements invoice.UnitOfWork. PostgreSQL runs the
// transaction at SERIALIZABLE and locks the header row; SQLite already
// serializes writers through its single connection.
func (u *GormUnitOfWork) Serializable(ctx context.Context, fn func(tx invoice.TxStore) error) error {
	var opts *sql.TxOptions
	if IsPostgres(u.db) {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	var err error
	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(u.backoff * time.Duration(attempt)):
			}
		}
		err = u.run(ctx, opts, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		u.logger.Warn("transaction conflict, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", u.maxRetries),
			zap.Error(err))
	}

	u.logger.Error("transaction retries exhausted", zap.Error(err))
	return fmt.Errorf("%w: %v", shared.ErrConcurrencyConflict, err)
}

func (u *GormUnitOfWork) run(ctx context.Context, opts *sql.TxOptions, fn func(tx invoice.TxStore) error) error {
	body := func(tx *gorm.DB) error {
		return fn(newGormTxStore(tx, IsPostgres(u.db)))
	}
	if opts == nil {
		return u.db.WithContext(ctx).Transaction(body)
	}
	return u.db.WithContext(ctx).Transaction(body, opts)
}

// isRetryable reports whether err came from a transaction the database
// aborted for concurrency reasons
func isRetryable(err error) bool {
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLStates[pgErr.Code]
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsPostgres reports whether db talks to PostgreSQL
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// gormTxStore implements invoice.TxStore on one open transaction
type gormTxStore struct {
	tx       *gorm.DB
	postgres bool
	// versions holds the row version each header had when this transaction
	// read it
	versions map[int64]int64
}

func newGormTxStore(tx *gorm.DB, postgres bool) *gormTxStore {
	return &gormTxStore{tx: tx, postgres: postgres, versions: make(map[int64]int64)}
}

// LockHeader implements invoice.TxStore
func (s *gormTxStore) LockHeader(ctx context.Context, id int64) (*invoice.TransactionHeader, error) {
	q := s.tx.WithContext(ctx)
	if s.postgres {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m models.InvoiceModel
	if err := q.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoice.ErrInvoiceNotFound(id)
		}
		return nil, err
	}
	s.versions[id] = m.Version
	return m.ToDomain(), nil
}

// FindLegacyHeader implements invoice.TxStore
func (s *gormTxStore) FindLegacyHeader(ctx context.Context, id int64) (*invoice.TransactionHeader, error) {
	return findLegacyHeader(ctx, s.tx, id)
}

// CreateHeader implements invoice.TxStore
func (s *gormTxStore) CreateHeader(ctx context.Context, h *invoice.TransactionHeader) error {
	if h.ID == 0 {
		id, err := s.nextID(ctx)
		if err != nil {
			return err
		}
		h.ID = id
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}

	m := models.InvoiceModelFromDomain(h)
	if err := s.tx.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create invoice header: %w", err)
	}
	s.versions[h.ID] = m.Version
	return nil
}

// nextID allocates an ID above every invoice and every legacy sale so a
// transaction ID always names exactly one sale
func (s *gormTxStore) nextID(ctx context.Context) (int64, error) {
	var maxInvoice int64
	if err := s.tx.WithContext(ctx).Model(&models.InvoiceModel{}).
		Select("COALESCE(MAX(id), 0)").Scan(&maxInvoice).Error; err != nil {
		return 0, fmt.Errorf("failed to allocate invoice id: %w", err)
	}

	var maxSale int64
	cols, err := loadColumns(ctx, s.tx, "sales")
	if err != nil {
		return 0, err
	}
	if cols["id"] {
		if err := s.tx.WithContext(ctx).Table("sales").
			Select("COALESCE(MAX(id), 0)").Scan(&maxSale).Error; err != nil {
			return 0, fmt.Errorf("failed to allocate invoice id: %w", err)
		}
	}
	if maxSale > maxInvoice {
		return maxSale + 1, nil
	}
	return maxInvoice + 1, nil
}

// CreateItems implements invoice.TxStore
func (s *gormTxStore) CreateItems(ctx context.Context, transactionID int64, items []invoice.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]*models.InvoiceItemModel, 0, len(items))
	for _, li := range items {
		rows = append(rows, models.InvoiceItemModelFromDomain(transactionID, li))
	}
	if err := s.tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to create invoice items: %w", err)
	}
	return nil
}

// UpdateSettlement implements invoice.TxStore. The write is conditional on
// the version read earlier in this transaction.
func (s *gormTxStore) UpdateSettlement(ctx context.Context, h *invoice.TransactionHeader) error {
	version, ok := s.versions[h.ID]
	if !ok {
		return fmt.Errorf("invoice %d was not read in this transaction", h.ID)
	}

	result := s.tx.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", h.ID, version).
		Updates(map[string]any{
			"payment_status":     string(h.PaymentStatus),
			"outstanding_amount": h.OutstandingAmount,
			"version":            version + 1,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	s.versions[h.ID] = version + 1
	return nil
}

// UpdateArtifactPath implements invoice.TxStore
func (s *gormTxStore) UpdateArtifactPath(ctx context.Context, id int64, path string) error {
	result := s.tx.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"artifact_path": path,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoice.ErrInvoiceNotFound(id)
	}
	return nil
}

// AppendPayment implements invoice.TxStore
func (s *gormTxStore) AppendPayment(ctx context.Context, e *invoice.PaymentEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m := models.PaymentEventModelFromDomain(e)
	if err := s.tx.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	e.ID = m.ID
	return nil
}

// AppendLedgerEntry implements invoice.TxStore
func (s *gormTxStore) AppendLedgerEntry(ctx context.Context, e *invoice.LedgerEntry) error {
	var prev []models.LedgerEntryModel
	if err := s.tx.WithContext(ctx).
		Where("customer_id = ?", e.CustomerID).
		Order("id DESC").
		Limit(1).
		Find(&prev).Error; err != nil {
		return fmt.Errorf("failed to read customer ledger: %w", err)
	}
	balance := decimal.Zero
	if len(prev) > 0 {
		balance = prev[0].RunningBalance
	}
	e.Apply(balance)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	m := models.LedgerEntryModelFromDomain(e)
	if err := s.tx.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	e.ID = m.ID
	return nil
}

// CustomerExists implements invoice.TxStore
func (s *gormTxStore) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := s.tx.WithContext(ctx).Model(&models.CustomerModel{}).
		Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// InvoiceNumberTaken implements invoice.TxStore. Legacy sale numbers count
// as taken.
func (s *gormTxStore) InvoiceNumberTaken(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := s.tx.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("invoice_number = ?", number).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	cols, err := loadColumns(ctx, s.tx, "sales")
	if err != nil {
		return false, err
	}
	col := cols.pick("invoice_no", "invoice_number", "bill_no")
	if col == "" {
		return false, nil
	}
	return existsRow(ctx, s.tx, "sales", col, number)
}

// CountIssuedOn implements invoice.TxStore
func (s *gormTxStore) CountIssuedOn(ctx context.Context, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var count int64
	err := s.tx.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("created_at >= ? AND created_at < ?", start, start.AddDate(0, 0, 1)).
		Count(&count).Error
	return count, err
}
