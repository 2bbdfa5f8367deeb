package persistence

import (
	"context"
	"errors"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// GormInvoiceRepository reads current-layout invoices and their payment and
// ledger history
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice header by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id int64) (*invoice.TransactionHeader, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoice.ErrInvoiceNotFound(id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByCustomer returns a customer's invoices in the filter's order
func (r *GormInvoiceRepository) ListByCustomer(ctx context.Context, customerID int64, filter invoice.ListFilter) ([]invoice.TransactionHeader, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Clauses(invoiceOrder(filter.SortBy, filter.SortOrder)).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]invoice.TransactionHeader, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// ListPayments returns an invoice's payment events in the order they were made
func (r *GormInvoiceRepository) ListPayments(ctx context.Context, transactionID int64) ([]invoice.PaymentEvent, error) {
	var rows []models.PaymentEventModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", transactionID).
		Order("paid_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]invoice.PaymentEvent, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// ListLedgerEntries returns a customer's ledger in posting order
func (r *GormInvoiceRepository) ListLedgerEntries(ctx context.Context, customerID int64) ([]invoice.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]invoice.LedgerEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// CustomerBalance returns the running balance of the customer's latest
// ledger entry, or zero for a customer with no entries
func (r *GormInvoiceRepository) CustomerBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("id DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].RunningBalance, nil
}

// CustomerExists reports whether a customer account exists
func (r *GormInvoiceRepository) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).
		Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GormSettingsRepository reads the shop_settings key/value table
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// LoadSettings returns every stored setting. A database without the
// settings table has no settings.
func (r *GormSettingsRepository) LoadSettings(ctx context.Context) (map[string]string, error) {
	db := r.db.WithContext(ctx)
	if !db.Migrator().HasTable(&models.ShopSettingModel{}) {
		return map[string]string{}, nil
	}
	var rows []models.ShopSettingModel
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// Save upserts one setting
func (r *GormSettingsRepository) Save(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Save(&models.ShopSettingModel{Key: key, Value: value}).Error
}
