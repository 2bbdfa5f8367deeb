package persistence

import (
	"testing"
	"time"

	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newSQLiteDB opens a private in-memory database on a single connection
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// newMigratedDB opens an in-memory database with both layouts' tables
func newMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newSQLiteDB(t)
	require.NoError(t, db.AutoMigrate(models.All()...))
	require.NoError(t, db.AutoMigrate(models.Legacy()...))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func seedInvoice(t *testing.T, db *gorm.DB, m *models.InvoiceModel) {
	t.Helper()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Version == 0 {
		m.Version = 1
	}
	if m.SourceLayout == "" {
		m.SourceLayout = "CURRENT"
	}
	require.NoError(t, db.Create(m).Error)
}

func creditInvoice(id int64, total string) *models.InvoiceModel {
	return &models.InvoiceModel{
		ID:                id,
		InvoiceNumber:     "INV-TEST-" + decimal.NewFromInt(id).String(),
		CustomerID:        int64Ptr(1),
		Subtotal:          dec(total),
		GrandTotal:        dec(total),
		PaymentMethod:     "CREDIT",
		PaymentStatus:     "UNPAID",
		OutstandingAmount: dec(total),
	}
}
