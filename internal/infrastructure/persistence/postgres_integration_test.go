//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/migration"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// newPostgresDB starts a PostgreSQL container and applies the embedded
// migrations through the same path the server uses
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pos_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Driver:          "postgres",
		Host:            host,
		Port:            port.Int(),
		User:            "postgres",
		Password:        "postgres",
		DBName:          "pos_test",
		SSLMode:         "disable",
		MaxOpenConns:    8,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
		ConnMaxIdleTime: 5,
	}
	database, err := NewDatabase(cfg, nil)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	m, err := migration.NewEmbedded(sqlDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, database.DB.Create(&models.CustomerModel{ID: 1, Name: "Meena Traders"}).Error)
	return database.DB
}

func TestPostgres_ConcurrentCollectionsSerialize(t *testing.T) {
	ctx := context.Background()
	db := newPostgresDB(t)
	seedInvoice(t, db, creditInvoice(20, "100"))
	u := newTestUnitOfWork(db, 5)

	collect := func(amount string) error {
		return u.Serializable(ctx, func(tx invoice.TxStore) error {
			h, err := tx.LockHeader(ctx, 20)
			if err != nil {
				return err
			}
			applied, err := h.ApplyPayment(dec(amount))
			if err != nil {
				return err
			}
			if err := tx.UpdateSettlement(ctx, h); err != nil {
				return err
			}
			return tx.AppendPayment(ctx, &invoice.PaymentEvent{
				TransactionID: 20, Amount: applied, Method: invoice.PaymentMethodCash,
				PaidAt: time.Now(), BalanceAfter: h.OutstandingAmount,
			})
		})
	}

	const workers = 3
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = collect("70")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, shared.IsKind(err, shared.KindValidation), "loser fails validation: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var m models.InvoiceModel
	require.NoError(t, db.First(&m, 20).Error)
	assert.Equal(t, "30.00", m.OutstandingAmount.StringFixed(2))
	assert.Equal(t, "PARTIALLY_PAID", m.PaymentStatus)
}

func TestPostgres_HeaderAndLegacyLookups(t *testing.T) {
	ctx := context.Background()
	db := newPostgresDB(t)
	seedInvoice(t, db, creditInvoice(31, "236.00"))
	require.NoError(t, db.Create(&models.InvoiceItemModel{
		InvoiceID: 31, ProductName: "Paracetamol 500", Quantity: dec("2"), UnitPrice: dec("100"),
		TaxRate: dec("18"), TaxAmount: dec("36"), LineTotal: dec("200"),
	}).Error)
	require.NoError(t, db.Create(&models.ProductModel{ID: 5, Name: "Cough Syrup", HSNCode: "3003"}).Error)
	require.NoError(t, db.Create(&models.LegacySaleModel{ID: 7, InvoiceNo: "OLD-7", SaleDate: time.Now(), NetAmount: dec("90")}).Error)
	require.NoError(t, db.Create(&models.LegacySaleItemModel{
		SaleID: 7, ProductID: 5, Qty: dec("1"), Price: dec("100"), DiscPercent: dec("10"), Total: dec("90"),
	}).Error)

	h, err := NewGormInvoiceRepository(db).FindByID(ctx, 31)
	require.NoError(t, err)
	assert.Equal(t, "INV-TEST-31", h.InvoiceNumber)

	items, err := NewCurrentItemSource(db, nil).Open(ctx).Items(ctx, 31)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Paracetamol 500", items[0].Name)

	legacy, err := NewLegacyItemSource(db, nil).Open(ctx).Items(ctx, 7)
	require.NoError(t, err)
	require.Len(t, legacy, 1)
	assert.Equal(t, "Cough Syrup", legacy[0].Name)

	rows, err := NewGormRawItemSource(db, nil).DumpRows(ctx, 7)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestPostgres_InvoiceNumberUnique(t *testing.T) {
	db := newPostgresDB(t)
	seedInvoice(t, db, creditInvoice(40, "10"))

	dup := creditInvoice(41, "10")
	dup.InvoiceNumber = "INV-TEST-40"
	dup.CreatedAt = time.Now()
	dup.Version = 1
	dup.SourceLayout = "CURRENT"
	assert.Error(t, db.Create(dup).Error)
}
