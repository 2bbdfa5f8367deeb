package invoice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/invoice"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// =============================================================================
// Test doubles
// =============================================================================

// dirStore keeps documents in a test directory
type dirStore struct {
	dir string
}

func (s *dirStore) PathFor(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *dirStore) Exists(_ context.Context, path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func (s *dirStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// fakeRenderer writes the grand total to path and keeps every view it saw
type fakeRenderer struct {
	mu    sync.Mutex
	views []*invoice.InvoiceView
	fail  error
}

func (r *fakeRenderer) Render(_ context.Context, view *invoice.InvoiceView, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.views = append(r.views, view)
	return os.WriteFile(path, []byte(view.InvoiceNumber+" "+view.GrandTotal.StringFixed(2)), 0o644)
}

func (r *fakeRenderer) last() *invoice.InvoiceView {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return nil
	}
	return r.views[len(r.views)-1]
}

// memIdempotency is an in-process idempotency store
type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: map[string]bool{}}
}

func (m *memIdempotency) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memIdempotency) IsProcessed(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], m.err
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *memIdempotency) Close() error { return nil }

// =============================================================================
// Harness
// =============================================================================

// fixedNow is the wall clock every harness service sees
var fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.Local)

type harness struct {
	db        *gorm.DB
	dir       string
	store     *dirStore
	renderer  *fakeRenderer
	idem      *memIdempotency
	uow       *persistence.GormUnitOfWork
	engine    *RegenerationEngine
	sales     *SaleService
	ledger    *LedgerService
	artifacts *ArtifactService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	require.NoError(t, db.AutoMigrate(models.Legacy()...))
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()

	h := &harness{
		db:       db,
		dir:      t.TempDir(),
		renderer: &fakeRenderer{},
		idem:     newMemIdempotency(),
	}
	h.store = &dirStore{dir: h.dir}
	h.uow = persistence.NewGormUnitOfWork(db, 3, log)

	headers := persistence.NewGormInvoiceRepository(db)
	legacy := persistence.NewGormLegacySaleRepository(db)
	resolver := NewItemResolver(
		persistence.NewGormRawItemSource(db, log),
		log,
		persistence.NewCurrentItemSource(db, log),
		persistence.NewLegacyItemSource(db, log),
	)
	assembler := NewViewAssembler(log)
	shop := NewShopInfoLoader(persistence.NewGormSettingsRepository(db), invoice.ShopInfo{
		Name:           "Sharma General Store",
		DefaultTaxRate: decimal.NewFromInt(5),
	}, log)

	h.engine = NewRegenerationEngine(headers, legacy, resolver, assembler, shop, h.renderer, h.store, h.uow, log,
		WithRegenerationClock(func() time.Time { return fixedNow }))
	h.sales = NewSaleService(h.uow, shop, h.engine, nil, log)
	h.ledger = NewLedgerService(h.uow, headers, headers, legacy, log,
		WithIdempotency(h.idem, invoiceIdempotencyConfig()),
		WithLedgerClock(func() time.Time { return fixedNow }))
	h.artifacts = NewArtifactService(headers, legacy, resolver, assembler, shop, h.engine, h.store, nil, log)
	return h
}

func invoiceIdempotencyConfig() shared.IdempotencyConfig {
	return shared.IdempotencyConfig{TTL: time.Hour, Enabled: true}
}

func (h *harness) seedCustomer(t *testing.T, id int64, name string) {
	t.Helper()
	require.NoError(t, h.db.Create(&models.CustomerModel{ID: id, Name: name}).Error)
}

// seedLegacySale writes a credit sale in the older sales / sale_items layout
func (h *harness) seedLegacySale(t *testing.T, id int64, customerID int64, items ...models.LegacySaleItemModel) {
	t.Helper()
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Total)
	}
	require.NoError(t, h.db.Create(&models.LegacySaleModel{
		ID:          id,
		InvoiceNo:   "OLD-" + decimal.NewFromInt(id).String(),
		CustomerID:  &customerID,
		SaleDate:    fixedNow.AddDate(0, -6, 0),
		TotalAmount: total,
		NetAmount:   total,
		PaymentMode: "credit",
		BalanceDue:  total,
	}).Error)
	for i := range items {
		items[i].SaleID = id
		require.NoError(t, h.db.Create(&items[i]).Error)
	}
}

// scenarioSale is the reference basket: 2150.00 of goods, 85.00 off and
// 103.26 of GST, for a grand total of 2168.26
func scenarioSale(method string, customerID *int64) RecordSaleRequest {
	eighteen := decimal.NewFromInt(18)
	zero := decimal.Zero
	return RecordSaleRequest{
		CustomerID: customerID,
		Items: []SaleItemRequest{
			{ProductID: 11, Name: "Pressure Cooker 5L", UnitPrice: dec("573.67"), Quantity: dec("1"), TaxRate: &eighteen},
			{ProductID: 12, Name: "Basmati Rice 25kg", UnitPrice: dec("1576.33"), Quantity: dec("1"), TaxRate: &zero},
		},
		Discount:      dec("85"),
		PaymentMethod: method,
		CreatedAt:     fixedNow,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(v int64) *int64 {
	return &v
}
